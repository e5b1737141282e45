package service

import (
	"sort"
	"sync"
	"time"

	"github.com/cheew/terratherm/internal/hardware"
	"github.com/cheew/terratherm/internal/models"
)

// SensorRegistry owns the probe table: readings, timestamps, error counters
// and the discovered set. Entries survive rescans so an output's weak
// reference to a momentarily missing probe stays intact.
type SensorRegistry struct {
	mu      sync.Mutex
	bus     hardware.SensorBus
	sensors map[string]*models.Sensor
}

func NewSensorRegistry(bus hardware.SensorBus) *SensorRegistry {
	return &SensorRegistry{
		bus:     bus,
		sensors: make(map[string]*models.Sensor),
	}
}

// Scan enumerates the bus and marks discovered probes. Probes that stopped
// answering keep their entry but lose the discovered flag.
func (r *SensorRegistry) Scan() error {
	addrs, err := r.bus.Scan()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sensors {
		s.Discovered = false
	}
	for _, addr := range addrs {
		if s, ok := r.sensors[addr]; ok {
			s.Discovered = true
			continue
		}
		r.sensors[addr] = &models.Sensor{Address: addr, LastTempC: models.DisconnectedC, Discovered: true}
	}
	return nil
}

// Refresh samples every probe once. Invalid readings increment the probe's
// consecutive-error counter; valid readings reset it and stamp the read time.
// A bus-level failure leaves the table untouched and is retried next tick.
func (r *SensorRegistry) Refresh(now time.Time) error {
	readings, err := r.bus.ReadAll()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rd := range readings {
		s, ok := r.sensors[rd.Address]
		if !ok {
			s = &models.Sensor{Address: rd.Address, Discovered: true}
			r.sensors[rd.Address] = s
		}
		s.LastTempC = rd.TempC
		if models.ValidReading(rd.TempC) {
			s.LastReadAt = now
			s.ErrorCount = 0
		} else {
			s.ErrorCount++
		}
	}
	return nil
}

// Current resolves a probe by address. Missing or undiscovered probes report
// the disconnected sentinel.
func (r *SensorRegistry) Current(address string) (tempC float64, lastReadAt time.Time, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sensors[address]
	if !ok || !s.Discovered {
		return models.DisconnectedC, time.Time{}, false
	}
	return s.LastTempC, s.LastReadAt, true
}

// List returns the probe table sorted by address.
func (r *SensorRegistry) List() []models.Sensor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Sensor, 0, len(r.sensors))
	for _, s := range r.sensors {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}
