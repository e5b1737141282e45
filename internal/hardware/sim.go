package hardware

import (
	"sync"
	"time"
)

// Thermal model constants for bench runs without real probes.
const (
	simAmbientC       = 22.0
	simHeatCPerSec    = 0.05  // °C/s gained per 100% applied power
	simCoolCPerSec    = 0.015 // °C/s drift back toward ambient
	simStartTempC     = 22.0
	simMaxChannelTemp = 90.0
)

// Sim is a combined actuator driver and sensor bus implementing a first-order
// thermal model per channel: applied power ramps the channel's probe up,
// ambient pulls it back down. Good enough to exercise the control loop end to
// end on a desk.
type Sim struct {
	mu        sync.Mutex
	addresses []string
	channels  map[string]int // probe address -> actuator channel
	temps     map[string]float64
	powers    map[int]int
	lastStep  time.Time
}

// NewSim builds a simulator with one probe per channel. Probe address i is
// bound to actuator channel i.
func NewSim(addresses []string) *Sim {
	s := &Sim{
		addresses: addresses,
		channels:  make(map[string]int, len(addresses)),
		temps:     make(map[string]float64, len(addresses)),
		powers:    make(map[int]int, len(addresses)),
		lastStep:  time.Now(),
	}
	for i, addr := range addresses {
		s.channels[addr] = i
		s.temps[addr] = simStartTempC
	}
	return s
}

func (s *Sim) SetPower(channel int, percent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.powers[channel] = percent
	return nil
}

func (s *Sim) Scan() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.addresses))
	copy(out, s.addresses)
	return out, nil
}

func (s *Sim) ReadAll() ([]Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step(time.Now())
	out := make([]Reading, 0, len(s.addresses))
	for _, addr := range s.addresses {
		out = append(out, Reading{Address: addr, TempC: s.temps[addr]})
	}
	return out, nil
}

// step advances the thermal model by the wall time elapsed since the last
// read. Caller holds the lock.
func (s *Sim) step(now time.Time) {
	elapsed := now.Sub(s.lastStep).Seconds()
	s.lastStep = now
	if elapsed <= 0 {
		return
	}
	for addr, ch := range s.channels {
		t := s.temps[addr]
		t += simHeatCPerSec * float64(s.powers[ch]) / 100.0 * elapsed
		if t > simAmbientC {
			t -= simCoolCPerSec * elapsed
			if t < simAmbientC {
				t = simAmbientC
			}
		}
		if t > simMaxChannelTemp {
			t = simMaxChannelTemp
		}
		s.temps[addr] = t
	}
}
