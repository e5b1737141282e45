package hardware

import "sync"

// FakeActuator records the last power applied per channel.
type FakeActuator struct {
	mu     sync.Mutex
	Powers map[int]int
	Err    error
}

func NewFakeActuator() *FakeActuator {
	return &FakeActuator{Powers: make(map[int]int)}
}

func (f *FakeActuator) SetPower(channel int, percent int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Powers[channel] = percent
	return nil
}

// Power returns the last value applied to a channel.
func (f *FakeActuator) Power(channel int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Powers[channel]
}

// FakeSensorBus serves scripted readings.
type FakeSensorBus struct {
	mu        sync.Mutex
	Addresses []string
	Readings  map[string]float64
	ScanErr   error
	ReadErr   error
}

func NewFakeSensorBus() *FakeSensorBus {
	return &FakeSensorBus{Readings: make(map[string]float64)}
}

// Set scripts the next reading for a probe, adding it to the scan set.
func (f *FakeSensorBus) Set(address string, tempC float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, known := f.Readings[address]; !known {
		f.Addresses = append(f.Addresses, address)
	}
	f.Readings[address] = tempC
}

func (f *FakeSensorBus) Scan() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ScanErr != nil {
		return nil, f.ScanErr
	}
	out := make([]string, len(f.Addresses))
	copy(out, f.Addresses)
	return out, nil
}

func (f *FakeSensorBus) ReadAll() ([]Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	out := make([]Reading, 0, len(f.Addresses))
	for _, addr := range f.Addresses {
		out = append(out, Reading{Address: addr, TempC: f.Readings[addr]})
	}
	return out, nil
}
