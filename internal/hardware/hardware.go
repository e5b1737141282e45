// Package hardware defines the collaborator seams between the control core
// and the physical board: the actuator driver and the temperature sensor bus.
// Real deployments wire vendor drivers here; tests and bench runs use the
// fakes and the thermal simulator.
package hardware

// ActuatorDriver applies a computed power level to a physical channel.
// Dimmer channels use the full 0..100 range; relay channels may quantize to
// on/off internally. Callers must not assume which.
type ActuatorDriver interface {
	SetPower(channel int, percent int) error
}

// Reading is one raw probe sample keyed by bus address.
type Reading struct {
	Address string
	TempC   float64
}

// SensorBus enumerates and samples the temperature probes.
type SensorBus interface {
	// Scan returns the addresses of all probes currently answering.
	Scan() ([]string, error)
	// ReadAll samples every known probe. A probe that fails to convert
	// reports the disconnected sentinel in its Reading.
	ReadAll() ([]Reading, error)
}
