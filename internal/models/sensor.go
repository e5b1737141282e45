package models

import "time"

// DisconnectedC is the sentinel a probe reports when it is not answering on
// the bus (DS18B20 power-on reset value).
const DisconnectedC = -127.0

// Physical plausibility window for an enclosure probe, °C.
const (
	MinPlausibleC = -50.0
	MaxPlausibleC = 100.0
)

// ValidReading reports whether a raw probe value is usable: not the
// disconnected sentinel and within the physical range.
func ValidReading(c float64) bool {
	if c != c { // NaN
		return false
	}
	return c != DisconnectedC && c >= MinPlausibleC && c <= MaxPlausibleC
}

// Sensor is one temperature probe, keyed by its stable bus address.
// Entries persist across rescans unless the table is explicitly cleared.
type Sensor struct {
	Address    string    `json:"address"`
	LastTempC  float64   `json:"last_temp_c"`
	LastReadAt time.Time `json:"last_read_at,omitempty"`
	ErrorCount int       `json:"error_count"`
	Discovered bool      `json:"discovered"`
}
