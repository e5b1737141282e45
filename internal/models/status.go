package models

import "time"

// StatusSnapshot is the full read-only system state published to the status
// sinks (WebSocket stream, MQTT) once per tick.
type StatusSnapshot struct {
	At      time.Time      `json:"at"`
	Safety  SafetyStatus   `json:"safety"`
	Outputs []OutputStatus `json:"outputs"`
	Sensors []Sensor       `json:"sensors"`
}
