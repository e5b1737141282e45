package models

import "time"

// Event types recorded in the controller's log.
const (
	EventBoot          = "BOOT"
	EventModeChange    = "MODE_CHANGE"
	EventFault         = "FAULT"
	EventFaultCleared  = "FAULT_CLEARED"
	EventSafeMode      = "SAFE_MODE"
	EventSafeModeClear = "SAFE_MODE_CLEARED"
	EventEmergencyStop = "EMERGENCY_STOP"
	EventConfigSaved   = "CONFIG_SAVED"
)

// Event is a single controller log entry.
type Event struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
