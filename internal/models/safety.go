package models

import "time"

// SafeModeReason explains why the supervisor is holding all outputs off.
type SafeModeReason string

const (
	ReasonNone          SafeModeReason = "none"
	ReasonBootLoop      SafeModeReason = "boot_loop"
	ReasonWatchdog      SafeModeReason = "watchdog"
	ReasonUserRequested SafeModeReason = "user_requested"
	ReasonCriticalFault SafeModeReason = "critical_fault"
)

// SafetyState is the process-wide supervisor state, persisted across boots
// and loaded before any other subsystem initializes.
type SafetyState struct {
	ID              int            `json:"id"`
	SafeMode        bool           `json:"safe_mode"`
	Reason          SafeModeReason `json:"reason"`
	BootCount       int            `json:"boot_count"`
	LastBootAt      time.Time      `json:"last_boot_at,omitempty"`
	StableMarkedAt  time.Time      `json:"stable_marked_at,omitempty"`
	WatchdogEnabled bool           `json:"watchdog_enabled"`
	// WatchdogDirty is set while the process runs and cleared on clean
	// shutdown. Found set at boot, the previous run died without shutting
	// down cleanly and is accounted as a watchdog reset.
	WatchdogDirty bool      `json:"watchdog_dirty"`
	LastFeedAt    time.Time `json:"last_feed_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SafetyStatus is the read-only safety snapshot for the status sinks.
type SafetyStatus struct {
	SafeMode  bool           `json:"safe_mode"`
	Reason    SafeModeReason `json:"reason"`
	BootCount int            `json:"boot_count"`
	Watchdog  bool           `json:"watchdog_enabled"`
}
