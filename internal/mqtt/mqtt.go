// Package mqtt publishes controller status over MQTT and accepts inbound
// output commands, with abstraction for testing.
package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cheew/terratherm/internal/models"
)

// DefaultTopicPrefix namespaces all controller topics.
const DefaultTopicPrefix = "terratherm"

// Topic suffixes under the prefix.
const (
	TopicStatus = "status"  // retained snapshot, published each cycle
	TopicEvents = "events"  // controller log entries
	TopicSystem = "system"  // lifecycle: online/offline (LWT)
	TopicSet    = "outputs" // <prefix>/outputs/<id>/set for inbound commands
)

// Publisher pushes controller state to the broker. Publishing failures must
// never stall the control loop; implementations buffer and retry.
type Publisher interface {
	// PublishStatus sends the retained per-cycle snapshot.
	PublishStatus(snapshot models.StatusSnapshot) error

	// PublishEvent sends a controller log entry.
	PublishEvent(e models.Event) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the broker connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// OutputCommand is the inbound payload on <prefix>/outputs/<id>/set.
// Fields are optional; present fields are applied in order mode, target,
// power with the same validation as the HTTP surface.
type OutputCommand struct {
	Mode    *models.ControlMode `json:"mode,omitempty"`
	TargetC *float64            `json:"target_c,omitempty"`
	Power   *int                `json:"power,omitempty"`
}

// CommandSink is the slice of the control surface the broker can drive.
type CommandSink interface {
	SetMode(ctx context.Context, index int, mode models.ControlMode) error
	SetTarget(index int, targetC float64) error
	SetManualPower(index int, power int) error
}

// systemPayload is the lifecycle message body (also used for the LWT).
type systemPayload struct {
	System struct {
		Timestamp string `json:"timestamp"`
		Event     string `json:"event"`
	} `json:"system"`
}

// formatSystem creates the JSON payload for a lifecycle event.
func formatSystem(event string, at time.Time) []byte {
	var p systemPayload
	p.System.Timestamp = at.UTC().Format(time.RFC3339)
	p.System.Event = event
	b, _ := json.Marshal(p)
	return b
}
