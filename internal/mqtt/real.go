package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/cheew/terratherm/internal/logger"
	"github.com/cheew/terratherm/internal/models"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	// Messages buffered while the broker is unreachable.
	offlineBufferSize = 256
)

// RealPublisher publishes to an actual MQTT broker, buffering messages while
// disconnected and replaying them on reconnect.
type RealPublisher struct {
	client paho.Client
	prefix string
	log    *logger.Logger

	mu     sync.Mutex
	buffer *ringBuffer
}

// NewRealPublisher connects to the broker. commands may be nil when inbound
// control over MQTT is disabled.
func NewRealPublisher(broker, clientID, prefix string, commands CommandSink, log *logger.Logger) (*RealPublisher, error) {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	p := &RealPublisher{
		prefix: prefix,
		log:    log,
		buffer: newRingBuffer(offlineBufferSize),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(prefix+"/"+TopicSystem, string(formatSystem("OFFLINE", time.Now())), 1, true).
		SetOnConnectHandler(func(c paho.Client) {
			p.onConnect(c, commands)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// onConnect announces the controller, subscribes the command topic and
// replays anything buffered while offline.
func (p *RealPublisher) onConnect(c paho.Client, commands CommandSink) {
	c.Publish(p.prefix+"/"+TopicSystem, 1, true, formatSystem("ONLINE", time.Now()))

	if commands != nil {
		topic := p.prefix + "/" + TopicSet + "/+/set"
		c.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
			p.handleCommand(commands, msg.Topic(), msg.Payload())
		})
	}

	p.mu.Lock()
	pending := p.buffer.drainAll()
	p.mu.Unlock()
	for _, m := range pending {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
	if len(pending) > 0 && p.log != nil {
		p.log.Infow("mqtt_replayed_buffered", "count", len(pending))
	}
}

// handleCommand applies an inbound outputs/<id>/set payload.
func (p *RealPublisher) handleCommand(commands CommandSink, topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) < 4 {
		return
	}
	index, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return
	}

	var cmd OutputCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		if p.log != nil {
			p.log.Infow("mqtt_bad_command", "topic", topic, "err", err)
		}
		return
	}

	ctx := context.Background()
	if cmd.Mode != nil {
		if err := commands.SetMode(ctx, index, *cmd.Mode); err != nil && p.log != nil {
			p.log.Infow("mqtt_command_rejected", "output", index, "err", err)
		}
	}
	if cmd.TargetC != nil {
		if err := commands.SetTarget(index, *cmd.TargetC); err != nil && p.log != nil {
			p.log.Infow("mqtt_command_rejected", "output", index, "err", err)
		}
	}
	if cmd.Power != nil {
		if err := commands.SetManualPower(index, *cmd.Power); err != nil && p.log != nil {
			p.log.Infow("mqtt_command_rejected", "output", index, "err", err)
		}
	}
}

// PublishStatus sends the retained per-cycle snapshot (QoS 0: the next tick
// supersedes a lost one).
func (p *RealPublisher) PublishStatus(snapshot models.StatusSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	return p.publish(p.prefix+"/"+TopicStatus, 0, true, payload)
}

// PublishEvent sends a controller log entry (QoS 1: events must arrive).
func (p *RealPublisher) PublishEvent(e models.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.publish(p.prefix+"/"+TopicEvents, 1, false, payload)
}

// publish sends or buffers depending on connection state. Must never block
// the control loop past the publish timeout.
func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnected() {
		p.mu.Lock()
		p.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		dropped := p.buffer.dropped()
		p.mu.Unlock()
		if dropped && p.log != nil {
			p.log.Warnw("mqtt_buffer_full", "capacity", offlineBufferSize)
		}
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// IsConnected reports the broker connection state.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close announces a clean offline and disconnects.
func (p *RealPublisher) Close() error {
	if p.client.IsConnected() {
		t := p.client.Publish(p.prefix+"/"+TopicSystem, 1, true, formatSystem("OFFLINE", time.Now()))
		t.WaitTimeout(publishTimeout)
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
