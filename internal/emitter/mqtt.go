// Package emitter publishes frame.TrackerOutput payloads to the optional
// MQTT analytics sink, a consumer outside the core; the pipeline feeds it
// from the bounded analytics_out queue. Adapted from
// the teacher's MQTTEmitter (References/orion-prototipe/internal/emitter),
// repurposed from the original per-inference-type topic/QoS scheme to a
// single per-stream analytics topic.
package emitter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/e7canasta/shroudstream/internal/frame"
)

// Config configures the MQTT broker connection.
type Config struct {
	Broker   string // host:port, no scheme
	Topic    string // base topic; published under "<topic>/<stream_id>"
	ClientID string
}

// Emitter publishes tracker output to MQTT.
type Emitter struct {
	cfg    Config
	client mqtt.Client

	mu        sync.RWMutex
	published uint64
	errors    uint64
	connected bool
}

// New constructs an Emitter; call Connect before Publish.
func New(cfg Config) *Emitter {
	return &Emitter{cfg: cfg}
}

// Connect establishes the MQTT connection with auto-reconnect, matching the
// teacher's connection option set.
func (e *Emitter) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.mu.Lock()
		e.connected = true
		e.mu.Unlock()
		slog.Info("mqtt connection established", "broker", e.cfg.Broker, "client_id", e.cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()
		slog.Warn("mqtt connection lost, will auto-reconnect", "error", err, "broker", e.cfg.Broker)
	}

	e.client = mqtt.NewClient(opts)

	token := e.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("emitter: mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("emitter: mqtt connect failed: %w", err)
	}

	e.mu.Lock()
	e.connected = true
	e.mu.Unlock()
	return nil
}

// Publish emits one TrackerFrameOutput at QoS 0 under "<topic>/<stream_id>".
// Failures are logged and counted, never returned up into the pipeline —
// the analytics sink is an external collaborator, not a hard dependency.
func (e *Emitter) Publish(out frame.TrackerOutput) {
	if !e.isConnected() {
		e.recordError()
		return
	}

	payload, err := json.Marshal(trackerOutputJSON{
		StreamID: out.StreamID,
		FrameID:  out.FrameID,
		PtsNs:    out.PtsNs,
		Tracks:   out.Tracks,
	})
	if err != nil {
		slog.Error("emitter: marshal tracker output", "error", err)
		e.recordError()
		return
	}

	topic := fmt.Sprintf("%s/%s", e.cfg.Topic, out.StreamID)
	token := e.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		slog.Warn("emitter: publish timeout", "topic", topic)
		e.recordError()
		return
	}
	if err := token.Error(); err != nil {
		slog.Warn("emitter: publish failed", "topic", topic, "error", err)
		e.recordError()
		return
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()
}

type trackerOutputJSON struct {
	StreamID string      `json:"stream_id"`
	FrameID  uint64      `json:"frame_id"`
	PtsNs    int64       `json:"pts_ns"`
	Tracks   []frame.Box `json:"tracks"`
}

// Disconnect closes the MQTT connection, if any.
func (e *Emitter) Disconnect() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
	}
	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
}

func (e *Emitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *Emitter) recordError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

// Stats reports publish counters for logging/diagnostics.
type Stats struct {
	Connected bool
	Published uint64
	Errors    uint64
}

func (e *Emitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{Connected: e.connected, Published: e.published, Errors: e.errors}
}
