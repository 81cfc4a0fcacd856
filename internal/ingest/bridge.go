package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/sensorflow-hub/internal/auth"
	"github.com/nerrad567/sensorflow-hub/internal/infrastructure/logging"
	"github.com/nerrad567/sensorflow-hub/internal/infrastructure/mqtt"
	"github.com/nerrad567/sensorflow-hub/internal/sensor"
)

const (
	// telemetryTopicParts is the segment count of a well-formed telemetry topic.
	telemetryTopicParts = 3

	// handleTimeout bounds authentication and storage work for one message.
	handleTimeout = 5 * time.Second
)

// MQTTClient is the transport surface the bridge needs.
// Satisfied by *mqtt.Client; narrowed so tests can substitute a mock.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Deps holds the bridge's dependencies. All fields are required.
type Deps struct {
	MQTT    MQTTClient
	Auth    *auth.Service
	Sensors *sensor.Service
	Logger  *logging.Logger
}

// Bridge subscribes to device telemetry and funnels authenticated readings
// into the sensor store, acknowledging each message on the publisher's ack
// topic.
//
// Handlers run on paho's goroutines; the wrapper client recovers panics,
// and all bridge state is read-only after Start, so no locking is needed
// beyond the services' own.
type Bridge struct {
	mqtt    MQTTClient
	auth    *auth.Service
	sensors *sensor.Service
	logger  *logging.Logger

	// ctx bounds in-flight handlers; cancelled on Stop.
	ctx       context.Context
	ctxCancel context.CancelFunc
	stopOnce  sync.Once
}

// New creates the bridge. Call Start to begin consuming telemetry.
func New(deps Deps) (*Bridge, error) {
	if deps.MQTT == nil {
		return nil, fmt.Errorf("mqtt client is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("auth service is required")
	}
	if deps.Sensors == nil {
		return nil, fmt.Errorf("sensor service is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Bridge{
		mqtt:      deps.MQTT,
		auth:      deps.Auth,
		sensors:   deps.Sensors,
		logger:    deps.Logger,
		ctx:       ctx,
		ctxCancel: cancel,
	}, nil
}

// Start subscribes to telemetry from every device.
func (b *Bridge) Start() error {
	topic := mqtt.Topics{}.AllTelemetry()
	if err := b.mqtt.Subscribe(topic, 1, b.handleTelemetry); err != nil {
		return fmt.Errorf("subscribe to telemetry: %w", err)
	}

	b.logger.Info("ingest bridge started", "topic", topic)
	return nil
}

// Stop cancels in-flight handlers. The MQTT connection itself is owned
// and closed by the caller.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()
		b.logger.Info("ingest bridge stopped")
	})
}

// handleTelemetry processes one telemetry message.
//
// Every decodable message is acknowledged, accepted or rejected; only a
// malformed topic gets no ack because there is nowhere to address it.
func (b *Bridge) handleTelemetry(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) != telemetryTopicParts || parts[2] != "telemetry" {
		return fmt.Errorf("unexpected telemetry topic %q", topic)
	}

	// The publisher listens on the ack topic matching its telemetry topic.
	ackDevice := parts[1]

	ctx, cancel := context.WithTimeout(b.ctx, handleTimeout)
	defer cancel()

	var msg TelemetryMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.logger.Warn("telemetry payload undecodable", "topic", topic, "error", err)
		b.publishRejection(ackDevice, ErrCodeInvalidPayload, "malformed telemetry payload")
		return nil
	}

	// One rejection for malformed, unknown, expired and revoked tokens.
	user, err := b.auth.ValidateSession(ctx, msg.Token)
	if err != nil {
		b.logger.Debug("telemetry token rejected", "device_id", ackDevice)
		b.publishRejection(ackDevice, ErrCodeUnauthorised, "invalid or missing token")
		return nil
	}

	if msg.Temperature == nil || msg.Humidity == nil {
		b.publishRejection(ackDevice, ErrCodeInvalidPayload, "temperature and humidity are required")
		return nil
	}

	// The payload may override the topic's device segment; the reading is
	// stored under the override, the ack still goes to the publisher.
	readingDevice := msg.DeviceID
	if readingDevice == "" {
		readingDevice = ackDevice
	}

	reading, err := b.sensors.Record(ctx, user.ID, readingDevice, *msg.Temperature, *msg.Humidity)
	if err != nil {
		switch {
		case errors.Is(err, sensor.ErrTemperatureOutOfRange), errors.Is(err, sensor.ErrHumidityOutOfRange):
			b.publishRejection(ackDevice, ErrCodeOutOfRange, err.Error())
		default:
			b.logger.Error("telemetry store failed", "device_id", readingDevice, "error", err)
			b.publishRejection(ackDevice, ErrCodeStorageError, "failed to store reading")
		}
		return nil
	}

	b.logger.Debug("telemetry accepted",
		"user_id", user.ID,
		"device_id", reading.DeviceID,
		"reading_id", reading.ID)

	b.publishAck(AckMessage{
		Status:    AckAccepted,
		DeviceID:  ackDevice,
		ReadingID: reading.ID,
		Timestamp: time.Now().UTC(),
	})

	return nil
}

// publishRejection acknowledges a message that was not stored.
func (b *Bridge) publishRejection(device, code, message string) {
	b.publishAck(AckMessage{
		Status:    AckRejected,
		DeviceID:  device,
		Timestamp: time.Now().UTC(),
		Error:     &AckError{Code: code, Message: message},
	})
}

// publishAck sends an acknowledgement to the device's ack topic.
func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logger.Error("failed to marshal ack", "device_id", ack.DeviceID, "error", err)
		return
	}

	topic := mqtt.Topics{}.DeviceAck(ack.DeviceID)
	if err := b.mqtt.Publish(topic, payload, 1, false); err != nil {
		b.logger.Warn("failed to publish ack", "topic", topic, "error", err)
	}
}
