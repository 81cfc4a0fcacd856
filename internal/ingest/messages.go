package ingest

import "time"

// TelemetryMessage is published by a device to sensorflow/{device}/telemetry.
//
// Temperature and humidity are pointers so an absent field is
// distinguishable from a legitimate zero value.
type TelemetryMessage struct {
	// Token is the bearer session token issued by register or login.
	Token string `json:"token"`

	// DeviceID optionally overrides the topic's device segment.
	DeviceID string `json:"device_id,omitempty"`

	// Temperature in degrees Celsius.
	Temperature *float64 `json:"temperature"`

	// Humidity as relative percent.
	Humidity *float64 `json:"humidity"`
}

// AckStatus represents the acknowledgement status of a telemetry message.
type AckStatus string

const (
	// AckAccepted indicates the reading was validated and stored.
	AckAccepted AckStatus = "accepted"

	// AckRejected indicates the reading was not stored.
	AckRejected AckStatus = "rejected"
)

// AckMessage is published by the bridge to sensorflow/{device}/ack.
type AckMessage struct {
	// Status indicates whether the reading was stored.
	Status AckStatus `json:"status"`

	// DeviceID is the device the acknowledgement addresses.
	DeviceID string `json:"device_id"`

	// ReadingID identifies the stored reading when status is "accepted".
	ReadingID string `json:"reading_id,omitempty"`

	// Timestamp is when the acknowledgement was sent (UTC).
	Timestamp time.Time `json:"timestamp"`

	// Error contains details when status is "rejected".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains rejection details.
type AckError struct {
	// Code is the machine-readable rejection code.
	Code string `json:"code"`

	// Message is a human-readable description.
	Message string `json:"message"`
}

// Rejection codes for telemetry failures.
const (
	// ErrCodeUnauthorised covers every token failure without
	// distinguishing the cause.
	ErrCodeUnauthorised = "UNAUTHORISED"

	// ErrCodeInvalidPayload covers undecodable JSON and missing fields.
	ErrCodeInvalidPayload = "INVALID_PAYLOAD"

	// ErrCodeOutOfRange covers readings outside the accepted bounds.
	ErrCodeOutOfRange = "OUT_OF_RANGE"

	// ErrCodeStorageError covers persistence failures.
	ErrCodeStorageError = "STORAGE_ERROR"
)
