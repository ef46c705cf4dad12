// Package protocol defines the WebSocket message types for station-device communication.
// This package is shared between the shutterbox station, uplink devices pushing
// frames into it, and clients watching capture events.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Device → Station messages
	TypeHello MessageType = "hello" // Uplink device announcement
	TypeFrame MessageType = "frame" // Video frame

	// Station → Client messages
	TypeState  MessageType = "state"  // Workflow state change
	TypeResult MessageType = "result" // Processing result
	TypeError  MessageType = "error"  // Recoverable workflow error
	TypeConfig MessageType = "config" // Capture settings update

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Device → Station Message Types
// =============================================================================

// HelloData announces an uplink device
type HelloData struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Format   string `json:"format,omitempty"` // "jpeg"
}

// FrameData contains a video frame
type FrameData struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Format  string `json:"format"` // "jpeg"
	Data    string `json:"data"`   // base64 encoded
	FrameID uint64 `json:"frame_id,omitempty"`
}

// =============================================================================
// Station → Client Message Types
// =============================================================================

// StateData describes the capture workflow after a transition
type StateData struct {
	Phase     string `json:"phase"` // "idle", "streaming", "captured", "processing", "error"
	Streaming bool   `json:"streaming"`
	HasFrame  bool   `json:"has_frame"`
	Error     string `json:"error,omitempty"`
	Hint      string `json:"hint,omitempty"`
}

// ResultData contains a completed processing outcome
type ResultData struct {
	CaptureID string `json:"capture_id"`
	Mode      string `json:"mode"` // "contours", "pixels"
	Count     int    `json:"count"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Engine    string `json:"engine,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// ErrorData describes a recoverable workflow error
type ErrorData struct {
	Kind    string `json:"kind"` // "permission", "unavailable", "processing"
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// ConfigUpdate contains capture settings changes pushed to devices
type ConfigUpdate struct {
	Camera *CameraSettings `json:"camera,omitempty"`
}

// CameraSettings contains camera capture settings
type CameraSettings struct {
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Framerate int    `json:"framerate,omitempty"`
	Quality   int    `json:"quality,omitempty"`
	Preset    string `json:"preset,omitempty"` // "daylight", "lowlight", "fast"
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
