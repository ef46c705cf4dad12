package protocol

import (
	"encoding/base64"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewHelloMessage creates an uplink device announcement
func NewHelloMessage(deviceID, name string, width, height int) (*Message, error) {
	return NewMessage(TypeHello, HelloData{
		DeviceID: deviceID,
		Name:     name,
		Width:    width,
		Height:   height,
		Format:   "jpeg",
	})
}

// NewFrameMessage creates a frame message from raw JPEG data
func NewFrameMessage(width, height int, jpegData []byte, frameID uint64) (*Message, error) {
	return NewMessage(TypeFrame, FrameData{
		Width:   width,
		Height:  height,
		Format:  "jpeg",
		Data:    base64.StdEncoding.EncodeToString(jpegData),
		FrameID: frameID,
	})
}

// NewStateMessage creates a workflow state message
func NewStateMessage(phase string, streaming, hasFrame bool, errMsg, hint string) (*Message, error) {
	return NewMessage(TypeState, StateData{
		Phase:     phase,
		Streaming: streaming,
		HasFrame:  hasFrame,
		Error:     errMsg,
		Hint:      hint,
	})
}

// NewResultMessage creates a processing result message
func NewResultMessage(captureID, mode string, count int, width, height int, engine string, elapsedMs int64) (*Message, error) {
	return NewMessage(TypeResult, ResultData{
		CaptureID: captureID,
		Mode:      mode,
		Count:     count,
		Width:     width,
		Height:    height,
		Engine:    engine,
		ElapsedMs: elapsedMs,
	})
}

// NewErrorMessage creates a workflow error message
func NewErrorMessage(kind, message, hint string) (*Message, error) {
	return NewMessage(TypeError, ErrorData{
		Kind:    kind,
		Message: message,
		Hint:    hint,
	})
}

// NewConfigMessage creates a capture settings update message
func NewConfigMessage(camera *CameraSettings) (*Message, error) {
	return NewMessage(TypeConfig, ConfigUpdate{
		Camera: camera,
	})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: 0, // Will be set by NewMessage
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetHelloData extracts hello data from a message
func (m *Message) GetHelloData() (*HelloData, error) {
	var data HelloData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetFrameData extracts frame data from a message
func (m *Message) GetFrameData() (*FrameData, error) {
	var data FrameData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeFrameData decodes the base64 image data
func (f *FrameData) DecodeFrameData() ([]byte, error) {
	return base64.StdEncoding.DecodeString(f.Data)
}

// GetStateData extracts workflow state from a message
func (m *Message) GetStateData() (*StateData, error) {
	var data StateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetResultData extracts a processing result from a message
func (m *Message) GetResultData() (*ResultData, error) {
	var data ResultData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts error data from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetConfigUpdate extracts config update from a message
func (m *Message) GetConfigUpdate() (*ConfigUpdate, error) {
	var data ConfigUpdate
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
