package camera

import (
	"bytes"
	"encoding/base64"
	"image"
	"time"

	_ "image/jpeg"
)

// Frame is a single captured video frame.
// Frames are immutable once constructed; use Clone before mutating Data.
type Frame struct {
	// Data contains the JPEG-encoded image.
	Data []byte

	// Width and Height are the image dimensions in pixels.
	Width  int
	Height int

	// Seq is a monotonically increasing frame number within one stream.
	Seq uint64

	// Timestamp is when the frame was acquired.
	Timestamp time.Time
}

// Empty reports whether the frame carries no image data.
func (f Frame) Empty() bool {
	return len(f.Data) == 0
}

// Clone returns a deep copy of the frame.
func (f Frame) Clone() Frame {
	out := f
	out.Data = make([]byte, len(f.Data))
	copy(out.Data, f.Data)
	return out
}

// Base64 returns the JPEG data encoded as standard base64.
func (f Frame) Base64() string {
	return base64.StdEncoding.EncodeToString(f.Data)
}

// jpegDimensions reads image dimensions from an encoded header without
// decoding pixel data.
func jpegDimensions(data []byte) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	return cfg, err
}

// FrameFromBase64 decodes a base64 JPEG payload into a frame.
func FrameFromBase64(data string, width, height int, seq uint64) (Frame, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Data:      raw,
		Width:     width,
		Height:    height,
		Seq:       seq,
		Timestamp: time.Now(),
	}, nil
}
