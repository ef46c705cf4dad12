package camera

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os/exec"
	"sync"
	"time"
)

// H264Decoder converts H264 access units to JPEG via an ffmpeg pipe.
// Decoding is rate limited; between decodes the most recent good frame
// is returned so callers always have something to show.
type H264Decoder struct {
	minInterval time.Duration

	mu         sync.Mutex
	lastDecode time.Time

	frameMu     sync.RWMutex
	latestFrame []byte
}

// NewH264Decoder creates a decoder.
// decodeInterval controls how often ffmpeg runs (e.g., 100ms = 10 FPS max).
func NewH264Decoder(decodeInterval time.Duration) (*H264Decoder, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found in PATH", ErrBackendUnavailable)
	}

	return &H264Decoder{
		minInterval: decodeInterval,
		lastDecode:  time.Now(),
	}, nil
}

// DecodeAccessUnit decodes buffered H264 NAL units to JPEG.
// Returns the cached frame when rate limited or when ffmpeg cannot
// produce a full frame from the data seen so far.
func (d *H264Decoder) DecodeAccessUnit(nalData []byte) ([]byte, error) {
	if len(nalData) < 100 {
		return d.LatestFrame(), nil
	}

	d.mu.Lock()
	if time.Since(d.lastDecode) < d.minInterval {
		d.mu.Unlock()
		return d.LatestFrame(), nil
	}
	d.lastDecode = time.Now()
	d.mu.Unlock()

	cmd := exec.Command("ffmpeg",
		"-f", "h264",
		"-i", "pipe:0",
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "3",
		"pipe:1",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	go func() {
		stdin.Write(nalData)
		stdin.Close()
	}()

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			// ffmpeg exits nonzero when the data holds no complete frame
			return d.LatestFrame(), nil
		}
	case <-time.After(200 * time.Millisecond):
		cmd.Process.Kill()
		return d.LatestFrame(), nil
	}

	jpegData := stdout.Bytes()
	if len(jpegData) > 1000 && !looksCorrupt(jpegData) {
		d.frameMu.Lock()
		d.latestFrame = jpegData
		d.frameMu.Unlock()
		return jpegData, nil
	}

	return d.LatestFrame(), nil
}

// LatestFrame returns a copy of the most recently decoded frame, or nil.
func (d *H264Decoder) LatestFrame() []byte {
	d.frameMu.RLock()
	defer d.frameMu.RUnlock()

	if d.latestFrame == nil {
		return nil
	}

	frame := make([]byte, len(d.latestFrame))
	copy(frame, d.latestFrame)
	return frame
}

// looksCorrupt checks if a JPEG is likely a gray or partial decode.
func looksCorrupt(jpegData []byte) bool {
	if len(jpegData) < 1000 {
		return true
	}

	img, err := jpeg.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return true
	}

	bounds := img.Bounds()
	if bounds.Dx() < 100 || bounds.Dy() < 100 {
		return true
	}

	// Sample pixels to check variance
	var rSum, gSum, bSum int
	samples := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y += bounds.Dy() / 10 {
		for x := bounds.Min.X; x < bounds.Max.X; x += bounds.Dx() / 10 {
			r, g, b, _ := img.At(x, y).RGBA()
			rSum += int(r >> 8)
			gSum += int(g >> 8)
			bSum += int(b >> 8)
			samples++
		}
	}

	if samples == 0 {
		return true
	}

	avgR := rSum / samples
	avgG := gSum / samples
	avgB := bSum / samples

	// Near-black frames are decode failures, not scenes
	if avgR < 30 && avgG < 30 && avgB < 30 {
		return true
	}

	// Uniform mid-gray is the classic half-decoded frame
	colorDiff := absInt(avgR-avgG) + absInt(avgG-avgB) + absInt(avgR-avgB)
	if colorDiff < 15 && avgR > 100 && avgR < 150 {
		return true
	}

	return false
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
