package camera

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3"
)

const webrtcDecodeInterval = 100 * time.Millisecond

// WebRTCSource receives frames from a remote video track.
// Signalling runs over a websocket at cfg.Device: the producer sends an
// SDP offer, the source answers, and ICE candidates trickle both ways.
// The H264 track is depacketized and decoded to JPEG frames.
type WebRTCSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan Frame
	seq      uint64

	ws      *websocket.Conn
	wsMu    sync.Mutex
	pc      *webrtc.PeerConnection
	decoder *H264Decoder

	// Stats
	framesRead atomic.Int64
	bytesRead  atomic.Int64
	dropped    atomic.Int64
}

// signalMessage is the JSON envelope exchanged with the producer.
type signalMessage struct {
	Type          string  `json:"type"`
	SDP           string  `json:"sdp,omitempty"`
	Candidate     string  `json:"candidate,omitempty"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// newWebRTCSource creates a source that negotiates a receive-only video
// session with the producer signalling at cfg.Device.
func newWebRTCSource(cfg Config, logger *slog.Logger) (*WebRTCSource, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("webrtc backend requires a signalling URL in the device field")
	}

	decoder, err := NewH264Decoder(webrtcDecodeInterval)
	if err != nil {
		return nil, err
	}

	return &WebRTCSource{
		cfg:      cfg,
		logger:   logger.With("component", "camera.webrtc"),
		decoder:  decoder,
		streamCh: make(chan Frame, cfg.BufferFrames),
	}, nil
}

// Start connects to the signalling server and negotiates the session.
func (s *WebRTCSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.running {
		return nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: remoteHandshakeTimeout,
	}

	ws, _, err := dialer.DialContext(ctx, s.cfg.Device, nil)
	if err != nil {
		return NewOpenError(BackendWebRTC, s.cfg.Device,
			fmt.Errorf("%w: signalling dial failed: %v", ErrDeviceNotFound, err))
	}
	s.wsMu.Lock()
	s.ws = ws
	s.wsMu.Unlock()

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		ws.Close()
		return fmt.Errorf("peer connection: %w", err)
	}
	s.pc = pc

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		ws.Close()
		return fmt.Errorf("add video transceiver: %w", err)
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		s.logger.Info("webrtc source: track received",
			"kind", track.Kind().String(),
			"codec", track.Codec().MimeType,
		)
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go s.trackLoop(track)
		}
	})

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		init := candidate.ToJSON()
		s.sendSignal(signalMessage{
			Type:          "candidate",
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.logger.Debug("webrtc source: connection state", "state", state.String())
	})

	s.running = true
	s.streamCh = make(chan Frame, s.cfg.BufferFrames)

	go s.signalLoop(ws)

	s.logger.Info("webrtc camera source started",
		"signalling", s.cfg.Device,
	)

	return nil
}

func (s *WebRTCSource) signalLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			s.wsMu.Lock()
			current := s.ws == ws
			s.wsMu.Unlock()
			if current {
				s.logger.Warn("webrtc source: signalling read failed", "error", err)
				s.Stop()
			}
			return
		}

		var msg signalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "offer":
			s.handleOffer(msg.SDP)
		case "candidate":
			s.pc.AddICECandidate(webrtc.ICECandidateInit{
				Candidate:     msg.Candidate,
				SDPMid:        msg.SDPMid,
				SDPMLineIndex: msg.SDPMLineIndex,
			})
		case "close":
			s.Stop()
			return
		}
	}
}

func (s *WebRTCSource) handleOffer(sdp string) {
	offer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp,
	}

	if err := s.pc.SetRemoteDescription(offer); err != nil {
		s.logger.Warn("webrtc source: set remote description failed", "error", err)
		return
	}

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		s.logger.Warn("webrtc source: create answer failed", "error", err)
		return
	}

	if err := s.pc.SetLocalDescription(answer); err != nil {
		s.logger.Warn("webrtc source: set local description failed", "error", err)
		return
	}

	s.sendSignal(signalMessage{
		Type: "answer",
		SDP:  answer.SDP,
	})
}

func (s *WebRTCSource) sendSignal(msg signalMessage) {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	if s.ws == nil {
		return
	}
	if err := s.ws.WriteJSON(msg); err != nil {
		s.logger.Debug("webrtc source: signal write failed", "error", err)
	}
}

// trackLoop depacketizes the H264 track and decodes frames at the
// decoder's cadence.
func (s *WebRTCSource) trackLoop(track *webrtc.TrackRemote) {
	depacketizer := &codecs.H264Packet{}
	var nalBuffer bytes.Buffer
	lastDecode := time.Now()

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}

		nal, err := depacketizer.Unmarshal(pkt.Payload)
		if err != nil {
			continue
		}
		nalBuffer.Write(nal)

		if time.Since(lastDecode) < webrtcDecodeInterval {
			continue
		}
		lastDecode = time.Now()

		jpegData, err := s.decoder.DecodeAccessUnit(nalBuffer.Bytes())
		nalBuffer.Reset()
		if err != nil || jpegData == nil {
			continue
		}

		s.pushFrame(jpegData)
	}
}

func (s *WebRTCSource) pushFrame(jpegData []byte) {
	frame := s.frameFromJPEG(jpegData)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.seq++
	frame.Seq = s.seq

	// Non-blocking send under the lock, so Stop cannot close the
	// buffer mid-send.
	select {
	case s.streamCh <- frame:
		s.framesRead.Add(1)
		s.bytesRead.Add(int64(len(frame.Data)))
	default:
		s.dropped.Add(1)
	}
}

func (s *WebRTCSource) frameFromJPEG(data []byte) Frame {
	frame := Frame{
		Data:      data,
		Timestamp: time.Now(),
	}
	if cfg, err := jpegDimensions(data); err == nil {
		frame.Width = cfg.Width
		frame.Height = cfg.Height
	}
	return frame
}

// Stop halts the session and closes both the peer connection and the
// signalling socket.
func (s *WebRTCSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	close(s.streamCh)

	if s.pc != nil {
		s.pc.Close()
		s.pc = nil
	}

	s.wsMu.Lock()
	if s.ws != nil {
		s.ws.Close()
		s.ws = nil
	}
	s.wsMu.Unlock()

	s.logger.Info("webrtc camera source stopped")

	return nil
}

// Read reads the next frame.
func (s *WebRTCSource) Read(ctx context.Context) (Frame, error) {
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case frame, ok := <-s.streamCh:
		if !ok {
			return Frame{}, io.EOF
		}
		return frame, nil
	}
}

// Frames returns the frame channel.
func (s *WebRTCSource) Frames() <-chan Frame {
	return s.streamCh
}

// Config returns the camera configuration.
func (s *WebRTCSource) Config() Config {
	return s.cfg
}

// Name returns "webrtc".
func (s *WebRTCSource) Name() string {
	return "webrtc"
}

// Close releases resources.
func (s *WebRTCSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.Stop()
	return nil
}

// Stats returns source statistics.
func (s *WebRTCSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		FramesRead: s.framesRead.Load(),
		BytesRead:  s.bytesRead.Load(),
		Dropped:    s.dropped.Load(),
		Running:    running,
		Backend:    "webrtc",
	}
}

var _ SourceWithStats = (*WebRTCSource)(nil)
