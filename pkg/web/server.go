// Package web exposes the capture workflow over HTTP: a REST API for
// driving it, a binary preview stream, and a JSON event stream.
package web

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"

	"shutterbox/pkg/archive"
	"shutterbox/pkg/camera"
	"shutterbox/pkg/history"
	"shutterbox/pkg/hub"
	"shutterbox/pkg/protocol"
	"shutterbox/pkg/session"
	"shutterbox/pkg/uplink"
	"shutterbox/pkg/vision"
)

// Config wires the server's collaborators.
type Config struct {
	// Addr to listen on, e.g. ":8090".
	Addr string

	// StaticDir, when set, is served at the root path.
	StaticDir string

	// DefaultMode is used when a process request names no mode.
	DefaultMode vision.Mode

	Session *session.Session
	Manager *camera.Manager
	History history.Store

	// Archive is optional; without it archive routes report
	// unconfigured.
	Archive *archive.DriveClient

	// Uplinks is optional; when set the device ingest routes are
	// registered on the same app.
	Uplinks *uplink.Hub

	Logger *slog.Logger
}

// Server is the capture station's HTTP surface.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	session     *session.Session
	manager     *camera.Manager
	store       history.Store
	drive       *archive.DriveClient
	uplinks     *uplink.Hub
	defaultMode vision.Mode

	// Hubs for websocket broadcast
	previewHub *hub.Hub
	eventsHub  *hub.Hub
}

// NewServer builds the fiber app and wires the workflow's callbacks
// into the broadcast hubs.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Session == nil {
		return nil, fmt.Errorf("web: session is required")
	}
	if cfg.Manager == nil {
		return nil, fmt.Errorf("web: camera manager is required")
	}
	if cfg.History == nil {
		return nil, fmt.Errorf("web: history store is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8090"
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = vision.ModeContours
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:        cfg.Addr,
		logger:      logger.With("component", "web"),
		session:     cfg.Session,
		manager:     cfg.Manager,
		store:       cfg.History,
		drive:       cfg.Archive,
		uplinks:     cfg.Uplinks,
		defaultMode: cfg.DefaultMode,
		previewHub:  hub.New("preview", logger),
		eventsHub:   hub.New("events", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "shutterbox",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// Static files
	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	// API routes
	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Post("/camera/start", s.handleStartCamera)
	api.Post("/capture", s.handleCapture)
	api.Post("/process", s.handleProcess)
	api.Post("/retake", s.handleRetake)
	api.Post("/reset", s.handleReset)
	api.Get("/frame", s.handleFrame)
	api.Get("/history", s.handleHistory)
	api.Get("/history/export", s.handleHistoryExport)
	api.Get("/config", s.handleGetConfig)
	api.Post("/config", s.handleUpdateConfig)
	api.Post("/config/preset/:name", s.handleApplyPreset)
	api.Get("/stats", s.handleStats)

	// Archive routes
	api.Get("/archive/status", s.handleArchiveStatus)
	api.Get("/archive/connect", s.handleArchiveConnect)
	api.Get("/archive/callback", s.handleArchiveCallback)
	api.Post("/archive/upload", s.handleArchiveUpload)

	// Uplink ingest
	if s.uplinks != nil {
		s.uplinks.RegisterRoutes(app)
		s.uplinks.RegisterAPIRoutes(api)
	}

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/preview", websocket.New(s.handlePreviewWS))
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	s.wireSession()
	return s, nil
}

// wireSession hooks the workflow callbacks into the broadcast hubs and
// the history store.
func (s *Server) wireSession() {
	s.session.OnFrame = func(frame camera.Frame) {
		s.previewHub.BroadcastBinary(frame.Data)
	}
	s.session.OnEvent = s.handleSessionEvent
}

// handleSessionEvent fans a committed transition out to event stream
// clients and records completed processing passes.
func (s *Server) handleSessionEvent(ev session.Event) {
	var errMsg, hint string
	if ev.Error != nil {
		errMsg = ev.Error.Message
		hint = ev.Error.Hint
	}

	if msg, err := protocol.NewStateMessage(string(ev.Phase),
		ev.Phase == session.PhaseStreaming, ev.HasFrame, errMsg, hint); err == nil {
		s.broadcastMessage(msg)
	}

	if ev.Error != nil {
		if msg, err := protocol.NewErrorMessage(ev.Error.Kind, ev.Error.Message, ev.Error.Hint); err == nil {
			s.broadcastMessage(msg)
		}
	}

	// A captured-phase event carrying a result marks a completed
	// processing pass.
	if ev.Phase == session.PhaseCaptured && ev.Result != nil {
		res := ev.Result
		if msg, err := protocol.NewResultMessage(res.CaptureID, string(res.Mode),
			res.Count, res.Width, res.Height, res.Engine, res.Elapsed.Milliseconds()); err == nil {
			s.broadcastMessage(msg)
		}

		entry := &history.Entry{
			CaptureID: res.CaptureID,
			Mode:      string(res.Mode),
			Count:     res.Count,
			Width:     res.Width,
			Height:    res.Height,
			Engine:    res.Engine,
			ElapsedMS: res.Elapsed.Milliseconds(),
			CreatedAt: res.Timestamp,
		}
		if err := s.store.Append(entry); err != nil {
			s.logger.Warn("failed to record history entry", "error", err)
		}
	}
}

// broadcastMessage sends a protocol envelope to all event clients.
func (s *Server) broadcastMessage(msg *protocol.Message) {
	data, err := msg.Bytes()
	if err != nil {
		return
	}
	s.eventsHub.Broadcast(hub.NewJSONMessage(data))
}

// Start runs the hubs and listens. It blocks until Shutdown.
func (s *Server) Start() error {
	go s.previewHub.Run()
	go s.eventsHub.Run()

	s.logger.Info("web server listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Shutdown gracefully stops the web server and the broadcast hubs.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	s.previewHub.Stop()
	s.eventsHub.Stop()
	return err
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// PreviewHub returns the preview broadcast hub.
func (s *Server) PreviewHub() *hub.Hub {
	return s.previewHub
}

// EventsHub returns the events broadcast hub.
func (s *Server) EventsHub() *hub.Hub {
	return s.eventsHub
}
