package web

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"shutterbox/pkg/archive"
	"shutterbox/pkg/camera"
	"shutterbox/pkg/hub"
	"shutterbox/pkg/protocol"
	"shutterbox/pkg/session"
	"shutterbox/pkg/uplink"
	"shutterbox/pkg/vision"
)

// statusForError maps workflow errors onto HTTP status codes. Guarded
// rejections are conflicts; unavailable collaborators are 503s.
func statusForError(err error) int {
	switch {
	case errors.Is(err, session.ErrBusy),
		errors.Is(err, session.ErrAlreadyStreaming),
		errors.Is(err, session.ErrNotStreaming),
		errors.Is(err, session.ErrNoFrame):
		return fiber.StatusConflict
	case errors.Is(err, session.ErrClosed),
		vision.IsUnavailable(err):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, session.ErrFrameTimeout):
		return fiber.StatusGatewayTimeout
	case camera.IsPermissionDenied(err), camera.IsDeviceNotFound(err), camera.IsUnavailable(err):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// errorJSON renders a workflow error together with the state the
// client should now display.
func (s *Server) errorJSON(c *fiber.Ctx, err error) error {
	return c.Status(statusForError(err)).JSON(fiber.Map{
		"error": err.Error(),
		"state": s.session.Snapshot(),
	})
}

// handleState returns the current workflow snapshot.
func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.session.Snapshot())
}

// handleStartCamera acquires the stream.
func (s *Server) handleStartCamera(c *fiber.Ctx) error {
	if err := s.session.StartCamera(c.UserContext()); err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(s.session.Snapshot())
}

// handleCapture freezes the current frame.
func (s *Server) handleCapture(c *fiber.Ctx) error {
	if err := s.session.Capture(c.UserContext()); err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(s.session.Snapshot())
}

// ProcessRequest is the body for POST /api/process.
type ProcessRequest struct {
	Mode string `json:"mode"`
}

// handleProcess runs the vision collaborator on the captured frame.
func (s *Server) handleProcess(c *fiber.Ctx) error {
	var req ProcessRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}

	mode, err := vision.ParseMode(req.Mode, s.defaultMode)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := s.session.Process(c.UserContext(), mode); err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(s.session.Snapshot())
}

// handleRetake discards the still and reacquires the stream.
func (s *Server) handleRetake(c *fiber.Ctx) error {
	if err := s.session.Retake(c.UserContext()); err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(s.session.Snapshot())
}

// handleReset clears everything back to a live stream.
func (s *Server) handleReset(c *fiber.Ctx) error {
	if err := s.session.Reset(c.UserContext()); err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(s.session.Snapshot())
}

// handleFrame serves the captured still as a JPEG.
func (s *Server) handleFrame(c *fiber.Ctx) error {
	frame, err := s.session.Frame()
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	return c.Send(frame.Data)
}

// handleHistory lists recorded processing passes, newest first.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	entries, err := s.store.List(limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{
		"entries": entries,
		"count":   s.store.Count(),
	})
}

// handleHistoryExport streams the history as a CSV download.
func (s *Server) handleHistoryExport(c *fiber.Ctx) error {
	data, err := s.store.ExportCSV()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	filename := fmt.Sprintf("history-%s.csv", time.Now().Format("20060102"))
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(data)
}

// handleGetConfig returns the active capture settings.
func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	return c.JSON(s.manager.GetConfigJSON())
}

// handleUpdateConfig applies partial capture settings.
func (s *Server) handleUpdateConfig(c *fiber.Ctx) error {
	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := s.manager.UpdateConfig(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(s.manager.GetConfigJSON())
}

// handleApplyPreset switches capture settings to a named preset.
func (s *Server) handleApplyPreset(c *fiber.Ctx) error {
	name := c.Params("name")
	if err := s.manager.ApplyPreset(name); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(s.manager.GetConfigJSON())
}

// StatsResponse summarizes the station for dashboards.
type StatsResponse struct {
	Phase          string        `json:"phase"`
	Engine         string        `json:"engine"`
	PreviewClients int           `json:"preview_clients"`
	EventClients   int           `json:"event_clients"`
	HistoryCount   int           `json:"history_count"`
	ArchiveReady   bool          `json:"archive_ready"`
	Uplinks        *uplink.Stats `json:"uplinks,omitempty"`
}

// handleStats reports station-wide counters.
func (s *Server) handleStats(c *fiber.Ctx) error {
	snap := s.session.Snapshot()
	resp := StatsResponse{
		Phase:          string(snap.Phase),
		Engine:         snap.Engine,
		PreviewClients: s.previewHub.ClientCount(),
		EventClients:   s.eventsHub.ClientCount(),
		HistoryCount:   s.store.Count(),
		ArchiveReady:   s.drive != nil && s.drive.IsAuthenticated(),
	}
	if s.uplinks != nil {
		stats := s.uplinks.GetStats()
		resp.Uplinks = &stats
	}
	return c.JSON(resp)
}

// handleArchiveStatus reports the Drive connection state.
func (s *Server) handleArchiveStatus(c *fiber.Ctx) error {
	if s.drive == nil {
		return c.JSON(fiber.Map{"configured": false})
	}
	status := s.drive.GetStatus()
	return c.JSON(fiber.Map{
		"configured": true,
		"connected":  status.Connected,
		"auth_url":   status.AuthURL,
		"folder":     status.Folder,
	})
}

// handleArchiveConnect redirects the browser into the OAuth consent
// flow.
func (s *Server) handleArchiveConnect(c *fiber.Ctx) error {
	if s.drive == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "archive not configured"})
	}
	return c.Redirect(s.drive.GetAuthURL(), fiber.StatusTemporaryRedirect)
}

// handleArchiveCallback completes the OAuth flow.
func (s *Server) handleArchiveCallback(c *fiber.Ctx) error {
	if s.drive == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "archive not configured"})
	}
	code := c.Query("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing authorization code"})
	}
	if err := s.drive.HandleCallback(code); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"connected": true})
}

// handleArchiveUpload pushes the captured still to Drive.
func (s *Server) handleArchiveUpload(c *fiber.Ctx) error {
	if s.drive == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "archive not configured"})
	}

	frame, err := s.session.Frame()
	if err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	captureID := "unprocessed"
	if snap := s.session.Snapshot(); snap.Result != nil {
		captureID = snap.Result.CaptureID
	}

	fileID, err := s.drive.ArchiveStill(c.UserContext(), captureID, frame.Data)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}

	s.logger.Info("still archived", "file_id", fileID)
	return c.JSON(fiber.Map{
		"file_id": fileID,
		"url":     archive.FileURL(fileID),
	})
}

// handlePreviewWS attaches a client to the live preview stream.
func (s *Server) handlePreviewWS(c *websocket.Conn) {
	client := hub.NewClient(s.previewHub, c)
	client.Run()
}

// handleEventsWS attaches a client to the workflow event stream. The
// current state is sent first so late joiners render correctly.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	snap := s.session.Snapshot()
	var errMsg, hint string
	if snap.Error != nil {
		errMsg = snap.Error.Message
		hint = snap.Error.Hint
	}
	if msg, err := protocol.NewStateMessage(string(snap.Phase),
		snap.Streaming, snap.HasFrame, errMsg, hint); err == nil {
		if data, err := msg.Bytes(); err == nil {
			c.WriteMessage(websocket.TextMessage, data)
		}
	}

	client := hub.NewClient(s.eventsHub, c)
	client.Run()
}
