// Package uplink accepts WebSocket connections from remote camera
// devices (phones, headless stations) that push JPEG frames into the
// capture workflow.
package uplink

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"shutterbox/pkg/camera"
	"shutterbox/pkg/protocol"
)

// DeviceConnection represents a connected uplink device.
type DeviceConnection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	// Announced by the device's hello message.
	Name   string
	Width  int
	Height int

	frames atomic.Uint64

	mu sync.Mutex
}

// Send sends a message to the device.
func (d *DeviceConnection) Send(msg *protocol.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	return d.Conn.WriteMessage(websocket.TextMessage, data)
}

// Hub manages WebSocket connections from uplink devices.
type Hub struct {
	mu      sync.RWMutex
	devices map[string]*DeviceConnection
	logger  *slog.Logger

	// Callbacks
	onFrame      func(deviceID string, frame *protocol.FrameData)
	onHello      func(deviceID string, hello *protocol.HelloData)
	onDisconnect func(deviceID string)

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
}

// NewHub creates a device hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		devices: make(map[string]*DeviceConnection),
		logger:  logger.With("component", "uplink"),
	}
}

// OnFrame sets the callback for incoming video frames.
func (h *Hub) OnFrame(callback func(deviceID string, frame *protocol.FrameData)) {
	h.mu.Lock()
	h.onFrame = callback
	h.mu.Unlock()
}

// OnHello sets the callback for device announcements.
func (h *Hub) OnHello(callback func(deviceID string, hello *protocol.HelloData)) {
	h.mu.Lock()
	h.onHello = callback
	h.mu.Unlock()
}

// OnDisconnect sets the callback for device disconnects.
func (h *Hub) OnDisconnect(callback func(deviceID string)) {
	h.mu.Lock()
	h.onDisconnect = callback
	h.mu.Unlock()
}

// Attach feeds received frames into an uplink camera source. The
// source's device filter decides which device, if any, it accepts.
func (h *Hub) Attach(src *camera.UplinkSource) {
	h.OnFrame(func(deviceID string, frame *protocol.FrameData) {
		jpeg, err := frame.DecodeFrameData()
		if err != nil {
			h.logger.Warn("bad frame payload", "device", deviceID, "error", err)
			return
		}
		src.Push(deviceID, camera.Frame{
			Data:      jpeg,
			Width:     frame.Width,
			Height:    frame.Height,
			Timestamp: time.Now(),
		})
	})
}

// RegisterRoutes registers WebSocket routes on a Fiber app.
func (h *Hub) RegisterRoutes(app *fiber.App) {
	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// Device connection endpoint
	app.Get("/ws/uplink", websocket.New(h.handleDevice))
	app.Get("/ws/uplink/:id", websocket.New(h.handleDevice))
}

// handleDevice handles a device WebSocket connection.
func (h *Hub) handleDevice(c *websocket.Conn) {
	// Get device ID from path or generate one
	deviceID := c.Params("id")
	if deviceID == "" {
		deviceID = generateDeviceID()
	}

	device := &DeviceConnection{
		ID:        deviceID,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	// Register device
	h.mu.Lock()
	h.devices[deviceID] = device
	deviceCount := len(h.devices)
	h.mu.Unlock()

	h.logger.Info("uplink device connected", "device", deviceID, "total", deviceCount)

	defer func() {
		h.mu.Lock()
		delete(h.devices, deviceID)
		deviceCount := len(h.devices)
		disconnectCb := h.onDisconnect
		h.mu.Unlock()

		h.logger.Info("uplink device disconnected", "device", deviceID, "remaining", deviceCount)
		if disconnectCb != nil {
			disconnectCb(deviceID)
		}
	}()

	// Read loop
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			h.logger.Debug("uplink read error", "device", deviceID, "error", err)
			return
		}

		device.mu.Lock()
		device.LastSeen = time.Now()
		device.mu.Unlock()

		h.messagesReceived.Add(1)
		h.handleMessage(device, data)
	}
}

// handleMessage processes an incoming message from a device.
func (h *Hub) handleMessage(device *DeviceConnection, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.logger.Debug("uplink parse error", "device", device.ID, "error", err)
		return
	}

	h.mu.RLock()
	frameCb := h.onFrame
	helloCb := h.onHello
	h.mu.RUnlock()

	switch msg.Type {
	case protocol.TypeHello:
		hello, err := msg.GetHelloData()
		if err != nil {
			return
		}
		device.mu.Lock()
		device.Name = hello.Name
		device.Width = hello.Width
		device.Height = hello.Height
		device.mu.Unlock()
		h.logger.Info("uplink device announced",
			"device", device.ID,
			"name", hello.Name,
			"width", hello.Width,
			"height", hello.Height,
		)
		if helloCb != nil {
			helloCb(device.ID, hello)
		}

	case protocol.TypeFrame:
		h.framesReceived.Add(1)
		device.frames.Add(1)
		if frameCb != nil {
			frame, err := msg.GetFrameData()
			if err == nil {
				frameCb(device.ID, frame)
			}
		}

	case protocol.TypePing:
		h.SendPong(device.ID, msg.Timestamp)
	}
}

// SendConfig pushes capture settings to a device.
func (h *Hub) SendConfig(deviceID string, settings *protocol.CameraSettings) error {
	msg, err := protocol.NewConfigMessage(settings)
	if err != nil {
		return err
	}
	return h.sendToDevice(deviceID, msg)
}

// SendPong sends a pong response to a device.
func (h *Hub) SendPong(deviceID string, pingTS int64) error {
	msg, err := protocol.NewPongMessage("", pingTS, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	return h.sendToDevice(deviceID, msg)
}

// sendToDevice sends a message to a specific device.
func (h *Hub) sendToDevice(deviceID string, msg *protocol.Message) error {
	h.mu.RLock()
	device, ok := h.devices[deviceID]
	h.mu.RUnlock()

	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "device not connected")
	}

	h.messagesSent.Add(1)
	return device.Send(msg)
}

// Broadcast sends a message to all connected devices.
func (h *Hub) Broadcast(msg *protocol.Message) {
	h.mu.RLock()
	devices := make([]*DeviceConnection, 0, len(h.devices))
	for _, d := range h.devices {
		devices = append(devices, d)
	}
	h.mu.RUnlock()

	for _, device := range devices {
		h.messagesSent.Add(1)
		if err := device.Send(msg); err != nil {
			h.logger.Debug("broadcast error", "device", device.ID, "error", err)
		}
	}
}

// GetDevice returns a device connection by ID.
func (h *Hub) GetDevice(deviceID string) *DeviceConnection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.devices[deviceID]
}

// DeviceCount returns the number of connected devices.
func (h *Hub) DeviceCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.devices)
}

// Stats contains hub statistics.
type Stats struct {
	DeviceCount      int    `json:"device_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
}

// GetStats returns hub statistics.
func (h *Hub) GetStats() Stats {
	return Stats{
		DeviceCount:      h.DeviceCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		FramesReceived:   h.framesReceived.Load(),
	}
}

// DeviceInfo contains info about a connected device.
type DeviceInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
	Frames    uint64    `json:"frames"`
}

// GetDeviceInfos returns info about all connected devices.
func (h *Hub) GetDeviceInfos() []DeviceInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]DeviceInfo, 0, len(h.devices))
	for _, d := range h.devices {
		d.mu.Lock()
		infos = append(infos, DeviceInfo{
			ID:        d.ID,
			Name:      d.Name,
			Width:     d.Width,
			Height:    d.Height,
			Connected: d.Connected,
			LastSeen:  d.LastSeen,
			Frames:    d.frames.Load(),
		})
		d.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers API routes for device management.
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	uplinks := api.Group("/uplinks")

	// List connected devices
	uplinks.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"devices": h.GetDeviceInfos(),
			"count":   h.DeviceCount(),
		})
	})

	// Get hub stats
	uplinks.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})

	// Push capture settings to a device
	uplinks.Post("/:id/config", func(c *fiber.Ctx) error {
		deviceID := c.Params("id")

		var settings protocol.CameraSettings
		if err := c.BodyParser(&settings); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}

		if err := h.SendConfig(deviceID, &settings); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}

		return c.JSON(fiber.Map{"status": "sent"})
	})
}

// generateDeviceID generates a unique device ID.
func generateDeviceID() string {
	return "dev-" + uuid.New().String()[:8]
}
