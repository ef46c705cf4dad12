package uplink

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"shutterbox/pkg/camera"
	"shutterbox/pkg/protocol"
)

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}

	if hub.DeviceCount() != 0 {
		t.Error("DeviceCount should be 0 initially")
	}
}

func TestGetStats(t *testing.T) {
	hub := NewHub(nil)

	stats := hub.GetStats()

	if stats.DeviceCount != 0 {
		t.Error("DeviceCount should be 0")
	}
	if stats.MessagesReceived != 0 {
		t.Error("MessagesReceived should be 0")
	}
	if stats.MessagesSent != 0 {
		t.Error("MessagesSent should be 0")
	}
}

func TestCallbackSetters(t *testing.T) {
	hub := NewHub(nil)

	// Set all callbacks - should not panic
	hub.OnFrame(func(deviceID string, frame *protocol.FrameData) {})
	hub.OnHello(func(deviceID string, hello *protocol.HelloData) {})
	hub.OnDisconnect(func(deviceID string) {})
}

func TestGetDeviceNotFound(t *testing.T) {
	hub := NewHub(nil)

	device := hub.GetDevice("nonexistent")
	if device != nil {
		t.Error("GetDevice should return nil for nonexistent device")
	}
}

func TestGetDeviceInfos(t *testing.T) {
	hub := NewHub(nil)

	infos := hub.GetDeviceInfos()
	if len(infos) != 0 {
		t.Error("GetDeviceInfos should return empty slice initially")
	}
}

func TestGenerateDeviceID(t *testing.T) {
	id := generateDeviceID()

	if id == "" {
		t.Error("generateDeviceID should return non-empty string")
	}

	if !strings.HasPrefix(id, "dev-") {
		t.Errorf("Device ID should have dev- prefix, got %s", id)
	}
}

func TestRegisterRoutes(t *testing.T) {
	hub := NewHub(nil)
	app := fiber.New()

	// Should not panic
	hub.RegisterRoutes(app)
	hub.RegisterAPIRoutes(app.Group("/api"))
}

func TestWebSocketConnection(t *testing.T) {
	hub := NewHub(nil)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	hub.RegisterRoutes(app)

	go app.Listen(":18090")
	defer app.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18090/ws/uplink/cam-1", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)

	if hub.DeviceCount() != 1 {
		t.Errorf("DeviceCount = %d, want 1", hub.DeviceCount())
	}

	device := hub.GetDevice("cam-1")
	if device == nil {
		t.Error("GetDevice should return the connected device")
	}

	// Close and verify disconnect
	ws.Close()
	time.Sleep(100 * time.Millisecond)

	if hub.DeviceCount() != 0 {
		t.Errorf("DeviceCount = %d, want 0 after disconnect", hub.DeviceCount())
	}
}

func TestHelloAnnouncement(t *testing.T) {
	hub := NewHub(nil)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	hub.RegisterRoutes(app)

	var helloDevice atomic.Value
	hub.OnHello(func(deviceID string, hello *protocol.HelloData) {
		helloDevice.Store(deviceID)
	})

	go app.Listen(":18091")
	defer app.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18091/ws/uplink/cam-2", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	msg, _ := protocol.NewHelloMessage("cam-2", "kitchen phone", 1280, 720)
	data, _ := msg.Bytes()
	ws.WriteMessage(websocket.TextMessage, data)

	time.Sleep(100 * time.Millisecond)

	if got, _ := helloDevice.Load().(string); got != "cam-2" {
		t.Errorf("Hello device = %q, want cam-2", got)
	}

	infos := hub.GetDeviceInfos()
	if len(infos) != 1 {
		t.Fatalf("Expected 1 device info, got %d", len(infos))
	}
	if infos[0].Name != "kitchen phone" {
		t.Errorf("Device name = %q, want 'kitchen phone'", infos[0].Name)
	}
	if infos[0].Width != 1280 || infos[0].Height != 720 {
		t.Errorf("Device dims = %dx%d, want 1280x720", infos[0].Width, infos[0].Height)
	}
}

func TestFrameCallback(t *testing.T) {
	hub := NewHub(nil)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	hub.RegisterRoutes(app)

	var frameReceived atomic.Bool
	var receivedDevice atomic.Value

	hub.OnFrame(func(deviceID string, frame *protocol.FrameData) {
		receivedDevice.Store(deviceID)
		frameReceived.Store(true)
	})

	go app.Listen(":18092")
	defer app.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18092/ws/uplink/frame-test", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	msg, _ := protocol.NewFrameMessage(640, 480, []byte("test"), 1)
	data, _ := msg.Bytes()
	ws.WriteMessage(websocket.TextMessage, data)

	time.Sleep(100 * time.Millisecond)

	if !frameReceived.Load() {
		t.Error("Frame callback should have been called")
	}

	if got, _ := receivedDevice.Load().(string); got != "frame-test" {
		t.Errorf("Device ID = %s, want frame-test", got)
	}

	stats := hub.GetStats()
	if stats.FramesReceived < 1 {
		t.Error("FramesReceived should be at least 1")
	}
}

func TestAttach(t *testing.T) {
	hub := NewHub(nil)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	hub.RegisterRoutes(app)

	cfg := camera.DefaultConfig()
	cfg.Backend = camera.BackendUplink
	src := camera.NewUplinkSource(cfg, nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Close()

	hub.Attach(src)

	go app.Listen(":18093")
	defer app.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18093/ws/uplink/cam-3", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	payload := []byte("jpeg-payload")
	msg, _ := protocol.NewFrameMessage(320, 240, payload, 1)
	data, _ := msg.Bytes()
	ws.WriteMessage(websocket.TextMessage, data)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	frame, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(frame.Data) != string(payload) {
		t.Error("Frame data did not round-trip through the uplink")
	}
	if frame.Width != 320 || frame.Height != 240 {
		t.Errorf("Frame dims = %dx%d, want 320x240", frame.Width, frame.Height)
	}
	if frame.Seq != 1 {
		t.Errorf("Frame seq = %d, want 1", frame.Seq)
	}
}

func TestSendToNonexistentDevice(t *testing.T) {
	hub := NewHub(nil)

	err := hub.SendConfig("nonexistent", &protocol.CameraSettings{Quality: 90})
	if err == nil {
		t.Error("SendConfig should return error for nonexistent device")
	}
}

func TestBroadcastEmpty(t *testing.T) {
	hub := NewHub(nil)

	// Broadcast to empty hub should not panic
	msg, _ := protocol.NewMessage(protocol.TypePing, nil)
	hub.Broadcast(msg)
}

func TestPingPong(t *testing.T) {
	hub := NewHub(nil)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	hub.RegisterRoutes(app)

	go app.Listen(":18094")
	defer app.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18094/ws/uplink/ping-test", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)

	msg, _ := protocol.NewMessage(protocol.TypePing, nil)
	data, _ := msg.Bytes()
	ws.WriteMessage(websocket.TextMessage, data)

	_, respData, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}

	var resp protocol.Message
	json.Unmarshal(respData, &resp)

	if resp.Type != protocol.TypePong {
		t.Errorf("Type = %s, want pong", resp.Type)
	}
}

func TestAPIListDevices(t *testing.T) {
	hub := NewHub(nil)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	hub.RegisterRoutes(app)
	hub.RegisterAPIRoutes(app.Group("/api"))

	req := httptest.NewRequest("GET", "/api/uplinks/", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}

	if resp.StatusCode != 200 {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "devices") {
		t.Error("Response should contain 'devices' field")
	}
}

func TestAPIStats(t *testing.T) {
	hub := NewHub(nil)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	hub.RegisterRoutes(app)
	hub.RegisterAPIRoutes(app.Group("/api"))

	req := httptest.NewRequest("GET", "/api/uplinks/stats", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}

	if resp.StatusCode != 200 {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}
}
