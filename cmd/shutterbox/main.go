// shutterbox: camera capture station
// Serves the capture UI, drives the workflow, and ingests remote devices.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"shutterbox/internal/config"
	"shutterbox/internal/log"
	"shutterbox/pkg/archive"
	"shutterbox/pkg/camera"
	"shutterbox/pkg/history"
	"shutterbox/pkg/session"
	"shutterbox/pkg/uplink"
	"shutterbox/pkg/vision"
	"shutterbox/pkg/web"
)

var version = "1.0.0"

var (
	addr     = flag.String("addr", config.Addr(), "HTTP listen address")
	backend  = flag.String("backend", config.Backend(), "camera backend (auto, device, uplink, remote, webrtc, mock)")
	device   = flag.String("device", config.CameraDevice(), "camera device, meaning depends on backend")
	engine   = flag.String("engine", config.Engine(), "vision engine (auto, opencv, pure)")
	mode     = flag.String("mode", config.Mode(), "default counting mode (contours, pixels)")
	static   = flag.String("static", config.StaticDir(), "UI asset directory")
	histPath = flag.String("history", config.HistoryPath(), "capture history file")
	logLevel = flag.String("log-level", config.LogLevel(), "log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()
	log.Init(*logLevel)
	logger := log.L()

	fmt.Println()
	fmt.Println("📸 Shutterbox v" + version)
	fmt.Println("   Camera capture station")
	fmt.Println()

	// Camera configuration, adjustable at runtime through the API
	camCfg := camera.NewConfig(
		camera.WithBackend(camera.Backend(*backend)),
		camera.WithDevice(*device),
	)
	if err := camCfg.Validate(); err != nil {
		logger.Error("invalid camera config", "error", err)
		os.Exit(1)
	}
	manager := camera.NewManagerWith(camCfg)
	manager.OnConfigChange = func(cfg camera.Config) error {
		logger.Info("camera config updated",
			"backend", cfg.Backend, "device", cfg.Device,
			"resolution", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height))
		return nil
	}

	// Vision engine
	defaultMode, err := vision.ParseMode(*mode, vision.ModeContours)
	if err != nil {
		logger.Error("invalid mode", "error", err)
		os.Exit(1)
	}
	analyzer, err := vision.NewAnalyzer(*engine, vision.NewConfig(vision.WithDefaultMode(defaultMode)), logger)
	if err != nil {
		logger.Error("vision engine failed", "error", err)
		os.Exit(1)
	}
	defer analyzer.Close()

	// Device ingest hub, always on so remote cameras can announce
	// themselves before the operator switches backends
	uplinks := uplink.NewHub(logger)

	// Each camera start builds a fresh source from the manager's
	// current config, so API config changes apply on the next start
	factory := func() (camera.Source, error) {
		cfg := manager.GetConfig()
		if cfg.Backend == camera.BackendUplink {
			src := camera.NewUplinkSource(cfg, logger)
			uplinks.Attach(src)
			return src, nil
		}
		return camera.NewSource(cfg, logger)
	}

	sess, err := session.New(factory, analyzer, logger)
	if err != nil {
		logger.Error("session setup failed", "error", err)
		os.Exit(1)
	}
	defer sess.Close()

	store, err := history.NewJSONStore(*histPath)
	if err != nil {
		logger.Error("history store failed", "error", err, "path", *histPath)
		os.Exit(1)
	}

	// Drive archive is optional, enabled by OAuth credentials in env
	var drive *archive.DriveClient
	if config.DriveClientID() != "" {
		drive, err = archive.NewDriveClient(archive.DriveConfig{
			ClientID:     config.DriveClientID(),
			ClientSecret: config.DriveClientSecret(),
			RedirectURL:  config.StationURL() + "/api/archive/callback",
			Folder:       config.DriveFolder(),
		})
		if err != nil {
			logger.Error("archive setup failed", "error", err)
			os.Exit(1)
		}
		logger.Info("archive enabled", "folder", config.DriveFolder())
	}

	srv, err := web.NewServer(web.Config{
		Addr:        *addr,
		StaticDir:   *static,
		DefaultMode: defaultMode,
		Session:     sess,
		Manager:     manager,
		History:     store,
		Archive:     drive,
		Uplinks:     uplinks,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("server setup failed", "error", err)
		os.Exit(1)
	}

	go func() {
		fmt.Printf("🚀 Station listening on %s\n", *addr)
		fmt.Printf("   UI:      http://localhost%s/\n", *addr)
		fmt.Printf("   API:     http://localhost%s/api/state\n", *addr)
		fmt.Printf("   Preview: ws://localhost%s/ws/preview\n", *addr)
		fmt.Printf("   Uplink:  ws://localhost%s/ws/uplink\n", *addr)
		fmt.Println()

		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\n👋 Shutting down...")

	if err := srv.Shutdown(); err != nil {
		logger.Warn("shutdown error", "error", err)
	}
}
