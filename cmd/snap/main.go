// snap: one-shot capture and count without the web surface.
//
// Starts the camera, waits for a frame, freezes it, runs the counting
// analysis, prints the count, and optionally saves the JPEG.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shutterbox/internal/config"
	"shutterbox/internal/log"
	"shutterbox/pkg/camera"
	"shutterbox/pkg/session"
	"shutterbox/pkg/vision"
)

var (
	backend  = flag.String("backend", config.Backend(), "camera backend (auto, device, mock)")
	device   = flag.String("device", config.CameraDevice(), "camera device")
	engine   = flag.String("engine", config.Engine(), "vision engine (auto, opencv, pure)")
	mode     = flag.String("mode", config.Mode(), "counting mode (contours, pixels)")
	out      = flag.String("out", "", "save the captured JPEG to this file")
	timeout  = flag.Duration("timeout", 10*time.Second, "overall deadline")
	logLevel = flag.String("log-level", "warn", "log level")
)

func main() {
	flag.Parse()
	log.Init(*logLevel)
	logger := log.L()

	countMode, err := vision.ParseMode(*mode, vision.ModeContours)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	analyzer, err := vision.NewAnalyzer(*engine, vision.DefaultConfig(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Vision engine failed: %v\n", err)
		os.Exit(1)
	}
	defer analyzer.Close()

	camCfg := camera.NewConfig(
		camera.WithBackend(camera.Backend(*backend)),
		camera.WithDevice(*device),
	)
	sess, err := session.New(session.FactoryFromConfig(camCfg, logger), analyzer, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	defer sess.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Ctrl+C cancels the run
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := sess.StartCamera(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Camera failed: %v\n", err)
		os.Exit(1)
	}

	if err := sess.Capture(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Capture failed: %v\n", err)
		os.Exit(1)
	}

	if err := sess.Process(ctx, countMode); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Processing failed: %v\n", err)
		os.Exit(1)
	}

	snap := sess.Snapshot()
	if snap.Result == nil {
		fmt.Fprintln(os.Stderr, "❌ No result produced")
		os.Exit(1)
	}

	fmt.Printf("📷 %dx%d via %s\n", snap.Result.Width, snap.Result.Height, snap.Result.Engine)
	fmt.Printf("🔢 count: %d (%s, %s)\n", snap.Result.Count, snap.Result.Mode, snap.Result.Elapsed)

	if *out != "" {
		frame, err := sess.Frame()
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Frame unavailable: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*out, frame.Data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "❌ Save failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("💾 saved %s (%d bytes)\n", *out, len(frame.Data))
	}
}
