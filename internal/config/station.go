// Package config provides configuration helpers for shutterbox commands.
package config

import (
	"fmt"
	"os"
)

// Default station configuration.
const (
	DefaultAddr      = ":8090"
	DefaultBackend   = "auto"
	DefaultEngine    = "auto"
	DefaultMode      = "contours"
	DefaultStaticDir = "./web"
	DefaultHistory   = "shutterbox-history.json"
	DefaultFolder    = "shutterbox"
	DefaultLogLevel  = "info"
)

// Env returns the value of the named environment variable,
// falling back to def when unset or empty.
func Env(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// Addr returns the station listen address from SHUTTERBOX_ADDR.
func Addr() string {
	return Env("SHUTTERBOX_ADDR", DefaultAddr)
}

// Backend returns the camera backend name from SHUTTERBOX_BACKEND.
func Backend() string {
	return Env("SHUTTERBOX_BACKEND", DefaultBackend)
}

// CameraDevice returns the capture device from SHUTTERBOX_CAMERA.
// Empty means the backend's default device.
func CameraDevice() string {
	return os.Getenv("SHUTTERBOX_CAMERA")
}

// Engine returns the vision engine name from SHUTTERBOX_ENGINE.
func Engine() string {
	return Env("SHUTTERBOX_ENGINE", DefaultEngine)
}

// Mode returns the default analysis mode from SHUTTERBOX_MODE.
func Mode() string {
	return Env("SHUTTERBOX_MODE", DefaultMode)
}

// StaticDir returns the UI asset directory from SHUTTERBOX_STATIC_DIR.
func StaticDir() string {
	return Env("SHUTTERBOX_STATIC_DIR", DefaultStaticDir)
}

// HistoryPath returns the capture history file from SHUTTERBOX_HISTORY.
func HistoryPath() string {
	return Env("SHUTTERBOX_HISTORY", DefaultHistory)
}

// DriveClientID returns the Google OAuth client ID from GOOGLE_CLIENT_ID.
// Empty disables the archive uploader.
func DriveClientID() string {
	return os.Getenv("GOOGLE_CLIENT_ID")
}

// DriveClientSecret returns the Google OAuth client secret from
// GOOGLE_CLIENT_SECRET.
func DriveClientSecret() string {
	return os.Getenv("GOOGLE_CLIENT_SECRET")
}

// DriveFolder returns the Drive folder for archived stills from
// SHUTTERBOX_DRIVE_FOLDER.
func DriveFolder() string {
	return Env("SHUTTERBOX_DRIVE_FOLDER", DefaultFolder)
}

// LogLevel returns the log level from SHUTTERBOX_LOG_LEVEL.
func LogLevel() string {
	return Env("SHUTTERBOX_LOG_LEVEL", DefaultLogLevel)
}

// StationURL returns the station base URL for remote control clients.
// Reads SHUTTERBOX_URL, falling back to a localhost URL on the default port.
func StationURL() string {
	if url := os.Getenv("SHUTTERBOX_URL"); url != "" {
		return url
	}
	return fmt.Sprintf("http://localhost%s", DefaultAddr)
}
