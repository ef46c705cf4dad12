// Package archive uploads captured stills to Google Drive so results
// can be shared outside the capture station.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveClient handles OAuth2 authentication and Google Drive uploads.
type DriveClient struct {
	config       *oauth2.Config
	token        *oauth2.Token
	tokenPath    string
	driveService *drive.Service

	folderName string
	folderID   string

	mu sync.RWMutex
}

// DriveConfig configures the Drive client.
type DriveConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g., "http://localhost:8090/api/archive/callback"
	TokenPath    string // Path to store token (default: ~/.shutterbox/google_token.json)
	Folder       string // Drive folder for uploads (default: "shutterbox")
}

// Status reports the archive connection state for the UI.
type Status struct {
	Connected bool   `json:"connected"`
	AuthURL   string `json:"auth_url,omitempty"`
	Folder    string `json:"folder"`
}

// NewDriveClient creates a new Drive client.
func NewDriveClient(cfg DriveConfig) (*DriveClient, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}

	if cfg.RedirectURL == "" {
		cfg.RedirectURL = "http://localhost:8090/api/archive/callback"
	}

	if cfg.TokenPath == "" {
		homeDir, _ := os.UserHomeDir()
		cfg.TokenPath = filepath.Join(homeDir, ".shutterbox", "google_token.json")
	}

	if cfg.Folder == "" {
		cfg.Folder = "shutterbox"
	}

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/drive.file",
		},
		Endpoint: google.Endpoint,
	}

	client := &DriveClient{
		config:     oauthConfig,
		tokenPath:  cfg.TokenPath,
		folderName: cfg.Folder,
	}

	// Try to load existing token
	if err := client.loadToken(); err == nil {
		// Token loaded, try to initialize service
		if err := client.initService(); err != nil {
			// Token might be expired, will need re-auth
			client.token = nil
		}
	}

	return client, nil
}

// IsAuthenticated returns true if the client has a valid token.
func (d *DriveClient) IsAuthenticated() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.token != nil && d.token.Valid()
}

// GetAuthURL returns the OAuth2 authorization URL for user consent.
func (d *DriveClient) GetAuthURL() string {
	return d.config.AuthCodeURL("archive-state", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// HandleCallback processes the OAuth2 callback with the authorization code.
func (d *DriveClient) HandleCallback(code string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	token, err := d.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code for token: %w", err)
	}

	d.mu.Lock()
	d.token = token
	d.mu.Unlock()

	// Save token for future use
	if err := d.saveToken(); err != nil {
		fmt.Printf("⚠️  Failed to save token: %v\n", err)
	}

	// Initialize the drive service
	if err := d.initService(); err != nil {
		return fmt.Errorf("failed to initialize drive service: %w", err)
	}

	return nil
}

// Disconnect clears the authentication and removes the stored token.
func (d *DriveClient) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.token = nil
	d.driveService = nil
	d.folderID = ""

	// Remove token file
	if err := os.Remove(d.tokenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}

	return nil
}

// GetStatus reports the connection state, including an auth URL when a
// connection is still needed.
func (d *DriveClient) GetStatus() Status {
	status := Status{
		Connected: d.IsAuthenticated(),
		Folder:    d.folderName,
	}

	if !status.Connected {
		status.AuthURL = d.GetAuthURL()
	}

	return status
}

// Upload stores a JPEG under the configured Drive folder and returns
// the created file ID.
func (d *DriveClient) Upload(ctx context.Context, name string, jpeg []byte) (string, error) {
	d.mu.RLock()
	service := d.driveService
	d.mu.RUnlock()

	if service == nil {
		return "", fmt.Errorf("not authenticated - please connect to Google first")
	}
	if len(jpeg) == 0 {
		return "", fmt.Errorf("nothing to upload")
	}

	folderID, err := d.ensureFolder(ctx, service)
	if err != nil {
		return "", err
	}

	file := &drive.File{
		Name:     name,
		MimeType: "image/jpeg",
		Parents:  []string{folderID},
	}

	created, err := service.Files.Create(file).
		Media(bytes.NewReader(jpeg)).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	return created.Id, nil
}

// ArchiveStill uploads a captured still with a timestamped name and
// returns the Drive file ID.
func (d *DriveClient) ArchiveStill(ctx context.Context, captureID string, jpeg []byte) (string, error) {
	return d.Upload(ctx, stillName(captureID, time.Now()), jpeg)
}

// ensureFolder finds or creates the upload folder and caches its ID.
func (d *DriveClient) ensureFolder(ctx context.Context, service *drive.Service) (string, error) {
	d.mu.RLock()
	cached := d.folderID
	d.mu.RUnlock()
	if cached != "" {
		return cached, nil
	}

	query := fmt.Sprintf("mimeType='%s' and name='%s' and trashed=false",
		folderMimeType, d.folderName)
	list, err := service.Files.List().
		Q(query).
		Spaces("drive").
		Fields("files(id, name)").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to look up folder: %w", err)
	}

	var folderID string
	if len(list.Files) > 0 {
		folderID = list.Files[0].Id
	} else {
		folder, err := service.Files.Create(&drive.File{
			Name:     d.folderName,
			MimeType: folderMimeType,
		}).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("failed to create folder: %w", err)
		}
		folderID = folder.Id
	}

	d.mu.Lock()
	d.folderID = folderID
	d.mu.Unlock()
	return folderID, nil
}

// FileURL returns the URL to view an uploaded file.
func FileURL(fileID string) string {
	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", fileID)
}

// stillName builds a stable, sortable upload name for a capture.
func stillName(captureID string, ts time.Time) string {
	short := captureID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("still-%s-%s.jpg", ts.Format("20060102-150405"), short)
}

// initService initializes the Google Drive service with the current token.
func (d *DriveClient) initService() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.token == nil {
		return fmt.Errorf("no token available")
	}

	ctx := context.Background()
	client := d.config.Client(ctx, d.token)

	service, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return fmt.Errorf("failed to create drive service: %w", err)
	}

	d.driveService = service
	return nil
}

// loadToken loads the OAuth token from disk.
func (d *DriveClient) loadToken() error {
	data, err := os.ReadFile(d.tokenPath)
	if err != nil {
		return err
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return err
	}

	d.mu.Lock()
	d.token = &token
	d.mu.Unlock()

	return nil
}

// saveToken saves the OAuth token to disk.
func (d *DriveClient) saveToken() error {
	d.mu.RLock()
	token := d.token
	d.mu.RUnlock()

	if token == nil {
		return fmt.Errorf("no token to save")
	}

	// Ensure directory exists
	dir := filepath.Dir(d.tokenPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(d.tokenPath, data, 0600)
}
