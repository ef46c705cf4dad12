package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"shutterbox/internal/httpc"
)

// apiURL joins the station base URL with an API path.
func apiURL(path string) string {
	return strings.TrimRight(station, "/") + path
}

// wsURL converts the station base URL to its websocket scheme.
func wsURL(path string) (string, error) {
	base := strings.TrimRight(station, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + path, nil
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + path, nil
	default:
		return "", fmt.Errorf("station URL must start with http:// or https://: %s", station)
	}
}

// getJSON fetches path and decodes the JSON response into out.
func getJSON(path string, out any) error {
	resp, err := httpc.Get(apiURL(path))
	if err != nil {
		return fmt.Errorf("station unreachable: %w", err)
	}
	return decodeResponse(resp, out)
}

// postJSON posts in (may be nil) to path and decodes the response into out.
func postJSON(path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return err
		}
	}
	resp, err := httpc.PostJSON(apiURL(path), body)
	if err != nil {
		return fmt.Errorf("station unreachable: %w", err)
	}
	return decodeResponse(resp, out)
}

// getRaw fetches path and returns the response body bytes.
func getRaw(path string) ([]byte, error) {
	resp, err := httpc.Get(apiURL(path))
	if err != nil {
		return nil, fmt.Errorf("station unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, apiError(resp, data)
	}
	return data, nil
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return apiError(resp, data)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// apiError extracts the station's error message from a failed response.
func apiError(resp *http.Response, data []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil && e.Error != "" {
		return fmt.Errorf("%s", e.Error)
	}
	return fmt.Errorf("station returned %s", resp.Status)
}
