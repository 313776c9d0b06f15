package ctl

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var httpClient = &http.Client{Timeout: 5 * time.Second}

// fetch issues a GET with optional extra headers and returns the status
// and body.
func fetch(baseURL, path string, headers map[string]string) (int, []byte, error) {
	req, err := http.NewRequest(http.MethodGet, strings.TrimRight(baseURL, "/")+path, nil)
	if err != nil {
		return 0, nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, body, err
}

// statusError turns a non-200 response into an error carrying the server's
// message when there is one.
func statusError(code int, path string, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if msg != "" {
		return fmt.Errorf("HTTP %d %s: %s", code, http.StatusText(code), msg)
	}
	return fmt.Errorf("HTTP %d %s from %s", code, http.StatusText(code), path)
}

// getJSON sends a GET request and decodes the JSON response into dst.
func getJSON(baseURL, path string, dst any) error {
	code, body, err := fetch(baseURL, path, map[string]string{"Accept": "application/json"})
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return statusError(code, path, body)
	}
	return json.Unmarshal(body, dst)
}

// getRaw sends a GET request and returns the raw response body.
func getRaw(baseURL, path string) (int, []byte, error) {
	return fetch(baseURL, path, nil)
}

// printJSON prints v as indented JSON to stdout.
func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
