// Package client talks to the playlist service over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"setlist/pkg/models"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "setlist-client/1.0"

	// maxErrorBody caps how much of a failed response is read for its message
	maxErrorBody = 64 * 1024
)

// defaultTransport is shared by clients built without a custom transport.
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          20,
	MaxIdleConnsPerHost:   5,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// ErrMissingBaseURL is returned by New when no service URL is configured.
var ErrMissingBaseURL = errors.New("service base URL is required")

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

// Config holds client parameters. Zero values use defaults.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client is a playlist service client.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	UserAgent  string
}

// New creates a client for the service at cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrMissingBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid service URL %q: %w", base, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: defaultTransport,
		},
		BaseURL:   base,
		UserAgent: ua,
	}, nil
}

// GetPlaylist fetches a single playlist.
func (c *Client) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	var res struct {
		Data *models.Playlist `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/playlist/"+url.PathEscape(id), nil, "", &res); err != nil {
		return nil, err
	}
	if res.Data == nil {
		return &models.Playlist{}, nil
	}
	return res.Data, nil
}

// ListPlaylists lists playlists, filtered by owner when ownerID is set.
func (c *Client) ListPlaylists(ctx context.Context, ownerID string) ([]models.Playlist, error) {
	path := "/playlist"
	if ownerID != "" {
		path += "?userId=" + url.QueryEscape(ownerID)
	}

	var res struct {
		Data []models.Playlist `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, "", &res); err != nil {
		return nil, err
	}
	if res.Data == nil {
		res.Data = []models.Playlist{}
	}
	return res.Data, nil
}

// CreatePlaylist POSTs a new playlist.
func (c *Client) CreatePlaylist(ctx context.Context, sub *models.Submission) (*models.Playlist, error) {
	return c.submit(ctx, http.MethodPost, "/playlist", sub)
}

// UpdatePlaylist PATCHes playlist id.
func (c *Client) UpdatePlaylist(ctx context.Context, id string, sub *models.Submission) (*models.Playlist, error) {
	return c.submit(ctx, http.MethodPatch, "/playlist/"+url.PathEscape(id), sub)
}

// DeletePlaylist removes playlist id on behalf of userID.
func (c *Client) DeletePlaylist(ctx context.Context, id, userID string) error {
	path := "/playlist/" + url.PathEscape(id) + "?userId=" + url.QueryEscape(userID)
	return c.do(ctx, http.MethodDelete, path, nil, "", nil)
}

func (c *Client) submit(ctx context.Context, method, path string, sub *models.Submission) (*models.Playlist, error) {
	body, contentType, err := EncodeSubmission(sub)
	if err != nil {
		return nil, err
	}

	var playlist models.Playlist
	if err := c.do(ctx, method, path, body, contentType, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// EncodeSubmission builds the multipart body: playlistName,
// playlistDescription, thumbnail (only when present) and userId.
func EncodeSubmission(sub *models.Submission) (*bytes.Buffer, string, error) {
	if sub == nil {
		return nil, "", errors.New("submission is nil")
	}

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("playlistName", sub.Name); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("playlistDescription", sub.Description); err != nil {
		return nil, "", err
	}
	if sub.Thumbnail != nil && sub.Thumbnail.Body != nil {
		part, err := writer.CreateFormFile("thumbnail", sub.Thumbnail.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, sub.Thumbnail.Body); err != nil {
			return nil, "", fmt.Errorf("failed to read thumbnail: %w", err)
		}
	}
	if err := writer.WriteField("userId", sub.UserID); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeAPIError reads the {"error": "..."} body the service sends with
// failures, falling back to the status text.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		apiErr.Message = payload.Error
	} else if text := strings.TrimSpace(string(data)); text != "" && len(text) < 200 {
		apiErr.Message = text
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
