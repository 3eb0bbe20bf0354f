package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"setlist/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedPart struct {
	name     string
	filename string
	value    string
}

func readParts(t *testing.T, r *http.Request) []recordedPart {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data", mediaType)

	reader := multipart.NewReader(r.Body, params["boundary"])
	var parts []recordedPart
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		parts = append(parts, recordedPart{
			name:     part.FormName(),
			filename: part.FileName(),
			value:    string(data),
		})
	}
	return parts
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/", Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrMissingBaseURL)

	_, err = New(Config{BaseURL: "not a url"})
	assert.Error(t, err)

	c, err := New(Config{BaseURL: "http://localhost:8080/"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", c.BaseURL)
	assert.Equal(t, defaultTimeout, c.HTTPClient.Timeout)
	assert.Equal(t, defaultUserAgent, c.UserAgent)
}

func TestCreatePlaylist(t *testing.T) {
	var parts []recordedPart
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/playlist", r.URL.Path)
		parts = readParts(t, r)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.Playlist{ID: "p1", Name: "Road Trip"})
	})

	p, err := c.CreatePlaylist(context.Background(), &models.Submission{
		Name:        "Road Trip",
		Description: "summer",
		UserID:      "u1",
		Thumbnail:   &models.File{Name: "cover.png", Body: strings.NewReader("PNGDATA")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Road Trip", p.Name)

	require.Len(t, parts, 4)
	assert.Equal(t, recordedPart{name: "playlistName", value: "Road Trip"}, parts[0])
	assert.Equal(t, recordedPart{name: "playlistDescription", value: "summer"}, parts[1])
	assert.Equal(t, recordedPart{name: "thumbnail", filename: "cover.png", value: "PNGDATA"}, parts[2])
	assert.Equal(t, recordedPart{name: "userId", value: "u1"}, parts[3])
}

func TestUpdatePlaylistWithoutThumbnail(t *testing.T) {
	var parts []recordedPart
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/playlist/abc-123", r.URL.Path)
		parts = readParts(t, r)

		json.NewEncoder(w).Encode(models.Playlist{ID: "abc-123", Name: "Renamed"})
	})

	p, err := c.UpdatePlaylist(context.Background(), "abc-123", &models.Submission{Name: "Renamed", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Name)

	names := []string{}
	for _, part := range parts {
		names = append(names, part.name)
	}
	assert.Equal(t, []string{"playlistName", "playlistDescription", "userId"}, names)
}

func TestGetPlaylist(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/playlist/p1", r.URL.Path)
		w.Write([]byte(`{"data":{"id":"p1","name":"Road Trip","description":"summer"}}`))
	})

	p, err := c.GetPlaylist(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Road Trip", p.Name)
	assert.Equal(t, "summer", p.Description)
}

func TestGetPlaylistEmptyData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	p, err := c.GetPlaylist(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "", p.Name)
}

func TestListPlaylists(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "u 1", r.URL.Query().Get("userId"))
		w.Write([]byte(`{"data":[{"id":"a"},{"id":"b"}]}`))
	})

	list, err := c.ListPlaylists(context.Background(), "u 1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[1].ID)
}

func TestDeletePlaylist(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/playlist/p1", r.URL.Path)
		assert.Equal(t, "u1", r.URL.Query().Get("userId"))
		w.Write([]byte(`{"success":true}`))
	})

	require.NoError(t, c.DeletePlaylist(context.Background(), "p1", "u1"))
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "json error body",
			status:     http.StatusForbidden,
			body:       `{"error":"Only the playlist owner can edit it","code":403,"success":false}`,
			wantStatus: http.StatusForbidden,
			wantMsg:    "Only the playlist owner can edit it",
		},
		{
			name:       "plain text body",
			status:     http.StatusBadGateway,
			body:       "upstream down",
			wantStatus: http.StatusBadGateway,
			wantMsg:    "upstream down",
		},
		{
			name:       "empty body",
			status:     http.StatusNotFound,
			wantStatus: http.StatusNotFound,
			wantMsg:    "Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.GetPlaylist(context.Background(), "p1")
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
			assert.Equal(t, tt.wantMsg, apiErr.Error())
		})
	}
}

func TestDecodeFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	})

	_, err := c.CreatePlaylist(context.Background(), &models.Submission{Name: "x", UserID: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: base, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.CreatePlaylist(context.Background(), &models.Submission{Name: "x", UserID: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestContextCancel(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.GetPlaylist(ctx, "p1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEncodeSubmissionNil(t *testing.T) {
	_, _, err := EncodeSubmission(nil)
	assert.Error(t, err)
}
