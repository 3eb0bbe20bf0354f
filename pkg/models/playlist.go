package models

import (
	"io"
	"time"
)

// Playlist represents a playlist as stored and returned by the playlist service
type Playlist struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Identity is the current user as known to the client
type Identity struct {
	ID string `json:"id"`
}

// File is an upload attached to a form submission
type File struct {
	Name string
	Body io.Reader
}

// PlaylistInput holds the form fields of the create/edit dialog.
// Thumbnail is required when creating and optional when editing.
type PlaylistInput struct {
	Name        string
	Description string
	Thumbnail   *File
}

// Submission is the payload sent to the playlist service
type Submission struct {
	Name        string
	Description string
	UserID      string
	Thumbnail   *File
}
