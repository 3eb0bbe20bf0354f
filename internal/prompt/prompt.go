// Package prompt renders the playlist dialog as an interactive terminal form.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"setlist/internal/thumbnail"
	"setlist/pkg/models"

	"github.com/charmbracelet/huh"
)

// ErrAborted is returned when the user closes the form without submitting.
var ErrAborted = errors.New("dialog closed")

// Fields are the raw values collected from the terminal.
type Fields struct {
	Name          string
	Description   string
	ThumbnailPath string
}

// Options configures the dialog.
type Options struct {
	Title       string
	SubmitLabel string
	// RequireThumbnail is set when creating.
	RequireThumbnail bool
	Initial          Fields
	// Accessible switches to plain line prompts (no TUI).
	Accessible bool
	Input      io.Reader
	Output     io.Writer
}

// Run shows the dialog and returns the entered fields.
func Run(ctx context.Context, opts Options) (Fields, error) {
	fields := opts.Initial
	confirmed := true

	submitLabel := opts.SubmitLabel
	if submitLabel == "" {
		submitLabel = "Submit"
	}

	thumbTitle := "Thumbnail"
	if !opts.RequireThumbnail {
		thumbTitle = "Thumbnail (leave empty to keep the current one)"
	}

	f := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Playlist name").
				Value(&fields.Name).
				Validate(keepDefault(opts.Accessible, opts.Initial.Name, ValidateName)),
			huh.NewText().
				Title("Description").
				Value(&fields.Description),
			huh.NewInput().
				Title(thumbTitle).
				Placeholder("cover.png").
				Value(&fields.ThumbnailPath).
				Validate(keepDefault(opts.Accessible, opts.Initial.ThumbnailPath, func(path string) error {
					return ValidateThumbnailPath(path, opts.RequireThumbnail)
				})),
			huh.NewConfirm().
				Title(opts.Title).
				Affirmative(submitLabel).
				Negative("Cancel").
				Value(&confirmed),
		),
	).WithAccessible(opts.Accessible)

	if opts.Input != nil {
		f = f.WithInput(opts.Input)
	}
	if opts.Output != nil {
		f = f.WithOutput(opts.Output)
	}

	if err := f.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return Fields{}, ErrAborted
		}
		return Fields{}, err
	}
	if !confirmed {
		return Fields{}, ErrAborted
	}

	fields.Name = strings.TrimSpace(fields.Name)
	fields.ThumbnailPath = strings.TrimSpace(fields.ThumbnailPath)
	return fields, nil
}

// keepDefault accepts an empty answer in accessible mode when there is an
// initial value, since the line prompt then keeps that value.
func keepDefault(accessible bool, initial string, validate func(string) error) func(string) error {
	if !accessible || strings.TrimSpace(initial) == "" {
		return validate
	}
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		return validate(s)
	}
}

// ValidateName requires a non-blank name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("a playlist name is required")
	}
	return nil
}

// ValidateThumbnailPath checks the path points at a readable image file.
func ValidateThumbnailPath(path string, required bool) error {
	path = strings.TrimSpace(path)
	if path == "" {
		if required {
			return errors.New("a thumbnail is required")
		}
		return nil
	}
	if !thumbnail.IsAllowed(path) {
		return thumbnail.ErrUnsupportedType
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read thumbnail: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

// ToInput opens the thumbnail (if any) and builds the form input. The
// returned close function releases the file and is never nil.
func ToInput(fields Fields) (*models.PlaylistInput, func() error, error) {
	input := &models.PlaylistInput{
		Name:        fields.Name,
		Description: fields.Description,
	}
	closeFn := func() error { return nil }

	if fields.ThumbnailPath == "" {
		return input, closeFn, nil
	}

	file, err := os.Open(fields.ThumbnailPath)
	if err != nil {
		return nil, closeFn, fmt.Errorf("failed to open thumbnail: %w", err)
	}
	input.Thumbnail = &models.File{
		Name: filepath.Base(fields.ThumbnailPath),
		Body: file,
	}
	return input, file.Close, nil
}
