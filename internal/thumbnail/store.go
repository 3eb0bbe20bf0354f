// Package thumbnail stores uploaded playlist thumbnails as normalised JPEGs.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUnsupportedType is returned for file names outside the allow-list.
	ErrUnsupportedType = errors.New("unsupported thumbnail type (allowed: png, jpg, jpeg, gif)")
	// ErrInvalidImage is returned when the upload cannot be decoded.
	ErrInvalidImage = errors.New("thumbnail is not a valid image")
)

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// IsAllowed reports whether the file name has an accepted image extension.
func IsAllowed(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Store writes thumbnails into a single directory.
type Store struct {
	dir       string
	maxEdge   int
	maxPixels int64
	logger    *logrus.Logger
}

// NewStore creates the directory if needed. Uploads whose width*height
// exceeds maxPixels are rejected before decoding.
func NewStore(dir string, maxEdge, maxPixels int, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create thumbnail directory: %w", err)
	}
	return &Store{dir: dir, maxEdge: maxEdge, maxPixels: int64(maxPixels), logger: logger}, nil
}

// Dir returns the directory thumbnails are written to.
func (s *Store) Dir() string {
	return s.dir
}

// Save decodes the upload, shrinks it to fit maxEdge and writes it as JPEG.
// It returns the stored file name and its size on disk.
func (s *Store) Save(r io.Reader, filename string) (string, int64, error) {
	if !IsAllowed(filename) {
		return "", 0, ErrUnsupportedType
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read thumbnail: %w", err)
	}

	// Check dimensions from the header so oversized sources are never decoded
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > s.maxPixels {
		s.logger.WithFields(logrus.Fields{
			"source": filename,
			"width":  cfg.Width,
			"height": cfg.Height,
			"limit":  s.maxPixels,
		}).Warn("Rejected oversized thumbnail")
		return "", 0, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidImage, cfg.Width, cfg.Height, s.maxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	b := img.Bounds()
	if b.Dx() > s.maxEdge || b.Dy() > s.maxEdge {
		img = imaging.Fit(img, s.maxEdge, s.maxEdge, imaging.Lanczos)
	}

	name := uuid.New().String() + ".jpg"
	path := filepath.Join(s.dir, name)
	if err := imaging.Save(img, path, imaging.JPEGQuality(85)); err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to save thumbnail: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat thumbnail: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"source": filename,
		"stored": name,
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
	}).Debug("Thumbnail stored")

	return name, info.Size(), nil
}

// Remove deletes a stored thumbnail. Missing files are not an error.
func (s *Store) Remove(name string) error {
	name = filepath.Base(name)
	if name == "." || name == "/" || name == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// CheckWritable verifies the directory accepts new files.
func (s *Store) CheckWritable() error {
	f, err := os.CreateTemp(s.dir, ".health-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
