package server

import (
	"errors"
	"mime/multipart"
	"net/http"

	"setlist/internal/database"
	"setlist/internal/events"
	"setlist/internal/metrics"
	"setlist/internal/thumbnail"
	"setlist/pkg/models"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

const thumbnailURLPrefix = "/thumbnails/"

// playlistForm holds the parsed multipart fields of a create or edit request
type playlistForm struct {
	name        string
	description string
	userID      string
	file        multipart.File
	header      *multipart.FileHeader
}

func (f *playlistForm) close() {
	if f.file != nil {
		f.file.Close()
	}
}

// parsePlaylistForm reads the multipart body. The returned status is non-zero
// when the body itself could not be read.
func (ps *PlaylistServer) parsePlaylistForm(w http.ResponseWriter, r *http.Request) (*playlistForm, int, error) {
	maxSize := ps.config.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, err
		}
		return nil, http.StatusBadRequest, err
	}

	form := &playlistForm{
		name:        sanitizeInput(r.FormValue("playlistName")),
		description: sanitizeInput(r.FormValue("playlistDescription")),
		userID:      sanitizeInput(r.FormValue("userId")),
	}

	file, header, err := r.FormFile("thumbnail")
	switch {
	case err == nil && header.Filename == "" && header.Size == 0:
		// An empty file input still sends a part; treat it as absent
		file.Close()
	case err == nil:
		form.file = file
		form.header = header
	case !errors.Is(err, http.ErrMissingFile):
		return nil, http.StatusBadRequest, err
	}

	return form, 0, nil
}

// validate collects field errors; thumbnailRequired is true on create
func (f *playlistForm) validate(thumbnailRequired bool) []ValidationError {
	var errs []ValidationError
	if verr := validatePlaylistName(f.name); verr != nil {
		errs = append(errs, *verr)
	}
	if verr := validatePlaylistDescription(f.description); verr != nil {
		errs = append(errs, *verr)
	}
	if verr := validateUserID(f.userID); verr != nil {
		errs = append(errs, *verr)
	}
	if f.file == nil {
		if thumbnailRequired {
			errs = append(errs, ValidationError{
				Field:   "thumbnail",
				Message: "Thumbnail is required",
				Code:    "MISSING_THUMBNAIL",
			})
		}
	} else if !thumbnail.IsAllowed(f.header.Filename) {
		errs = append(errs, ValidationError{
			Field:   "thumbnail",
			Message: thumbnail.ErrUnsupportedType.Error(),
			Code:    "UNSUPPORTED_THUMBNAIL_TYPE",
		})
	}
	return errs
}

// storeThumbnail saves the uploaded file and returns its public URL
func (ps *PlaylistServer) storeThumbnail(w http.ResponseWriter, r *http.Request, form *playlistForm) (string, bool) {
	name, size, err := ps.thumbnails.Save(form.file, form.header.Filename)
	if err != nil {
		if errors.Is(err, thumbnail.ErrInvalidImage) || errors.Is(err, thumbnail.ErrUnsupportedType) {
			ps.respondWithValidationError(w, r, []ValidationError{{
				Field:   "thumbnail",
				Message: err.Error(),
				Code:    "INVALID_THUMBNAIL",
			}})
			return "", false
		}
		ps.respondWithError(w, r, http.StatusInternalServerError, "Error saving thumbnail", err)
		return "", false
	}

	metrics.ThumbnailBytesStored.Add(float64(size))
	return thumbnailURLPrefix + name, true
}

// handleListPlaylists returns all playlists, optionally filtered by ?userId=
func (ps *PlaylistServer) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	ownerID := sanitizeInput(r.URL.Query().Get("userId"))

	playlists, err := ps.db.ListPlaylists(r.Context(), ownerID)
	if err != nil {
		ps.respondWithError(w, r, http.StatusInternalServerError, "Error retrieving playlists", err)
		return
	}

	ps.respondJSON(w, http.StatusOK, map[string]interface{}{"data": playlists})
}

// handleGetPlaylist returns a single playlist wrapped in {"data": ...}
func (ps *PlaylistServer) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if verr := validatePlaylistID(id); verr != nil {
		ps.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	playlist, err := ps.lookupPlaylist(r, id)
	if errors.Is(err, database.ErrNotFound) {
		ps.respondWithError(w, r, http.StatusNotFound, "Playlist not found", nil)
		return
	}
	if err != nil {
		ps.respondWithError(w, r, http.StatusInternalServerError, "Error retrieving playlist", err)
		return
	}

	ps.respondJSON(w, http.StatusOK, map[string]interface{}{"data": playlist})
}

// lookupPlaylist reads through the cache
func (ps *PlaylistServer) lookupPlaylist(r *http.Request, id string) (*models.Playlist, error) {
	if p, ok := ps.cache.GetPlaylist(id); ok {
		metrics.PlaylistCacheLookups.WithLabelValues("hit").Inc()
		return p, nil
	}
	metrics.PlaylistCacheLookups.WithLabelValues("miss").Inc()

	p, err := ps.db.GetPlaylist(r.Context(), id)
	if err != nil {
		return nil, err
	}
	ps.cache.SetPlaylist(p)
	return p, nil
}

// handleCreatePlaylist creates a playlist from a multipart form
// (playlistName, playlistDescription, thumbnail, userId).
func (ps *PlaylistServer) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	form, status, err := ps.parsePlaylistForm(w, r)
	if err != nil {
		ps.respondWithError(w, r, status, "Error parsing form data", err)
		return
	}
	defer form.close()

	if errs := form.validate(true); len(errs) > 0 {
		ps.respondWithValidationError(w, r, errs)
		return
	}

	thumbnailURL, ok := ps.storeThumbnail(w, r, form)
	if !ok {
		return
	}

	playlist := &models.Playlist{
		OwnerID:      form.userID,
		Name:         form.name,
		Description:  form.description,
		ThumbnailURL: thumbnailURL,
	}

	if err := ps.db.CreatePlaylist(r.Context(), playlist); err != nil {
		ps.thumbnails.Remove(thumbnailURL)
		metrics.PlaylistWritesTotal.WithLabelValues("create", metrics.StatusError).Inc()
		ps.respondWithError(w, r, http.StatusInternalServerError, "Error creating playlist", err)
		return
	}

	metrics.PlaylistWritesTotal.WithLabelValues("create", metrics.StatusSuccess).Inc()
	ps.cache.SetPlaylist(playlist)
	ps.events.Publish(r.Context(), events.PlaylistCreated, playlist)

	ps.logger.WithFields(logrus.Fields{
		"playlist_id": playlist.ID,
		"owner_id":    playlist.OwnerID,
		"name":        playlist.Name,
	}).Info("Playlist created")

	ps.respondJSON(w, http.StatusCreated, playlist)
}

// handleUpdatePlaylist updates name/description and optionally replaces the
// thumbnail. Only the owner may edit.
func (ps *PlaylistServer) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if verr := validatePlaylistID(id); verr != nil {
		ps.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	form, status, err := ps.parsePlaylistForm(w, r)
	if err != nil {
		ps.respondWithError(w, r, status, "Error parsing form data", err)
		return
	}
	defer form.close()

	if errs := form.validate(false); len(errs) > 0 {
		ps.respondWithValidationError(w, r, errs)
		return
	}

	existing, err := ps.db.GetPlaylist(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		ps.respondWithError(w, r, http.StatusNotFound, "Playlist not found", nil)
		return
	}
	if err != nil {
		ps.respondWithError(w, r, http.StatusInternalServerError, "Error retrieving playlist", err)
		return
	}

	if existing.OwnerID != form.userID {
		ps.respondWithError(w, r, http.StatusForbidden, "Only the playlist owner can edit it", nil)
		return
	}

	oldThumbnail := existing.ThumbnailURL
	if form.file != nil {
		thumbnailURL, ok := ps.storeThumbnail(w, r, form)
		if !ok {
			return
		}
		existing.ThumbnailURL = thumbnailURL
	}

	existing.Name = form.name
	existing.Description = form.description

	if err := ps.db.UpdatePlaylist(r.Context(), existing); err != nil {
		if existing.ThumbnailURL != oldThumbnail {
			ps.thumbnails.Remove(existing.ThumbnailURL)
		}
		ps.cache.Delete(id)
		metrics.PlaylistWritesTotal.WithLabelValues("update", metrics.StatusError).Inc()
		if errors.Is(err, database.ErrNotFound) {
			ps.respondWithError(w, r, http.StatusNotFound, "Playlist not found", nil)
			return
		}
		ps.respondWithError(w, r, http.StatusInternalServerError, "Error updating playlist", err)
		return
	}

	if existing.ThumbnailURL != oldThumbnail && oldThumbnail != "" {
		if err := ps.thumbnails.Remove(oldThumbnail); err != nil {
			ps.logger.WithError(err).WithField("thumbnail", oldThumbnail).Warn("Failed to remove replaced thumbnail")
		}
	}

	metrics.PlaylistWritesTotal.WithLabelValues("update", metrics.StatusSuccess).Inc()
	ps.cache.SetPlaylist(existing)
	ps.events.Publish(r.Context(), events.PlaylistUpdated, existing)

	ps.logger.WithFields(logrus.Fields{
		"playlist_id":       existing.ID,
		"thumbnail_changed": existing.ThumbnailURL != oldThumbnail,
	}).Info("Playlist updated")

	ps.respondJSON(w, http.StatusOK, existing)
}

// handleDeletePlaylist deletes a playlist owned by ?userId=
func (ps *PlaylistServer) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if verr := validatePlaylistID(id); verr != nil {
		ps.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	userID := sanitizeInput(r.URL.Query().Get("userId"))
	if verr := validateUserID(userID); verr != nil {
		ps.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	existing, err := ps.db.GetPlaylist(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		ps.respondWithError(w, r, http.StatusNotFound, "Playlist not found", nil)
		return
	}
	if err != nil {
		ps.respondWithError(w, r, http.StatusInternalServerError, "Error retrieving playlist", err)
		return
	}

	if existing.OwnerID != userID {
		ps.respondWithError(w, r, http.StatusForbidden, "Only the playlist owner can delete it", nil)
		return
	}

	if err := ps.db.DeletePlaylist(r.Context(), id); err != nil && !errors.Is(err, database.ErrNotFound) {
		metrics.PlaylistWritesTotal.WithLabelValues("delete", metrics.StatusError).Inc()
		ps.respondWithError(w, r, http.StatusInternalServerError, "Error deleting playlist", err)
		return
	}

	ps.cache.Delete(id)
	if existing.ThumbnailURL != "" {
		if err := ps.thumbnails.Remove(existing.ThumbnailURL); err != nil {
			ps.logger.WithError(err).WithField("thumbnail", existing.ThumbnailURL).Warn("Failed to remove thumbnail")
		}
	}

	metrics.PlaylistWritesTotal.WithLabelValues("delete", metrics.StatusSuccess).Inc()
	ps.events.Publish(r.Context(), events.PlaylistDeleted, existing)

	ps.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Playlist deleted",
	})
}
