package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationResult contains validation results
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Error  string            `json:"error"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// respondJSON writes payload as JSON with the given status
func (ps *PlaylistServer) respondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		ps.logger.WithError(err).Warn("Failed to encode JSON response")
	}
}

// respondWithValidationError sends a structured validation error response.
// The top-level "error" field carries the first message so simple clients
// can surface it directly.
func (ps *PlaylistServer) respondWithValidationError(w http.ResponseWriter, r *http.Request, errors []ValidationError) {
	ps.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"errors": errors,
	}).Warn("Validation failed")

	result := ValidationResult{
		Valid:  false,
		Errors: errors,
	}
	if len(errors) > 0 {
		result.Error = errors[0].Message
	}

	ps.respondJSON(w, http.StatusBadRequest, result)
}

// respondWithError sends a structured error response
func (ps *PlaylistServer) respondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	logEntry := ps.logger.WithFields(logrus.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status_code": statusCode,
		"message":     message,
	})

	if err != nil {
		logEntry = logEntry.WithError(err)
	}

	if statusCode >= 500 {
		logEntry.Error("Server error")
	} else {
		logEntry.Warn("Client error")
	}

	response := map[string]interface{}{
		"error":   message,
		"code":    statusCode,
		"success": false,
	}

	ps.respondJSON(w, statusCode, response)
}

// validatePlaylistID validates a playlist id taken from the URL path
func validatePlaylistID(id string) *ValidationError {
	if id == "" {
		return &ValidationError{
			Field:   "playlist_id",
			Message: "Playlist ID is required",
			Code:    "MISSING_PLAYLIST_ID",
		}
	}

	if _, err := uuid.Parse(id); err != nil {
		return &ValidationError{
			Field:   "playlist_id",
			Message: "Playlist ID must be a valid UUID",
			Code:    "INVALID_PLAYLIST_ID_FORMAT",
		}
	}

	return nil
}

// validatePlaylistName validates playlist name
func validatePlaylistName(name string) *ValidationError {
	if name == "" {
		return &ValidationError{
			Field:   "playlistName",
			Message: "Playlist name is required",
			Code:    "MISSING_PLAYLIST_NAME",
		}
	}

	if len(name) > 255 {
		return &ValidationError{
			Field:   "playlistName",
			Message: "Playlist name too long (max 255 characters)",
			Code:    "PLAYLIST_NAME_TOO_LONG",
		}
	}

	if strings.ContainsAny(name, "\x00\n\r") {
		return &ValidationError{
			Field:   "playlistName",
			Message: "Playlist name contains invalid characters",
			Code:    "INVALID_PLAYLIST_NAME_CHARACTERS",
		}
	}

	return nil
}

// validatePlaylistDescription validates playlist description
func validatePlaylistDescription(description string) *ValidationError {
	if len(description) > 1000 {
		return &ValidationError{
			Field:   "playlistDescription",
			Message: "Playlist description too long (max 1000 characters)",
			Code:    "PLAYLIST_DESCRIPTION_TOO_LONG",
		}
	}

	return nil
}

// validateUserID validates the submitting user's id
func validateUserID(userID string) *ValidationError {
	if userID == "" {
		return &ValidationError{
			Field:   "userId",
			Message: "User ID is required",
			Code:    "MISSING_USER_ID",
		}
	}

	if len(userID) > 128 || strings.ContainsAny(userID, "\x00\n\r") {
		return &ValidationError{
			Field:   "userId",
			Message: "User ID is invalid",
			Code:    "INVALID_USER_ID",
		}
	}

	return nil
}

// sanitizeInput removes null bytes and surrounding whitespace
func sanitizeInput(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}
