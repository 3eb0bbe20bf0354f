// Package form drives the playlist create/edit dialog: it loads existing
// values when editing, validates input and submits it to the playlist service
// while reporting progress through notifications.
package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"setlist/internal/identity"
	"setlist/internal/metrics"
	"setlist/internal/notify"
	"setlist/pkg/models"

	"github.com/sirupsen/logrus"
)

// User-facing messages are kept verbatim.
var (
	ErrNoUser           = errors.New("No user registered")
	ErrNoFormData       = errors.New("No Data")
	ErrSubmitInProgress = errors.New("a submission is already in progress")

	ErrNameRequired      = errors.New("playlist name is required")
	ErrThumbnailRequired = errors.New("a thumbnail is required when creating a playlist")
)

// Service is the subset of the playlist service the form needs.
type Service interface {
	GetPlaylist(ctx context.Context, id string) (*models.Playlist, error)
	CreatePlaylist(ctx context.Context, sub *models.Submission) (*models.Playlist, error)
	UpdatePlaylist(ctx context.Context, id string, sub *models.Submission) (*models.Playlist, error)
}

// Mode is create or edit, selected by the presence of an edit id.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "create"
}

// State is the load phase of the form.
type State int

const (
	StateLoading State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "loading"
	}
}

// Values are the text fields shown in the form.
type Values struct {
	Name        string
	Description string
}

// Options configures a Controller. Service, Identity and Notifier are required.
type Options struct {
	// EditID selects edit mode; empty means create.
	EditID   string
	Service  Service
	Identity identity.Provider
	Notifier notify.Notifier
	// OnClose closes the dialog. Called after every network attempt.
	OnClose func()
	// Reload, when set, is flipped once after every network attempt.
	Reload *Toggle
	Logger *logrus.Logger
	// Timeout bounds each service call. Zero leaves it to the service.
	Timeout time.Duration
}

// Outcome is the result of the network step of a submission.
type Outcome struct {
	Playlist *models.Playlist
	Err      error
}

// Controller holds the form state for one dialog instance.
type Controller struct {
	opts   Options
	logger *logrus.Logger

	mu         sync.Mutex
	state      State
	values     Values
	submitting bool

	// in-flight calls, one entry per Load or send
	cancels map[uint64]context.CancelFunc
	nextID  uint64
}

// New creates a controller. In create mode the form is ready immediately.
func New(opts Options) (*Controller, error) {
	if opts.Service == nil {
		return nil, errors.New("form: service is required")
	}
	if opts.Identity == nil {
		return nil, errors.New("form: identity provider is required")
	}
	if opts.Notifier == nil {
		return nil, errors.New("form: notifier is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	c := &Controller{
		opts:    opts,
		logger:  logger,
		state:   StateLoading,
		cancels: make(map[uint64]context.CancelFunc),
	}
	if c.Mode() == ModeCreate {
		c.state = StateReady
	}
	return c, nil
}

// Mode reports whether the form creates or edits a playlist.
func (c *Controller) Mode() Mode {
	if c.opts.EditID != "" {
		return ModeEdit
	}
	return ModeCreate
}

// SubmitLabel is the text of the submit button.
func (c *Controller) SubmitLabel() string {
	if c.Mode() == ModeEdit {
		return "Edit playlist"
	}
	return "Create playlist"
}

// State returns the current load state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Values returns the current field values.
func (c *Controller) Values() Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values
}

// Load fetches the playlist being edited and uses it as the form values.
// On failure the values fall back to empty strings and an error notification
// is shown.
func (c *Controller) Load(ctx context.Context) (Values, error) {
	if c.Mode() == ModeCreate {
		c.mu.Lock()
		c.state = StateReady
		c.values = Values{}
		c.mu.Unlock()
		return Values{}, nil
	}

	c.mu.Lock()
	c.state = StateLoading
	c.mu.Unlock()

	ctx, done := c.begin(ctx)
	defer done()

	playlist, err := c.opts.Service.GetPlaylist(ctx, c.opts.EditID)

	c.mu.Lock()
	if err != nil {
		c.state = StateFailed
		c.values = Values{}
	} else {
		c.state = StateReady
		c.values = Values{Name: playlist.Name, Description: playlist.Description}
	}
	values := c.values
	c.mu.Unlock()

	if err != nil {
		c.logger.WithError(err).WithField("playlist_id", c.opts.EditID).Error("Failed to load playlist")
		c.opts.Notifier.Error("", err.Error())
		return values, fmt.Errorf("failed to load playlist: %w", err)
	}

	c.logger.WithField("playlist_id", c.opts.EditID).Debug("Playlist loaded into form")
	return values, nil
}

// Validate applies the presence checks: a name is always required and a
// thumbnail is required when creating.
func (c *Controller) Validate(input *models.PlaylistInput) error {
	if input == nil {
		return ErrNoFormData
	}
	if strings.TrimSpace(input.Name) == "" {
		return ErrNameRequired
	}
	if c.Mode() == ModeCreate && (input.Thumbnail == nil || input.Thumbnail.Body == nil) {
		return ErrThumbnailRequired
	}
	return nil
}

// Submit validates input, then sends it as a create or edit request.
//
// The returned error is reserved for failures detected before any request is
// made: validation, ErrNoUser, ErrNoFormData and ErrSubmitInProgress. In
// those cases nothing is notified and the dialog stays open. Otherwise the
// request result is reported through the notifier and in Outcome, the reload
// toggle is flipped and the dialog is closed, whether the request succeeded
// or not.
func (c *Controller) Submit(ctx context.Context, input *models.PlaylistInput) (Outcome, error) {
	if input != nil {
		if err := c.Validate(input); err != nil {
			return Outcome{}, err
		}
	}

	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return Outcome{}, ErrSubmitInProgress
	}
	c.submitting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()

	user, err := c.opts.Identity.Current(ctx)
	if err != nil || user == nil || user.ID == "" {
		if err != nil && !errors.Is(err, identity.ErrNoUser) {
			return Outcome{}, fmt.Errorf("%w: %v", ErrNoUser, err)
		}
		return Outcome{}, ErrNoUser
	}
	if input == nil {
		return Outcome{}, ErrNoFormData
	}

	sub := &models.Submission{
		Name:        input.Name,
		Description: input.Description,
		UserID:      user.ID,
		Thumbnail:   input.Thumbnail,
	}

	outcome := c.send(ctx, sub)

	if c.opts.Reload != nil {
		c.opts.Reload.Flip()
	}
	if c.opts.OnClose != nil {
		c.opts.OnClose()
	}

	return outcome, nil
}

// Cancel aborts every in-flight load and submission.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(c.cancels))
	for _, cancel := range c.cancels {
		cancels = append(cancels, cancel)
	}
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// send performs the network step and reports it through the notifier.
func (c *Controller) send(ctx context.Context, sub *models.Submission) Outcome {
	mode := c.Mode()
	loadingID := c.opts.Notifier.Loading(fmt.Sprintf("Creating %s playlist", sub.Name))

	ctx, done := c.begin(ctx)
	defer done()

	start := time.Now()
	var (
		playlist *models.Playlist
		err      error
	)
	if mode == ModeEdit {
		playlist, err = c.opts.Service.UpdatePlaylist(ctx, c.opts.EditID, sub)
	} else {
		playlist, err = c.opts.Service.CreatePlaylist(ctx, sub)
	}
	metrics.SubmissionDuration.WithLabelValues(mode.String()).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(mode.String(), metrics.StatusError).Inc()
		c.logger.WithError(err).WithFields(logrus.Fields{
			"mode":        mode.String(),
			"playlist_id": c.opts.EditID,
			"user_id":     sub.UserID,
		}).Error("Playlist submission failed")
		c.opts.Notifier.Error(loadingID, err.Error())
		return Outcome{Err: err}
	}
	if playlist == nil {
		playlist = &models.Playlist{}
	}

	metrics.SubmissionsTotal.WithLabelValues(mode.String(), metrics.StatusSuccess).Inc()
	c.opts.Notifier.Success(loadingID, successMessage(mode, playlist.Name))

	c.logger.WithFields(logrus.Fields{
		"mode":        mode.String(),
		"playlist_id": playlist.ID,
		"name":        playlist.Name,
	}).Info("Playlist submitted")

	return Outcome{Playlist: playlist}
}

// begin derives the context for one service call and registers it for Cancel.
func (c *Controller) begin(parent context.Context) (context.Context, func()) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, c.opts.Timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.cancels[id] = cancel
	c.mu.Unlock()

	return ctx, func() {
		c.mu.Lock()
		delete(c.cancels, id)
		c.mu.Unlock()
		cancel()
	}
}

func successMessage(mode Mode, name string) string {
	if mode == ModeEdit {
		return fmt.Sprintf("Playlist %s edited", name)
	}
	return fmt.Sprintf("Playlist %s created", name)
}
