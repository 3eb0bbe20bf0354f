package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"setlist/internal/events"
	"setlist/internal/form"
	"setlist/internal/identity"
	"setlist/internal/prompt"
	"setlist/pkg/models"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/redis/go-redis/v9"
)

var (
	// errUsage is returned after a usage message has been printed
	errUsage = errors.New("usage")
	// errReported is returned when the failure was already shown as a notification
	errReported = errors.New("reported")
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	nameStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("setlist "+name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *app) login(args []string) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		fmt.Fprintln(a.stderr, "Usage: setlist login <userId>")
		return errUsage
	}
	if err := a.store.Login(strings.TrimSpace(args[0])); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Logged in as %s\n", strings.TrimSpace(args[0]))
	return nil
}

func (a *app) logout() error {
	if err := a.store.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Logged out")
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	user, err := a.store.Current(ctx)
	if errors.Is(err, identity.ErrNoUser) {
		return form.ErrNoUser
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, user.ID)
	return nil
}

// submit runs the create/edit dialog. An empty editID creates.
func (a *app) submit(ctx context.Context, editID string, args []string) error {
	name := "create"
	if editID != "" {
		name = "edit"
	}
	fs := a.newFlagSet(name)
	nameFlag := fs.String("name", "", "playlist name")
	descFlag := fs.String("description", "", "playlist description")
	thumbFlag := fs.String("thumbnail", "", "path to a png, jpg or gif thumbnail")
	interactive := fs.Bool("i", false, "fill the form interactively")
	accessible := fs.Bool("accessible", false, "use plain prompts instead of the full-screen form")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	var provider identity.Provider = a.store
	if *interactive {
		// The form can stay open a while; follow logins made from another shell
		watched, err := identity.NewWatchedStore(a.store, nil)
		if err != nil {
			a.logger.WithError(err).Warn("Could not watch user storage, using a snapshot")
		} else {
			defer watched.Close()
			provider = watched
		}
	}

	reload := &form.Toggle{}
	controller, err := form.New(form.Options{
		EditID:   editID,
		Service:  a.api,
		Identity: provider,
		Notifier: a.toaster,
		OnClose:  func() { a.logger.Debug("Dialog closed") },
		Reload:   reload,
		Logger:   a.logger,
		Timeout:  a.cfg.ClientTimeout(),
	})
	if err != nil {
		return err
	}

	// A failed load is already notified; the form stays usable with empty values
	values, _ := controller.Load(ctx)

	fields := prompt.Fields{
		Name:          values.Name,
		Description:   values.Description,
		ThumbnailPath: *thumbFlag,
	}
	if setFlags["name"] {
		fields.Name = *nameFlag
	}
	if setFlags["description"] {
		fields.Description = *descFlag
	}

	if *interactive {
		title := "Create a new playlist"
		if controller.Mode() == form.ModeEdit {
			title = "Edit playlist"
		}
		fields, err = prompt.Run(ctx, prompt.Options{
			Title:            title,
			SubmitLabel:      controller.SubmitLabel(),
			RequireThumbnail: controller.Mode() == form.ModeCreate,
			Initial:          fields,
			Accessible:       *accessible,
		})
		if errors.Is(err, prompt.ErrAborted) {
			fmt.Fprintln(a.stdout, "Cancelled")
			return nil
		}
		if err != nil {
			return err
		}
	}

	input, closeThumb, err := prompt.ToInput(fields)
	if err != nil {
		return err
	}
	defer closeThumb()

	outcome, err := controller.Submit(ctx, input)
	if err != nil {
		return err
	}

	if reload.Flips() > 0 {
		a.reloadList(ctx, provider)
	}

	if outcome.Err != nil {
		return errReported
	}
	return nil
}

// reloadList re-renders the current user's playlists after a submission
func (a *app) reloadList(ctx context.Context, provider identity.Provider) {
	user, err := provider.Current(ctx)
	if err != nil {
		return
	}
	playlists, err := a.api.ListPlaylists(ctx, user.ID)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to reload playlists")
		return
	}
	a.printPlaylists(playlists)
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := a.newFlagSet("list")
	all := fs.Bool("all", false, "list every user's playlists")
	watch := fs.Bool("watch", false, "reprint the list whenever a playlist changes (needs [redis])")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ownerID := ""
	if !*all {
		user, err := a.store.Current(ctx)
		if errors.Is(err, identity.ErrNoUser) {
			return form.ErrNoUser
		}
		if err != nil {
			return err
		}
		ownerID = user.ID
	}

	refresh := func() error {
		playlists, err := a.api.ListPlaylists(ctx, ownerID)
		if err != nil {
			return err
		}
		a.printPlaylists(playlists)
		return nil
	}

	if err := refresh(); err != nil {
		return err
	}
	if !*watch {
		return nil
	}

	if a.cfg.Redis.Addr == "" {
		return errors.New("-watch needs [redis] addr in the config")
	}
	sub, err := events.NewSubscriber(ctx, &redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	}, a.cfg.Redis.Channel, a.logger)
	if err != nil {
		return err
	}
	defer sub.Close()

	err = sub.Run(ctx, func(ev events.Event) {
		if ownerID != "" && ev.Payload.Playlist.OwnerID != ownerID {
			return
		}
		fmt.Fprintln(a.stdout, dimStyle.Render(fmt.Sprintf("%s: %s", ev.Type, ev.Payload.Playlist.Name)))
		if err := refresh(); err != nil {
			a.logger.WithError(err).Warn("Failed to reload playlists")
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.stderr, "Usage: setlist delete <playlistId>")
		return errUsage
	}

	user, err := a.store.Current(ctx)
	if errors.Is(err, identity.ErrNoUser) {
		return form.ErrNoUser
	}
	if err != nil {
		return err
	}

	id := a.toaster.Loading("Deleting playlist")
	if err := a.api.DeletePlaylist(ctx, args[0], user.ID); err != nil {
		a.toaster.Error(id, err.Error())
		return errReported
	}
	a.toaster.Success(id, "Playlist deleted")
	return nil
}

func (a *app) printPlaylists(playlists []models.Playlist) {
	if len(playlists) == 0 {
		fmt.Fprintln(a.stdout, dimStyle.Render("No playlists yet"))
		return
	}

	fmt.Fprintln(a.stdout, headerStyle.Render(fmt.Sprintf("Playlists (%d)", len(playlists))))
	for _, p := range playlists {
		line := nameStyle.Render(p.Name) + " " + dimStyle.Render(p.ID)
		if !p.UpdatedAt.IsZero() {
			line += dimStyle.Render(" · updated " + humanize.Time(p.UpdatedAt))
		}
		fmt.Fprintln(a.stdout, line)
		if p.Description != "" {
			fmt.Fprintf(a.stdout, "  %s\n", p.Description)
		}
	}
}
