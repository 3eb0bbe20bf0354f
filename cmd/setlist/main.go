package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"setlist/internal/client"
	"setlist/internal/config"
	"setlist/internal/identity"
	"setlist/internal/logging"
	"setlist/internal/notify"

	"github.com/sirupsen/logrus"
)

const usage = `Usage: setlist [-config path] <command> [flags]

Commands:
  login <userId>      remember the user playlists are created for
  logout              forget the current user
  whoami              print the current user
  list                list your playlists (-all for everyone's, -watch to follow changes)
  create              create a playlist (-i for an interactive form)
  edit <playlistId>   edit a playlist (-i for an interactive form)
  delete <playlistId> delete one of your playlists
`

// app bundles what every command needs
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	store   *identity.FileStore
	api     *client.Client
	toaster *notify.Toaster
	stdout  io.Writer
	stderr  io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("setlist", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "./setlist.toml", "path to the TOML config file")
	global.Usage = func() { fmt.Fprint(stderr, usage) }

	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() < 1 {
		global.Usage()
		return 2
	}

	a, closer, err := newApp(*configPath, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "setlist: %v\n", err)
		return 1
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, cmdArgs := global.Arg(0), global.Args()[1:]
	var runErr error
	switch cmd {
	case "login":
		runErr = a.login(cmdArgs)
	case "logout":
		runErr = a.logout()
	case "whoami":
		runErr = a.whoami(ctx)
	case "list":
		runErr = a.list(ctx, cmdArgs)
	case "create":
		runErr = a.submit(ctx, "", cmdArgs)
	case "edit":
		if len(cmdArgs) < 1 {
			fmt.Fprintln(stderr, "setlist edit: a playlist id is required")
			return 2
		}
		runErr = a.submit(ctx, cmdArgs[0], cmdArgs[1:])
	case "delete":
		runErr = a.delete(ctx, cmdArgs)
	case "help", "-h", "--help":
		global.Usage()
		return 0
	default:
		fmt.Fprintf(stderr, "setlist: unknown command %q\n\n", cmd)
		global.Usage()
		return 2
	}

	if runErr != nil {
		if errors.Is(runErr, flag.ErrHelp) {
			return 0
		}
		if errors.Is(runErr, errUsage) {
			return 2
		}
		if errors.Is(runErr, errReported) {
			return 1
		}
		fmt.Fprintf(stderr, "setlist: %v\n", runErr)
		return 1
	}
	return 0
}

func newApp(configPath string, stdout, stderr io.Writer) (*app, io.Closer, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	// Notifications are the user-facing output; keep the log quiet unless asked
	if os.Getenv(config.EnvLogLevel) == "" && cfg.Logging.Level == "info" {
		logger.SetLevel(logrus.ErrorLevel)
	}
	if cfg.Logging.File == "" {
		logger.SetOutput(stderr)
	}

	api, err := client.New(client.Config{
		BaseURL: cfg.Client.ServiceURL,
		Timeout: cfg.ClientTimeout(),
	})
	if err != nil {
		closer.Close()
		return nil, nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   identity.NewFileStore(cfg.Client.StorageFile, logger),
		api:     api,
		toaster: notify.NewToaster(logger, stdout),
		stdout:  stdout,
		stderr:  stderr,
	}, closer, nil
}
