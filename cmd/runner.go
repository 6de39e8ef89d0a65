package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotx/internal/auth"
	"github.com/desertthunder/spotx/internal/repositories"
	"github.com/desertthunder/spotx/internal/services"
	"github.com/desertthunder/spotx/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Config and logging are set up once in [Runner.Before]; the database and the authenticated
// Spotify client are built on first use by the commands that need them.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	logCloser  io.Closer
	output     io.Writer
	httpClient *http.Client
	opener     shared.URLOpener
	apiBaseURL string
	endpoint   oauth2.Endpoint

	db      *sql.DB
	runs    *repositories.ExportRunRepository
	events  *repositories.AuthEventRepository
	tokens  *auth.TokenFile
	manager *auth.Manager
	spotify *services.SpotifyService
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	HTTPClient *http.Client     // used for both token exchanges and API calls; defaults to a client with spotify.http_timeout
	Opener     shared.URLOpener // opens the authorization URL; defaults to the system browser
	APIBaseURL string           // defaults to the Spotify Web API
	Endpoint   oauth2.Endpoint  // defaults to the Spotify accounts service
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Opener == nil {
		opts.Opener = shared.OpenBrowser
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		httpClient: opts.HTTPClient,
		opener:     opts.Opener,
		apiBaseURL: opts.APIBaseURL,
		endpoint:   opts.Endpoint,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		authCommand, exportCommand, historyCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads configuration and configures logging ahead of any command.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.IsSet("config") || r.configPath == "" {
		r.configPath = cmd.String("config")
	}
	if err := r.loadConfig(); err != nil {
		return ctx, err
	}
	if level := cmd.String("log-level"); level != "" {
		r.config.Log.Level = level
	}
	r.configureLogger(false)
	return ctx, nil
}

// After releases the database and log file.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	return r.Close()
}

// Close releases resources opened by commands. It is safe to call more than once.
func (r *Runner) Close() error {
	var firstErr error
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close database: %w", err)
		}
		r.db, r.runs, r.events = nil, nil, nil
	}
	if r.logCloser != nil {
		if err := r.logCloser.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close log file: %w", err)
		}
		r.logCloser = nil
	}
	return firstErr
}

func (r *Runner) loadConfig() error {
	if r.config != nil {
		return nil
	}

	config, found, err := shared.LoadConfigOrDefault(r.configPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrInvalidConfig, r.configPath, err)
	}
	if !found {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}
	r.config = config
	return nil
}

// configureLogger applies the log section of the config. With fileOnly, nothing is written to the
// terminal, which keeps the TUI clean.
func (r *Runner) configureLogger(fileOnly bool) {
	if r.config.Log.File == "" && !fileOnly {
		if level, err := log.ParseLevel(r.config.Log.Level); err == nil {
			shared.SetLogLevel(r.logger, level)
		}
		return
	}

	if r.logCloser != nil {
		_ = r.logCloser.Close()
	}
	r.logger, r.logCloser = shared.NewFileLogger(nil, r.config.Log, fileOnly)
}

// openDatabase opens and migrates the history database. When required is false a failure is
// logged and the command continues without history.
func (r *Runner) openDatabase(required bool) error {
	if r.db != nil {
		return nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err == nil {
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
		var applied int
		if applied, err = shared.RunMigrations(db); err != nil {
			db.Close()
		} else if applied > 0 {
			r.logger.Debug("applied migrations", "count", applied)
		}
	}

	if err != nil {
		if required {
			return fmt.Errorf("failed to open database %s: %w", r.config.Database.Path, err)
		}
		r.logger.Warn("export history disabled", "path", r.config.Database.Path, "error", err)
		return nil
	}

	r.db = db
	r.runs = repositories.NewExportRunRepository(db)
	r.events = repositories.NewAuthEventRepository(db)
	return nil
}

// initAuth builds the OAuth client, the token manager, and the Spotify client from config.
func (r *Runner) initAuth() error {
	if r.manager != nil {
		return nil
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	logger := shared.WithLogger(r.logger, "component", "auth")
	httpClient := r.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: r.config.Spotify.HTTPTimeout.Duration}
	}

	clientOpts := auth.ClientOptionsFromConfig(r.config)
	clientOpts.HTTPClient = httpClient
	if r.endpoint.TokenURL != "" {
		clientOpts.Endpoint = r.endpoint
	}
	client := auth.NewOAuthClient(clientOpts)

	r.tokens = auth.NewTokenFile(r.config.Auth.TokenFile)
	finalizer := auth.NewFinalizer(r.config.Spotify.Grant, client, r.tokens, logger)
	flow := auth.NewInteractiveFlow(client, finalizer, auth.FlowOptions{
		ListenAddr: r.config.ListenAddr(),
		Timeout:    r.config.Server.Timeout.Duration,
		Open:       r.opener,
		Notify:     r.notifyAuthURL,
	}, logger)

	var events auth.EventRecorder
	if r.events != nil {
		events = r.events
	}

	r.manager = auth.NewManager(auth.ManagerOptions{
		Grant:         r.config.Spotify.Grant,
		Authorizer:    flow,
		Refresher:     client,
		Store:         r.tokens,
		RefreshMargin: r.config.Auth.RefreshMargin.Duration,
		Events:        events,
	}, logger)

	r.spotify = services.NewSpotifyService(r.manager, services.SpotifyOptions{
		BaseURL:    r.apiBaseURL,
		HTTPClient: httpClient,
		RateLimit:  r.config.Export.RateLimit,
	}, shared.WithLogger(r.logger, "component", "spotify"))
	return nil
}

func (r *Runner) notifyAuthURL(authURL string) {
	r.writePlain("Opening your browser to authorize spotx.\n")
	r.writePlain("If it does not open, visit:\n\n  %s\n\n", authURL)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
