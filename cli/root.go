// ABOUTME: Root cobra command and shared command state
// ABOUTME: Loads configuration, builds the logger and constructs the Edumate and FSI clients
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/harperreed/patronsync/config"
	"github.com/harperreed/patronsync/db"
	"github.com/harperreed/patronsync/edumate"
	"github.com/harperreed/patronsync/fsi"
	"github.com/harperreed/patronsync/logging"
	"github.com/harperreed/patronsync/sync"
)

// ContactClient is the Edumate side of a sync.
type ContactClient interface {
	sync.ContactSource
	Authenticate(ctx context.Context) error
}

// PatronClient is the FSI side of a sync.
type PatronClient interface {
	sync.PatronStore
	Authenticate(ctx context.Context) error
	GetPatron(ctx context.Context, email string) (any, error)
}

// App holds state shared by every command.
type App struct {
	Version string

	// NewContactClient and NewPatronClient build the remote clients from
	// the loaded configuration.
	NewContactClient func(cfg *config.Config) ContactClient
	NewPatronClient  func(cfg *config.Config) PatronClient

	// Out receives command output; logs go to the logger.
	Out io.Writer

	configFile string
	logLevel   string
	logFormat  string
	verbose    bool
	dbPath     string

	cfg       *config.Config
	logCloser io.Closer
}

// NewApp creates an App wired to the real Edumate and FSI clients.
func NewApp(version string) *App {
	return &App{
		Version:          version,
		NewContactClient: newEdumateClient,
		NewPatronClient:  newFSIClient,
		Out:              os.Stdout,
	}
}

func newEdumateClient(cfg *config.Config) ContactClient {
	return edumate.NewClient(edumate.Config{
		BaseURL:      cfg.Edumate.URL,
		AuthURL:      cfg.Edumate.AuthURL,
		ClientID:     cfg.Edumate.ClientID,
		ClientSecret: cfg.Edumate.ClientSecret,
		Timeout:      cfg.HTTPTimeout,
	})
}

func newFSIClient(cfg *config.Config) PatronClient {
	return fsi.NewClient(fsi.Config{
		URL:       cfg.FSI.URL,
		APIKey:    cfg.FSI.APIKey,
		APISecret: cfg.FSI.APISecret,
		PageSize:  cfg.FSI.PageSize,
		Timeout:   cfg.HTTPTimeout,
	})
}

// NewRootCommand builds the full command tree.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "patronsync",
		Short: "Sync Edumate staff and students into FSI library patrons",
		Long: `patronsync reads the current staff and student rosters from Edumate,
compares them with the patrons held by the FSI library system and creates or
updates patrons so that names, emails and class grades match the roster.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: app.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&app.configFile, "config", "", "config file (default is ./patronsync.yaml or $XDG_CONFIG_HOME/patronsync/patronsync.yaml)")
	flags.StringVar(&app.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.StringVar(&app.logFormat, "log-format", "", "log format: auto, console, json")
	flags.BoolVarP(&app.verbose, "verbose", "v", false, "shortcut for --log-level debug")
	flags.StringVar(&app.dbPath, "db-path", "", "run history database path")

	root.AddCommand(
		newSyncCommand(app),
		newPlanCommand(app),
		newStatusCommand(app),
		newPatronCommand(app),
		newVersionCommand(app),
	)
	return root
}

// Execute runs the command tree with args.
func Execute(ctx context.Context, app *App, args []string) error {
	root := NewRootCommand(app)
	root.SetArgs(args)
	root.SetOut(app.Out)
	err := root.ExecuteContext(ctx)
	app.closeLog()
	return err
}

// closeLog releases the log output opened by setup.
func (a *App) closeLog() {
	if a.logCloser == nil {
		return
	}
	_ = a.logCloser.Close()
	a.logCloser = nil
}

// setup loads configuration and installs the logger before any command runs.
func (a *App) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}

	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	a.cfg = cfg

	a.closeLog()
	logger, closer := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	a.logCloser = closer
	logging.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.WithLogger(ctx, &logger))

	if cfg.ConfigFile != "" {
		logger.Debug().Str("file", cfg.ConfigFile).Msg("Loaded config file")
	}
	return nil
}

// openHistory opens the run history store.
func (a *App) openHistory() (*sql.DB, *db.RunsRepository, error) {
	database, err := db.OpenDatabase(a.cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return database, db.NewRunsRepository(database), nil
}
