// Package cli wires the cobra command tree of the painel CLI. Commands
// operate on collections through the facade layer, never on the database
// client directly, so every invocation exercises the same cache and
// coordination path the dashboard uses.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dmelo/painel/internal/cache"
	"github.com/dmelo/painel/internal/config"
	"github.com/dmelo/painel/internal/coordinator"
	"github.com/dmelo/painel/internal/database"
	"github.com/dmelo/painel/internal/domain"
	"github.com/dmelo/painel/internal/facade"
	"github.com/dmelo/painel/internal/logging"

	// Register the backend adapters.
	_ "github.com/dmelo/painel/internal/database/memstore"
	_ "github.com/dmelo/painel/internal/database/sqlitedb"
)

// EnvUser names the environment variable carrying the default principal id.
const EnvUser = "PAINEL_USER"

// app holds the wired infrastructure shared by every subcommand of one
// invocation. It is built in the root PersistentPreRunE and torn down in
// PersistentPostRunE.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	closeLog  func() error
	client    database.Client
	store     *cache.Store
	coord     *coordinator.Coordinator
	principal database.Principal
	cols      *domain.Collections
}

// rootFlags are the persistent flags of the root command.
type rootFlags struct {
	configPath string
	driver     string
	dsn        string
	user       string
	cacheTTL   int
	debug      bool
}

// NewRootCmd creates the root command for the painel CLI.
func NewRootCmd(ver string) *cobra.Command {
	a := &app{}
	var flags rootFlags

	cmd := &cobra.Command{
		Use:           "painel",
		Short:         "Personal dashboard data CLI",
		Long:          "painel: manage the collections behind the personal dashboard (concursos, atividades, transacoes, refeicoes)",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(flags)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown()
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file path (default $PAINEL_CONFIG, then ~/.painel/config.yaml)")
	cmd.PersistentFlags().StringVar(&flags.driver, "driver", "", "backend driver (memory, sqlite); overrides config")
	cmd.PersistentFlags().StringVar(&flags.dsn, "dsn", "", "backend connection string; overrides config")
	cmd.PersistentFlags().StringVar(&flags.user, "user", "", "principal id scoping all data access (default $PAINEL_USER)")
	cmd.PersistentFlags().IntVar(&flags.cacheTTL, "cache-ttl", 0, "cache TTL in seconds (0 = config default, overrides config file and env)")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newListCmd(a), newGetCmd(a), newAddCmd(a), newSetCmd(a), newRmCmd(a),
		newOverviewCmd(a), newCacheCmd(a), newDriversCmd(),
	)
	return cmd
}

// setup loads configuration and builds the shared infrastructure.
func (a *app) setup(flags rootFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.driver != "" {
		cfg.Database.Driver = flags.driver
	}
	if flags.dsn != "" {
		cfg.Database.DSN = flags.dsn
	}
	if flags.debug {
		cfg.Logging.Level = "debug"
	}
	a.cfg = cfg

	logger, closeLog, err := logging.New(cfg.LoggingConfig())
	if err != nil {
		return err
	}
	a.logger = logger
	a.closeLog = closeLog

	user := flags.user
	if user == "" {
		user = os.Getenv(EnvUser)
	}
	if user == "" {
		return database.WrapError(database.KindAuth, "no principal configured (use --user or PAINEL_USER)", database.ErrNoPrincipal)
	}
	a.principal = database.Principal{ID: user}

	client, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	if cfg.Database.RateLimit > 0 {
		burst := cfg.Database.RateBurst
		if burst <= 0 {
			burst = 1
		}
		client = database.RateLimited(client, cfg.Database.RateLimit, burst)
	}
	a.client = client

	// Precedence for the TTL: flag, then env, then config file, then default.
	ttl := cache.TTLFromEnv(cfg.CacheTTL())
	if flags.cacheTTL < 0 {
		return database.Errorf(database.KindValidation, "cache-ttl must be >= 0, got %d", flags.cacheTTL)
	}
	if flags.cacheTTL > 0 {
		ttl = time.Duration(flags.cacheTTL) * time.Second
	}
	cacheOpts := []cache.Option{
		cache.WithTTL(ttl),
		cache.WithLogger(logger),
	}
	if cfg.Cache.Disabled || !cache.EnabledFromEnv() {
		cacheOpts = append(cacheOpts, cache.Disabled())
	}
	a.store = cache.New(cacheOpts...)
	coordOpts := []coordinator.Option{coordinator.WithLogger(logger)}
	if cfg.Debounce > 0 {
		coordOpts = append(coordOpts, coordinator.WithDebounce(cfg.Debounce))
	}
	a.coord = coordinator.New(coordOpts...)

	cols, err := domain.NewCollections(domain.Deps{
		Client:      a.client,
		Cache:       a.store,
		Coordinator: a.coord,
		Retry:       cfg.RetryPolicy(),
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	a.cols = cols

	logger.Debug().
		Str("driver", cfg.Database.Driver).
		Str("user", user).
		Msg("painel ready")
	return nil
}

// teardown releases the client and the log file.
func (a *app) teardown() error {
	var firstErr error
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			firstErr = err
		}
	}
	if a.closeLog != nil {
		if err := a.closeLog(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// collection returns an untyped facade over table. The CLI's generic
// commands work on raw records so any collection name is addressable.
func (a *app) collection(table string) (*facade.Collection[database.Record], error) {
	return facade.NewCollection[database.Record](table, facade.Config{
		Client:      a.client,
		Cache:       a.store,
		Coordinator: a.coord,
		Retry:       a.cfg.RetryPolicy(),
		Logger:      a.logger,
	})
}

// newDriversCmd lists the registered backend adapters.
func newDriversCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drivers",
		Short: "List registered backend drivers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range database.Drivers() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
		// No backend needed; skip the root setup.
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
	}
}

const rootCmdExample = `  # List exams using the in-memory backend
  painel list concursos --driver memory --user ana

  # Add an activity to a sqlite-backed dashboard
  painel add atividades --data '{"titulo":"revisar portugues"}' --dsn ~/painel.db --user ana

  # Mark it done
  painel set atividades 01J0... --data '{"concluida":true}' --user ana

  # Aggregate view over all four areas
  painel overview --user ana

  # Inspect the read cache
  painel cache stats --user ana`
