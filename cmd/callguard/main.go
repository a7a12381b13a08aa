package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/haukened/callguard/internal/guard/common/clock"
	"github.com/haukened/callguard/internal/guard/common/log"
	"github.com/haukened/callguard/internal/guard/common/phone"
	"github.com/haukened/callguard/internal/guard/config"
	"github.com/haukened/callguard/internal/guard/gateways/addressbook"
	"github.com/haukened/callguard/internal/guard/repos/contacts"
	"github.com/haukened/callguard/internal/guard/repos/contacts/bloom"
	contactsbolt "github.com/haukened/callguard/internal/guard/repos/contacts/bolt"
	"github.com/haukened/callguard/internal/guard/repos/contacts/lru"
	"github.com/haukened/callguard/internal/guard/repos/journal"
	journalbolt "github.com/haukened/callguard/internal/guard/repos/journal/bolt"
	"github.com/haukened/callguard/internal/guard/services/dispatch"
	"github.com/haukened/callguard/internal/guard/services/filter"
	"github.com/haukened/callguard/internal/guard/services/screener"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "callguard"
)

// seams for tests
var (
	loadConfig       = config.Load
	configureLogging = log.Configure
)

// Application holds all the components of the call guard
type Application struct {
	config   *config.AppConfig
	clock    clock.Clock
	store    contacts.Store
	contacts contacts.Repository
	journal  journal.Store
	book     *addressbook.FileBook // nil when no address book is configured
	screener *screener.Screener

	metricsAddr string // bound metrics address while serving
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
	log.Sync()
}

// cli carries the loaded configuration from the root command to its children.
type cli struct {
	cfg *config.AppConfig
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           appName,
		Short:         "Screen incoming calls and messages against black and white lists",
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load configuration from environment
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			// Configure global logging
			if err := configureLogging(cfg.Env, cfg.Log.Level); err != nil {
				return fmt.Errorf("logging configuration error: %w", err)
			}
			c.cfg = cfg
			return nil
		},
	}
	root.AddCommand(
		c.newServeCmd(),
		c.newCheckCmd(),
		c.newContactsCmd(),
		c.newJournalCmd(),
		c.newHistoryCmd(),
	)
	return root
}

// withApp builds the application, runs fn and closes every store afterwards.
func (c *cli) withApp(fn func(app *Application) error) (err error) {
	app, err := buildApplication(c.cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, app.Close()) }()
	return fn(app)
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig) (_ *Application, err error) {
	// Create shared clock for consistent time across all components
	clk := clock.RealClock{}

	// Initialize logger (already configured globally)
	logger := log.GetLogger()

	normalizer, err := phone.NewNormalizer(cfg.Phone.PrivatePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid private number pattern: %w", err)
	}

	// a failed build releases whatever was opened
	app := &Application{config: cfg, clock: clk}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	// Build repository layer
	if err := buildRepositories(app, cfg, logger); err != nil {
		return nil, fmt.Errorf("failed to build repositories: %w", err)
	}

	// Build gateway layer
	var book filter.AddressBook = addressbook.Unavailable{}
	if cfg.AddressBook.Path != "" {
		app.book, err = buildAddressBook(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to build gateways: %w", err)
		}
		book = app.book
	}

	// Build service layer
	engine, err := filter.NewEngine(filter.EngineOptions{
		Contacts:      app.contacts,
		AddressBook:   book,
		History:       app.journal,
		Normalizer:    normalizer,
		Logger:        logger,
		LookupTimeout: cfg.Lookup.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build filter engine: %w", err)
	}
	dispatcher := dispatch.New(dispatch.Options{
		Journal:  app.journal,
		History:  app.journal,
		Notifier: dispatch.LogNotifier{Logger: logger.Named("notify")},
		Clock:    clk,
		Logger:   logger,
	})
	app.screener = screener.New(screener.Options{
		Evaluator:  engine,
		Dispatcher: dispatcher,
		Policies:   cfg,
		Logger:     logger,
	})
	return app, nil
}

// buildRepositories opens the contact and journal stores
func buildRepositories(app *Application, cfg *config.AppConfig, logger log.Logger) error {
	for _, path := range []string{cfg.Store.ContactsDB, cfg.Store.JournalDB} {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}

	store, err := contactsbolt.New(cfg.Store.ContactsDB)
	if err != nil {
		return fmt.Errorf("failed to open contacts store: %w", err)
	}
	app.store = store

	cache, err := lru.New(cfg.Store.CacheSize)
	if err != nil {
		return fmt.Errorf("failed to create lookup cache: %w", err)
	}
	repo, err := contacts.NewRepository(contacts.Options{
		Store:   store,
		Cache:   cache,
		Factory: bloom.NewFactory(),
		FPRate:  cfg.Store.BloomFPRate,
		Clock:   app.clock,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create contacts repository: %w", err)
	}
	app.contacts = repo

	js, err := journalbolt.New(cfg.Store.JournalDB)
	if err != nil {
		return fmt.Errorf("failed to open journal store: %w", err)
	}
	app.journal = js

	st := repo.Stats().Store
	log.Debug(map[string]any{
		"contacts_db": cfg.Store.ContactsDB,
		"journal_db":  cfg.Store.JournalDB,
		"contacts":    st.Contacts,
		"numbers":     st.Numbers,
		"cache_size":  cfg.Store.CacheSize,
	}, "Stores opened")
	return nil
}

// buildAddressBook loads the configured address book file
func buildAddressBook(cfg *config.AppConfig, logger log.Logger) (*addressbook.FileBook, error) {
	book, err := addressbook.NewFileBook(cfg.AddressBook.Path, logger)
	if err != nil {
		return nil, err
	}
	log.Debug(map[string]any{"path": cfg.AddressBook.Path, "numbers": book.Len()}, "Address book loaded")
	return book, nil
}

// Close releases the stores.
func (app *Application) Close() error {
	var err error
	if app.store != nil {
		err = multierr.Append(err, app.store.Close())
	}
	if app.journal != nil {
		err = multierr.Append(err, app.journal.Close())
	}
	return err
}
