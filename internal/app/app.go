package app

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"doiver/internal/archive"
	"doiver/internal/config"
	"doiver/internal/database"
	"doiver/internal/debounce"
	"doiver/internal/doiver"
	"doiver/internal/encryption"
	"doiver/internal/httpapi"
	"doiver/internal/model"
)

// App is the application layer between the CLI and the registrar Service.
// It constructs all dependencies from config, exposes high-level operations,
// and manages the store lifecycle on Close.
type App struct {
	cfg       *config.Config
	store     doiver.Store
	service   *doiver.Service
	encryptor doiver.Encryptor
	logger    doiver.Logger
	op        *Operation
	logFile   *os.File
}

// NewApp creates a fully wired App from the given config.
// operation identifies the command being run (e.g. "Publish", "RecordUpdate").
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	// In-memory stores get the schema applied directly by the factory;
	// only persistent databases carry a migration version to check.
	if cfg.Database.Type != "memory" {
		if err := store.CheckMigrations(); err != nil {
			store.Close()
			return nil, fmt.Errorf("database schema out of date: %w", err)
		}
	}

	clock := doiver.RealClock{}

	deb, err := debounce.NewDebouncerFromConfig(cfg.Debounce, clock)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating debouncer: %w", err)
	}

	arc, err := archive.NewArchiveFromConfig(cfg.Archive)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating archive: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	doigen := doiver.NewDOIGenerator(cfg.Registrar.DOIPrefix, doiver.UUIDGenerator{})
	adapter := &slogAdapter{l: logger}
	svc := doiver.NewService(store, deb, arc, enc, doigen, adapter, clock, doiver.UUIDGenerator{})
	op := NewOperation(operation, "")

	return &App{
		cfg:       cfg,
		store:     store,
		service:   svc,
		encryptor: enc,
		logger:    adapter,
		op:        op,
		logFile:   logFile,
	}, nil
}

// persistOperation saves the operation record to the store, giving it an
// auto-increment ID. Only called for store-mutating commands.
func (a *App) persistOperation() error {
	if a.op.Persisted() {
		return nil // already persisted
	}
	dbOp, err := a.store.CreateOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// Publish handles a first-publish event for an article.
func (a *App) Publish(slug string, title string, content string) (*model.Article, error) {
	a.op.Parameters = slug
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	return a.service.Publish(slug, title, content)
}

// RecordUpdate handles an update notification for an article.
// Returns the new version, or 0 when the update was a silent skip.
func (a *App) RecordUpdate(slug string, content string, previousStatus string) (int64, error) {
	a.op.Parameters = slug
	if err := a.persistOperation(); err != nil {
		return 0, err
	}
	return a.service.RecordUpdate(slug, content, previousStatus)
}

// Resolve maps a slug and an optional version label to the snapshot to display.
func (a *App) Resolve(slug string, requested string) (*model.Article, *model.Snapshot, error) {
	return a.service.Resolve(slug, requested)
}

// ListVersions returns an article and its snapshots, oldest first.
func (a *App) ListVersions(slug string) (*model.Article, []*model.Snapshot, error) {
	return a.service.ListVersions(slug)
}

// GetHistory returns the most recent registrar operations.
func (a *App) GetHistory(limit int) ([]*model.RegistrarOperation, error) {
	return a.service.GetHistory(limit)
}

// ArchiveSync uploads unarchived snapshot bodies to the preservation archive.
func (a *App) ArchiveSync() (int, error) {
	if err := a.persistOperation(); err != nil {
		return 0, err
	}
	return a.service.ArchiveSync()
}

// SetupKeys generates the archive encryption key pair.
func (a *App) SetupKeys(passphrase string) error {
	if a.encryptor == nil {
		return fmt.Errorf("no encryption configured")
	}
	return a.encryptor.Setup(passphrase)
}

// Migrate brings the database schema to the latest version. It opens the
// store directly rather than going through NewApp, which refuses to start
// on an out-of-date schema.
func Migrate(cfg *config.Config) error {
	if cfg.Database.Type == "memory" {
		return nil
	}

	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer store.Close()

	return store.MigrateUp()
}

// Serve runs the HTTP surface until the listener fails.
func (a *App) Serve() error {
	if a.cfg.HTTP.TokenSecret == "" {
		return fmt.Errorf("http.token_secret must be set to serve")
	}

	ttl := time.Duration(a.cfg.HTTP.TokenTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	tokens, err := httpapi.NewTokenSource(a.cfg.HTTP.TokenSecret, ttl, doiver.RealClock{})
	if err != nil {
		return fmt.Errorf("creating token source: %w", err)
	}

	handler := httpapi.NewHandler(a.service, tokens, a.logger)

	server := &http.Server{
		Addr:         a.cfg.HTTP.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	a.logger.Info("listening", "addr", a.cfg.HTTP.ListenAddr)
	return server.ListenAndServe()
}

// Close finalizes the operation record and closes all resources.
func (a *App) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.store.FinishOperation(a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.store.Close(); err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("closing store: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
