// Package cli is the interactive REPL frontend of the Stepwise client. It
// wires the local store, the sync engine and the key provider together and
// maps user commands onto them.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/stepwise-app/stepwise/internal/client/config"
	"github.com/stepwise-app/stepwise/internal/client/remote"
	"github.com/stepwise-app/stepwise/internal/client/repositories/metadata"
	"github.com/stepwise-app/stepwise/internal/client/store"
	"github.com/stepwise-app/stepwise/internal/client/syncer"
	"github.com/stepwise-app/stepwise/internal/keyring"
	"github.com/stepwise-app/stepwise/internal/logging"
	"github.com/stepwise-app/stepwise/internal/netx"
	"github.com/stepwise-app/stepwise/internal/retryx"

	_ "modernc.org/sqlite"
)

// App owns the assembled client. One instance serves one REPL session.
type App struct {
	config   *config.Config
	store    *store.Store
	meta     metadata.Repository
	keystore *keyring.FileKeystore
	keys     *keyring.SessionProvider
	engine   *syncer.Engine
	monitor  *netx.Monitor
	log      logging.Logger

	reader *bufio.Reader
	out    io.Writer

	mu     sync.RWMutex
	userID string
	token  string

	closeDB func() error
}

// NewApp builds the full client from configuration. The database is opened
// and migrated here; the sync engine starts only after a successful login.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	if dir := filepath.Dir(cfg.DatabasePath); dir != "" && cfg.DatabasePath != ":memory:" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	keystore, err := keyring.NewFileKeystore(cfg.KeystoreDir)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &App{
		config:   cfg,
		store:    store.New(db, log),
		meta:     metadata.NewSQLiteRepository(db),
		keystore: keystore,
		keys:     keyring.NewSessionProvider(keystore),
		log:      log,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		closeDB:  db.Close,
	}

	api := remote.NewClient(cfg.ServerEndpointAddr, a.sessionToken, log)
	a.monitor = netx.NewMonitor(api, cfg.OnlineCheckInterval, cfg.RequestTimeout, log)
	a.engine = syncer.NewEngine(a.store, api, a.monitor, syncer.Options{
		Interval:       cfg.SyncInterval,
		RequestTimeout: cfg.RequestTimeout,
		BatchSize:      cfg.SyncBatchSize,
		Policy:         retryx.DefaultPolicy(),
	}, log)

	return a, nil
}

// Run starts the connectivity watcher and the REPL, and tears everything
// down when the user leaves.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.monitor.Run(ctx)

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.status, scanner)

	if a.isLoggedIn() {
		_ = a.Logout(ctx)
	}
	if err := a.closeDB(); err != nil {
		a.log.Error(ctx, "close database", "error", err)
	}
}

func (a *App) isLoggedIn() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userID != ""
}

func (a *App) currentUser() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userID
}

// sessionToken feeds the remote client's Authorization header.
func (a *App) sessionToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

func (a *App) status() string {
	state := "offline"
	if a.monitor.Online() {
		state = "online"
	}
	if user := a.currentUser(); user != "" {
		return user + " " + state
	}
	return state
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format+"\n", args...)
}
