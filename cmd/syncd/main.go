// Command syncd is the sync engine process: the only process in the
// system that opens a network connection to an IMAP server. It mirrors
// every configured account's mailboxes into a local SQLite database per
// account and drains queued mutations against the remote server. A
// separate UI process reads the same databases through the store package
// and never imports this package's network-facing code.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inboxd/mailsync/internal/config"
	"github.com/inboxd/mailsync/internal/credential"
	"github.com/inboxd/mailsync/internal/dirty"
	"github.com/inboxd/mailsync/internal/store"
	"github.com/inboxd/mailsync/internal/syncengine"
)

var (
	version     = "dev"
	showVersion = flag.Bool("version", false, "show version information")
	once        = flag.Bool("once", false, "perform a single sync-and-drain pass per account, then exit")
	daemon      = flag.Bool("daemon", false, "run continuously until signaled; mutually exclusive with -once")
	configPath  = flag.String("config", "", "path to config.json (defaults to the platform config directory)")
	dbDir       = flag.String("database", "", "directory holding per-account SQLite databases (defaults alongside the config file)")
	intervalSec = flag.Int("interval", 0, "override the configured sync interval, in seconds")
	logLevel    = flag.String("log-level", "info", "log level: debug, info, warn, error")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("mailsync-syncd version %s\n", version)
		os.Exit(0)
	}

	if *once && *daemon {
		fmt.Fprintln(os.Stderr, "-once and -daemon are mutually exclusive")
		os.Exit(1)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.WithError(err).Error("loading configuration")
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	dataDir := *dbDir
	if dataDir == "" {
		dataDir = filepath.Join(filepath.Dir(cfgPath), "accounts")
	}

	vault := credential.New(filepath.Join(filepath.Dir(cfgPath), "credentials"))

	interval := time.Duration(cfg.Sync.IntervalSeconds) * time.Second
	if *intervalSec > 0 {
		interval = time.Duration(*intervalSec) * time.Second
	}

	tracker := dirty.New()
	engine := syncengine.New(vault, tracker, logger, interval, cfg.Sync.InitialSyncLimit)

	accounts := cfg.ModelAccounts()
	if len(accounts) == 0 {
		logger.Error("no accounts configured")
		os.Exit(1)
	}

	stores := make([]*store.Store, 0, len(accounts))
	defer func() {
		for _, st := range stores {
			st.Close()
		}
	}()

	for _, acc := range accounts {
		dbPath := filepath.Join(dataDir, acc.Key(), "emails.db")
		st, err := store.Open(dbPath)
		if err != nil {
			logger.WithError(err).WithField("account", acc.Key()).Error("opening account database")
			os.Exit(2)
		}
		stores = append(stores, st)
		engine.Register(acc, st)
		logger.WithFields(logrus.Fields{"account": acc.Key(), "database": dbPath}).Info("registered account")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *once {
		if err := engine.RunOnce(ctx); err != nil {
			logger.WithError(err).Error("sync pass failed")
			os.Exit(2)
		}
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := engine.Run(ctx); err != nil {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig).Info("received shutdown signal")
		cancel()
	case err := <-errCh:
		logger.WithError(err).Error("sync engine stopped unexpectedly")
		cancel()
		os.Exit(2)
	}

	logger.Info("shutting down")
}
