// Package syncengine is the sole network-facing half of the core: it owns
// every IMAP connection, drives the per-folder sync loop, drains the
// queued-operation table against the remote server, and is the only
// writer of emails, folder sync state and operation outcomes. The
// UI-facing API package reads the store this engine maintains and writes
// only new operations and folder sync resets.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"github.com/inboxd/mailsync/internal/credential"
	"github.com/inboxd/mailsync/internal/dirty"
	imapx "github.com/inboxd/mailsync/internal/imap"
	"github.com/inboxd/mailsync/internal/model"
	"github.com/inboxd/mailsync/internal/store"
)

// maxOpAttempts bounds how many times the engine retries a queued
// operation before giving up on it and leaving it for operator attention.
const maxOpAttempts = 3

// fetchTimeout bounds one passOnce call (every folder plus the op drain)
// against one account. Triggered syncs in run() are not bounded by it.
const fetchTimeout = 60 * time.Second

// Engine runs the sync loop for every configured account.
type Engine struct {
	vault            credential.Vault
	dirty            *dirty.Tracker
	logger           *logrus.Logger
	interval         time.Duration
	initialSyncLimit int

	mu      gosync.Mutex
	runners map[string]*accountRunner
}

// New returns an Engine. interval is the steady-state polling cadence; the
// ticker runs whether or not an IDLE session is active. initialSyncLimit caps how many of
// a folder's most recent messages a cold sync fetches; zero means no cap,
// i.e. fetch_initial mirrors the entire remote folder (the default per
// spec.md §4.3 — the single most important correctness decision).
func New(vault credential.Vault, tracker *dirty.Tracker, logger *logrus.Logger, interval time.Duration, initialSyncLimit int) *Engine {
	return &Engine{
		vault:            vault,
		dirty:            tracker,
		logger:           logger,
		interval:         interval,
		initialSyncLimit: initialSyncLimit,
		runners:          make(map[string]*accountRunner),
	}
}

// Register adds an account and its opened store to the engine. Must be
// called before Run.
func (e *Engine) Register(account model.Account, st *store.Store) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runners[account.Key()] = &accountRunner{
		engine:    e,
		account:   account,
		store:     st,
		triggerCh: make(chan string, 16),
	}
}

// Run starts every registered account's sync and op-drain loops, blocking
// until ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	runners := make([]*accountRunner, 0, len(e.runners))
	for _, r := range e.runners {
		runners = append(runners, r)
	}
	e.mu.Unlock()

	var wg gosync.WaitGroup
	for _, r := range runners {
		wg.Add(1)
		go func(r *accountRunner) {
			defer wg.Done()
			r.run(ctx)
		}(r)
	}
	wg.Wait()
	return nil
}

// TriggerSync requests an immediate out-of-band sync pass for
// account/folder, bypassing the steady-state ticker. Used by the API's Queue
// and ForceFullSync; the IDLE listener sends on the same channel directly.
func (e *Engine) TriggerSync(accountKey, folder string) {
	e.mu.Lock()
	r, ok := e.runners[accountKey]
	e.mu.Unlock()
	if !ok {
		return
	}
	select {
	case r.triggerCh <- folder:
	default:
	}
}

// RunOnce performs exactly one sync-and-drain pass for every registered
// account and returns. Used by --once.
func (e *Engine) RunOnce(ctx context.Context) error {
	e.mu.Lock()
	runners := make([]*accountRunner, 0, len(e.runners))
	for _, r := range e.runners {
		runners = append(runners, r)
	}
	e.mu.Unlock()

	for _, r := range runners {
		if err := r.passOnce(ctx); err != nil {
			return fmt.Errorf("syncing account %s: %w", r.account.Key(), err)
		}
	}
	return nil
}

// accountRunner owns the IMAP connection lifecycle and loop state for one
// account.
type accountRunner struct {
	engine    *Engine
	account   model.Account
	store     *store.Store
	triggerCh chan string

	mu        gosync.Mutex
	suspended bool
}

// isSuspended reports whether the account has been suspended after an
// authentication failure, per spec.md §4.3's retry policy.
func (r *accountRunner) isSuspended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suspended
}

func (r *accountRunner) suspend() {
	r.mu.Lock()
	r.suspended = true
	r.mu.Unlock()
}

// resume clears the suspension, per "until configuration changes or a
// manual retry" — force_full_sync is that manual retry.
func (r *accountRunner) resume() {
	r.mu.Lock()
	r.suspended = false
	r.mu.Unlock()
}

// run drives the steady-state loop: a ticker for periodic full passes, an
// IDLE listener for push wake-ups on the default folder, and the trigger
// channel for on-demand requests, until ctx is canceled.
func (r *accountRunner) run(ctx context.Context) {
	log := r.engine.logger.WithField("account", r.account.Key())

	if err := r.store.ClearStaleSyncFlags(ctx); err != nil {
		log.WithError(err).Warn("clearing stale sync flags")
	}

	ticker := time.NewTicker(r.engine.interval)
	defer ticker.Stop()

	if err := r.passOnce(ctx); err != nil {
		log.WithError(err).Error("initial sync pass failed")
	}

	go r.runIdle(ctx, log)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.passOnce(ctx); err != nil {
				log.WithError(err).Error("sync pass failed")
			}
		case folder := <-r.triggerCh:
			if err := r.syncOneFolder(ctx, folder); err != nil {
				log.WithError(err).WithField("folder", folder).Error("triggered sync failed")
			}
			if err := r.drainOps(ctx); err != nil {
				log.WithError(err).Error("draining operations after trigger")
			}
		}
	}
}

// passOnce syncs every known folder for the account once and drains the
// operation queue.
func (r *accountRunner) passOnce(ctx context.Context) error {
	if r.isSuspended() {
		return fmt.Errorf("account %s suspended after an authentication failure; force_full_sync to retry", r.account.Key())
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	folders, err := r.folders(ctx)
	if err != nil {
		if errors.Is(err, imapx.ErrAuthFailed) {
			r.suspend()
		}
		return err
	}

	for _, f := range folders {
		if err := r.syncOneFolder(ctx, f); err != nil {
			r.engine.logger.WithError(err).WithFields(logrus.Fields{
				"account": r.account.Key(), "folder": f,
			}).Error("folder sync failed")
		}
	}

	return r.drainOps(ctx)
}

// folders returns the remote folder list, registering any folder the store
// has not seen before.
func (r *accountRunner) folders(ctx context.Context) ([]string, error) {
	password, err := r.engine.vault.Get(r.account.Key(), credential.RoleIMAP)
	if err != nil {
		return nil, fmt.Errorf("resolving imap credential: %w", err)
	}

	c, err := imapx.Dial(r.account, password)
	if err != nil {
		return nil, err
	}
	defer imapx.Close(c)

	names, err := imapx.ListFolders(c)
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		if err := r.store.UpsertFolder(ctx, name); err != nil {
			return nil, err
		}
	}

	return names, nil
}

func (r *accountRunner) dial(ctx context.Context) (*client.Client, error) {
	password, err := r.engine.vault.Get(r.account.Key(), credential.RoleIMAP)
	if err != nil {
		return nil, fmt.Errorf("resolving imap credential: %w", err)
	}
	return imapx.Dial(r.account, password)
}
