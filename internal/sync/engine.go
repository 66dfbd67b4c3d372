package sync

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/backend"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/errors"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/history"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/logging"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/telemetry"
)

// Transport is the backend surface the engine pushes to and pulls
// from. *backend.Client implements it.
type Transport interface {
	UpsertScanEvents(ctx context.Context, events []backend.ScanEvent) error
	ScanEvents(ctx context.Context, userID string, since time.Time) ([]backend.ScanEvent, error)
}

// Session reports the signed-in identity. *auth.Manager implements it.
type Session interface {
	SignedIn() bool
	CurrentUserID() string
}

// Config controls engine batching.
type Config struct {
	// BatchSize is the number of outbox rows sent per push request.
	BatchSize int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() *Config {
	return &Config{BatchSize: 25}
}

// Result summarizes one sync pass.
type Result struct {
	StartedAt time.Time
	Duration  time.Duration
	Pushed    int
	Pulled    int
	Err       error
}

// Engine drives the two sync flows: pushing journaled mutations to the
// backend and seeding an empty local namespace from remote rows. It
// never merges remote state into a namespace that already has entries.
type Engine struct {
	transport Transport
	session   Session
	outbox    *Outbox
	store     *history.Store
	config    *Config
	logger    *logging.Logger

	mu        sync.Mutex
	syncing   bool
	lastSync  time.Time
	lastErr   error
	listeners []func(Result)
}

// NewEngine wires the engine. A nil config uses defaults. Stranded
// in_progress outbox rows from a previous crash are requeued here.
func NewEngine(transport Transport, session Session, outbox *Outbox, store *history.Store, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	e := &Engine{
		transport: transport,
		session:   session,
		outbox:    outbox,
		store:     store,
		config:    config,
		logger:    logging.Get().WithComponent("sync.engine"),
	}
	if err := outbox.Recover(); err != nil {
		e.logger.Error("recover outbox", err)
	}
	return e
}

// OnResult registers a listener invoked after every sync pass.
// Register listeners before the scheduler starts.
func (e *Engine) OnResult(fn func(Result)) {
	e.mu.Lock()
	e.listeners = append(e.listeners, fn)
	e.mu.Unlock()
}

// Sync runs one pass: pull (seeding only), then push. A pass already
// in flight yields ErrSyncBusy. A pull failure does not block the
// push; the push error wins when both fail.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	if !e.begin() {
		return nil, errors.New(errors.ErrSyncBusy, "sync already running")
	}

	result := &Result{StartedAt: time.Now()}

	pulled, pullErr := e.Pull(ctx)
	result.Pulled = pulled
	if pullErr != nil && !errors.Is(pullErr, errors.ErrSyncNotConfigured) {
		e.logger.Error("pull failed", pullErr)
	}

	pushed, pushErr := e.Push(ctx)
	result.Pushed = pushed

	result.Err = pushErr
	if result.Err == nil {
		result.Err = pullErr
	}
	result.Duration = time.Since(result.StartedAt)

	if result.Err == nil {
		if _, err := e.outbox.PurgeCompleted(); err != nil {
			e.logger.Warn("purge completed outbox rows", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	e.finish(result)
	return result, result.Err
}

func (e *Engine) begin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.syncing {
		return false
	}
	e.syncing = true
	return true
}

func (e *Engine) finish(result *Result) {
	e.mu.Lock()
	e.syncing = false
	e.lastSync = result.StartedAt
	e.lastErr = result.Err
	listeners := make([]func(Result), len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()

	if result.Err == nil {
		telemetry.Get().Record(telemetry.EventSyncCompleted, map[string]interface{}{
			"count":       result.Pushed + result.Pulled,
			"duration_ms": result.Duration.Milliseconds(),
		})
	}

	for _, fn := range listeners {
		fn(*result)
	}
}

// Push uploads due outbox events in batches. Each batch is claimed,
// sent as one upsert, and completed; a failed send reschedules every
// claimed row with backoff.
func (e *Engine) Push(ctx context.Context) (int, error) {
	if !e.session.SignedIn() {
		return 0, errors.New(errors.ErrSyncNotConfigured, "sign in to sync scan activity")
	}

	total := 0
	for {
		select {
		case <-ctx.Done():
			return total, errors.Wrap(errors.ErrSyncTimeout, "push cancelled", ctx.Err())
		default:
		}

		due, err := e.outbox.Due(e.config.BatchSize)
		if err != nil {
			return total, err
		}
		if len(due) == 0 {
			return total, nil
		}

		var (
			claimed []*models.OutboxEvent
			batch   []backend.ScanEvent
		)
		for _, event := range due {
			wire, err := toScanEvent(event)
			if err != nil {
				e.logger.ErrorWithCode("dropping undecodable outbox event",
					string(errors.ErrSyncFailed), err, map[string]interface{}{
						"event_id": string(event.ID),
					})
				if err := e.outbox.Discard(event); err != nil {
					return total, err
				}
				continue
			}
			if err := e.outbox.Claim(event); err != nil {
				return total, errors.Wrap(errors.ErrDatabase, "claim outbox event", err)
			}
			claimed = append(claimed, event)
			batch = append(batch, wire)
		}
		if len(batch) == 0 {
			continue
		}

		if err := e.transport.UpsertScanEvents(ctx, batch); err != nil {
			for _, event := range claimed {
				if rerr := e.outbox.Reschedule(event); rerr != nil {
					e.logger.Error("reschedule outbox event", rerr, map[string]interface{}{
						"event_id": string(event.ID),
					})
				}
			}
			return total, errors.Wrap(errors.ErrSyncFailed, "push scan events", err)
		}

		for _, event := range claimed {
			if cerr := e.outbox.Complete(event); cerr != nil {
				e.logger.Error("complete outbox event", cerr, map[string]interface{}{
					"event_id": string(event.ID),
				})
			}
		}
		total += len(batch)

		if len(due) < e.config.BatchSize {
			return total, nil
		}
	}
}

// Pull seeds the local store from remote scan events. It only runs
// against an empty namespace: existing local entries are authoritative
// and are never merged over. Returns the number of restored entries.
func (e *Engine) Pull(ctx context.Context) (int, error) {
	if !e.session.SignedIn() {
		return 0, errors.New(errors.ErrSyncNotConfigured, "sign in to sync scan activity")
	}
	if len(e.store.History()) > 0 || len(e.store.Favorites()) > 0 {
		return 0, nil
	}

	remote, err := e.transport.ScanEvents(ctx, e.session.CurrentUserID(), time.Time{})
	if err != nil {
		return 0, errors.Wrap(errors.ErrSyncFailed, "fetch remote scan events", err)
	}
	if len(remote) == 0 {
		return 0, nil
	}

	historyItems, favoriteItems := replayEvents(remote)
	if len(historyItems) == 0 && len(favoriteItems) == 0 {
		return 0, nil
	}

	e.store.Restore(historyItems, favoriteItems)
	e.logger.Info("seeded local lists from remote events", map[string]interface{}{
		"history":   len(historyItems),
		"favorites": len(favoriteItems),
	})
	return len(historyItems) + len(favoriteItems), nil
}

// Syncing reports whether a pass is in flight.
func (e *Engine) Syncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncing
}

// LastSync returns when the most recent pass started, zero if none ran.
func (e *Engine) LastSync() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSync
}

// LastError returns the most recent pass's error, nil on success.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// PendingCount returns the number of journaled mutations not yet
// pushed.
func (e *Engine) PendingCount() (int, error) {
	return e.outbox.PendingCount()
}

// toScanEvent rebuilds the wire event for an outbox row. The row id
// doubles as the remote primary key, so retried pushes upsert onto the
// same row instead of duplicating it.
func toScanEvent(event *models.OutboxEvent) (backend.ScanEvent, error) {
	var payload mirrorPayload
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return backend.ScanEvent{}, err
		}
	}
	wire := backend.ScanEvent{
		ID:          string(event.ID),
		UserID:      event.UserID,
		EventType:   event.EventType,
		ProductID:   payload.ProductID,
		SafetyLevel: payload.SafetyLevel,
		IsFavorite:  payload.IsFavorite,
		ProductData: payload.ProductData,
		ScannedAt:   payload.ScannedAt,
	}
	if wire.ScannedAt.IsZero() {
		wire.ScannedAt = time.Unix(event.CreatedAt, 0).UTC()
	}
	return wire, nil
}

// replayEvents reduces a remote event log to the two lists. Events are
// replayed newest first; the first event naming a product id decides
// its fate (last write wins), a removal acting as a tombstone. A
// history_cleared event voids every older scan event but leaves
// favorites alone, matching how clears behave locally.
func replayEvents(events []backend.ScanEvent) ([]models.ScanHistoryItem, []models.FavoriteItem) {
	sorted := make([]backend.ScanEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ScannedAt.After(sorted[j].ScannedAt)
	})

	var (
		historyItems  []models.ScanHistoryItem
		favoriteItems []models.FavoriteItem
		historyDone   = make(map[string]bool)
		favoriteDone  = make(map[string]bool)
		cleared       bool
	)
	for _, event := range sorted {
		switch event.EventType {
		case models.EventHistoryCleared:
			cleared = true
		case models.EventScanAdded:
			if cleared || event.ProductID == "" || historyDone[event.ProductID] {
				continue
			}
			historyDone[event.ProductID] = true
			if item, ok := itemFromEvent(event); ok {
				historyItems = append(historyItems, item)
			}
		case models.EventScanRemoved:
			if event.ProductID != "" {
				historyDone[event.ProductID] = true
			}
		case models.EventFavoriteAdded:
			if event.ProductID == "" || favoriteDone[event.ProductID] {
				continue
			}
			favoriteDone[event.ProductID] = true
			if item, ok := itemFromEvent(event); ok {
				favoriteItems = append(favoriteItems, item)
			}
		case models.EventFavoriteRemoved:
			if event.ProductID != "" {
				favoriteDone[event.ProductID] = true
			}
		}
	}
	return historyItems, favoriteItems
}

// itemFromEvent rebuilds a list entry from a remote event. Events
// without a usable product snapshot are skipped.
func itemFromEvent(event backend.ScanEvent) (models.ScanHistoryItem, bool) {
	if len(event.ProductData) == 0 {
		return models.ScanHistoryItem{}, false
	}
	var product models.Product
	if err := json.Unmarshal(event.ProductData, &product); err != nil || product.ID == "" {
		return models.ScanHistoryItem{}, false
	}

	level := models.SafetyLevel(event.SafetyLevel)
	if level == "" {
		level = models.SafetyUnknown
	}
	return models.ScanHistoryItem{
		Product:     product,
		ScannedAt:   event.ScannedAt,
		SafetyLevel: level,
		IsFavorite:  event.IsFavorite,
	}, true
}
