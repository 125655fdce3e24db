// Package engine provides the coordinating layer between the host-facing
// API and the storage core. It owns the manager's lifecycle, guards every
// operation behind an atomic closed flag, and is the single place where the
// engine transitions between usable and shut down.
//
// The engine is generic over the record kind selected at construction; the
// host package instantiates it once per store. All operations are
// single-writer by contract: the engine adds no locking of its own, and an
// embedder that shares an instance across goroutines wraps it in a mutex.
package engine

import (
	"context"
	stdErrors "errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/iamNilotpal/ember/internal/data"
	"github.com/iamNilotpal/ember/internal/manager"
	"github.com/iamNilotpal/ember/pkg/errors"
	"github.com/iamNilotpal/ember/pkg/options"
)

var (
	// ErrEngineClosed is returned when attempting to perform operations on a closed engine.
	ErrEngineClosed = stdErrors.New("operation failed: cannot access closed engine")
)

// Engine coordinates the storage subsystems behind one lifecycle. It is
// the primary internal surface: the host package wraps it with the
// kind-specific conveniences.
type Engine[K any] struct {
	options *options.Options    // Configuration parameters for the engine and its subsystems.
	log     *zap.SugaredLogger  // Structured logging throughout the engine.
	closed  atomic.Bool         // Tracks the engine's lifecycle state.
	manager *manager.Manager[K] // Owns the WAL and the registered tables.
}

// Config holds all the parameters needed to initialize a new Engine instance.
type Config[K any] struct {
	Kind    data.Kind[K]
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// New creates and initializes an Engine, running the data-directory
// recovery scan before returning. A non-nil error means no resources are
// left open.
func New[K any](ctx context.Context, config *Config[K]) (*Engine[K], error) {
	if config == nil || config.Kind == nil || config.Options == nil || config.Logger == nil {
		return nil, errors.NewRequiredFieldError("config")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mgr, err := manager.Open(&manager.Config[K]{
		Kind:    config.Kind,
		Logger:  config.Logger,
		Options: config.Options,
	})
	if err != nil {
		return nil, err
	}

	return &Engine[K]{
		options: config.Options,
		log:     config.Logger,
		manager: mgr,
	}, nil
}

// Append accepts one record into the store. Rotation of a full WAL into a
// new table happens inside this call when needed.
func (e *Engine[K]) Append(ctx context.Context, rec data.Record[K]) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.manager.Append(rec)
}

// Find returns the newest record for the key. A found record may be a
// tombstone; interpreting it is the caller's concern. A successful Find
// reflects every Append that returned before it.
func (e *Engine[K]) Find(ctx context.Context, key K) (data.Record[K], bool, error) {
	var zero data.Record[K]

	if e.closed.Load() {
		return zero, false, ErrEngineClosed
	}
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	return e.manager.Find(key)
}

// Flush force-rotates the WAL into a table. An empty WAL is a successful
// no-op.
func (e *Engine[K]) Flush(ctx context.Context) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.manager.Flush()
}

// Compact merges two registered tables into one. The engine never decides
// to compact on its own; a policy built on Tables() drives this. A
// size-tiered policy that works well in practice: once four tables share
// the most populated level, merge that level's two oldest.
func (e *Engine[K]) Compact(ctx context.Context, aID, bID string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.manager.Compact(aID, bID)
}

// Tables describes every registered table, oldest first.
func (e *Engine[K]) Tables() []manager.TableInfo[K] {
	if e.closed.Load() {
		return nil
	}
	return e.manager.Tables()
}

// Close gracefully shuts down the engine and releases all associated
// resources: the WAL's two file handles and every table's mapping and
// descriptor. Only the first call performs the shutdown.
func (e *Engine[K]) Close() error {
	// Atomic compare-and-swap so only one caller transitions the engine
	// from open to closed.
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}

	e.log.Infow("Closing engine", "dataDir", e.options.DataDir)
	return e.manager.Close()
}
