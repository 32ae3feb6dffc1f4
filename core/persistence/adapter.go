// Package persistence executes parsed commands against a DocumentStore and
// reports every outcome as a ResultEnvelope.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/asaidimu/go-docquery/core"
	"github.com/asaidimu/go-docquery/core/command"
	"github.com/asaidimu/go-events"
	"go.uber.org/zap"
)

// State is the connection state of an Adapter.
type State int

const (
	// StateDisconnected is the state of an adapter whose store could not be
	// opened or has been closed. It is terminal.
	StateDisconnected State = iota
	StateConnected
)

func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}

const (
	defaultStoreName = "Firestore"
	missingIndexHint = "For simpler queries, try removing the sorting or filtering."
)

// Result is the outcome of a successful operation.
type Result struct {
	Operation command.Operation
	ID        string
	Data      core.Document   // read
	Message   string          // delete
	Documents []core.Document // query
}

// Envelope converts the result into its success envelope.
func (r *Result) Envelope() *ResultEnvelope {
	return newSuccessEnvelope(r)
}

// Adapter executes commands against a DocumentStore. The store is opened
// once; an adapter that failed to open its store answers every call with an
// uninitialized error.
type Adapter struct {
	mu        sync.RWMutex
	store     DocumentStore
	state     State
	storeName string
	logger    *zap.Logger

	decorators map[string][]DocumentDecorator

	bus           *events.TypedEventBus[OperationEvent]
	subscriptions map[string]*SubscriptionInfo
	subMu         sync.RWMutex
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithStoreName sets the store name used in uninitialized and missing-index
// messages.
func WithStoreName(name string) Option {
	return func(a *Adapter) {
		if name != "" {
			a.storeName = name
		}
	}
}

// DocumentDecorator adds derived fields to a query result document. It runs
// after timestamps are normalized and the id is attached.
type DocumentDecorator func(doc core.Document)

// WithQueryDecorator runs decorate on every document a query of collection
// returns. Decorators for one collection run in registration order.
func WithQueryDecorator(collection string, decorate DocumentDecorator) Option {
	return func(a *Adapter) {
		if decorate == nil {
			return
		}
		if a.decorators == nil {
			a.decorators = make(map[string][]DocumentDecorator)
		}
		a.decorators[collection] = append(a.decorators[collection], decorate)
	}
}

func newAdapter(opts ...Option) *Adapter {
	a := &Adapter{
		storeName:     defaultStoreName,
		logger:        zap.NewNop(),
		subscriptions: make(map[string]*SubscriptionInfo),
	}
	for _, opt := range opts {
		opt(a)
	}

	bus, err := events.NewTypedEventBus[OperationEvent](events.DefaultConfig())
	if err != nil {
		a.logger.Warn("could not initialize event bus", zap.Error(err))
	} else {
		a.bus = bus
	}
	return a
}

// Connect opens the store with open and returns an adapter around it. A
// failure is logged and leaves the adapter disconnected; it is not retried.
func Connect(ctx context.Context, open OpenFunc, opts ...Option) *Adapter {
	a := newAdapter(opts...)
	store, err := open(ctx)
	if err == nil && store == nil {
		err = errors.New("store constructor returned no store")
	}
	if err != nil {
		a.logger.Warn("document store not initialized", zap.String("store", a.storeName), zap.Error(err))
		return a
	}
	a.store = store
	a.state = StateConnected
	return a
}

// NewAdapter returns a connected adapter around an open store. A nil store
// yields a disconnected adapter.
func NewAdapter(store DocumentStore, opts ...Option) *Adapter {
	a := newAdapter(opts...)
	if store != nil {
		a.store = store
		a.state = StateConnected
	}
	return a
}

// State returns the adapter's connection state.
func (a *Adapter) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Close closes the store and leaves the adapter disconnected.
func (a *Adapter) Close() error {
	a.mu.Lock()
	store := a.store
	a.store = nil
	a.state = StateDisconnected
	a.mu.Unlock()

	if store == nil {
		return nil
	}
	return store.Close()
}

func (a *Adapter) currentStore() (DocumentStore, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.state != StateConnected {
		return nil, core.NewError(core.KindUninitialized, fmt.Sprintf("%s client not initialized", a.storeName))
	}
	return a.store, nil
}

// Interact runs a raw command string and returns the result envelope as
// JSON.
func (a *Adapter) Interact(ctx context.Context, raw string) string {
	return a.Envelope(ctx, raw).String()
}

// Envelope runs a raw command string. It never panics and never returns
// nil: every failure, including a panic inside a store, is reported in the
// envelope.
func (a *Adapter) Envelope(ctx context.Context, raw string) (env *ResultEnvelope) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("recovered from panic while executing command", zap.Any("panic", r))
			env = NewErrorEnvelope(core.NewError(core.KindInternal, fmt.Sprint(r)))
		}
	}()

	if _, err := a.currentStore(); err != nil {
		return NewErrorEnvelope(err)
	}

	cmd, err := command.Parse(raw)
	if err != nil {
		a.logger.Warn("rejected command", zap.String("command", raw), zap.Error(err))
		return NewErrorEnvelope(err)
	}

	result, err := a.Execute(ctx, cmd)
	if err != nil {
		return NewErrorEnvelope(err)
	}
	return result.Envelope()
}

// Execute runs a parsed command. Errors are *core.Error values whose kind
// identifies the failure.
func (a *Adapter) Execute(ctx context.Context, cmd *command.Command) (*Result, error) {
	store, err := a.currentStore()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	a.emit(createEvent(EventTypeFor(cmd.Operation, PhaseStart), cmd, cmd.DocumentID, nil, nil, start))

	var result *Result
	switch cmd.Operation {
	case command.OperationRead:
		result, err = a.read(ctx, store, cmd)
	case command.OperationWrite:
		result, err = a.write(ctx, store, cmd)
	case command.OperationUpdate:
		result, err = a.update(ctx, store, cmd)
	case command.OperationDelete:
		result, err = a.delete(ctx, store, cmd)
	case command.OperationQuery:
		result, err = a.query(ctx, store, cmd)
	default:
		err = core.NewError(core.KindUnsupportedOperation, fmt.Sprintf("Unsupported operation: %s", cmd.Operation))
	}

	if err != nil {
		a.emit(createEvent(EventTypeFor(cmd.Operation, PhaseFailed), cmd, cmd.DocumentID, nil, err, start))
		return nil, err
	}
	a.emit(createEvent(EventTypeFor(cmd.Operation, PhaseSuccess), cmd, result.ID, eventOutput(result), nil, start))
	return result, nil
}

func eventOutput(r *Result) any {
	switch r.Operation {
	case command.OperationRead:
		return r.Data
	case command.OperationQuery:
		return r.Documents
	case command.OperationDelete:
		return r.Message
	}
	return nil
}

func notFound(cmd *command.Command) error {
	return core.NewError(core.KindNotFound,
		fmt.Sprintf("Document %s not found in collection %s", cmd.DocumentID, cmd.Collection))
}

func backendFailure(err error) error {
	if err == nil {
		return nil
	}
	var cerr *core.Error
	if errors.As(err, &cerr) {
		return err
	}
	return core.WrapError(core.KindBackendFailure, err.Error(), err)
}

func (a *Adapter) read(ctx context.Context, store DocumentStore, cmd *command.Command) (*Result, error) {
	doc, err := store.Get(ctx, cmd.Collection, cmd.DocumentID)
	if err != nil {
		a.logger.Error("Error reading document", zap.String("collection", cmd.Collection), zap.String("id", cmd.DocumentID), zap.Error(err))
		return nil, backendFailure(err)
	}
	if doc == nil {
		return nil, notFound(cmd)
	}
	return &Result{
		Operation: command.OperationRead,
		ID:        cmd.DocumentID,
		Data:      core.NormalizeTimestamps(doc.Clone()),
	}, nil
}

func (a *Adapter) write(ctx context.Context, store DocumentStore, cmd *command.Command) (*Result, error) {
	id := cmd.DocumentID
	var err error
	if id == "" {
		id, err = store.Add(ctx, cmd.Collection, core.Document(cmd.Data))
	} else {
		err = store.Set(ctx, cmd.Collection, id, core.Document(cmd.Data))
	}
	if err != nil {
		a.logger.Error("Error writing document", zap.String("collection", cmd.Collection), zap.String("id", id), zap.Error(err))
		return nil, backendFailure(err)
	}
	return &Result{Operation: command.OperationWrite, ID: id}, nil
}

func (a *Adapter) update(ctx context.Context, store DocumentStore, cmd *command.Command) (*Result, error) {
	err := store.Merge(ctx, cmd.Collection, cmd.DocumentID, cmd.Data)
	if errors.Is(err, core.ErrDocumentNotFound) || core.IsKind(err, core.KindNotFound) {
		return nil, notFound(cmd)
	}
	if err != nil {
		a.logger.Error("Error updating document", zap.String("collection", cmd.Collection), zap.String("id", cmd.DocumentID), zap.Error(err))
		return nil, backendFailure(err)
	}
	return &Result{Operation: command.OperationUpdate, ID: cmd.DocumentID}, nil
}

func (a *Adapter) delete(ctx context.Context, store DocumentStore, cmd *command.Command) (*Result, error) {
	doc, err := store.Get(ctx, cmd.Collection, cmd.DocumentID)
	if err == nil && doc == nil {
		return nil, notFound(cmd)
	}
	if err == nil {
		err = store.Delete(ctx, cmd.Collection, cmd.DocumentID)
	}
	if err != nil {
		a.logger.Error("Error deleting document", zap.String("collection", cmd.Collection), zap.String("id", cmd.DocumentID), zap.Error(err))
		return nil, backendFailure(err)
	}
	return &Result{
		Operation: command.OperationDelete,
		ID:        cmd.DocumentID,
		Message:   fmt.Sprintf("Document %s deleted successfully", cmd.DocumentID),
	}, nil
}

func (a *Adapter) query(ctx context.Context, store DocumentStore, cmd *command.Command) (*Result, error) {
	snapshots, err := a.runQuery(ctx, store, cmd)
	if err != nil {
		a.logger.Error("Error querying collection", zap.String("collection", cmd.Collection), zap.Error(err))
		if isMissingIndex(err) {
			return nil, &core.Error{
				Kind:    core.KindMissingIndex,
				Message: fmt.Sprintf("This query requires a %s index to be created.", a.storeName),
				Details: indexDetails(err),
				Hint:    missingIndexHint,
				Err:     err,
			}
		}
		return nil, backendFailure(err)
	}

	documents := make([]core.Document, 0, len(snapshots))
	for _, snap := range snapshots {
		doc := snap.Data.Clone()
		if doc == nil {
			doc = core.Document{}
		}
		doc["id"] = snap.ID
		doc = core.NormalizeTimestamps(doc)
		for _, decorate := range a.decorators[cmd.Collection] {
			decorate(doc)
		}
		documents = append(documents, doc)
	}
	return &Result{Operation: command.OperationQuery, Documents: documents}, nil
}

func (a *Adapter) runQuery(ctx context.Context, store DocumentStore, cmd *command.Command) ([]core.Snapshot, error) {
	cursor, err := store.Query(ctx, cmd.Collection, cmd.Query.DSL())
	if err != nil {
		return nil, err
	}
	return ReadAll(cursor)
}

// indexDetails returns the store's own description of the missing index.
func indexDetails(err error) string {
	var e *core.Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return err.Error()
}

// isMissingIndex reports whether err says the query needs an index the
// store does not have.
func isMissingIndex(err error) bool {
	if core.IsKind(err, core.KindMissingIndex) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "requires an index")
}
