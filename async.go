package mongofam

import (
	"context"
	"errors"
	"sync"

	"github.com/maxbolgarin/gorder"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// AsyncDatabase is a database client that queues findAndModify commands without waiting for them to complete.
// Tasks with the same queue key are executed in order.
// It is safe for concurrent use by multiple goroutines.
type AsyncDatabase struct {
	db    *Database
	queue *gorder.Gorder[string]
	log   gorder.Logger

	colls map[string]*AsyncCollection
	mu    sync.Mutex
}

func newAsyncDatabase(ctx context.Context, db *Database, workers int, logger gorder.Logger) *AsyncDatabase {
	return &AsyncDatabase{
		db: db,
		queue: gorder.New[string](ctx, gorder.Options{
			Workers: workers,
			Logger:  logger,
			Retries: DefaultAsyncRetries,
		}),
		log:   logger,
		colls: make(map[string]*AsyncCollection),
	}
}

// Database returns the underlying Database.
func (m *AsyncDatabase) Database() *Database {
	return m.db
}

// AsyncCollection returns an async collection object by name.
func (m *AsyncDatabase) AsyncCollection(name string) *AsyncCollection {
	m.mu.Lock()
	defer m.mu.Unlock()

	if coll, ok := m.colls[name]; ok {
		return coll
	}
	coll := &AsyncCollection{
		coll:  m.db.Collection(name),
		queue: m.queue,
		log:   m.log,
	}
	m.colls[name] = coll

	return coll
}

// WithTransaction executes fn inside a transaction asynchronously.
// Empty queueKey and taskName are replaced with names derived from the database name.
func (m *AsyncDatabase) WithTransaction(queueKey, taskName string, fn func(ctx context.Context) error) {
	if queueKey == "" {
		queueKey = m.db.db.Name()
	}
	if taskName == "" {
		taskName = m.db.db.Name() + "_transaction"
	}
	m.queue.Push(queueKey, taskName, func(ctx context.Context) error {
		_, err := m.db.WithTransaction(ctx, func(ctx context.Context) (any, error) {
			return nil, fn(ctx)
		})
		return err
	})
}

// WithTask adds a function to execute it asynchronously.
// Unlike collection methods it retries on any returned error.
func (m *AsyncDatabase) WithTask(queueKey, taskName string, fn func(ctx context.Context) error) {
	if queueKey == "" {
		queueKey = m.db.db.Name()
	}
	if taskName == "" {
		taskName = m.db.db.Name() + "_task"
	}
	m.queue.Push(queueKey, taskName, fn)
}

// AsyncCollection queues findAndModify commands of a collection.
// It is safe for concurrent use by multiple goroutines.
type AsyncCollection struct {
	coll  *Collection
	queue *gorder.Gorder[string]
	log   gorder.Logger
}

// Name returns the name of the collection.
func (ac *AsyncCollection) Name() string {
	return ac.coll.Name()
}

// FindOneAndUpdate queues an update of a document found by filter.
// The returned document is passed to onDone if it is not nil. onDone is not called if the task fails.
// An upsert without ReturnNew succeeds with a nil document.
// It retries failed commands for DefaultAsyncRetries times, except for errors that cannot be fixed by a retry,
// which are logged: ErrNotFound, ErrDuplicate, ErrInvalidArgument, ErrDecode and ErrWriteConcern.
func (ac *AsyncCollection) FindOneAndUpdate(queueKey, taskName string, filter, update M, onDone func(doc bson.Raw), opts ...FindAndModifyOptions) {
	ac.push(queueKey, taskName, "find_one_and_update", onDone, Change{Update: update}, filter, opts...)
}

// FindOneAndReplace queues a replacement of a document found by filter.
// Retries and onDone behave as in FindOneAndUpdate.
func (ac *AsyncCollection) FindOneAndReplace(queueKey, taskName string, replacement any, filter M, onDone func(doc bson.Raw), opts ...FindAndModifyOptions) {
	ac.push(queueKey, taskName, "find_one_and_replace", onDone, Change{Replacement: replacement}, filter, opts...)
}

// FindOneAndDelete queues a deletion of a document found by filter.
// Retries and onDone behave as in FindOneAndUpdate.
func (ac *AsyncCollection) FindOneAndDelete(queueKey, taskName string, filter M, onDone func(doc bson.Raw), opts ...FindAndModifyOptions) {
	ac.push(queueKey, taskName, "find_one_and_delete", onDone, Change{Remove: true}, filter, opts...)
}

func (ac *AsyncCollection) push(queueKey, taskName, opName string, onDone func(bson.Raw), change Change, filter M, opts ...FindAndModifyOptions) {
	if queueKey == "" {
		queueKey = ac.coll.Name()
	}
	if taskName == "" {
		taskName = ac.coll.Name() + "_" + opName
	}
	ac.queue.Push(queueKey, taskName, func(ctx context.Context) error {
		var doc bson.Raw
		_, err := ac.coll.Apply(ctx, &doc, filter, change, opts...)
		if err != nil {
			return ac.handleRetryError(err, taskName)
		}
		if onDone != nil {
			onDone(doc)
		}
		return nil
	})
}

func (ac *AsyncCollection) handleRetryError(err error, taskName string) error {
	var wce *WriteConcernException

	switch {
	case errors.As(err, &wce):
		// the write took effect, a retry would apply it twice
		ac.log.Error("write concern error", "error", err, "code", wce.WriteConcernError.Code,
			"address", wce.Address, "collection", ac.coll.Name(), "task", taskName, "flow", "async")
		return nil

	case errors.Is(err, ErrNotFound):
		ac.log.Error("document not found", "error", err, "collection", ac.coll.Name(), "task", taskName, "flow", "async")
		return nil

	case errors.Is(err, ErrDuplicate):
		ac.log.Error("duplicate key error", "error", err, "collection", ac.coll.Name(), "task", taskName, "flow", "async")
		return nil

	case errors.Is(err, ErrDecode):
		ac.log.Error("decode error", "error", err, "collection", ac.coll.Name(), "task", taskName, "flow", "async")
		return nil

	case errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrBadValue) ||
		errors.Is(err, ErrIndexNotFound) || errors.Is(err, ErrImmutableField) ||
		errors.Is(err, ErrDocumentValidationFailure) || errors.Is(err, ErrMalformedReply):
		ac.log.Error("invalid argument error", "error", err, "collection", ac.coll.Name(), "task", taskName, "flow", "async")
		return nil

	default: // network, timeout, server and other errors should be retried
		return err
	}
}
