// Package memory provides an in-memory implementation of the catalog
// persistence store used for tests, planning dry runs and as the working
// state of the durable backends.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"cultureplan/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

type (
	// Sample aliases domain.Sample.
	Sample = domain.Sample
	// ObjectType aliases domain.ObjectType.
	ObjectType = domain.ObjectType
	// Item aliases domain.Item.
	Item = domain.Item
	// Collection aliases domain.Collection.
	Collection = domain.Collection
	// Association aliases domain.Association.
	Association = domain.Association
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// Store provides an in-memory transactional store for the catalog.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the time provider; nil restores the wall clock.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = func() time.Time { return time.Now().UTC() }
	}
	s.nowFn = fn
}

// RunInTransaction executes fn within a transactional snapshot. Rules run
// against the mutated snapshot before it replaces the committed state; a
// blocking violation discards every change.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the committed state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(newTransactionView(&snapshot))
}

// GetSample retrieves a sample by ID.
func (s *Store) GetSample(id string) (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.state.samples.get(id)
	return cloneSample(v), ok
}

// ListSamples returns all samples in insertion order.
func (s *Store) ListSamples() []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.samples.list(cloneSample)
}

// GetObjectType retrieves a container type by ID.
func (s *Store) GetObjectType(id string) (ObjectType, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.state.objectTypes.get(id)
	return cloneObjectType(v), ok
}

// ListObjectTypes returns all container types in insertion order.
func (s *Store) ListObjectTypes() []ObjectType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.objectTypes.list(cloneObjectType)
}

// GetItem retrieves an item by ID.
func (s *Store) GetItem(id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.items.get(id)
}

// ListItems returns all items in insertion order.
func (s *Store) ListItems() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.items.list(cloneItem)
}

// GetCollection retrieves a collection by ID.
func (s *Store) GetCollection(id string) (Collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.state.collections.get(id)
	return cloneCollection(v), ok
}

// ListCollections returns all collections in insertion order.
func (s *Store) ListCollections() []Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.collections.list(cloneCollection)
}

// ListAssociations returns all associations in insertion order.
func (s *Store) ListAssociations() []Association {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.associations.list(cloneAssociation)
}
