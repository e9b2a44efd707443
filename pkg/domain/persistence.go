package domain

import "context"

// Transaction exposes the catalog operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateSample(Sample) (Sample, error)
	UpdateSample(id string, mutator func(*Sample) error) (Sample, error)
	DeleteSample(id string) error
	CreateObjectType(ObjectType) (ObjectType, error)
	UpdateObjectType(id string, mutator func(*ObjectType) error) (ObjectType, error)
	DeleteObjectType(id string) error
	CreateItem(Item) (Item, error)
	UpdateItem(id string, mutator func(*Item) error) (Item, error)
	DeleteItem(id string) error
	CreateCollection(Collection) (Collection, error)
	UpdateCollection(id string, mutator func(*Collection) error) (Collection, error)
	DeleteCollection(id string) error
	PutAssociation(Association) (Association, error)
	DeleteAssociation(id string) error
	FindSample(id string) (Sample, bool)
	FindObjectType(id string) (ObjectType, bool)
	FindItem(id string) (Item, bool)
	FindCollection(id string) (Collection, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// for the planning pipeline.
type TransactionView interface {
	RuleView
	FindSampleByName(name string) (Sample, bool)
	FindObjectTypeByName(name string) (ObjectType, bool)
	ItemsForSample(sampleID string) []Item
	AssociationsFor(subject EntityType, subjectID string) []Association
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetSample(id string) (Sample, bool)
	ListSamples() []Sample
	GetObjectType(id string) (ObjectType, bool)
	ListObjectTypes() []ObjectType
	GetItem(id string) (Item, bool)
	ListItems() []Item
	GetCollection(id string) (Collection, bool)
	ListCollections() []Collection
	ListAssociations() []Association
}
