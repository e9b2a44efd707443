package core

import (
	"context"

	"cultureplan/pkg/domain"
)

// RegisterSample persists a new sample definition.
func (s *Service) RegisterSample(ctx context.Context, sample Sample) (Sample, Result, error) {
	var (
		created Sample
		res     Result
	)
	err := s.run(ctx, opRegisterSample, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			created, err = tx.CreateSample(sample)
			return err
		})
		return created.ID, err
	})
	return created, res, err
}

// UpdateSample mutates a sample definition.
func (s *Service) UpdateSample(ctx context.Context, id string, mutator func(*Sample) error) (Sample, Result, error) {
	var (
		updated Sample
		res     Result
	)
	err := s.run(ctx, opUpdateSample, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			updated, err = tx.UpdateSample(id, mutator)
			return err
		})
		return id, err
	})
	return updated, res, err
}

// RegisterObjectType persists a container type.
func (s *Service) RegisterObjectType(ctx context.Context, objectType ObjectType) (ObjectType, Result, error) {
	var (
		created ObjectType
		res     Result
	)
	err := s.run(ctx, opRegisterObjectType, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			created, err = tx.CreateObjectType(objectType)
			return err
		})
		return created.ID, err
	})
	return created, res, err
}

// RegisterItem persists an item holding sampleName in a container named
// objectTypeName.
func (s *Service) RegisterItem(ctx context.Context, sampleName, objectTypeName, location string) (Item, Result, error) {
	var (
		created Item
		res     Result
	)
	err := s.run(ctx, opRegisterItem, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			view := tx.Snapshot()
			sample, ok := view.FindSampleByName(sampleName)
			if !ok {
				return ErrNotFound{Entity: EntitySample, ID: sampleName}
			}
			objectType, ok := view.FindObjectTypeByName(objectTypeName)
			if !ok {
				return ErrNotFound{Entity: EntityObjectType, ID: objectTypeName}
			}
			created, err = tx.CreateItem(Item{SampleID: sample.ID, ObjectTypeID: objectType.ID, Location: location})
			return err
		})
		return created.ID, err
	})
	return created, res, err
}

// DiscardItem marks an item deleted so planning no longer selects it.
func (s *Service) DiscardItem(ctx context.Context, id string) (Item, Result, error) {
	var (
		updated Item
		res     Result
	)
	err := s.run(ctx, opDiscardItem, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if _, ok := tx.FindItem(id); !ok {
				return ErrNotFound{Entity: EntityItem, ID: id}
			}
			updated, err = tx.UpdateItem(id, func(i *Item) error {
				i.Location = domain.LocationDeleted
				return nil
			})
			return err
		})
		return id, err
	})
	return updated, res, err
}

// PartAssociations returns the associations attached to the parts of a
// collection, keyed by coordinate.
func (s *Service) PartAssociations(ctx context.Context, collectionID, key string) (map[Coordinate]Association, error) {
	out := map[Coordinate]Association{}
	err := s.store.View(ctx, func(view TransactionView) error {
		if _, ok := view.FindCollection(collectionID); !ok {
			return ErrNotFound{Entity: EntityCollection, ID: collectionID}
		}
		for _, a := range view.AssociationsFor(EntityCollection, collectionID) {
			if a.Part != nil && a.Key == key {
				out[*a.Part] = a
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
