package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cultureplan/pkg/domain"
)

func seedCatalog(t *testing.T, store *Store) (domain.Sample, domain.ObjectType, domain.ObjectType) {
	t.Helper()
	var (
		sample domain.Sample
		tube   domain.ObjectType
		plate  domain.ObjectType
	)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		if sample, err = tx.CreateSample(domain.Sample{Name: "NOR00001", SampleType: "Yeast Strain"}); err != nil {
			return err
		}
		if tube, err = tx.CreateObjectType(domain.ObjectType{Name: "Stock Tube"}); err != nil {
			return err
		}
		plate, err = tx.CreateObjectType(domain.ObjectType{
			Name: "96 Deep Well Plate", Rows: 8, Columns: 12,
			Data: map[string]string{domain.DataWorkingVolume: "1000_µL"},
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return sample, tube, plate
}

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.FindSample("missing"); ok {
			t.Fatalf("expected missing sample lookup")
		}
		created, err := tx.CreateSample(domain.Sample{Name: "Arabinose", SampleType: "Inducer"})
		if err != nil {
			return err
		}
		if created.ID == "" {
			t.Fatalf("expected generated ID")
		}
		if len(tx.Snapshot().ListSamples()) != 1 {
			t.Fatalf("snapshot mismatch")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	if len(store.ListSamples()) != 1 {
		t.Fatalf("expected persisted sample")
	}
	snapshot := store.ExportState()
	store.ImportState(Snapshot{})
	if len(store.ListSamples()) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if len(store.ListSamples()) != 1 {
		t.Fatalf("expected restored state")
	}
	if store.RulesEngine() == nil || store.NowFunc() == nil {
		t.Fatalf("expected rules engine and now func")
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock}}}, nil
}

func TestStoreRuleViolationDiscardsChanges(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateSample(domain.Sample{Name: "Fail"})
		return e
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	if len(store.ListSamples()) != 0 {
		t.Fatalf("blocked transaction must not commit")
	}
}

func TestStoreCallbackErrorDiscardsChanges(t *testing.T) {
	store := NewStore(nil)
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateSample(domain.Sample{Name: "Partial"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if len(store.ListSamples()) != 0 {
		t.Fatalf("expected no committed samples")
	}
}

func TestSampleNamesAreUnique(t *testing.T) {
	store := NewStore(nil)
	seedCatalog(t, store)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateSample(domain.Sample{Name: "NOR00001"})
		return err
	})
	if err == nil {
		t.Fatalf("expected duplicate name error")
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateSample(domain.Sample{})
		return err
	})
	if err == nil {
		t.Fatalf("expected missing name error")
	}
}

func TestItemsForSampleOldestFirst(t *testing.T) {
	store := NewStore(nil)
	sample, tube, _ := seedCatalog(t, store)
	var ids []string
	for i := 0; i < 3; i++ {
		_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
			item, err := tx.CreateItem(domain.Item{SampleID: sample.ID, ObjectTypeID: tube.ID})
			ids = append(ids, item.ID)
			return err
		})
		if err != nil {
			t.Fatalf("create item: %v", err)
		}
	}
	err := store.View(context.Background(), func(view domain.TransactionView) error {
		items := view.ItemsForSample(sample.ID)
		if len(items) != 3 {
			t.Fatalf("expected 3 items, got %d", len(items))
		}
		for i, item := range items {
			if item.ID != ids[i] {
				t.Fatalf("item %d: expected %s got %s", i, ids[i], item.ID)
			}
		}
		if got, ok := view.FindSampleByName("NOR00001"); !ok || got.ID != sample.ID {
			t.Fatalf("expected sample by name")
		}
		if _, ok := view.FindObjectTypeByName("Stock Tube"); !ok {
			t.Fatalf("expected object type by name")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestItemReferencesAreChecked(t *testing.T) {
	store := NewStore(nil)
	sample, tube, _ := seedCatalog(t, store)
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateItem(domain.Item{SampleID: "missing", ObjectTypeID: tube.ID})
		return err
	}); err == nil {
		t.Fatalf("expected unknown sample error")
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateItem(domain.Item{SampleID: sample.ID})
		return err
	}); err == nil {
		t.Fatalf("expected unknown object type error")
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateItem(domain.Item{SampleID: sample.ID, ObjectTypeID: tube.ID})
		return err
	}); err != nil {
		t.Fatalf("create item: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteSample(sample.ID)
	}); err == nil {
		t.Fatalf("expected referenced sample delete to fail")
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteObjectType(tube.ID)
	}); err == nil {
		t.Fatalf("expected referenced object type delete to fail")
	}
}

func TestUpdatePreservesIdentityAndStampsTime(t *testing.T) {
	store := NewStore(nil)
	sample, _, _ := seedCatalog(t, store)
	later := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return later })
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateSample(sample.ID, func(s *domain.Sample) error {
			s.ID = "hijack"
			s.Properties = map[string]string{"Media": "YPAD"}
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got, ok := store.GetSample(sample.ID)
	if !ok {
		t.Fatalf("sample lost after update")
	}
	if !got.UpdatedAt.Equal(later) || !got.CreatedAt.Equal(sample.CreatedAt) {
		t.Fatalf("unexpected timestamps: %+v", got.Base)
	}
	if v, _ := got.Property("Media"); v != "YPAD" {
		t.Fatalf("expected property update")
	}
	store.SetNowFunc(nil)
}

func TestCollectionsAndAssociations(t *testing.T) {
	store := NewStore(nil)
	_, tube, plate := seedCatalog(t, store)
	ctx := context.Background()
	matrix := [][]string{{"a", ""}, {"", ""}}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateCollection(domain.Collection{ObjectTypeID: tube.ID, Matrix: matrix})
		return err
	}); err == nil {
		t.Fatalf("expected non-gridded object type error")
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateCollection(domain.Collection{ObjectTypeID: plate.ID, Matrix: [][]string{{"a"}, {"a", "b"}}})
		return err
	}); err == nil {
		t.Fatalf("expected ragged matrix error")
	}

	var collection domain.Collection
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		collection, err = tx.CreateCollection(domain.Collection{ObjectTypeID: plate.ID, Matrix: matrix})
		if err != nil {
			return err
		}
		part := &domain.Coordinate{Row: 0, Column: 0}
		if _, err := tx.PutAssociation(domain.Association{Subject: domain.EntityCollection, SubjectID: collection.ID, Part: part, Key: "composition", Value: json.RawMessage(`{"v":1}`)}); err != nil {
			return err
		}
		_, err = tx.PutAssociation(domain.Association{Subject: domain.EntityCollection, SubjectID: collection.ID, Part: part, Key: "composition", Value: json.RawMessage(`{"v":2}`)})
		return err
	}); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	assocs := store.ListAssociations()
	if len(assocs) != 1 || string(assocs[0].Value) != `{"v":2}` {
		t.Fatalf("expected upserted association, got %+v", assocs)
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.PutAssociation(domain.Association{Subject: domain.EntityCollection, SubjectID: collection.ID, Part: &domain.Coordinate{Row: 5}, Key: "x"})
		return err
	}); err == nil {
		t.Fatalf("expected out-of-range part error")
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteCollection(collection.ID)
	}); err != nil {
		t.Fatalf("delete collection: %v", err)
	}
	if len(store.ListAssociations()) != 0 || len(store.ListCollections()) != 0 {
		t.Fatalf("expected cascading association delete")
	}
}

func TestReturnedValuesAreCopies(t *testing.T) {
	store := NewStore(nil)
	_, _, plate := seedCatalog(t, store)
	got, _ := store.GetObjectType(plate.ID)
	got.Data[domain.DataWorkingVolume] = "1_µL"
	again, _ := store.GetObjectType(plate.ID)
	if again.Data[domain.DataWorkingVolume] != "1000_µL" {
		t.Fatalf("store state leaked through returned map")
	}
}

func TestImportPreservesOrder(t *testing.T) {
	store := NewStore(nil)
	store.ImportState(Snapshot{Samples: []domain.Sample{
		{Base: domain.Base{ID: "z"}, Name: "Zeta"},
		{Base: domain.Base{ID: "a"}, Name: "Alpha"},
	}})
	samples := store.ListSamples()
	if len(samples) != 2 || samples[0].ID != "z" || samples[1].ID != "a" {
		t.Fatalf("expected snapshot order preserved, got %+v", samples)
	}
}
