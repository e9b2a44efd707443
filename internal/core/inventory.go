package core

import (
	"cultureplan/internal/composition"
	"cultureplan/pkg/domain"
)

// inventory adapts a catalog snapshot to the lookups planning needs. Item
// labels are the names of their container types, which carry the stock
// concentration for inducer stocks.
type inventory struct {
	view TransactionView
}

func newInventory(view TransactionView) inventory {
	return inventory{view: view}
}

func sampleRef(s Sample) composition.SampleRef {
	props := make(map[string]string, len(s.Properties))
	for k, v := range s.Properties {
		props[k] = v
	}
	return composition.SampleRef{ID: s.ID, Name: s.Name, Properties: props}
}

func (inv inventory) itemRef(item Item) composition.ItemRef {
	ref := composition.ItemRef{ID: item.ID}
	if ot, ok := inv.view.FindObjectType(item.ObjectTypeID); ok {
		ref.Label = ot.Name
	}
	return ref
}

// SampleByName implements conditions.Inventory.
func (inv inventory) SampleByName(name string) (composition.SampleRef, bool) {
	s, ok := inv.view.FindSampleByName(name)
	if !ok {
		return composition.SampleRef{}, false
	}
	return sampleRef(s), true
}

// Item implements conditions.Inventory. Discarded items are not returned.
func (inv inventory) Item(id string) (composition.ItemRef, bool) {
	item, ok := inv.view.FindItem(id)
	if !ok || item.Deleted() {
		return composition.ItemRef{}, false
	}
	return inv.itemRef(item), true
}

// Items implements conditions.Inventory.
func (inv inventory) Items(sample composition.SampleRef) []composition.ItemRef {
	var out []composition.ItemRef
	for _, item := range inv.view.ItemsForSample(sample.ID) {
		if item.Deleted() {
			continue
		}
		out = append(out, inv.itemRef(item))
	}
	return out
}

// FindAliquot implements composition.AliquotFinder: the oldest live antibiotic
// aliquot of the sample.
func (inv inventory) FindAliquot(sample composition.SampleRef) (composition.ItemRef, bool) {
	for _, ref := range inv.Items(sample) {
		if ref.Label == domain.ObjectTypeAntibioticAliquot {
			return ref, true
		}
	}
	return composition.ItemRef{}, false
}
