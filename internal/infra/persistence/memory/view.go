package memory

import "cultureplan/pkg/domain"

// transactionView exposes a read-only snapshot of the transactional state.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) ListSamples() []Sample { return v.state.samples.list(cloneSample) }

func (v transactionView) ListObjectTypes() []ObjectType {
	return v.state.objectTypes.list(cloneObjectType)
}

func (v transactionView) ListItems() []Item { return v.state.items.list(cloneItem) }

func (v transactionView) ListCollections() []Collection {
	return v.state.collections.list(cloneCollection)
}

func (v transactionView) ListAssociations() []Association {
	return v.state.associations.list(cloneAssociation)
}

func (v transactionView) FindSample(id string) (Sample, bool) {
	s, ok := v.state.samples.get(id)
	return cloneSample(s), ok
}

func (v transactionView) FindObjectType(id string) (ObjectType, bool) {
	o, ok := v.state.objectTypes.get(id)
	return cloneObjectType(o), ok
}

func (v transactionView) FindItem(id string) (Item, bool) {
	return v.state.items.get(id)
}

func (v transactionView) FindCollection(id string) (Collection, bool) {
	c, ok := v.state.collections.get(id)
	return cloneCollection(c), ok
}

// FindSampleByName returns the first sample registered under name.
func (v transactionView) FindSampleByName(name string) (Sample, bool) {
	return v.state.samples.find(cloneSample, func(s Sample) bool { return s.Name == name })
}

// FindObjectTypeByName returns the first container type registered under name.
func (v transactionView) FindObjectTypeByName(name string) (ObjectType, bool) {
	return v.state.objectTypes.find(cloneObjectType, func(o ObjectType) bool { return o.Name == name })
}

// ItemsForSample lists the items holding sampleID, oldest first.
func (v transactionView) ItemsForSample(sampleID string) []Item {
	var out []Item
	for _, id := range v.state.items.order {
		if item := v.state.items.byID[id]; item.SampleID == sampleID {
			out = append(out, item)
		}
	}
	return out
}

// AssociationsFor lists the associations attached to a subject, including
// those addressing individual parts of a collection.
func (v transactionView) AssociationsFor(subject domain.EntityType, subjectID string) []Association {
	var out []Association
	for _, id := range v.state.associations.order {
		a := v.state.associations.byID[id]
		if a.Subject == subject && a.SubjectID == subjectID {
			out = append(out, cloneAssociation(a))
		}
	}
	return out
}
