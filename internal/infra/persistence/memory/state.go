package memory

import "encoding/json"

type memoryState struct {
	samples      bucket[Sample]
	objectTypes  bucket[ObjectType]
	items        bucket[Item]
	collections  bucket[Collection]
	associations bucket[Association]
}

func newMemoryState() memoryState {
	return memoryState{
		samples:      newBucket[Sample](),
		objectTypes:  newBucket[ObjectType](),
		items:        newBucket[Item](),
		collections:  newBucket[Collection](),
		associations: newBucket[Association](),
	}
}

func (s memoryState) clone() memoryState {
	return memoryState{
		samples:      s.samples.clone(cloneSample),
		objectTypes:  s.objectTypes.clone(cloneObjectType),
		items:        s.items.clone(cloneItem),
		collections:  s.collections.clone(cloneCollection),
		associations: s.associations.clone(cloneAssociation),
	}
}

// Snapshot captures a point-in-time copy of the store state. Slices keep
// insertion order.
type Snapshot struct {
	Samples      []Sample      `json:"samples"`
	ObjectTypes  []ObjectType  `json:"object_types"`
	Items        []Item        `json:"items"`
	Collections  []Collection  `json:"collections"`
	Associations []Association `json:"associations"`
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	return Snapshot{
		Samples:      state.samples.list(cloneSample),
		ObjectTypes:  state.objectTypes.list(cloneObjectType),
		Items:        state.items.list(cloneItem),
		Collections:  state.collections.list(cloneCollection),
		Associations: state.associations.list(cloneAssociation),
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for _, v := range s.Samples {
		state.samples.put(v.ID, cloneSample(v))
	}
	for _, v := range s.ObjectTypes {
		state.objectTypes.put(v.ID, cloneObjectType(v))
	}
	for _, v := range s.Items {
		state.items.put(v.ID, cloneItem(v))
	}
	for _, v := range s.Collections {
		state.collections.put(v.ID, cloneCollection(v))
	}
	for _, v := range s.Associations {
		state.associations.put(v.ID, cloneAssociation(v))
	}
	return state
}

func cloneStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneSample(s Sample) Sample {
	cp := s
	cp.Properties = cloneStringMap(s.Properties)
	return cp
}

func cloneObjectType(o ObjectType) ObjectType {
	cp := o
	cp.Data = cloneStringMap(o.Data)
	return cp
}

func cloneItem(i Item) Item { return i }

func cloneCollection(c Collection) Collection {
	cp := c
	if c.Matrix != nil {
		cp.Matrix = make([][]string, len(c.Matrix))
		for r, row := range c.Matrix {
			cp.Matrix[r] = append([]string(nil), row...)
		}
	}
	return cp
}

func cloneAssociation(a Association) Association {
	cp := a
	if a.Part != nil {
		part := *a.Part
		cp.Part = &part
	}
	if a.Value != nil {
		cp.Value = append(json.RawMessage(nil), a.Value...)
	}
	return cp
}
