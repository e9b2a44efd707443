package memory

import (
	"errors"
	"fmt"
	"time"

	"cultureplan/pkg/domain"
)

// transaction represents a mutation set applied to a cloned store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot exposes a read-only view of the in-flight state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) FindSample(id string) (Sample, bool) {
	s, ok := tx.state.samples.get(id)
	return cloneSample(s), ok
}

func (tx *transaction) FindObjectType(id string) (ObjectType, bool) {
	o, ok := tx.state.objectTypes.get(id)
	return cloneObjectType(o), ok
}

func (tx *transaction) FindItem(id string) (Item, bool) {
	return tx.state.items.get(id)
}

func (tx *transaction) FindCollection(id string) (Collection, bool) {
	c, ok := tx.state.collections.get(id)
	return cloneCollection(c), ok
}

// CreateSample stores a new sample definition. Names are unique.
func (tx *transaction) CreateSample(s Sample) (Sample, error) {
	if s.Name == "" {
		return Sample{}, errors.New("sample name is required")
	}
	if s.ID == "" {
		s.ID = tx.store.newID()
	}
	if _, exists := tx.state.samples.get(s.ID); exists {
		return Sample{}, fmt.Errorf("sample %q already exists", s.ID)
	}
	if _, taken := tx.Snapshot().FindSampleByName(s.Name); taken {
		return Sample{}, fmt.Errorf("sample name %q already registered", s.Name)
	}
	s.CreatedAt = tx.now
	s.UpdatedAt = tx.now
	tx.state.samples.put(s.ID, cloneSample(s))
	tx.recordChange(Change{Entity: domain.EntitySample, Action: domain.ActionCreate, After: cloneSample(s)})
	return cloneSample(s), nil
}

// UpdateSample mutates a sample using the provided mutator function.
func (tx *transaction) UpdateSample(id string, mutator func(*Sample) error) (Sample, error) {
	current, ok := tx.state.samples.get(id)
	if !ok {
		return Sample{}, fmt.Errorf("sample %q not found", id)
	}
	before := cloneSample(current)
	current = cloneSample(current)
	if err := mutator(&current); err != nil {
		return Sample{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.samples.put(id, cloneSample(current))
	tx.recordChange(Change{Entity: domain.EntitySample, Action: domain.ActionUpdate, Before: before, After: cloneSample(current)})
	return cloneSample(current), nil
}

// DeleteSample removes a sample that no item references.
func (tx *transaction) DeleteSample(id string) error {
	current, ok := tx.state.samples.get(id)
	if !ok {
		return fmt.Errorf("sample %q not found", id)
	}
	if count := len(tx.Snapshot().ItemsForSample(id)); count > 0 {
		return fmt.Errorf("sample %q is held by %d items; remove them before delete", id, count)
	}
	tx.state.samples.remove(id)
	tx.recordChange(Change{Entity: domain.EntitySample, Action: domain.ActionDelete, Before: cloneSample(current)})
	return nil
}

// CreateObjectType stores a new container type. Names are unique.
func (tx *transaction) CreateObjectType(o ObjectType) (ObjectType, error) {
	if o.Name == "" {
		return ObjectType{}, errors.New("object type name is required")
	}
	if o.Rows < 0 || o.Columns < 0 {
		return ObjectType{}, fmt.Errorf("object type %q has negative dimensions %dx%d", o.Name, o.Rows, o.Columns)
	}
	if o.ID == "" {
		o.ID = tx.store.newID()
	}
	if _, exists := tx.state.objectTypes.get(o.ID); exists {
		return ObjectType{}, fmt.Errorf("object type %q already exists", o.ID)
	}
	if _, taken := tx.Snapshot().FindObjectTypeByName(o.Name); taken {
		return ObjectType{}, fmt.Errorf("object type name %q already registered", o.Name)
	}
	o.CreatedAt = tx.now
	o.UpdatedAt = tx.now
	tx.state.objectTypes.put(o.ID, cloneObjectType(o))
	tx.recordChange(Change{Entity: domain.EntityObjectType, Action: domain.ActionCreate, After: cloneObjectType(o)})
	return cloneObjectType(o), nil
}

// UpdateObjectType mutates a container type using the provided mutator function.
func (tx *transaction) UpdateObjectType(id string, mutator func(*ObjectType) error) (ObjectType, error) {
	current, ok := tx.state.objectTypes.get(id)
	if !ok {
		return ObjectType{}, fmt.Errorf("object type %q not found", id)
	}
	before := cloneObjectType(current)
	current = cloneObjectType(current)
	if err := mutator(&current); err != nil {
		return ObjectType{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.objectTypes.put(id, cloneObjectType(current))
	tx.recordChange(Change{Entity: domain.EntityObjectType, Action: domain.ActionUpdate, Before: before, After: cloneObjectType(current)})
	return cloneObjectType(current), nil
}

// DeleteObjectType removes a container type that nothing is stored in.
func (tx *transaction) DeleteObjectType(id string) error {
	current, ok := tx.state.objectTypes.get(id)
	if !ok {
		return fmt.Errorf("object type %q not found", id)
	}
	refs := 0
	for _, item := range tx.state.items.byID {
		if item.ObjectTypeID == id {
			refs++
		}
	}
	for _, c := range tx.state.collections.byID {
		if c.ObjectTypeID == id {
			refs++
		}
	}
	if refs > 0 {
		return fmt.Errorf("object type %q is referenced by %d records; remove them before delete", id, refs)
	}
	tx.state.objectTypes.remove(id)
	tx.recordChange(Change{Entity: domain.EntityObjectType, Action: domain.ActionDelete, Before: cloneObjectType(current)})
	return nil
}

func (tx *transaction) checkItemRefs(i Item) error {
	if _, ok := tx.state.samples.get(i.SampleID); !ok {
		return fmt.Errorf("item references unknown sample %q", i.SampleID)
	}
	if _, ok := tx.state.objectTypes.get(i.ObjectTypeID); !ok {
		return fmt.Errorf("item references unknown object type %q", i.ObjectTypeID)
	}
	return nil
}

// CreateItem stores a new item. Its sample and container type must exist.
func (tx *transaction) CreateItem(i Item) (Item, error) {
	if err := tx.checkItemRefs(i); err != nil {
		return Item{}, err
	}
	if i.ID == "" {
		i.ID = tx.store.newID()
	}
	if _, exists := tx.state.items.get(i.ID); exists {
		return Item{}, fmt.Errorf("item %q already exists", i.ID)
	}
	i.CreatedAt = tx.now
	i.UpdatedAt = tx.now
	tx.state.items.put(i.ID, i)
	tx.recordChange(Change{Entity: domain.EntityItem, Action: domain.ActionCreate, After: i})
	return i, nil
}

// UpdateItem mutates an item using the provided mutator function.
func (tx *transaction) UpdateItem(id string, mutator func(*Item) error) (Item, error) {
	current, ok := tx.state.items.get(id)
	if !ok {
		return Item{}, fmt.Errorf("item %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Item{}, err
	}
	if err := tx.checkItemRefs(current); err != nil {
		return Item{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.items.put(id, current)
	tx.recordChange(Change{Entity: domain.EntityItem, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteItem removes an item along with its associations.
func (tx *transaction) DeleteItem(id string) error {
	current, ok := tx.state.items.get(id)
	if !ok {
		return fmt.Errorf("item %q not found", id)
	}
	tx.dropAssociations(domain.EntityItem, id)
	tx.state.items.remove(id)
	tx.recordChange(Change{Entity: domain.EntityItem, Action: domain.ActionDelete, Before: current})
	return nil
}

func (tx *transaction) checkCollection(c Collection) error {
	ot, ok := tx.state.objectTypes.get(c.ObjectTypeID)
	if !ok {
		return fmt.Errorf("collection references unknown object type %q", c.ObjectTypeID)
	}
	if !ot.IsCollection() {
		return fmt.Errorf("object type %q is not a collection", ot.Name)
	}
	if len(c.Matrix) == 0 {
		return errors.New("collection matrix is empty")
	}
	width := len(c.Matrix[0])
	for r, row := range c.Matrix {
		if len(row) != width {
			return fmt.Errorf("collection matrix row %d has %d columns, want %d", r, len(row), width)
		}
	}
	return nil
}

// CreateCollection stores a new collection. The matrix must be rectangular
// and the container type gridded.
func (tx *transaction) CreateCollection(c Collection) (Collection, error) {
	if err := tx.checkCollection(c); err != nil {
		return Collection{}, err
	}
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.collections.get(c.ID); exists {
		return Collection{}, fmt.Errorf("collection %q already exists", c.ID)
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.collections.put(c.ID, cloneCollection(c))
	tx.recordChange(Change{Entity: domain.EntityCollection, Action: domain.ActionCreate, After: cloneCollection(c)})
	return cloneCollection(c), nil
}

// UpdateCollection mutates a collection using the provided mutator function.
func (tx *transaction) UpdateCollection(id string, mutator func(*Collection) error) (Collection, error) {
	current, ok := tx.state.collections.get(id)
	if !ok {
		return Collection{}, fmt.Errorf("collection %q not found", id)
	}
	before := cloneCollection(current)
	current = cloneCollection(current)
	if err := mutator(&current); err != nil {
		return Collection{}, err
	}
	if err := tx.checkCollection(current); err != nil {
		return Collection{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.collections.put(id, cloneCollection(current))
	tx.recordChange(Change{Entity: domain.EntityCollection, Action: domain.ActionUpdate, Before: before, After: cloneCollection(current)})
	return cloneCollection(current), nil
}

// DeleteCollection removes a collection along with its associations.
func (tx *transaction) DeleteCollection(id string) error {
	current, ok := tx.state.collections.get(id)
	if !ok {
		return fmt.Errorf("collection %q not found", id)
	}
	tx.dropAssociations(domain.EntityCollection, id)
	tx.state.collections.remove(id)
	tx.recordChange(Change{Entity: domain.EntityCollection, Action: domain.ActionDelete, Before: cloneCollection(current)})
	return nil
}

func (tx *transaction) dropAssociations(subject domain.EntityType, subjectID string) {
	for _, a := range tx.Snapshot().AssociationsFor(subject, subjectID) {
		tx.state.associations.remove(a.ID)
		tx.recordChange(Change{Entity: domain.EntityAssociation, Action: domain.ActionDelete, Before: a})
	}
}

func (tx *transaction) checkAssociation(a Association) error {
	if a.Key == "" {
		return errors.New("association key is required")
	}
	switch a.Subject {
	case domain.EntityItem:
		if a.Part != nil {
			return errors.New("item associations cannot address a part")
		}
		if _, ok := tx.state.items.get(a.SubjectID); !ok {
			return fmt.Errorf("association references unknown item %q", a.SubjectID)
		}
	case domain.EntityCollection:
		c, ok := tx.state.collections.get(a.SubjectID)
		if !ok {
			return fmt.Errorf("association references unknown collection %q", a.SubjectID)
		}
		if a.Part != nil {
			rows, cols := c.Dimensions()
			if a.Part.Row < 0 || a.Part.Row >= rows || a.Part.Column < 0 || a.Part.Column >= cols {
				return fmt.Errorf("part (%d,%d) outside %dx%d collection %q", a.Part.Row, a.Part.Column, rows, cols, c.ID)
			}
		}
	default:
		return fmt.Errorf("associations cannot target %q", a.Subject)
	}
	return nil
}

// PutAssociation creates an association or replaces the value stored in the
// same slot.
func (tx *transaction) PutAssociation(a Association) (Association, error) {
	if err := tx.checkAssociation(a); err != nil {
		return Association{}, err
	}
	for _, id := range tx.state.associations.order {
		existing := tx.state.associations.byID[id]
		if !existing.SameSlot(a) {
			continue
		}
		before := cloneAssociation(existing)
		existing.Value = a.Value
		existing.UpdatedAt = tx.now
		tx.state.associations.put(id, cloneAssociation(existing))
		tx.recordChange(Change{Entity: domain.EntityAssociation, Action: domain.ActionUpdate, Before: before, After: cloneAssociation(existing)})
		return cloneAssociation(existing), nil
	}
	if a.ID == "" {
		a.ID = tx.store.newID()
	}
	if _, exists := tx.state.associations.get(a.ID); exists {
		return Association{}, fmt.Errorf("association %q already exists", a.ID)
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.associations.put(a.ID, cloneAssociation(a))
	tx.recordChange(Change{Entity: domain.EntityAssociation, Action: domain.ActionCreate, After: cloneAssociation(a)})
	return cloneAssociation(a), nil
}

// DeleteAssociation removes an association by ID.
func (tx *transaction) DeleteAssociation(id string) error {
	current, ok := tx.state.associations.get(id)
	if !ok {
		return fmt.Errorf("association %q not found", id)
	}
	tx.state.associations.remove(id)
	tx.recordChange(Change{Entity: domain.EntityAssociation, Action: domain.ActionDelete, Before: current})
	return nil
}
