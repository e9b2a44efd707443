// Package domain defines the catalog entities, value types, and rule
// evaluation primitives used by cultureplan.
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"cultureplan/pkg/units"
)

// EntityType identifies the type of record stored in the catalog.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntitySample identifies a sample definition (strain, media, inducer, antibiotic).
	EntitySample EntityType = "sample"
	// EntityObjectType identifies a container type definition.
	EntityObjectType EntityType = "object_type"
	// EntityItem identifies a physical item holding a sample.
	EntityItem EntityType = "item"
	// EntityCollection identifies a plate or other gridded container.
	EntityCollection EntityType = "collection"
	// EntityAssociation identifies a key/value annotation on an item, collection or part.
	EntityAssociation EntityType = "association"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Well-known sample and object-type keys.
const (
	// DataWorkingVolume is the object type data entry holding the nominal
	// working volume as "<qty>_<unit>".
	DataWorkingVolume = "working_vol"
	// PropertyWorkingConcentration is the antibiotic sample property holding
	// the recommended working concentration in µg/mL.
	PropertyWorkingConcentration = "Recommended Working Concentration (ug/mL)"
	// ObjectTypeAntibioticAliquot names the container type of antibiotic aliquots.
	ObjectTypeAntibioticAliquot = "Antibiotic Aliquot"
	// LocationDeleted marks an item that no longer exists in the lab.
	LocationDeleted = "deleted"
)

// Base contains common fields for all catalog records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sample is a named biological or chemical definition.
type Sample struct {
	Base
	Name       string            `json:"name"`
	SampleType string            `json:"sample_type"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Property returns a sample property value.
func (s Sample) Property(key string) (string, bool) {
	v, ok := s.Properties[key]
	return v, ok
}

// ObjectType describes a container: its grid shape and free-form data.
type ObjectType struct {
	Base
	Name    string            `json:"name"`
	Rows    int               `json:"rows,omitempty"`
	Columns int               `json:"columns,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
}

// IsCollection reports whether the container is a grid of parts.
func (o ObjectType) IsCollection() bool {
	return o.Rows > 0 && o.Columns > 0
}

// WorkingVolume parses the container's nominal working volume.
func (o ObjectType) WorkingVolume() (units.Measurement, error) {
	raw, ok := o.Data[DataWorkingVolume]
	if !ok || raw == "" {
		return units.Measurement{}, &MissingContainerVolumeError{ContainerType: o.Name}
	}
	m, err := units.ParseMeasurement(raw)
	if err != nil {
		return units.Measurement{}, fmt.Errorf("container %q working volume: %w", o.Name, err)
	}
	return m, nil
}

// Item is a physical container holding one sample.
type Item struct {
	Base
	SampleID     string `json:"sample_id"`
	ObjectTypeID string `json:"object_type_id"`
	Location     string `json:"location,omitempty"`
}

// Deleted reports whether the item has been discarded.
func (i Item) Deleted() bool {
	return i.Location == LocationDeleted
}

// Collection is a gridded container whose cells reference samples by ID.
// Empty cells hold "".
type Collection struct {
	Base
	ObjectTypeID string     `json:"object_type_id"`
	Matrix       [][]string `json:"matrix"`
	Location     string     `json:"location,omitempty"`
}

// Dimensions returns the row and column counts of the matrix.
func (c Collection) Dimensions() (int, int) {
	if len(c.Matrix) == 0 {
		return 0, 0
	}
	return len(c.Matrix), len(c.Matrix[0])
}

// Coordinate addresses a single part of a collection.
type Coordinate struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Association attaches a JSON value to an item, a collection, or one part of
// a collection. The tuple (Subject, SubjectID, Part, Key) is unique.
type Association struct {
	Base
	Subject   EntityType      `json:"subject"`
	SubjectID string          `json:"subject_id"`
	Part      *Coordinate     `json:"part,omitempty"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
}

// SameSlot reports whether two associations address the same key on the same target.
func (a Association) SameSlot(other Association) bool {
	if a.Subject != other.Subject || a.SubjectID != other.SubjectID || a.Key != other.Key {
		return false
	}
	if a.Part == nil || other.Part == nil {
		return a.Part == nil && other.Part == nil
	}
	return *a.Part == *other.Part
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}

// MissingContainerVolumeError reports a container type without a working volume.
type MissingContainerVolumeError struct {
	ContainerType string
}

func (e *MissingContainerVolumeError) Error() string {
	return fmt.Sprintf("container type %q has no %s data entry", e.ContainerType, DataWorkingVolume)
}
