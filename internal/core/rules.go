package core

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"cultureplan/internal/composition"
	"cultureplan/pkg/domain"
)

// VolumeTolerance is the allowed difference, in the culture's volume unit,
// between summed working volumes and the culture volume.
const VolumeTolerance = 0.01

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewCollectionShapeRule())
	engine.Register(NewCompositionVolumeRule())
	return engine
}

// NewCollectionShapeRule blocks collections whose matrix does not match the
// grid of their container type.
func NewCollectionShapeRule() domain.Rule {
	return collectionShapeRule{}
}

type collectionShapeRule struct{}

func (collectionShapeRule) Name() string { return "collection_shape" }

func (r collectionShapeRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityCollection || change.Action == domain.ActionDelete {
			continue
		}
		c, ok := change.After.(domain.Collection)
		if !ok {
			continue
		}
		ot, ok := view.FindObjectType(c.ObjectTypeID)
		if !ok {
			continue
		}
		rows, cols := c.Dimensions()
		if rows != ot.Rows || cols != ot.Columns {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("collection %s is %dx%d but %s is %dx%d", c.ID, rows, cols, ot.Name, ot.Rows, ot.Columns),
				Entity:   domain.EntityCollection,
				EntityID: c.ID,
			})
		}
	}
	return res, nil
}

// NewCompositionVolumeRule blocks composition associations whose component
// working volumes do not add up to the culture volume.
func NewCompositionVolumeRule() domain.Rule {
	return compositionVolumeRule{}
}

type compositionVolumeRule struct{}

func (compositionVolumeRule) Name() string { return "composition_volume" }

func (r compositionVolumeRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityAssociation || change.Action == domain.ActionDelete {
			continue
		}
		a, ok := change.After.(domain.Association)
		if !ok || a.Key != AssociationComposition {
			continue
		}
		var comp composition.Composition
		if err := json.Unmarshal(a.Value, &comp); err != nil {
			res.Violations = append(res.Violations, r.violation(a, fmt.Sprintf("unreadable composition: %v", err)))
			continue
		}
		total := 0.0
		for _, byName := range comp.Components {
			for _, rec := range byName {
				total += rec.WorkingVolume.Qty
			}
		}
		if math.Abs(total-comp.CultureVolume.Qty) > VolumeTolerance {
			res.Violations = append(res.Violations, r.violation(a, fmt.Sprintf("components total %.3f but culture volume is %s", total, comp.CultureVolume)))
		}
	}
	return res, nil
}

func (r compositionVolumeRule) violation(a domain.Association, msg string) domain.Violation {
	return domain.Violation{
		Rule:     r.Name(),
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   domain.EntityAssociation,
		EntityID: a.SubjectID,
	}
}
