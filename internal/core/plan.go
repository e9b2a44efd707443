package core

import (
	"context"
	"errors"
	"fmt"

	"cultureplan/internal/composition"
	"cultureplan/internal/conditions"
	"cultureplan/internal/layout"
	"cultureplan/pkg/units"
)

// ErrEmptyExperiment is returned when a plan request carries no definitions.
var ErrEmptyExperiment = errors.New("experiment has no definitions")

// PlanRequest describes an experiment to lay out on plates of ContainerType.
// Controls are placed into the leftover wells of every plate.
type PlanRequest struct {
	Definitions   []conditions.Definition
	Controls      []conditions.Definition
	ContainerType string
}

// Plan is a computed, not yet persisted, plate layout.
type Plan struct {
	Container ObjectType
	Volume    units.Measurement
	Groups    []layout.ReplicateGroup
	Controls  []layout.ReplicateGroup
	Plates    []layout.PlateMatrix
}

// Wells returns the number of filled wells across all plates.
func (p Plan) Wells() int {
	n := 0
	for _, plate := range p.Plates {
		n += plate.Filled()
	}
	return n
}

// PlanExperiment expands, resolves, builds, sorts and packs the request's
// cultures against a read-only catalog snapshot. Nothing is persisted.
func (s *Service) PlanExperiment(ctx context.Context, req PlanRequest) (Plan, error) {
	var plan Plan
	err := s.run(ctx, opPlanExperiment, func(ctx context.Context) (string, error) {
		if len(req.Definitions) == 0 {
			return "", ErrEmptyExperiment
		}
		return "", s.store.View(ctx, func(view TransactionView) error {
			var err error
			plan, err = buildPlan(view, req)
			return err
		})
	})
	if err != nil {
		return Plan{}, err
	}
	s.logger.Info("experiment planned",
		"container", plan.Container.Name,
		"conditions", len(plan.Groups),
		"controls", len(plan.Controls),
		"plates", len(plan.Plates),
		"wells", plan.Wells())
	return plan, nil
}

func buildPlan(view TransactionView, req PlanRequest) (Plan, error) {
	container, ok := view.FindObjectTypeByName(req.ContainerType)
	if !ok {
		return Plan{}, ErrNotFound{Entity: EntityObjectType, ID: req.ContainerType}
	}
	volume, err := container.WorkingVolume()
	if err != nil {
		return Plan{}, err
	}
	inv := newInventory(view)
	b := planBuilder{
		expander: conditions.NewExpander(inv),
		resolver: composition.NewResolver(inv),
		volume:   volume,
	}
	groups, err := b.groups(req.Definitions)
	if err != nil {
		return Plan{}, err
	}
	controls, err := b.groups(req.Controls)
	if err != nil {
		return Plan{}, fmt.Errorf("controls: %w", err)
	}
	sorted := layout.Sort(groups)
	shape := layout.Shape{Rows: container.Rows, Columns: container.Columns}
	plates, err := layout.Pack(sorted, shape)
	if err != nil {
		return Plan{}, err
	}
	if len(controls) > 0 {
		if plates, err = layout.PlaceControls(plates, controls); err != nil {
			return Plan{}, err
		}
	}
	return Plan{Container: container, Volume: volume, Groups: sorted, Controls: controls, Plates: plates}, nil
}

type planBuilder struct {
	expander *conditions.Expander
	resolver *composition.Resolver
	volume   units.Measurement
	next     int
}

// groups turns definitions into one replicate group per expanded condition.
// Condition indexes keep counting across calls so controls never collide
// with experiment conditions.
func (b *planBuilder) groups(defs []conditions.Definition) ([]layout.ReplicateGroup, error) {
	var out []layout.ReplicateGroup
	for i, def := range defs {
		conds, err := b.expander.Conditions(def)
		if err != nil {
			return nil, fmt.Errorf("definition %d: %w", i, err)
		}
		for _, cond := range conds {
			components, err := b.resolver.ResolveAll(cond.Specs)
			if err != nil {
				return nil, fmt.Errorf("definition %d: %w", i, err)
			}
			culture, err := composition.Build(components, b.volume, cond.Options)
			if err != nil {
				return nil, fmt.Errorf("definition %d: %w", i, err)
			}
			out = append(out, layout.Replicate(b.next, culture, cond.Replicates))
			b.next++
		}
	}
	return out, nil
}
