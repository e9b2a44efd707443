package core

import (
	"context"
	"encoding/json"
	"fmt"

	"cultureplan/internal/composition"
	"cultureplan/internal/layout"
)

// Association keys written when a plan is committed.
const (
	AssociationComposition = "composition"
	AssociationControl     = "control"
	AssociationPlateIndex  = "plate_index"
)

// CommitPlan persists each plate as a collection whose matrix holds strain
// sample IDs, and attaches every filled well's composition as a part
// association. Either every plate is stored or none is.
func (s *Service) CommitPlan(ctx context.Context, plan Plan) ([]Collection, Result, error) {
	var (
		created []Collection
		res     Result
	)
	err := s.run(ctx, opCommitPlan, func(ctx context.Context) (string, error) {
		if len(plan.Plates) == 0 {
			return "", ErrEmptyExperiment
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			created = created[:0]
			if _, ok := tx.FindObjectType(plan.Container.ID); !ok {
				return ErrNotFound{Entity: EntityObjectType, ID: plan.Container.ID}
			}
			for _, plate := range plan.Plates {
				c, err := commitPlate(tx, plan.Container.ID, plate)
				if err != nil {
					return fmt.Errorf("plate %d: %w", plate.Index, err)
				}
				created = append(created, c)
			}
			return nil
		})
		if err != nil || len(created) == 0 {
			return "", err
		}
		return created[0].ID, nil
	})
	if err != nil {
		return nil, res, err
	}
	return created, res, nil
}

func commitPlate(tx Transaction, objectTypeID string, plate layout.PlateMatrix) (Collection, error) {
	matrix := make([][]string, plate.Rows)
	for r := range matrix {
		matrix[r] = make([]string, plate.Columns)
		for c, cell := range plate.Cells[r] {
			if cell.Empty() {
				continue
			}
			if strain, ok := cell.Culture.First(composition.KindStrain); ok {
				matrix[r][c] = strain.Sample.ID
			}
		}
	}
	collection, err := tx.CreateCollection(Collection{ObjectTypeID: objectTypeID, Matrix: matrix})
	if err != nil {
		return Collection{}, err
	}
	index, _ := json.Marshal(plate.Index)
	if _, err := tx.PutAssociation(Association{Subject: EntityCollection, SubjectID: collection.ID, Key: AssociationPlateIndex, Value: index}); err != nil {
		return Collection{}, err
	}
	for r, row := range plate.Cells {
		for c, cell := range row {
			if cell.Empty() {
				continue
			}
			payload, err := json.Marshal(cell.Culture.Composition())
			if err != nil {
				return Collection{}, fmt.Errorf("encode %s: %w", layout.Coordinate(r, c), err)
			}
			part := &Coordinate{Row: r, Column: c}
			if _, err := tx.PutAssociation(Association{Subject: EntityCollection, SubjectID: collection.ID, Part: part, Key: AssociationComposition, Value: payload}); err != nil {
				return Collection{}, err
			}
			if cell.Control {
				if _, err := tx.PutAssociation(Association{Subject: EntityCollection, SubjectID: collection.ID, Part: part, Key: AssociationControl, Value: json.RawMessage("true")}); err != nil {
					return Collection{}, err
				}
			}
		}
	}
	return collection, nil
}

// WellRecord is the stored composition of one committed well.
type WellRecord struct {
	Well        string                  `json:"well"`
	Control     bool                    `json:"control,omitempty"`
	Composition composition.Composition `json:"composition"`
}

// WellComposition reads back the composition committed for a well label
// such as "B3" on a plate collection.
func (s *Service) WellComposition(ctx context.Context, collectionID, well string) (WellRecord, error) {
	row, col, err := layout.ParseCoordinate(well)
	if err != nil {
		return WellRecord{}, err
	}
	part := Coordinate{Row: row, Column: col}
	comps, err := s.PartAssociations(ctx, collectionID, AssociationComposition)
	if err != nil {
		return WellRecord{}, err
	}
	a, ok := comps[part]
	if !ok {
		return WellRecord{}, ErrNotFound{Entity: EntityCollection, ID: collectionID + " well " + layout.Coordinate(row, col)}
	}
	rec := WellRecord{Well: layout.Coordinate(row, col)}
	if err := json.Unmarshal(a.Value, &rec.Composition); err != nil {
		return WellRecord{}, fmt.Errorf("well %s: %w", rec.Well, err)
	}
	controls, err := s.PartAssociations(ctx, collectionID, AssociationControl)
	if err != nil {
		return WellRecord{}, err
	}
	_, rec.Control = controls[part]
	return rec, nil
}
