package core

import (
	"context"
	"testing"
	"time"

	"cultureplan/internal/conditions"
	"cultureplan/pkg/domain"
)

const (
	testPlate     = "Test Plate"
	deepWellPlate = "96 Deep Well Plate"
)

type stubClock struct{ t time.Time }

func (s stubClock) Now() time.Time { return s.t }

// seedCatalog registers two strains, a medium, an inducer with a 100 mM
// stock, and an antibiotic with an aliquot.
func seedCatalog(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()
	samples := []Sample{
		{Name: "NOR00001", SampleType: "Yeast Strain"},
		{Name: "NOR00002", SampleType: "Yeast Strain"},
		{Name: "YPAD", SampleType: "Media"},
		{Name: "Arabinose", SampleType: "Inducer"},
		{Name: "Kanamycin", SampleType: "Antibiotic", Properties: map[string]string{domain.PropertyWorkingConcentration: "5000"}},
	}
	for _, s := range samples {
		if _, _, err := svc.RegisterSample(ctx, s); err != nil {
			t.Fatalf("register sample %s: %v", s.Name, err)
		}
	}
	objectTypes := []ObjectType{
		{Name: testPlate, Rows: 4, Columns: 3, Data: map[string]string{domain.DataWorkingVolume: "1000_µL"}},
		{Name: deepWellPlate, Rows: 8, Columns: 12, Data: map[string]string{domain.DataWorkingVolume: "1000_µL"}},
		{Name: "Glycerol Stock"},
		{Name: "Media Bottle"},
		{Name: "100 mM Arabinose Stock"},
		{Name: domain.ObjectTypeAntibioticAliquot},
	}
	for _, ot := range objectTypes {
		if _, _, err := svc.RegisterObjectType(ctx, ot); err != nil {
			t.Fatalf("register object type %s: %v", ot.Name, err)
		}
	}
	items := [][2]string{
		{"NOR00001", "Glycerol Stock"},
		{"NOR00002", "Glycerol Stock"},
		{"YPAD", "Media Bottle"},
		{"Arabinose", "100 mM Arabinose Stock"},
		{"Kanamycin", domain.ObjectTypeAntibioticAliquot},
	}
	for _, it := range items {
		if _, _, err := svc.RegisterItem(ctx, it[0], it[1], "freezer"); err != nil {
			t.Fatalf("register item %s: %v", it[0], err)
		}
	}
}

func arabinoseDefinition(strain string) conditions.Definition {
	return conditions.Definition{
		Strain:      strain,
		Media:       "YPAD",
		Inducers:    `{"Arabinose": {"final_concentration": ["2_mM", "1_mM"]}}`,
		Antibiotics: `{"Kanamycin": {"final_concentration": "50_µg/mL"}}`,
		Replicates:  3,
	}
}

func controlDefinition() conditions.Definition {
	return conditions.Definition{
		Strain:     "NOR00001",
		Media:      "YPAD",
		ControlTag: `{"positive_gfp": true}`,
		Replicates: 1,
	}
}
