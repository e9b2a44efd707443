package core

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cultureplan/internal/composition"
	"cultureplan/internal/conditions"
)

func singleStrainPlan(t *testing.T) Plan {
	t.Helper()
	svc := NewInMemoryService(nil)
	seedCatalog(t, svc)
	plan, err := svc.PlanExperiment(context.Background(), PlanRequest{
		Definitions:   []conditions.Definition{arabinoseDefinition("NOR00001")},
		ContainerType: testPlate,
	})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	return plan
}

func TestMaterialsTotalsReagentsAndInoculations(t *testing.T) {
	plan := singleStrainPlan(t)
	m := plan.Materials()

	kinds := make([]composition.Kind, len(m.Reagents))
	for i, r := range m.Reagents {
		kinds[i] = r.Kind
		if r.ItemID == "" || r.Sample == "" {
			t.Fatalf("reagent without source item: %+v", r)
		}
		if r.Prepare.Qty <= r.Volume.Qty || r.Prepare.Units != r.Volume.Units {
			t.Fatalf("prepare volume must add the dead-volume allowance: %+v", r)
		}
	}
	if diff := cmp.Diff([]composition.Kind{composition.KindMedia, composition.KindInducer, composition.KindAntibiotic}, kinds); diff != "" {
		t.Fatalf("reagent kinds (-want +got):\n%s", diff)
	}
	// Three wells at 2 mM draw 20 µL of the 100 mM stock, three at 1 mM draw 10 µL.
	ara := m.Reagents[1]
	if ara.Sample != "Arabinose" || ara.Label != "100 mM Arabinose Stock" || ara.Volume.Qty != 90 || ara.Prepare.Qty != 99 {
		t.Fatalf("unexpected arabinose use %+v", ara)
	}

	if len(m.Inoculations) != 1 {
		t.Fatalf("expected one inoculation step, got %+v", m.Inoculations)
	}
	step := m.Inoculations[0]
	if diff := cmp.Diff([]string{"A1", "A2", "B1", "B2", "C1", "C2"}, step.Wells); diff != "" {
		t.Fatalf("inoculated wells (-want +got):\n%s", diff)
	}
	if step.Strain != "NOR00001" || step.MediaItem != m.Reagents[0].ItemID || step.ResuspensionML != 1.98 {
		t.Fatalf("unexpected inoculation step %+v", step)
	}
	if len(m.Media) != 1 || m.Media[0].Sample != "YPAD" || m.Media[0].Milliliters != 1.98 {
		t.Fatalf("unexpected inoculation media %+v", m.Media)
	}
}

func TestTransferPlanScalesCultureVolume(t *testing.T) {
	plan := singleStrainPlan(t)

	grids, ok, err := plan.TransferPlan("0.1X")
	if err != nil || !ok {
		t.Fatalf("transfer plan: ok=%v err=%v", ok, err)
	}
	if len(grids) != len(plan.Plates) {
		t.Fatalf("expected one grid per plate, got %d", len(grids))
	}
	if grids[0][0][0] != 100 || grids[0][3][0] != -1 {
		t.Fatalf("unexpected transfer grid %v", grids[0])
	}

	if _, ok, err := plan.TransferPlan("None"); ok || err != nil {
		t.Fatalf("expected no transfer for None, got ok=%v err=%v", ok, err)
	}
	if _, _, err := plan.TransferPlan("tenfold"); err == nil {
		t.Fatalf("expected error for malformed factor")
	}
}
