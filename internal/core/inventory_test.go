package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"cultureplan/internal/composition"
	"cultureplan/pkg/domain"
)

func TestInventoryLooksUpLiveItems(t *testing.T) {
	svc := NewInMemoryService(nil)
	seedCatalog(t, svc)
	ctx := context.Background()

	second, _, err := svc.RegisterItem(ctx, "Kanamycin", domain.ObjectTypeAntibioticAliquot, "fridge")
	require.NoError(t, err)

	err = svc.Store().View(ctx, func(view TransactionView) error {
		inv := newInventory(view)
		kan, ok := inv.SampleByName("Kanamycin")
		require.True(t, ok)
		require.Equal(t, "5000", kan.Properties[domain.PropertyWorkingConcentration])

		items := inv.Items(kan)
		require.Len(t, items, 2)
		require.Equal(t, domain.ObjectTypeAntibioticAliquot, items[0].Label)

		aliquot, ok := inv.FindAliquot(kan)
		require.True(t, ok)
		require.Equal(t, items[0].ID, aliquot.ID)

		_, ok = inv.SampleByName("Glucose")
		require.False(t, ok)
		_, ok = inv.FindAliquot(composition.SampleRef{ID: "none"})
		require.False(t, ok)
		return nil
	})
	require.NoError(t, err)

	first := ""
	_ = svc.Store().View(ctx, func(view TransactionView) error {
		kan, _ := view.FindSampleByName("Kanamycin")
		first = view.ItemsForSample(kan.ID)[0].ID
		return nil
	})
	_, _, err = svc.DiscardItem(ctx, first)
	require.NoError(t, err)

	err = svc.Store().View(ctx, func(view TransactionView) error {
		inv := newInventory(view)
		_, ok := inv.Item(first)
		require.False(t, ok, "discarded items are hidden")
		ref, ok := inv.Item(second.ID)
		require.True(t, ok)
		require.Equal(t, domain.ObjectTypeAntibioticAliquot, ref.Label)

		kan, _ := inv.SampleByName("Kanamycin")
		aliquot, ok := inv.FindAliquot(kan)
		require.True(t, ok)
		require.Equal(t, second.ID, aliquot.ID)
		return nil
	})
	require.NoError(t, err)
}
