package core

import (
	"sort"

	"cultureplan/internal/composition"
	"cultureplan/internal/layout"
	"cultureplan/pkg/units"
)

// ReagentUse is the volume a plan draws from one source item.
type ReagentUse struct {
	Kind    composition.Kind  `json:"kind"`
	ItemID  string            `json:"item_id"`
	Sample  string            `json:"sample"`
	Label   string            `json:"label,omitempty"`
	Volume  units.Measurement `json:"volume"`
	Prepare units.Measurement `json:"prepare"`
}

// InoculationStep lists the wells of one plate seeded from a strain item
// resuspended in a media item.
type InoculationStep struct {
	Plate          int      `json:"plate"`
	Strain         string   `json:"strain"`
	StrainItem     string   `json:"strain_item"`
	MediaItem      string   `json:"media_item,omitempty"`
	Wells          []string `json:"wells"`
	ResuspensionML float64  `json:"resuspension_ml"`
}

// MediaUse is the media, in mL, an item must supply for inoculation.
type MediaUse struct {
	ItemID      string  `json:"item_id"`
	Sample      string  `json:"sample"`
	Milliliters float64 `json:"ml"`
}

// Materials is the bench summary of a plan.
type Materials struct {
	Reagents     []ReagentUse      `json:"reagents"`
	Inoculations []InoculationStep `json:"inoculations"`
	Media        []MediaUse        `json:"inoculation_media"`
}

var reagentKinds = []composition.Kind{composition.KindMedia, composition.KindInducer, composition.KindAntibiotic}

type itemInfo struct {
	sample string
	label  string
}

// Materials totals reagent volumes per source item (with the dead-volume
// allowance to prepare), the inoculation steps per plate and the media they
// consume at the saturation culture volume.
func (p Plan) Materials() Materials {
	items := map[string]itemInfo{}
	for _, plate := range p.Plates {
		for _, row := range plate.Cells {
			for _, cell := range row {
				if cell.Empty() {
					continue
				}
				for _, c := range cell.Culture.Components {
					if c.Item != nil {
						items[c.Item.ID] = itemInfo{sample: c.Name(), label: c.Item.Label}
					}
				}
			}
		}
	}

	out := Materials{Reagents: []ReagentUse{}, Inoculations: []InoculationStep{}, Media: []MediaUse{}}
	for _, kind := range reagentKinds {
		totals := layout.ComponentVolumes(p.Plates, kind)
		ids := make([]string, 0, len(totals))
		for id := range totals {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			vol := totals[id]
			out.Reagents = append(out.Reagents, ReagentUse{
				Kind:    kind,
				ItemID:  id,
				Sample:  items[id].sample,
				Label:   items[id].label,
				Volume:  vol,
				Prepare: units.Measurement{Qty: layout.WithExtraVolume(vol.Qty, layout.ExtraVolumeFraction), Units: vol.Units},
			})
		}
	}

	for _, step := range layout.InoculationPlan(p.Plates) {
		wells := make([]string, len(step.Wells))
		for i, w := range step.Wells {
			wells[i] = layout.Coordinate(w[0], w[1])
		}
		out.Inoculations = append(out.Inoculations, InoculationStep{
			Plate:          step.Plate,
			Strain:         items[step.StrainItem].sample,
			StrainItem:     step.StrainItem,
			MediaItem:      step.MediaItem,
			Wells:          wells,
			ResuspensionML: layout.ResuspensionVolume(len(wells)),
		})
	}

	media := layout.MediaRequirements(p.Plates, layout.SaturationCultureVolume)
	ids := make([]string, 0, len(media))
	for id := range media {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out.Media = append(out.Media, MediaUse{ItemID: id, Sample: items[id].sample, Milliliters: media[id]})
	}
	return out
}

// TransferPlan gives, per plate, the culture volume to move out of each well
// when diluting by factor, a fraction of the culture volume such as "0.1X".
// Empty wells hold -1. A factor of "None" reports ok=false.
func (p Plan) TransferPlan(factor string) ([][][]float64, bool, error) {
	df, ok, err := layout.ParseDilutionFactor(factor)
	if err != nil || !ok {
		return nil, false, err
	}
	out := make([][][]float64, len(p.Plates))
	for i, plate := range p.Plates {
		out[i] = layout.TransferVolumes(plate, df)
	}
	return out, true, nil
}
