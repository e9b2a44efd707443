package layout

import (
	"fmt"
	"strconv"
	"strings"

	"cultureplan/internal/composition"
	"cultureplan/pkg/units"
)

// SaturationCultureVolume is the per-well volume, in µL, of an overnight
// saturation culture used as inoculant.
const SaturationCultureVolume = 300.0

// ExtraVolumeFraction is the dead-volume allowance added when preparing
// shared reagents.
const ExtraVolumeFraction = 0.1

// WithExtraVolume scales qty by 1+fraction, rounded to three places.
func WithExtraVolume(qty, fraction float64) float64 {
	return units.Round(qty*(1+fraction), 3)
}

// ComponentVolumes totals the working volume drawn from each source item of
// a component kind across all plates.
func ComponentVolumes(plates []PlateMatrix, kind composition.Kind) map[string]units.Measurement {
	out := map[string]units.Measurement{}
	for _, p := range plates {
		for _, row := range p.Cells {
			for _, cell := range row {
				if cell.Empty() {
					continue
				}
				for _, c := range cell.Culture.Of(kind) {
					if c.Item == nil {
						continue
					}
					total := out[c.Item.ID]
					if total.Units == "" {
						total.Units = c.WorkingVolume.Units
					}
					total.Qty = units.Round(total.Qty+c.WorkingVolume.Qty, 3)
					out[c.Item.ID] = total
				}
			}
		}
	}
	return out
}

// TransferVolumes gives the volume to move out of each well at the given
// dilution factor. Empty wells hold -1.
func TransferVolumes(plate PlateMatrix, dilutionFactor float64) [][]float64 {
	out := make([][]float64, len(plate.Cells))
	for r, row := range plate.Cells {
		out[r] = make([]float64, len(row))
		for c, cell := range row {
			if cell.Empty() {
				out[r][c] = -1
				continue
			}
			out[r][c] = units.Round(dilutionFactor*cell.Culture.Volume.Qty, 3)
		}
	}
	return out
}

// ParseDilutionFactor reads values such as "10X" or "0.1X". "None" reports
// ok=false.
func ParseDilutionFactor(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSuffix(s, "X"), "x"), 64)
	if err != nil {
		return 0, false, fmt.Errorf("dilution factor %q: %w", s, err)
	}
	return f, true, nil
}

// Inoculation groups the wells of one plate by the strain item and media
// item that feed them.
type Inoculation struct {
	Plate      int
	StrainItem string
	MediaItem  string
	Wells      [][2]int
}

// InoculationPlan lists, per plate, the wells each strain/media pair seeds,
// in first-encounter row-major order. Control wells are included.
func InoculationPlan(plates []PlateMatrix) []Inoculation {
	var out []Inoculation
	for _, p := range plates {
		index := map[[2]string]int{}
		for r, row := range p.Cells {
			for c, cell := range row {
				if cell.Empty() {
					continue
				}
				strain, ok := cell.Culture.First(composition.KindStrain)
				if !ok || strain.Item == nil {
					continue
				}
				media := ""
				if m, ok := cell.Culture.First(composition.KindMedia); ok && m.Item != nil {
					media = m.Item.ID
				}
				key := [2]string{strain.Item.ID, media}
				i, seen := index[key]
				if !seen {
					i = len(out)
					index[key] = i
					out = append(out, Inoculation{Plate: p.Index, StrainItem: strain.Item.ID, MediaItem: media})
				}
				out[i].Wells = append(out[i].Wells, [2]int{r, c})
			}
		}
	}
	return out
}

// ResuspensionVolume is the media, in mL, needed to resuspend an inoculant
// for the given number of wells, with the extra-volume allowance.
func ResuspensionVolume(wells int) float64 {
	return units.Round(float64(wells)*SaturationCultureVolume*(1+ExtraVolumeFraction)/1000.0, 3)
}

// MediaRequirements totals the media, in mL, each media item must supply to
// inoculate every filled well at perWell µL, with the extra-volume allowance.
func MediaRequirements(plates []PlateMatrix, perWell float64) map[string]float64 {
	counts := map[string]int{}
	for _, p := range plates {
		for _, row := range p.Cells {
			for _, cell := range row {
				if cell.Empty() {
					continue
				}
				if m, ok := cell.Culture.First(composition.KindMedia); ok && m.Item != nil {
					counts[m.Item.ID]++
				}
			}
		}
	}
	out := make(map[string]float64, len(counts))
	for id, n := range counts {
		out[id] = units.Round(WithExtraVolume(perWell*float64(n), ExtraVolumeFraction)/1000.0, 3)
	}
	return out
}
