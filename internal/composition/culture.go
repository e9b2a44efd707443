package composition

import "cultureplan/pkg/units"

// Culture is one well's worth of resolved components whose working volumes
// sum to the container's working volume.
type Culture struct {
	Components []Component
	Volume     units.Measurement
	Options    map[string]any
}

// Build assigns working volumes to components against the container volume.
// Diluted components receive container × dilution factor; the single media
// component absorbs the remainder. When the diluted components need more than
// the container holds, the remainder would be negative and Build returns
// *OverAllocatedContainerError instead.
func Build(components []Component, container units.Measurement, options map[string]any) (Culture, error) {
	out := make([]Component, len(components))
	mediaIdx := -1
	mediaCount := 0
	used := 0.0
	for i, c := range components {
		c = c.clone()
		c.WorkingVolume = units.Measurement{Qty: 0, Units: container.Units}
		if c.DilutionFactor != nil {
			c.WorkingVolume.Qty = units.Round(container.Qty**c.DilutionFactor, 2)
		}
		if c.Kind == KindMedia {
			mediaIdx = i
			mediaCount++
		} else {
			used += c.WorkingVolume.Qty
		}
		out[i] = c
	}
	switch {
	case mediaCount == 0:
		return Culture{}, &NoMediaComponentError{}
	case mediaCount > 1:
		return Culture{}, &DuplicateMediaError{Count: mediaCount}
	}
	remainder := container.Qty - used
	if remainder < -1e-9 {
		return Culture{}, &OverAllocatedContainerError{
			Required:  units.Measurement{Qty: units.Round(used, 3), Units: container.Units},
			Available: container,
		}
	}
	out[mediaIdx].WorkingVolume.Qty = units.Round(remainder, 3)
	return Culture{Components: out, Volume: container, Options: cloneAny(options)}, nil
}

// Clone returns a deep copy so replicates never share component state.
func (c Culture) Clone() Culture {
	out := Culture{Volume: c.Volume, Options: cloneAny(c.Options)}
	out.Components = make([]Component, len(c.Components))
	for i, comp := range c.Components {
		out.Components[i] = comp.clone()
	}
	return out
}

// Of returns the components of a kind in composition order.
func (c Culture) Of(kind Kind) []Component {
	var out []Component
	for _, comp := range c.Components {
		if comp.Kind == kind {
			out = append(out, comp)
		}
	}
	return out
}

// First returns the first component of a kind.
func (c Culture) First(kind Kind) (Component, bool) {
	for _, comp := range c.Components {
		if comp.Kind == kind {
			return comp, true
		}
	}
	return Component{}, false
}

// TotalVolume sums all component working volumes.
func (c Culture) TotalVolume() float64 {
	total := 0.0
	for _, comp := range c.Components {
		total += comp.WorkingVolume.Qty
	}
	return total
}
