package screenshot

import (
	"fmt"

	"github.com/timdodge/grimshot/internal/errdefs"
	"github.com/timdodge/grimshot/internal/log"
)

// layoutBounds is the bounding box of every output's logical geometry.
func layoutBounds(outputs []*WaylandOutput) (Region, error) {
	var bounds Region
	for _, o := range outputs {
		bounds = bounds.Union(o.LogicalBox())
	}
	if bounds.IsEmpty() {
		return Region{}, fmt.Errorf("%w: outputs have no usable geometry", errdefs.ErrNoOutputs)
	}
	return bounds, nil
}

// overlappingOutputs lists pairs of outputs whose logical boxes overlap. An
// empty result means the layout is grid-aligned.
func overlappingOutputs(outputs []*WaylandOutput) [][2]string {
	var pairs [][2]string
	for i := 0; i < len(outputs); i++ {
		for j := i + 1; j < len(outputs); j++ {
			if outputs[i].LogicalBox().Intersects(outputs[j].LogicalBox()) {
				pairs = append(pairs, [2]string{outputs[i].Name, outputs[j].Name})
			}
		}
	}
	return pairs
}

type compositeSlot struct {
	scale int32
	// offset of the slot inside the destination buffer
	dx, dy int
}

// planComposite turns a logical region into one frame request per
// intersecting output.
func planComposite(outputs []*WaylandOutput, region Region, cursor bool) ([]frameRequest, []compositeSlot) {
	var reqs []frameRequest
	var slots []compositeSlot
	for _, o := range outputs {
		logical := o.LogicalBox()
		inter, ok := logical.Intersection(region)
		if !ok {
			continue
		}
		scale := max(o.Scale, 1)
		reqs = append(reqs, frameRequest{
			output: o,
			region: Region{
				X:      (inter.X - logical.X) * scale,
				Y:      (inter.Y - logical.Y) * scale,
				Width:  inter.Width * scale,
				Height: inter.Height * scale,
			},
			cursor: cursor,
		})
		slots = append(slots, compositeSlot{
			scale: scale,
			dx:    int(inter.X - region.X),
			dy:    int(inter.Y - region.Y),
		})
	}
	return reqs, slots
}

// compositeRegion captures every output intersecting region and assembles
// the pieces into one buffer at logical density. Overlapping outputs are
// copied in order, so the last one wins.
func (s *Screenshoter) compositeRegion(outputs []*WaylandOutput, region Region, cursor bool) (*CaptureResult, error) {
	if region.IsEmpty() {
		return nil, fmt.Errorf("%w: empty region %s", errdefs.ErrInvalidRegion, region)
	}

	reqs, slots := planComposite(outputs, region, cursor)
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: %s does not intersect any output", errdefs.ErrInvalidRegion, region)
	}
	if pairs := overlappingOutputs(outputs); len(pairs) > 0 {
		log.Debug("outputs overlap, last captured output wins", "pairs", pairs)
	}

	results, err := s.captureFrames(reqs)
	if err != nil {
		return nil, err
	}

	dst := newCaptureResult(int(region.Width), int(region.Height))
	for i, res := range results {
		slot := slots[i]
		if slot.scale != 1 {
			res, err = Scale(res, 1/float64(slot.scale))
			if err != nil {
				return nil, fmt.Errorf("rescale %s: %w", reqs[i].output.Name, err)
			}
		}
		blit(dst, res, slot.dx, slot.dy)
	}
	return dst, nil
}

// blit copies src into dst at (dx, dy) row by row, clipped to dst.
func blit(dst, src *CaptureResult, dx, dy int) {
	x0 := max(dx, 0)
	x1 := min(dx+src.Width, dst.Width)
	if x0 >= x1 {
		return
	}
	n := (x1 - x0) * 4
	for sy := 0; sy < src.Height; sy++ {
		y := dy + sy
		if y < 0 || y >= dst.Height {
			continue
		}
		si := (sy*src.Width + (x0 - dx)) * 4
		di := (y*dst.Width + x0) * 4
		copy(dst.Data[di:di+n], src.Data[si:si+n])
	}
}
