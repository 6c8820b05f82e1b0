package imaging

// Binarize maps a probability grid to a binary mask. A pixel is foreground
// iff its probability is strictly greater than the threshold; values exactly
// equal to the threshold are background.
func Binarize(p Grid, threshold float32) Mask {
	mask := NewMask(p.Height, p.Width)
	for i, v := range p.Pix {
		if v > threshold {
			mask.Pix[i] = 1
		}
	}
	return mask
}

// RemoveSmallComponents zeroes every 8-connected foreground component whose
// pixel count is strictly less than minArea. Components of exactly minArea
// pixels are kept.
func RemoveSmallComponents(mask Mask, minArea int) Mask {
	out := NewMask(mask.Height, mask.Width)
	copy(out.Pix, mask.Pix)
	if minArea <= 1 {
		return out
	}

	visited := make([]bool, len(mask.Pix))
	var stack []int
	component := make([]int, 0, minArea)

	for i := range mask.Pix {
		if mask.Pix[i] == 0 || visited[i] {
			continue
		}

		component = component[:0]
		stack = append(stack[:0], i)
		visited[i] = true
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, p)

			py, px := p/mask.Width, p%mask.Width
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dy == 0 && dx == 0 {
						continue
					}
					ny, nx := py+dy, px+dx
					if ny < 0 || ny >= mask.Height || nx < 0 || nx >= mask.Width {
						continue
					}
					n := ny*mask.Width + nx
					if mask.Pix[n] != 0 && !visited[n] {
						visited[n] = true
						stack = append(stack, n)
					}
				}
			}
		}

		if len(component) < minArea {
			for _, p := range component {
				out.Pix[p] = 0
			}
		}
	}
	return out
}

// ThresholdAndClean binarizes a probability grid and discards small
// connected components in one pass.
func ThresholdAndClean(p Grid, threshold float32, minArea int) Mask {
	return RemoveSmallComponents(Binarize(p, threshold), minArea)
}

// PostProcessAll applies ThresholdAndClean to every grid in the batch.
func PostProcessAll(ps []Grid, threshold float32, minArea int) []Mask {
	masks := make([]Mask, len(ps))
	for i, p := range ps {
		masks[i] = ThresholdAndClean(p, threshold, minArea)
	}
	return masks
}
