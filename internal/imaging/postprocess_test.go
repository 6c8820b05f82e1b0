package imaging

import "testing"

func gridFromRows(rows [][]float32) Grid {
	g := NewGrid(len(rows), len(rows[0]))
	for y, row := range rows {
		for x, v := range row {
			g.Pix[y*g.Width+x] = v
		}
	}
	return g
}

func TestBinarize_StrictThreshold(t *testing.T) {
	g := gridFromRows([][]float32{
		{0.49, 0.5, 0.51},
	})
	mask := Binarize(g, 0.5)
	want := []uint8{0, 0, 1} // exactly-at-threshold is background
	for i, w := range want {
		if mask.Pix[i] != w {
			t.Errorf("pixel %d: got %d, want %d", i, mask.Pix[i], w)
		}
	}
}

func TestRemoveSmallComponents_DiagonalConnectivity(t *testing.T) {
	// Two pixels touching only diagonally form one 8-connected component of
	// size 2 and must survive minArea=2.
	mask := maskFromRows([][]uint8{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 0},
	})
	out := RemoveSmallComponents(mask, 2)
	if out.Pix[0] != 1 || out.Pix[4] != 1 {
		t.Errorf("diagonal component was zeroed: %v", out.Pix)
	}
}

func TestRemoveSmallComponents_AreaBoundary(t *testing.T) {
	// A 2x2 block (area 4) and an isolated pixel (area 1), separated so they
	// are not 8-connected.
	mask := maskFromRows([][]uint8{
		{1, 1, 0, 0, 0},
		{1, 1, 0, 0, 1},
		{0, 0, 0, 0, 0},
	})

	// boundary is inclusive on the keep side: area == minArea stays
	out := RemoveSmallComponents(mask, 4)
	for _, p := range []int{0, 1, 5, 6} {
		if out.Pix[p] != 1 {
			t.Errorf("block pixel %d zeroed at minArea=4", p)
		}
	}
	if out.Pix[9] != 0 {
		t.Errorf("isolated pixel kept at minArea=4")
	}

	out = RemoveSmallComponents(mask, 5)
	for _, p := range []int{0, 1, 5, 6} {
		if out.Pix[p] != 0 {
			t.Errorf("block pixel %d kept at minArea=5", p)
		}
	}
}

func TestThresholdAndClean_EmptyInput(t *testing.T) {
	mask := ThresholdAndClean(NewGrid(4, 4), 0.5, 3)
	for i, v := range mask.Pix {
		if v != 0 {
			t.Fatalf("all-zero input produced foreground at %d", i)
		}
	}
}

func TestPostProcessAll(t *testing.T) {
	batch := []Grid{
		gridFromRows([][]float32{{0.9, 0.9}, {0.9, 0.1}}),
		gridFromRows([][]float32{{0.9, 0.1}, {0.1, 0.1}}),
	}
	masks := PostProcessAll(batch, 0.5, 2)
	if got := masks[0].Pix[0]; got != 1 {
		t.Errorf("large component removed: %v", masks[0].Pix)
	}
	if got := masks[1].Pix[0]; got != 0 {
		t.Errorf("small component kept: %v", masks[1].Pix)
	}
}
