package imaging

import (
	"errors"
	"math/rand"
	"testing"
)

func maskFromRows(rows [][]uint8) Mask {
	mask := NewMask(len(rows), len(rows[0]))
	for y, row := range rows {
		for x, v := range row {
			mask.Pix[y*mask.Width+x] = v
		}
	}
	return mask
}

func TestMaskToRLE_ColumnMajor(t *testing.T) {
	// Column-major scan of a 3x3 mask: offsets run down each column first.
	mask := maskFromRows([][]uint8{
		{1, 0, 0},
		{1, 0, 1},
		{0, 0, 1},
	})
	// column 0 -> offsets 0,1; column 2 -> offsets 7,8
	want := "0 2 7 2"
	if got := MaskToRLE(mask); got != want {
		t.Errorf("MaskToRLE = %q, want %q", got, want)
	}
}

func TestMaskToRLE_FullMask(t *testing.T) {
	mask := NewMask(4, 4)
	for i := range mask.Pix {
		mask.Pix[i] = 1
	}
	if got := MaskToRLE(mask); got != "0 16" {
		t.Errorf("MaskToRLE = %q, want %q", got, "0 16")
	}
}

func TestMaskToRLE_EmptyMaskSentinel(t *testing.T) {
	if got := MaskToRLE(NewMask(8, 8)); got != NoMaskSentinel {
		t.Errorf("empty mask encoded to %q, want sentinel %q", got, NoMaskSentinel)
	}
}

func TestRLEToMask_Sentinel(t *testing.T) {
	mask, err := RLEToMask(NoMaskSentinel, 8, 8)
	if err != nil {
		t.Fatalf("decoding sentinel: %v", err)
	}
	for i, v := range mask.Pix {
		if v != 0 {
			t.Fatalf("sentinel decoded to foreground at %d", i)
		}
	}
}

func TestRLERoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	for trial := 0; trial < 50; trial++ {
		mask := NewMask(16, 16)
		for i := range mask.Pix {
			if rng.Float32() < 0.3 {
				mask.Pix[i] = 1
			}
		}
		decoded, err := RLEToMask(MaskToRLE(mask), mask.Height, mask.Width)
		if err != nil {
			t.Fatalf("trial %d: %v", trial, err)
		}
		for i := range mask.Pix {
			if decoded.Pix[i] != mask.Pix[i] {
				t.Fatalf("trial %d: round trip mismatch at pixel %d", trial, i)
			}
		}
	}
}

func TestRLEToMask_Ambiguous(t *testing.T) {
	tests := []struct {
		name     string
		encoding string
	}{
		{"non-numeric start", "abc 4"},
		{"non-numeric length", "0 xyz"},
		{"odd token count", "0 4 9"},
		{"negative start", "-3 4"},
		{"run past end", "60 10"},
		{"zero length run", "4 0"},
	}
	for _, tt := range tests {
		if _, err := RLEToMask(tt.encoding, 8, 8); !errors.Is(err, ErrEncodingAmbiguity) {
			t.Errorf("%s: got err %v, want ErrEncodingAmbiguity", tt.name, err)
		}
	}
}
