package imaging

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// NoMaskSentinel marks an all-background mask in the submission format. It is
// distinct from an empty run list: an empty encoding is never produced.
const NoMaskSentinel = "-1"

// ErrEncodingAmbiguity indicates an encoded-mask value that is neither a
// sentinel nor a well-formed run-length string.
var ErrEncodingAmbiguity = errors.New("ambiguous mask encoding")

// MaskToRLE encodes a binary mask as space-separated "start length" pairs.
// Pixels are scanned column-major (down each column, then the next column)
// and run starts are absolute 0-based offsets from the scan origin. An
// all-background mask encodes to NoMaskSentinel.
func MaskToRLE(mask Mask) string {
	var b strings.Builder
	runStart, runLen := -1, 0
	pos := 0
	for x := 0; x < mask.Width; x++ {
		for y := 0; y < mask.Height; y++ {
			if mask.Pix[y*mask.Width+x] != 0 {
				if runLen == 0 {
					runStart = pos
				}
				runLen++
			} else if runLen > 0 {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				fmt.Fprintf(&b, "%d %d", runStart, runLen)
				runLen = 0
			}
			pos++
		}
	}
	if runLen > 0 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d %d", runStart, runLen)
	}
	if b.Len() == 0 {
		return NoMaskSentinel
	}
	return b.String()
}

// RLEToMask decodes an encoding produced by MaskToRLE into a height x width
// binary mask. The NoMaskSentinel decodes to the all-background mask rather
// than being parsed as a run list.
func RLEToMask(encoding string, height, width int) (Mask, error) {
	mask := NewMask(height, width)
	encoding = strings.TrimSpace(encoding)
	if encoding == NoMaskSentinel || encoding == "" {
		return mask, nil
	}

	fields := strings.Fields(encoding)
	if len(fields)%2 != 0 {
		return Mask{}, fmt.Errorf("%w: odd number of tokens in %q", ErrEncodingAmbiguity, encoding)
	}
	total := height * width
	for i := 0; i < len(fields); i += 2 {
		start, err := strconv.Atoi(fields[i])
		if err != nil {
			return Mask{}, fmt.Errorf("%w: non-numeric run start %q", ErrEncodingAmbiguity, fields[i])
		}
		length, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return Mask{}, fmt.Errorf("%w: non-numeric run length %q", ErrEncodingAmbiguity, fields[i+1])
		}
		if start < 0 || length <= 0 || start+length > total {
			return Mask{}, fmt.Errorf("%w: run %d+%d outside %dx%d mask", ErrEncodingAmbiguity, start, length, height, width)
		}
		for pos := start; pos < start+length; pos++ {
			// invert the column-major scan position
			x, y := pos/height, pos%height
			mask.Pix[y*width+x] = 1
		}
	}
	return mask, nil
}
