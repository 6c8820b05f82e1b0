// Package npy writes probability-map batches in the NumPy .npy v1 format so
// downstream analysis tooling can load them with np.load.
package npy

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var magic = []byte("\x93NUMPY")

// Write emits a little-endian float32 array with the given shape. len(data)
// must equal the product of the shape dimensions.
func Write(w io.Writer, shape []int, data []float32) error {
	n := 1
	for _, d := range shape {
		n *= d
	}
	if n != len(data) {
		return fmt.Errorf("shape %v does not match %d elements", shape, len(data))
	}

	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}
	shapeStr := strings.Join(dims, ", ")
	if len(shape) == 1 {
		shapeStr += ","
	}
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%s), }", shapeStr)

	// pad so the data section starts on a 64-byte boundary, per the format
	total := len(magic) + 2 + 2 + len(header) + 1
	if pad := (64 - total%64) % 64; pad > 0 {
		header += strings.Repeat(" ", pad)
	}
	header += "\n"

	if _, err := w.Write(magic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{1, 0}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, data)
}

// WriteFile writes the array to path via Write.
func WriteFile(path string, shape []int, data []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := Write(f, shape, data); err != nil {
		return err
	}
	return f.Close()
}

var headerRe = regexp.MustCompile(`'descr':\s*'([^']+)',\s*'fortran_order':\s*(\w+),\s*'shape':\s*\(([^)]*)\)`)

// Read parses a float32 .npy array written by Write.
func Read(r io.Reader) ([]int, []float32, error) {
	buf := make([]byte, len(magic)+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, nil, err
	}
	if string(buf[:len(magic)]) != string(magic) {
		return nil, nil, fmt.Errorf("not a .npy file")
	}
	var headerLen uint16
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return nil, nil, err
	}
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, nil, err
	}

	m := headerRe.FindStringSubmatch(string(header))
	if m == nil {
		return nil, nil, fmt.Errorf("unparseable .npy header %q", header)
	}
	if m[1] != "<f4" {
		return nil, nil, fmt.Errorf("unsupported dtype %q", m[1])
	}
	if m[2] != "False" {
		return nil, nil, fmt.Errorf("fortran order arrays not supported")
	}

	var shape []int
	n := 1
	for _, part := range strings.Split(m[3], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return nil, nil, fmt.Errorf("bad shape dimension %q", part)
		}
		shape = append(shape, d)
		n *= d
	}

	data := make([]float32, n)
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, nil, err
	}
	return shape, data, nil
}
