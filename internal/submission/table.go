// Package submission manages the two-column classification table that flows
// between the classification and segmentation stages.
package submission

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

const (
	// PendingSentinel marks a record classified positive whose mask has not
	// been segmented yet.
	PendingSentinel = "1"
	// NegativeSentinel marks a record classified negative; it doubles as the
	// no-mask run-length sentinel.
	NegativeSentinel = "-1"
)

// Record is one row of the classification table.
type Record struct {
	ImageId       string
	EncodedPixels string
}

// Table is an ordered classification table with unique image ids. Row order
// is preserved from load to write.
type Table struct {
	records []Record
	index   map[string]int
}

func New(records []Record) (*Table, error) {
	t := &Table{records: records, index: make(map[string]int, len(records))}
	for i, rec := range records {
		if rec.ImageId == "" {
			return nil, fmt.Errorf("row %d: empty image id", i)
		}
		if _, ok := t.index[rec.ImageId]; ok {
			return nil, fmt.Errorf("duplicate image id %q", rec.ImageId)
		}
		t.index[rec.ImageId] = i
	}
	return t, nil
}

// Read parses a CSV table with an ImageId,EncodedPixels header.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading table header: %w", err)
	}
	if header[0] != "ImageId" || header[1] != "EncodedPixels" {
		return nil, fmt.Errorf("unexpected table header %v", header)
	}

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading table row: %w", err)
		}
		records = append(records, Record{ImageId: row[0], EncodedPixels: row[1]})
	}
	return New(records)
}

func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening classification table: %w", err)
	}
	defer f.Close()
	return Read(f)
}

func (t *Table) Len() int { return len(t.records) }

// Records returns the rows in table order. The slice is shared; callers must
// not mutate it.
func (t *Table) Records() []Record { return t.records }

// PendingIds returns the ids awaiting segmentation, sorted lexicographically.
func (t *Table) PendingIds() []string {
	var ids []string
	for _, rec := range t.records {
		if rec.EncodedPixels == PendingSentinel {
			ids = append(ids, rec.ImageId)
		}
	}
	sort.Strings(ids)
	return ids
}

// SetEncoding overwrites the encoded-mask field of the given id.
func (t *Table) SetEncoding(id, encoding string) error {
	i, ok := t.index[id]
	if !ok {
		return fmt.Errorf("unknown image id %q", id)
	}
	t.records[i].EncodedPixels = encoding
	return nil
}

// FillBlankEncodings forces any blank encoded-mask field to the no-mask
// sentinel. Blank fields should not occur after a merge, but upstream
// producers have emitted them for empty masks.
func (t *Table) FillBlankEncodings() {
	for i := range t.records {
		if t.records[i].EncodedPixels == "" {
			t.records[i].EncodedPixels = NegativeSentinel
		}
	}
}

func (t *Table) WriteTo(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ImageId", "EncodedPixels"}); err != nil {
		return err
	}
	for _, rec := range t.records {
		if err := cw.Write([]string{rec.ImageId, rec.EncodedPixels}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write persists the table atomically: the file at path is either the
// previous version or the complete new table, never a partial write.
func (t *Table) Write(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp table file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := t.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
