package submission

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWrite(t *testing.T) {
	in := "ImageId,EncodedPixels\nscan_b,-1\nscan_a,1\nscan_c,0 12\n"
	table, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())

	var buf bytes.Buffer
	require.NoError(t, table.WriteTo(&buf))
	assert.Equal(t, in, buf.String())
}

func TestRead_RejectsDuplicates(t *testing.T) {
	in := "ImageId,EncodedPixels\nscan_a,1\nscan_a,-1\n"
	_, err := Read(strings.NewReader(in))
	assert.ErrorContains(t, err, "duplicate image id")
}

func TestRead_RejectsBadHeader(t *testing.T) {
	_, err := Read(strings.NewReader("id,mask\na,1\n"))
	assert.Error(t, err)
}

func TestPendingIds_SortedSelection(t *testing.T) {
	table, err := New([]Record{
		{ImageId: "scan_c", EncodedPixels: PendingSentinel},
		{ImageId: "scan_b", EncodedPixels: NegativeSentinel},
		{ImageId: "scan_a", EncodedPixels: PendingSentinel},
		{ImageId: "scan_d", EncodedPixels: "3 5"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"scan_a", "scan_c"}, table.PendingIds())
}

func TestSetEncoding(t *testing.T) {
	table, err := New([]Record{{ImageId: "scan_a", EncodedPixels: PendingSentinel}})
	require.NoError(t, err)

	require.NoError(t, table.SetEncoding("scan_a", "0 4"))
	assert.Equal(t, "0 4", table.Records()[0].EncodedPixels)

	assert.Error(t, table.SetEncoding("missing", "0 4"))
}

func TestFillBlankEncodings(t *testing.T) {
	table, err := New([]Record{
		{ImageId: "scan_a", EncodedPixels: ""},
		{ImageId: "scan_b", EncodedPixels: "0 4"},
	})
	require.NoError(t, err)

	table.FillBlankEncodings()
	assert.Equal(t, NegativeSentinel, table.Records()[0].EncodedPixels)
	assert.Equal(t, "0 4", table.Records()[1].EncodedPixels)
}

func TestWrite_Atomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "submission_final.csv")

	table, err := New([]Record{{ImageId: "scan_a", EncodedPixels: "-1"}})
	require.NoError(t, err)
	require.NoError(t, table.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ImageId,EncodedPixels\nscan_a,-1\n", string(data))

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
