package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStagesSupportedFormats(t *testing.T) {
	cases := map[string][]byte{
		"data.csv":     []byte("a,b\n1,2\n"),
		"notes.txt":    []byte("hello"),
		"doc.json":     []byte(`{"k": 1}`),
		"rows.jsonl":   []byte("{\"a\":1}\n{\"a\":2}\n"),
		"book.xlsx":    {'P', 'K', 3, 4, 0},
		"cols.parquet": []byte("PAR1....PAR1"),
		"db.sqlite":    []byte("SQLite format 3\x00 more header bytes"),
	}
	for name, data := range cases {
		f, err := New(name, data)
		require.NoError(t, err, name)
		assert.Equal(t, name, f.Name)
		assert.Len(t, f.Digest, 64)
	}
}

func TestNewRejectsUnsupportedFormat(t *testing.T) {
	_, err := New("binary.exe", []byte("MZ"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = New("noext", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNewRejectsCorruptContent(t *testing.T) {
	cases := map[string][]byte{
		"empty.csv":    {},
		"bad.json":     []byte(`{"broken":`),
		"bad.jsonl":    []byte("{\"a\":1}\nnot json\n"),
		"bad.xlsx":     []byte("plain text"),
		"bad.parquet":  []byte("no magic here"),
		"bad.sqlite":   []byte("definitely not a database"),
		"notutf8.txt":  {0xff, 0xfe, 0x00, 0x80},
	}
	for name, data := range cases {
		_, err := New(name, data)
		assert.ErrorIs(t, err, ErrCorrupt, name)
	}
}

func TestNewStripsDirectories(t *testing.T) {
	f, err := New("../../etc/data.csv", []byte("a\n1\n"))
	require.NoError(t, err)
	assert.Equal(t, "data.csv", f.Name)
}

func TestDigestTracksContent(t *testing.T) {
	a, err := New("a.csv", []byte("a\n1\n"))
	require.NoError(t, err)
	b, err := New("b.csv", []byte("a\n1\n"))
	require.NoError(t, err)
	c, err := New("c.csv", []byte("a\n2\n"))
	require.NoError(t, err)

	assert.Equal(t, a.Digest, b.Digest)
	assert.NotEqual(t, a.Digest, c.Digest)
}

func TestLoadFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("x,y\n1,2\n"), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "data.csv", f.Name)
	assert.Equal(t, []byte("x,y\n1,2\n"), f.Data)

	_, err = Load(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestDescribeCSVShape(t *testing.T) {
	f, err := New("data.csv", []byte("a,b,c\n1,2,3\n4,5,6\n"))
	require.NoError(t, err)
	assert.Equal(t, "data.csv: CSV table, 3 rows x 3 columns, 18 bytes", f.Describe())
}

func TestDescribeJSONKeys(t *testing.T) {
	f, err := New("doc.json", []byte(`{"name": "x", "age": 3}`))
	require.NoError(t, err)
	assert.Equal(t, "doc.json: JSON document, top-level keys: age, name, 23 bytes", f.Describe())

	f, err = New("list.json", []byte(`[1, 2, 3]`))
	require.NoError(t, err)
	assert.Equal(t, "list.json: JSON document, array of 3 items, 9 bytes", f.Describe())
}

func TestDescribePlainFormats(t *testing.T) {
	f, err := New("notes.txt", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "notes.txt: plain text, 5 bytes", f.Describe())
}

func TestDescribeAllStableOrder(t *testing.T) {
	files := []File{
		must(t)(New("zebra.txt", []byte("z"))),
		must(t)(New("alpha.csv", []byte("a\n1\n"))),
	}
	out := DescribeAll(files)
	assert.Less(t,
		strings.Index(out, "alpha.csv"), strings.Index(out, "zebra.txt"),
		"inventory must be sorted: %s", out)
}

func TestContentsAndDigests(t *testing.T) {
	files := []File{
		must(t)(New("a.csv", []byte("a\n1\n"))),
		must(t)(New("b.txt", []byte("hi"))),
	}

	contents := Contents(files)
	require.Len(t, contents, 2)
	assert.Equal(t, []byte("hi"), contents["b.txt"])

	digests := Digests(files)
	assert.Equal(t, files[0].Digest, digests["a.csv"])
}

func must(t *testing.T) func(f File, err error) File {
	return func(f File, err error) File {
		t.Helper()
		require.NoError(t, err)
		return f
	}
}
