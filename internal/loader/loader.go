// Package loader stages user-supplied analysis files: it validates the
// format, fingerprints the content, and renders the short descriptions the
// planning prompt embeds.
package loader

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUnsupportedFormat reports a file extension the analyst cannot work with.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrCorrupt reports a file whose content does not match its format.
	ErrCorrupt = errors.New("corrupt file")
)

// QuestionFile is the upload that carries the user's question rather than data.
const QuestionFile = "question.txt"

// formatNames maps supported extensions to the description shown to the model.
var formatNames = map[string]string{
	".csv":     "CSV table",
	".tsv":     "TSV table",
	".json":    "JSON document",
	".jsonl":   "JSON lines",
	".xlsx":    "Excel workbook",
	".parquet": "Parquet table",
	".sqlite":  "SQLite database",
	".txt":     "plain text",
	".md":      "Markdown text",
}

// File is one staged input: raw bytes plus the content digest used for
// execution cache keys.
type File struct {
	Name   string
	Data   []byte
	Digest string
}

// New validates and stages one file.
func New(name string, data []byte) (File, error) {
	base := filepath.Base(name)
	ext := strings.ToLower(filepath.Ext(base))
	if _, ok := formatNames[ext]; !ok {
		return File{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, base)
	}
	if err := validate(ext, data); err != nil {
		return File{}, fmt.Errorf("%s: %w", base, err)
	}

	sum := sha256.Sum256(data)
	return File{Name: base, Data: data, Digest: hex.EncodeToString(sum[:])}, nil
}

// Load stages one file from disk.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	return New(filepath.Base(path), data)
}

// LoadAll stages multiple files from disk.
func LoadAll(paths []string) ([]File, error) {
	files := make([]File, 0, len(paths))
	for _, path := range paths {
		f, err := Load(path)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// Describe renders the one-line summary embedded in the planning prompt.
// Tabular and JSON formats get a shape hint so the model can plan without a
// probing round.
func (f File) Describe() string {
	ext := strings.ToLower(filepath.Ext(f.Name))
	base := fmt.Sprintf("%s: %s", f.Name, formatNames[ext])
	switch ext {
	case ".csv", ".tsv":
		delim := byte(',')
		if ext == ".tsv" {
			delim = '\t'
		}
		if rows, cols, ok := tableShape(f.Data, delim); ok {
			return fmt.Sprintf("%s, %d rows x %d columns, %d bytes", base, rows, cols, len(f.Data))
		}
	case ".json":
		if shape := jsonShape(f.Data); shape != "" {
			return fmt.Sprintf("%s, %s, %d bytes", base, shape, len(f.Data))
		}
	}
	return fmt.Sprintf("%s, %d bytes", base, len(f.Data))
}

// tableShape counts records and header fields. Ragged or unreadable input
// reports no shape rather than an error; Describe is best effort.
func tableShape(data []byte, delim byte) (rows, cols int, ok bool) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = rune(delim)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return 0, 0, false
	}
	rows = 1
	cols = len(header)
	for {
		if _, err := r.Read(); err != nil {
			break
		}
		rows++
	}
	return rows, cols, true
}

// jsonShape summarizes a JSON document: top-level keys for an object, an
// item count for an array.
func jsonShape(data []byte) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > 8 {
			keys = append(keys[:8], "...")
		}
		return "top-level keys: " + strings.Join(keys, ", ")
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err == nil {
		return fmt.Sprintf("array of %d items", len(arr))
	}
	return ""
}

// Contents maps file names to bytes, the shape the executor stages.
func Contents(files []File) map[string][]byte {
	out := make(map[string][]byte, len(files))
	for _, f := range files {
		out[f.Name] = f.Data
	}
	return out
}

// Digests maps file names to content digests for execution cache keys.
func Digests(files []File) map[string]string {
	out := make(map[string]string, len(files))
	for _, f := range files {
		out[f.Name] = f.Digest
	}
	return out
}

// DescribeAll renders the file inventory in a stable order.
func DescribeAll(files []File) string {
	lines := make([]string, 0, len(files))
	for _, f := range files {
		lines = append(lines, f.Describe())
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// validate runs the cheap per-format integrity checks.
func validate(ext string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty", ErrCorrupt)
	}
	switch ext {
	case ".json":
		if !json.Valid(data) {
			return fmt.Errorf("%w: invalid JSON", ErrCorrupt)
		}
	case ".jsonl":
		for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
			if line == "" {
				continue
			}
			if !json.Valid([]byte(line)) {
				return fmt.Errorf("%w: invalid JSON line", ErrCorrupt)
			}
		}
	case ".csv", ".tsv", ".txt", ".md":
		if !utf8.Valid(data) {
			return fmt.Errorf("%w: not valid UTF-8", ErrCorrupt)
		}
	case ".xlsx":
		// xlsx is a zip archive; check the magic.
		if len(data) < 4 || data[0] != 'P' || data[1] != 'K' {
			return fmt.Errorf("%w: not a zip archive", ErrCorrupt)
		}
	case ".parquet":
		if len(data) < 8 || string(data[:4]) != "PAR1" {
			return fmt.Errorf("%w: missing parquet magic", ErrCorrupt)
		}
	case ".sqlite":
		if len(data) < 16 || string(data[:15]) != "SQLite format 3" {
			return fmt.Errorf("%w: missing sqlite magic", ErrCorrupt)
		}
	}
	return nil
}
