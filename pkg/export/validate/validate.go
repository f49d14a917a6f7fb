// Package validate inspects finished export artifacts and certifies their
// format-specific structural invariants before a job is marked done.
package validate

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Version tags every integrity report so downstream consumers can tell
// which rule set certified the artifact.
const Version = "integrity/1.2"

const (
	xlsxMinSize = 100
	xlsxMaxSize = 50 << 20
)

var (
	zipLocalHeader = []byte{0x50, 0x4b, 0x03, 0x04} // PK\x03\x04
	zipEOCD        = []byte{0x50, 0x4b, 0x05, 0x06} // PK\x05\x06
)

// Expected carries the worker's expectations about the artifact.
type Expected struct {
	Rows *int
}

// Result is the outcome of a structural validation pass.
type Result struct {
	Valid    bool           `json:"valid"`
	Hash     string         `json:"hash"`
	FileSize int            `json:"file_size"`
	Format   string         `json:"format"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
}

// Report is the immutable validation report persisted with a completed
// job.
type Report struct {
	FileHash         string         `json:"file_hash"`
	FileSize         int            `json:"file_size"`
	Format           string         `json:"format"`
	Status           string         `json:"status"` // passed | failed
	Errors           []string       `json:"errors,omitempty"`
	Warnings         []string       `json:"warnings,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	ValidatedAt      time.Time      `json:"validated_at"`
	ValidatorVersion string         `json:"validator_version"`
}

// Validate checks buf against the structural invariants of format.
func Validate(buf []byte, format string, exp Expected) Result {
	sum := sha256.Sum256(buf)
	res := Result{
		Hash:     hex.EncodeToString(sum[:]),
		FileSize: len(buf),
		Format:   format,
		Metadata: map[string]any{},
	}

	switch format {
	case "csv":
		validateCSV(buf, &res)
	case "xlsx":
		validateXLSX(buf, &res)
	case "pdf":
		validatePDF(buf, &res)
	default:
		res.Error = fmt.Sprintf("unknown format: %s", format)
		return res
	}

	if res.Valid && exp.Rows != nil {
		if got, ok := res.Metadata["rows"].(int); ok && got != *exp.Rows {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("row count mismatch: artifact reports %d rows, expected %d", got, *exp.Rows))
		}
	}
	return res
}

func validateCSV(buf []byte, res *Result) {
	if len(buf) == 0 {
		res.Error = "csv artifact is empty"
		return
	}

	lines := splitCSVRecords(string(buf))
	metaLines := 0
	headerIdx := -1
	for i, line := range lines {
		if strings.HasPrefix(line, "#") {
			metaLines++
			continue
		}
		if strings.TrimSpace(line) != "" {
			headerIdx = i
			break
		}
	}
	if metaLines == 0 {
		res.Error = "csv artifact has no metadata preamble"
		return
	}
	if headerIdx < 0 {
		res.Error = "csv artifact has no header line below the metadata block"
		return
	}

	headerFields := countCSVFields(lines[headerIdx])
	dataRows := 0
	sampled := 0
	for i := headerIdx + 1; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		dataRows++
		if sampled < 5 {
			sampled++
			if got := countCSVFields(line); got != headerFields {
				res.Error = fmt.Sprintf("column count mismatch on data row %d: got %d fields, header has %d",
					dataRows, got, headerFields)
				return
			}
		}
	}

	res.Valid = true
	res.Metadata["rows"] = dataRows
	res.Metadata["columns"] = headerFields
}

func validateXLSX(buf []byte, res *Result) {
	if len(buf) <= xlsxMinSize {
		res.Error = fmt.Sprintf("xlsx artifact too small: %d bytes", len(buf))
		return
	}
	if len(buf) > xlsxMaxSize {
		res.Error = fmt.Sprintf("xlsx artifact exceeds %d bytes", xlsxMaxSize)
		return
	}
	if !bytes.HasPrefix(buf, zipLocalHeader) {
		res.Error = "xlsx artifact missing ZIP local file header signature"
		return
	}
	if !bytes.Contains(buf, zipEOCD) {
		res.Error = "xlsx artifact missing ZIP end-of-central-directory signature"
		return
	}
	for _, member := range []string{"[Content_Types].xml", "xl/workbook.xml", "xl/worksheets/"} {
		if !bytes.Contains(buf, []byte(member)) {
			res.Error = fmt.Sprintf("xlsx artifact missing OOXML package member %s", member)
			return
		}
	}

	res.Valid = true
	res.Metadata["file_size"] = len(buf)
}

func validatePDF(buf []byte, res *Result) {
	if !bytes.HasPrefix(buf, []byte("%PDF-")) {
		res.Error = "pdf artifact missing %PDF- signature"
		return
	}
	var major, minor int
	if _, err := fmt.Sscanf(string(buf[:min(len(buf), 16)]), "%%PDF-%d.%d", &major, &minor); err != nil {
		res.Error = "pdf artifact has unparsable version number"
		return
	}
	if !bytes.Contains(buf, []byte("%%EOF")) {
		res.Error = "pdf artifact missing %%EOF marker"
		return
	}
	if !bytes.Contains(buf, []byte("/Catalog")) {
		res.Error = "pdf artifact missing catalog object"
		return
	}

	res.Valid = true
	res.Metadata["pdf_version"] = fmt.Sprintf("%d.%d", major, minor)
}

// splitCSVRecords splits the content into logical CSV records: a newline
// inside a double-quoted field is part of the record, not a terminator.
func splitCSVRecords(s string) []string {
	var records []string
	start := 0
	inQuotes := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			if inQuotes && i+1 < len(s) && s[i+1] == '"' {
				i++ // escaped quote
			} else {
				inQuotes = !inQuotes
			}
		case '\n':
			if !inQuotes {
				records = append(records, strings.TrimSuffix(s[start:i], "\r"))
				start = i + 1
			}
		}
	}
	if start < len(s) {
		records = append(records, s[start:])
	}
	return records
}

// countCSVFields counts comma-separated fields respecting double-quoted
// sections with doubled internal quotes.
func countCSVFields(line string) int {
	fields := 1
	inQuotes := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				i++ // escaped quote
			} else {
				inQuotes = !inQuotes
			}
		case ',':
			if !inQuotes {
				fields++
			}
		}
	}
	return fields
}

// NewReport packages a validation result into the persisted report shape.
func NewReport(res Result) Report {
	rep := Report{
		FileHash:         res.Hash,
		FileSize:         res.FileSize,
		Format:           res.Format,
		Status:           "passed",
		Warnings:         res.Warnings,
		Metadata:         res.Metadata,
		ValidatedAt:      time.Now().UTC(),
		ValidatorVersion: Version,
	}
	if !res.Valid {
		rep.Status = "failed"
		rep.Errors = []string{res.Error}
	}
	return rep
}
