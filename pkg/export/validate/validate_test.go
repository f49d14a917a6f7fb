package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCSV(rows int) []byte {
	var b strings.Builder
	b.WriteString("# Report: users\n")
	b.WriteString("# Generated By: u-1001\n")
	b.WriteString("#\n")
	b.WriteString("Name,Email,Status\n")
	for i := 0; i < rows; i++ {
		b.WriteString("Jane Doe,jane@campus.edu,active\n")
	}
	return []byte(b.String())
}

func TestValidate_CSV(t *testing.T) {
	rows := 3
	res := Validate(sampleCSV(rows), "csv", Expected{Rows: &rows})

	assert.True(t, res.Valid)
	assert.Empty(t, res.Error)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 3, res.Metadata["rows"])
	assert.Equal(t, 3, res.Metadata["columns"])
	assert.Len(t, res.Hash, 64)
}

func TestValidate_CSVEmpty(t *testing.T) {
	res := Validate(nil, "csv", Expected{})

	assert.False(t, res.Valid)
	assert.Equal(t, "csv artifact is empty", res.Error)
}

func TestValidate_CSVMissingMetadata(t *testing.T) {
	res := Validate([]byte("Name,Email\nJane,jane@campus.edu\n"), "csv", Expected{})

	assert.False(t, res.Valid)
	assert.Contains(t, res.Error, "metadata preamble")
}

func TestValidate_CSVColumnMismatch(t *testing.T) {
	buf := []byte("# Report: users\nName,Email,Status\nJane,jane@campus.edu\n")
	res := Validate(buf, "csv", Expected{})

	assert.False(t, res.Valid)
	assert.Contains(t, res.Error, "column count mismatch on data row 1")
}

func TestValidate_CSVQuotedCommas(t *testing.T) {
	buf := []byte("# Report: users\nName,Remark\n\"Doe, Jane\",\"said \"\"hi, there\"\"\"\n")
	res := Validate(buf, "csv", Expected{})

	require.True(t, res.Valid, res.Error)
	assert.Equal(t, 1, res.Metadata["rows"])
	assert.Equal(t, 2, res.Metadata["columns"])
}

func TestValidate_CSVQuotedNewlines(t *testing.T) {
	// A newline inside a quoted field is part of the record, not a row break
	buf := []byte("# Report: users\nName,Remark\n\"Jane\nDoe\",ok\nJohn Roe,fine\n")
	res := Validate(buf, "csv", Expected{})

	require.True(t, res.Valid, res.Error)
	assert.Equal(t, 2, res.Metadata["rows"])
	assert.Equal(t, 2, res.Metadata["columns"])
}

func TestValidate_CSVRowCountWarning(t *testing.T) {
	expected := 5
	res := Validate(sampleCSV(3), "csv", Expected{Rows: &expected})

	assert.True(t, res.Valid, "a count mismatch warns, it does not fail")
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "artifact reports 3 rows, expected 5")
}

func TestValidate_XLSXSignatures(t *testing.T) {
	pad := strings.Repeat("x", 200)

	tooSmall := Validate([]byte("PK\x03\x04"), "xlsx", Expected{})
	assert.False(t, tooSmall.Valid)
	assert.Contains(t, tooSmall.Error, "too small")

	badSig := Validate([]byte("NOTAZIP"+pad), "xlsx", Expected{})
	assert.False(t, badSig.Valid)
	assert.Contains(t, badSig.Error, "ZIP local file header")

	noEOCD := Validate([]byte("PK\x03\x04"+pad), "xlsx", Expected{})
	assert.False(t, noEOCD.Valid)
	assert.Contains(t, noEOCD.Error, "end-of-central-directory")

	noMembers := Validate([]byte("PK\x03\x04"+pad+"PK\x05\x06"), "xlsx", Expected{})
	assert.False(t, noMembers.Valid)
	assert.Contains(t, noMembers.Error, "[Content_Types].xml")

	ok := Validate([]byte("PK\x03\x04[Content_Types].xml xl/workbook.xml xl/worksheets/"+pad+"PK\x05\x06"), "xlsx", Expected{})
	assert.True(t, ok.Valid, ok.Error)
}

func TestValidate_PDF(t *testing.T) {
	ok := Validate([]byte("%PDF-1.4\nsome objects /Catalog more\n%%EOF\n"), "pdf", Expected{})
	require.True(t, ok.Valid, ok.Error)
	assert.Equal(t, "1.4", ok.Metadata["pdf_version"])

	badSig := Validate([]byte("not a pdf"), "pdf", Expected{})
	assert.False(t, badSig.Valid)
	assert.Contains(t, badSig.Error, "%PDF- signature")

	noEOF := Validate([]byte("%PDF-1.7\n/Catalog"), "pdf", Expected{})
	assert.False(t, noEOF.Valid)
	assert.Contains(t, noEOF.Error, "%%EOF")

	noCatalog := Validate([]byte("%PDF-1.7\nstuff\n%%EOF"), "pdf", Expected{})
	assert.False(t, noCatalog.Valid)
	assert.Contains(t, noCatalog.Error, "catalog")
}

func TestValidate_UnknownFormat(t *testing.T) {
	res := Validate([]byte("data"), "docx", Expected{})
	assert.False(t, res.Valid)
	assert.Contains(t, res.Error, "unknown format")
}

func TestNewReport(t *testing.T) {
	rows := 2
	passed := NewReport(Validate(sampleCSV(2), "csv", Expected{Rows: &rows}))
	assert.Equal(t, "passed", passed.Status)
	assert.Empty(t, passed.Errors)
	assert.Equal(t, Version, passed.ValidatorVersion)
	assert.False(t, passed.ValidatedAt.IsZero())

	failed := NewReport(Validate(nil, "csv", Expected{}))
	assert.Equal(t, "failed", failed.Status)
	require.Len(t, failed.Errors, 1)
	assert.Equal(t, "csv artifact is empty", failed.Errors[0])
}
