// Package storage hands finished export artifacts to a blob store and
// retrieves them for download.
package storage

// Provider stores and retrieves export artifacts by path.
type Provider interface {
	Put(name string, data []byte, contentType string) (string, error)
	Get(path string) ([]byte, error)
}

// ContentType returns the download content type for an export format.
func ContentType(format string) string {
	switch format {
	case "csv":
		return "text/csv"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
