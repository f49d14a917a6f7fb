package export

import (
	"fmt"
	"strings"
)

// ValidationError reports a malformed admission request. It lists every
// invalid field so the submitter can fix them in one pass.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid value for field(s): " + strings.Join(e.Fields, ", ")
}

// RateLimitError reports that the submitter already has the maximum number
// of active jobs.
type RateLimitError struct {
	UserID string
	Active int
	Limit  int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("user %s already has %d active export jobs (limit %d)", e.UserID, e.Active, e.Limit)
}

// QueryError marks a data-store read failure during pipeline execution.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string { return "query failed: " + e.Err.Error() }
func (e *QueryError) Unwrap() error { return e.Err }

// IntegrityError marks a validator rejection of the produced artifact. A
// buffer that exists but fails validation is a hard job failure.
type IntegrityError struct {
	Format  string
	Message string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s integrity validation failed: %s", e.Format, e.Message)
}

// ErrJobNotFound is returned by stores when no job matches.
var ErrJobNotFound = fmt.Errorf("export job not found")
