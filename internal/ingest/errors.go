package ingest

import (
	"fmt"
	"strings"
)

// DataSourceError reports a source that could not be turned into a table:
// the resource is missing or unreadable, required columns are absent, or
// a cell could not be parsed.
type DataSourceError struct {
	Source  string
	Reason  string
	Missing []string // required columns absent from the source
	Err     error
}

func (e *DataSourceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "data source %s: %s", e.Source, e.Reason)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, " (missing columns: %s)", strings.Join(e.Missing, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}
