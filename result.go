package bqathena

import (
	"fmt"
	"strings"
	"time"
)

// Result is the outcome of one run.
type Result struct {
	RunID     string
	StartedAt time.Time

	Events   int
	Sessions int

	// Object is the uploaded file, empty when nothing was uploaded.
	Object  string
	Archive string

	Executions []Execution
	Error      error
}

// Message is a human readable summary of r.
func (r *Result) Message() string {
	switch {
	case r.Error != nil:
		return fmt.Sprintf("error occurred during execution: %v", r.Error)
	case r.Events == 0:
		return "no records found in BigQuery"
	case r.Object == "":
		return "no file was uploaded to S3 because there were no sessions"
	}

	ids := make([]string, len(r.Executions))
	for i, e := range r.Executions {
		ids[i] = fmt.Sprintf("%s=%s (%s)", e.Statement, e.ID, e.State)
	}

	return fmt.Sprintf("process completed: %d sessions from %d events loaded from %s; athena query executions: %s",
		r.Sessions, r.Events, r.Object, strings.Join(ids, ", "))
}
