package steps

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match with errors.Is against a returned *Error.
var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrClassification = errors.New("classification failed")
	ErrRetrieval      = errors.New("retrieval failed")
	ErrGeneration     = errors.New("generation failed")
)

const (
	StageValidate  = "validate"
	StageLookup    = "lookup"
	StageClassify  = "classify"
	StageRetrieve  = "retrieve"
	StageGenerate  = "generate"
	StageIngest    = "ingest"
	StageGraph     = "graph"
	StageSummarize = "summarize"
	StageExtract   = "extract"
	StageSession   = "session"
)

// Error carries enough context for a caller to render a useful message.
type Error struct {
	Kind   error
	Stage  string
	DBName string
	Intent Intent
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Stage)
	if e.DBName != "" {
		fmt.Fprintf(&b, " %q", e.DBName)
	}
	if e.Intent != "" {
		fmt.Fprintf(&b, " (%s)", e.Intent)
	}
	b.WriteString(": ")
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	var out []error
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func newError(kind error, stage, db string, intent Intent, err error) *Error {
	return &Error{Kind: kind, Stage: stage, DBName: db, Intent: intent, Err: err}
}

// writeError reports a failed local artifact write. It carries no kind, so
// callers treat it as an internal failure.
func writeError(stage, db, what string, err error) error {
	return fmt.Errorf("%s %q: write %s: %w", stage, db, what, err)
}

// KindOf returns the taxonomy kind of err, or nil.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}
