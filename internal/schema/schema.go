// Package schema validates request bodies against the CUE definitions in
// tasking.cue before they are decoded into Go values.
//
// Definitions are closed: unknown fields are rejected. A failed check
// is reported as a MALFORMED_PAYLOAD task.Error naming the first offending
// field.
package schema

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/tasking/internal/task"
)

//go:embed tasking.cue
var source string

// Definition names in tasking.cue.
const (
	CreateTask = "#CreateTask"
	Transition = "#Transition"
	Scan       = "#Scan"
	Fail       = "#Fail"
	Cancel     = "#Cancel"
)

// Validator holds the compiled definitions. It is safe for concurrent use
// once constructed.
type Validator struct {
	ctx  *cue.Context
	root cue.Value
}

// New compiles the embedded schema.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(source, cue.Filename("tasking.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{ctx: ctx, root: root}, nil
}

// Validate checks the JSON document data against definition def.
func (v *Validator) Validate(def string, data []byte) error {
	schema := v.root.LookupPath(cue.ParsePath(def))
	if !schema.Exists() {
		return fmt.Errorf("unknown schema definition %q", def)
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return task.NewMalformed("body", "request body is required")
	}

	doc := v.ctx.CompileBytes(data, cue.Filename("body.json"))
	if err := doc.Err(); err != nil {
		return task.NewMalformed("body", "request body is not valid JSON")
	}
	if doc.IncompleteKind() != cue.StructKind {
		return task.NewMalformed("body", "request body must be a JSON object")
	}

	unified := schema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return toMalformed(err)
	}
	return nil
}

// ValidateCreate checks a task creation body.
func (v *Validator) ValidateCreate(data []byte) error {
	return v.Validate(CreateTask, data)
}

func toMalformed(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return task.NewMalformed("body", err.Error())
	}

	first := errs[0]
	field := strings.Join(first.Path(), ".")
	if field == "" {
		field = "body"
	}
	format, args := first.Msg()
	return task.NewMalformed(field, fmt.Sprintf(format, args...))
}
