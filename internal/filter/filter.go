// Package filter compiles CEL expressions that select records during scans.
//
// Expressions see the following variables:
//
//	seq    int     decoded sequence number, or -1 when the key is not a sequence key
//	key    bytes   raw key
//	value  bytes   raw value
//	size   int     len(value)
//	text   string  value as a string
//	json   dyn     value parsed as JSON (null when it is not JSON)
//	now_ms int     wall clock in milliseconds
//
// For example `seq > 100 && json.kind == "order"`.
package filter

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/cel-go/cel"

	"github.com/rzbill/seglog/internal/cursor"
	"github.com/rzbill/seglog/pkg/seq"
)

// Filter is a compiled expression. The zero value and a nil *Filter match
// every record. A Filter is safe for concurrent use.
type Filter struct {
	expr string
	prog cel.Program
}

// New compiles expr. An empty expression yields a nil filter that matches
// everything.
func New(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("seq", cel.IntType),
		cel.Variable("key", cel.BytesType),
		cel.Variable("value", cel.BytesType),
		cel.Variable("size", cel.IntType),
		cel.Variable("text", cel.StringType),
		cel.Variable("json", cel.DynType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, errors.Wrapf(iss.Err(), "compile filter %q", expr)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Newf("filter %q must evaluate to bool, got %s", expr, ast.OutputType())
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	return &Filter{expr: expr, prog: prog}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match evaluates the expression against rec. Evaluation errors count as a
// non-match.
func (f *Filter) Match(rec cursor.Record) bool {
	if f == nil || f.prog == nil {
		return true
	}
	n := int64(-1)
	if v, err := seq.Decode(rec.Key); err == nil {
		n = v
	}
	var doc any
	_ = json.Unmarshal(rec.Value, &doc)
	out, _, err := f.prog.Eval(map[string]any{
		"seq":    n,
		"key":    rec.Key,
		"value":  rec.Value,
		"size":   int64(len(rec.Value)),
		"text":   string(rec.Value),
		"json":   doc,
		"now_ms": time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// Apply returns the records in recs that match, reusing recs' storage.
func (f *Filter) Apply(recs []cursor.Record) []cursor.Record {
	if f == nil {
		return recs
	}
	out := recs[:0]
	for _, r := range recs {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
