package store

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/cel-go/cel"
)

// entryFilter wraps a compiled CEL program evaluated against persisted
// entries during `store ls`. When disabled, Eval always returns true.
type entryFilter struct {
	prog    cel.Program
	enabled bool
}

func newEntryFilter(expr string) (entryFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return entryFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("key", cel.StringType),
		cel.Variable("text", cel.StringType),
		cel.Variable("size", cel.IntType),
		// Expose the parsed JSON value for field filtering
		cel.Variable("json", cel.DynType),
		// Current time in ms for windowed filters
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return entryFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return entryFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return entryFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return entryFilter{}, err
	}
	return entryFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the compiled expression against one entry. When disabled,
// returns true.
func (f entryFilter) Eval(key string, value []byte) bool {
	if !f.enabled {
		return true
	}
	var jsonObj any
	_ = json.Unmarshal(value, &jsonObj)
	out, _, err := f.prog.Eval(map[string]any{
		"key":    key,
		"text":   string(value),
		"size":   int64(len(value)),
		"json":   jsonObj,
		"now_ms": time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
