// Package loader implements the metric loader: pulling datapoints from
// an external analytical database, aligning them to the interval grid,
// gap-filling, enriching with seasonality features, and persisting the
// result through the internal store.
package loader

import (
	"bytes"
	"strings"
	"text/template"
	"time"

	"github.com/nutcas3/detectkit/internal/core"
)

const queryTimeFormat = "2006-01-02 15:04:05"

// QueryTemplate renders a user-supplied extraction query, merging the
// caller's context with the four reserved variables the loader injects.
// It uses text/template rather than reproducing Jinja2's tag syntax —
// templates are addressed with the leading dot Go convention expects
// ({{ .table_name }}, {{ if .enabled }}…{{ end }}), since the contract
// this component has to satisfy is substitution/conditionals/loops plus
// strict-vs-lenient undefined-variable handling, not a specific syntax.
type QueryTemplate struct {
	Strict bool
}

// NewQueryTemplate constructs a QueryTemplate. strict controls whether
// undefined variables fail the render (BadTemplate) or render as empty.
func NewQueryTemplate(strict bool) *QueryTemplate {
	return &QueryTemplate{Strict: strict}
}

// BuiltinVars is the fixed set of variables the loader injects into
// every render: the extraction window, the metric's interval, and its
// configured loading_batch_size (for queries that want to cap rows
// returned per run with e.g. a LIMIT clause).
type BuiltinVars struct {
	StartTime        time.Time
	EndTime          time.Time
	IntervalSeconds  int64
	LoadingBatchSize int
}

func (b BuiltinVars) toMap() map[string]interface{} {
	return map[string]interface{}{
		"dtk_start_time":     b.StartTime.UTC().Format(queryTimeFormat),
		"dtk_end_time":       b.EndTime.UTC().Format(queryTimeFormat),
		"interval_seconds":   b.IntervalSeconds,
		"loading_batch_size": b.LoadingBatchSize,
	}
}

// Render renders query against builtins merged with context. Context
// keys override built-ins on collision. In strict mode, referencing an
// undefined variable fails with BadTemplate; in lenient mode it renders
// as the empty string.
func (t *QueryTemplate) Render(query string, builtins BuiltinVars, context map[string]interface{}) (string, error) {
	data := builtins.toMap()
	for k, v := range context {
		data[k] = v
	}

	missingKeyMode := "zero"
	if t.Strict {
		missingKeyMode = "error"
	}

	tmpl, err := template.New("query").Option("missingkey=" + missingKeyMode).Parse(query)
	if err != nil {
		return "", &core.BadTemplateError{Reason: err.Error()}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", &core.BadTemplateError{Reason: err.Error()}
	}

	rendered := buf.String()
	if !t.Strict {
		// missingkey=zero on a map[string]interface{} still prints the
		// placeholder text for the untyped nil it substitutes; fold
		// that into the empty string lenient mode promises.
		rendered = strings.ReplaceAll(rendered, "<no value>", "")
	}
	return rendered, nil
}

// RenderLenient renders query in lenient mode regardless of t.Strict,
// for callers (e.g. operator tooling previewing a query) that always
// want missing variables to render empty rather than fail.
func (t *QueryTemplate) RenderLenient(query string, builtins BuiltinVars, context map[string]interface{}) (string, error) {
	lenient := &QueryTemplate{Strict: false}
	return lenient.Render(query, builtins, context)
}
