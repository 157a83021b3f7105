// Package predicate compiles declarative queries into CEL programs that test
// a single document.
package predicate

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/syntrixbase/livequery/pkg/model"
)

// Predicate reports whether a document matches a compiled query.
type Predicate func(doc model.Document) bool

// MatchAll is the predicate of the empty query.
func MatchAll(model.Document) bool { return true }

// Compiler compiles model.Query values into Predicates.
type Compiler struct {
	env *cel.Env
}

// NewCompiler creates a new CEL compiler with the document environment.
func NewCompiler() (*Compiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("doc", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("CEL env error: %w", err)
	}
	return &Compiler{env: env}, nil
}

// Compile compiles q into a Predicate. The empty query matches everything.
func (c *Compiler) Compile(q model.Query) (Predicate, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.IsEmpty() {
		return MatchAll, nil
	}

	expr, err := Expression(q)
	if err != nil {
		return nil, err
	}
	prg, err := c.CompileExpression(expr)
	if err != nil {
		return nil, err
	}

	return func(doc model.Document) bool {
		ok, err := Evaluate(prg, doc)
		return err == nil && ok
	}, nil
}

// CompileExpression compiles a CEL expression string.
func (c *Compiler) CompileExpression(expr string) (cel.Program, error) {
	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}

	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program creation error: %w", err)
	}

	return prg, nil
}

// Evaluate evaluates a compiled CEL program against document data.
func Evaluate(prg cel.Program, doc model.Document) (bool, error) {
	if prg == nil {
		return true, nil // No filter = match all
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"doc": map[string]interface{}(doc),
	})
	if err != nil {
		return false, err
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL result is not boolean: %T", out.Value())
	}

	return result, nil
}

// Expression renders q as a CEL expression over the variable "doc".
func Expression(q model.Query) (string, error) {
	var parts []string
	for _, f := range q.Filters {
		expr, err := filterToExpression(f)
		if err != nil {
			return "", err
		}
		parts = append(parts, expr)
	}

	if len(q.Or) > 0 {
		var branches []string
		for _, branch := range q.Or {
			if branch.IsEmpty() {
				branches = append(branches, "true")
				continue
			}
			expr, err := Expression(branch)
			if err != nil {
				return "", err
			}
			branches = append(branches, "("+expr+")")
		}
		parts = append(parts, "("+strings.Join(branches, " || ")+")")
	}

	if len(parts) == 0 {
		return "true", nil
	}
	return strings.Join(parts, " && "), nil
}

// filterToExpression converts a model.Filter to a CEL expression string.
func filterToExpression(f model.Filter) (string, error) {
	valStr, err := formatValue(f.Value)
	if err != nil {
		return "", err
	}

	field, present := fieldAccess(f.Field)

	switch f.Op {
	case model.OpEq:
		if f.Value == nil {
			// missing counts as null
			return fmt.Sprintf("(!(%s) || %s == null)", present, field), nil
		}
		return fmt.Sprintf("%s == %s", field, valStr), nil
	case model.OpNe:
		if f.Value == nil {
			return fmt.Sprintf("(%s && %s != null)", present, field), nil
		}
		return fmt.Sprintf("(!(%s) || %s != %s)", present, field, valStr), nil
	case model.OpGt:
		return fmt.Sprintf("%s > %s", field, valStr), nil
	case model.OpGte:
		return fmt.Sprintf("%s >= %s", field, valStr), nil
	case model.OpLt:
		return fmt.Sprintf("%s < %s", field, valStr), nil
	case model.OpLte:
		return fmt.Sprintf("%s <= %s", field, valStr), nil
	case model.OpIn:
		return fmt.Sprintf("%s in %s", field, valStr), nil
	case model.OpContains:
		return fmt.Sprintf("%s in %s", valStr, field), nil
	default:
		return "", fmt.Errorf("unsupported operator: %s", f.Op)
	}
}

// fieldAccess returns the CEL access path for a dotted field together with
// a guard that holds when every path segment exists.
func fieldAccess(path string) (string, string) {
	field := "doc"
	var guards []string
	for _, p := range strings.Split(path, ".") {
		key := quote(p)
		guards = append(guards, fmt.Sprintf("%s in %s", key, field))
		field += fmt.Sprintf("[%s]", key)
	}
	return field, strings.Join(guards, " && ")
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(strings.ReplaceAll(s, "\\", "\\\\"), "'", "\\'") + "'"
}

// formatValue formats a value for use in a CEL expression.
func formatValue(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "null", nil
	case string:
		return quote(val), nil
	case int:
		return fmt.Sprintf("%d", val), nil
	case int32:
		return fmt.Sprintf("%d", val), nil
	case int64:
		return fmt.Sprintf("%d", val), nil
	case float32:
		return formatFloat(float64(val)), nil
	case float64:
		return formatFloat(val), nil
	case bool:
		return fmt.Sprintf("%v", val), nil
	case []interface{}:
		var parts []string
		for _, item := range val {
			s, err := formatValue(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return fmt.Sprintf("[%s]", strings.Join(parts, ", ")), nil
	case []string:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = quote(item)
		}
		return fmt.Sprintf("[%s]", strings.Join(parts, ", ")), nil
	default:
		return "", fmt.Errorf("unsupported value type: %T", v)
	}
}

// formatFloat keeps a decimal point so CEL parses the literal as a double.
func formatFloat(f float64) string {
	s := fmt.Sprintf("%v", f)
	if !strings.ContainsAny(s, ".eE") && !strings.Contains(s, "Inf") && !strings.Contains(s, "NaN") {
		s += ".0"
	}
	return s
}
