package sqlite

import (
	"fmt"
	"strings"

	"github.com/syntrixbase/livequery/pkg/model"
)

// jsonPath turns a dotted field into a JSON1 path with quoted keys.
func jsonPath(field string) string {
	parts := strings.Split(field, ".")
	var b strings.Builder
	b.WriteString("$")
	for _, p := range parts {
		b.WriteString(`."`)
		b.WriteString(strings.ReplaceAll(p, `"`, `\"`))
		b.WriteString(`"`)
	}
	return b.String()
}

// typeGuard restricts a comparison to JSON values of the same kind as v.
func typeGuard(path string, v interface{}) (string, []interface{}) {
	switch v.(type) {
	case string:
		return "json_type(data, ?) = 'text'", []interface{}{path}
	case bool:
		return "json_type(data, ?) IN ('true', 'false')", []interface{}{path}
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return "json_type(data, ?) IN ('integer', 'real')", []interface{}{path}
	default:
		return "", nil
	}
}

func sqlOp(op model.FilterOp) string {
	switch op {
	case model.OpEq:
		return "="
	case model.OpNe:
		return "!="
	case model.OpGt, model.OpGte, model.OpLt, model.OpLte:
		return string(op)
	default:
		return ""
	}
}

// whereClause renders q as a SQL boolean expression over the data column.
func whereClause(q model.Query) (string, []interface{}, error) {
	var (
		conds []string
		args  []interface{}
	)

	for _, f := range q.Filters {
		cond, fargs, err := filterClause(f)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, cond)
		args = append(args, fargs...)
	}

	if len(q.Or) > 0 {
		branches := make([]string, 0, len(q.Or))
		for _, branch := range q.Or {
			cond, bargs, err := whereClause(branch)
			if err != nil {
				return "", nil, err
			}
			branches = append(branches, "("+cond+")")
			args = append(args, bargs...)
		}
		conds = append(conds, "("+strings.Join(branches, " OR ")+")")
	}

	if len(conds) == 0 {
		return "1", nil, nil
	}
	return strings.Join(conds, " AND "), args, nil
}

func filterClause(f model.Filter) (string, []interface{}, error) {
	path := jsonPath(f.Field)
	value := f.Value

	switch f.Op {
	case model.OpIn:
		list, ok := toList(value)
		if !ok {
			return "", nil, fmt.Errorf("%w: 'in' expects a list for %q", model.ErrInvalidQuery, f.Field)
		}
		if len(list) == 0 {
			return "0", nil, nil
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(list)), ", ")
		args := append([]interface{}{path}, bindAll(list)...)
		return fmt.Sprintf("json_extract(data, ?) IN (%s)", placeholders), args, nil

	case model.OpContains:
		return "EXISTS (SELECT 1 FROM json_each(data, ?) WHERE json_each.value = ?)",
			[]interface{}{path, bind(value)}, nil
	}

	op := sqlOp(f.Op)
	if op == "" {
		return "", nil, fmt.Errorf("%w: unsupported operator %q", model.ErrInvalidQuery, f.Op)
	}

	if value == nil {
		switch f.Op {
		case model.OpEq:
			return "json_extract(data, ?) IS NULL", []interface{}{path}, nil
		case model.OpNe:
			return "json_extract(data, ?) IS NOT NULL", []interface{}{path}, nil
		default:
			return "0", nil, nil
		}
	}

	guard, guardArgs := typeGuard(path, value)
	if guard == "" {
		return "", nil, fmt.Errorf("%w: unsupported value type %T for %q", model.ErrInvalidQuery, value, f.Field)
	}
	cmp := fmt.Sprintf("json_extract(data, ?) %s ?", op)
	cmpArgs := []interface{}{path, bind(value)}

	if f.Op == model.OpNe {
		// A missing field or a value of another kind differs from value.
		return fmt.Sprintf("(NOT COALESCE(%s, 0) OR %s)", guard, cmp), append(guardArgs, cmpArgs...), nil
	}
	return fmt.Sprintf("(%s AND %s)", guard, cmp), append(guardArgs, cmpArgs...), nil
}

// orderClause sorts on typed values only. Missing or mistyped values turn
// into NULL, which SQLite places first ascending and last descending, the
// same as the comparator.
func orderClause(order []model.Order) (string, []interface{}) {
	if len(order) == 0 {
		return "rowid", nil
	}
	var (
		terms []string
		args  []interface{}
	)
	for _, o := range order {
		dir := "ASC"
		if o.Direction == model.Desc {
			dir = "DESC"
		}
		path := jsonPath(o.Field)
		if o.Type == model.TypeNumber {
			terms = append(terms, "CASE WHEN json_type(data, ?) IN ('integer', 'real') THEN json_extract(data, ?) END "+dir)
		} else {
			terms = append(terms, "CASE WHEN json_type(data, ?) = 'text' THEN json_extract(data, ?) END COLLATE "+collationName+" "+dir)
		}
		args = append(args, path, path)
	}
	terms = append(terms, "rowid")
	return strings.Join(terms, ", "), args
}

func toList(v interface{}) ([]interface{}, bool) {
	switch l := v.(type) {
	case []interface{}:
		return l, true
	case []string:
		out := make([]interface{}, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]interface{}, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]interface{}, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}

// bind maps Go values to what json_extract yields for the same JSON value.
func bind(v interface{}) interface{} {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

func bindAll(list []interface{}) []interface{} {
	out := make([]interface{}, len(list))
	for i, v := range list {
		out[i] = bind(v)
	}
	return out
}
