package kwql

import (
	"errors"
	"fmt"
)

// Query is a search-engine style query object, ready for JSON encoding.
type Query = map[string]interface{}

// BuildQuery compiles the AST into a bool/multi_match query.
// Every literal is matched against fields.
func BuildQuery(node Node, fields []string) (Query, error) {
	if node == nil {
		return nil, errors.New("kwql: nothing to build")
	}

	switch n := node.(type) {
	case BinaryExpr:
		return buildBinary(n, fields)
	case GroupExpr:
		return BuildQuery(n.Inner, fields)
	case LiteralExpr:
		return buildMatch(n, fields), nil
	default:
		return nil, fmt.Errorf("kwql: unsupported node %T", node)
	}
}

func buildBinary(expr BinaryExpr, fields []string) (Query, error) {
	left, err := BuildQuery(expr.Left, fields)
	if err != nil {
		return nil, err
	}
	right, err := BuildQuery(expr.Right, fields)
	if err != nil {
		return nil, err
	}

	var clause string
	switch expr.Op {
	case OpAnd:
		clause = "must"
	case OpOr:
		clause = "should"
	default:
		return nil, fmt.Errorf("kwql: unknown operator %q", expr.Op)
	}

	return Query{
		"bool": map[string]interface{}{
			clause: []interface{}{left, right},
		},
	}, nil
}

func buildMatch(lit LiteralExpr, fields []string) Query {
	fl := make([]string, len(fields))
	copy(fl, fields)

	return Query{
		"multi_match": map[string]interface{}{
			"query":  lit.Value,
			"fields": fl,
		},
	}
}
