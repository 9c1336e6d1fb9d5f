package kwql

// Node is the interface implemented by all AST nodes.
type Node interface {
	node() // marker method
}

// Operators of BinaryExpr.
const (
	OpAnd = "AND"
	OpOr  = "OR"
)

// BinaryExpr represents a binary logical expression (AND, OR).
type BinaryExpr struct {
	Op    string // "AND" or "OR"
	Left  Node
	Right Node
}

func (BinaryExpr) node() {}

// GroupExpr represents a parenthesized sub-expression.
type GroupExpr struct {
	Inner Node
}

func (GroupExpr) node() {}

// LiteralExpr is a keyword operand with escapes already resolved.
type LiteralExpr struct {
	Value string
}

func (LiteralExpr) node() {}

// Literals returns the literal values of the tree in source order.
func Literals(n Node) []string {
	var out []string
	var walk func(Node)
	walk = func(n Node) {
		switch n := n.(type) {
		case BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		case GroupExpr:
			walk(n.Inner)
		case LiteralExpr:
			out = append(out, n.Value)
		}
	}
	walk(n)
	return out
}
