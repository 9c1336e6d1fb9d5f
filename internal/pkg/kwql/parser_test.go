package kwql

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/coffersTech/kwrule/internal/config"
)

var testFields = []string{"title", "ocr", "asr", "poi_name", "poi_city_name"}

func TestLexer(t *testing.T) {
	tests := []struct {
		input    string
		expected []TokenType
	}{
		{"A", []TokenType{TokenString, TokenEOF}},
		{"A + B", []TokenType{TokenString, TokenAnd, TokenString, TokenEOF}},
		{"A/B", []TokenType{TokenString, TokenOr, TokenString, TokenEOF}},
		{"(A)", []TokenType{TokenLParen, TokenString, TokenRParen, TokenEOF}},
		{`A\+B`, []TokenType{TokenString, TokenEOF}},
		{"(网红 / 创作者) + 抖音", []TokenType{TokenLParen, TokenString, TokenOr, TokenString, TokenRParen, TokenAnd, TokenString, TokenEOF}},
		{"   ", []TokenType{TokenEOF}},
		{"", []TokenType{TokenEOF}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens := Tokenize(tt.input)
			if len(tokens) != len(tt.expected) {
				t.Fatalf("expected %d tokens, got %d: %+v", len(tt.expected), len(tokens), tokens)
			}
			for i, expected := range tt.expected {
				if tokens[i].Type != expected {
					t.Errorf("token %d: expected %v, got %v (%q)", i, expected, tokens[i].Type, tokens[i].Value)
				}
			}
		})
	}
}

func TestLexerValues(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{`A\+B`, []string{"A+B"}},
		{`a\/b \(c\) d\\e`, []string{"a/b", "(c)", `d\e`}},
		{`tail\`, []string{`tail\`}},
		{"网红 抖音", []string{"网红", "抖音"}},
		{"x　y", []string{"x", "y"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var got []string
			for _, tok := range Tokenize(tt.input) {
				if tok.Type == TokenString {
					got = append(got, tok.Value)
				}
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestLexerPositions(t *testing.T) {
	tokens := Tokenize("ab + (c)")
	want := []int{0, 3, 5, 6, 7, 8}
	for i, tok := range tokens {
		if tok.Pos != want[i] {
			t.Errorf("token %d (%v): expected pos %d, got %d", i, tok.Type, want[i], tok.Pos)
		}
	}
}

func TestLexerEOFRepeats(t *testing.T) {
	l := NewLexer("a")
	l.NextToken()
	for i := 0; i < 3; i++ {
		if tok := l.NextToken(); tok.Type != TokenEOF {
			t.Fatalf("expected EOF, got %v", tok.Type)
		}
	}
}

func TestParseSimple(t *testing.T) {
	node, err := Parse("抖音", config.AndTighter)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	lit, ok := node.(LiteralExpr)
	if !ok || lit.Value != "抖音" {
		t.Errorf("expected literal 抖音, got %+v", node)
	}
}

func TestParseEscapedOperator(t *testing.T) {
	node, err := Parse(`A\+B`, config.AndTighter)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	lit, ok := node.(LiteralExpr)
	if !ok || lit.Value != "A+B" {
		t.Errorf("expected single literal A+B, got %+v", node)
	}
}

func TestParsePrecedence(t *testing.T) {
	a, b, c := LiteralExpr{"A"}, LiteralExpr{"B"}, LiteralExpr{"C"}

	tests := []struct {
		name     string
		prec     config.Precedence
		expected Node
	}{
		{
			name:     "and tighter",
			prec:     config.AndTighter,
			expected: BinaryExpr{Op: OpOr, Left: BinaryExpr{Op: OpAnd, Left: a, Right: b}, Right: c},
		},
		{
			name:     "and outer",
			prec:     config.AndOuter,
			expected: BinaryExpr{Op: OpAnd, Left: a, Right: BinaryExpr{Op: OpOr, Left: b, Right: c}},
		},
		{
			name:     "default is and tighter",
			prec:     config.DefaultPrecedence,
			expected: BinaryExpr{Op: OpOr, Left: BinaryExpr{Op: OpAnd, Left: a, Right: b}, Right: c},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := Parse("A + B / C", tt.prec)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if !reflect.DeepEqual(node, tt.expected) {
				t.Errorf("expected %+v, got %+v", tt.expected, node)
			}
		})
	}
}

func TestParseLeftFold(t *testing.T) {
	node, err := Parse("A + B + C", config.AndTighter)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	bin, ok := node.(BinaryExpr)
	if !ok || bin.Op != OpAnd {
		t.Fatalf("expected AND at root, got %+v", node)
	}
	if _, ok := bin.Left.(BinaryExpr); !ok {
		t.Errorf("expected nested AND on the left, got %+v", bin.Left)
	}
	if r, ok := bin.Right.(LiteralExpr); !ok || r.Value != "C" {
		t.Errorf("expected C on the right, got %+v", bin.Right)
	}
}

func TestParseParentheses(t *testing.T) {
	node, err := Parse("(网红 / 创作者) + 抖音", config.AndTighter)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	bin, ok := node.(BinaryExpr)
	if !ok || bin.Op != OpAnd {
		t.Fatalf("expected AND at root, got %+v", node)
	}

	group, ok := bin.Left.(GroupExpr)
	if !ok {
		t.Fatalf("expected group on left, got %+v", bin.Left)
	}
	inner, ok := group.Inner.(BinaryExpr)
	if !ok || inner.Op != OpOr {
		t.Errorf("expected OR inside group, got %+v", group.Inner)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		pos   int
	}{
		{"", 0},
		{"(A", 2},
		{"A)", 1},
		{"+A", 0},
		{"A/", 2},
		{"A+/B", 2},
		{"()", 1},
		{"( )", 2},
		{"A+ ", 3},
		{" +A", 1},
		{"(A + B", 6},
	}

	for _, prec := range []config.Precedence{config.AndTighter, config.AndOuter} {
		for _, tt := range tests {
			t.Run(prec.String()+"/"+tt.input, func(t *testing.T) {
				node, err := Parse(tt.input, prec)
				if err == nil {
					t.Fatalf("expected error, got %+v", node)
				}
				if node != nil {
					t.Errorf("expected no AST on error, got %+v", node)
				}
				var se *SyntaxError
				if !errors.As(err, &se) {
					t.Fatalf("expected *SyntaxError, got %T", err)
				}
				if se.Pos != tt.pos {
					t.Errorf("expected position %d, got %d (%v)", tt.pos, se.Pos, err)
				}
			})
		}
	}
}

func TestParseTokensWithoutEOF(t *testing.T) {
	tokens := []Token{{Type: TokenString, Value: "A", Pos: 0}, {Type: TokenAnd, Value: "+", Pos: 1}}
	if _, err := ParseTokens(tokens, config.AndTighter); err == nil {
		t.Error("expected error for dangling operator")
	}
}

func TestLiterals(t *testing.T) {
	node, err := Parse(`(a\+1 / b) + c\/2 / (d)`, config.AndTighter)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	got := Literals(node)
	want := []string{"a+1", "b", "c/2", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestBuildQuery(t *testing.T) {
	node, err := Parse("(网红 / 创作者) + 抖音", config.AndTighter)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	q, err := BuildQuery(node, testFields)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}

	expected := `{"bool":{"must":[
		{"bool":{"should":[
			{"multi_match":{"query":"网红","fields":["title","ocr","asr","poi_name","poi_city_name"]}},
			{"multi_match":{"query":"创作者","fields":["title","ocr","asr","poi_name","poi_city_name"]}}
		]}},
		{"multi_match":{"query":"抖音","fields":["title","ocr","asr","poi_name","poi_city_name"]}}
	]}}`

	assertJSON(t, expected, q)
}

func TestBuildQueryShapes(t *testing.T) {
	tests := []struct {
		input    string
		prec     config.Precedence
		expected string
	}{
		{
			input:    "A",
			prec:     config.AndTighter,
			expected: `{"multi_match":{"query":"A","fields":["f"]}}`,
		},
		{
			input: "A + B / C",
			prec:  config.AndTighter,
			expected: `{"bool":{"should":[
				{"bool":{"must":[{"multi_match":{"query":"A","fields":["f"]}},{"multi_match":{"query":"B","fields":["f"]}}]}},
				{"multi_match":{"query":"C","fields":["f"]}}]}}`,
		},
		{
			input: "A + B / C",
			prec:  config.AndOuter,
			expected: `{"bool":{"must":[
				{"multi_match":{"query":"A","fields":["f"]}},
				{"bool":{"should":[{"multi_match":{"query":"B","fields":["f"]}},{"multi_match":{"query":"C","fields":["f"]}}]}}]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.prec.String()+"/"+tt.input, func(t *testing.T) {
			node, err := Parse(tt.input, tt.prec)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			q, err := BuildQuery(node, []string{"f"})
			if err != nil {
				t.Fatalf("build error: %v", err)
			}
			assertJSON(t, tt.expected, q)
		})
	}
}

func TestBuildQueryErrors(t *testing.T) {
	if _, err := BuildQuery(nil, testFields); err == nil {
		t.Error("expected error for nil node")
	}
	bad := BinaryExpr{Op: "XOR", Left: LiteralExpr{"a"}, Right: LiteralExpr{"b"}}
	if _, err := BuildQuery(bad, testFields); err == nil {
		t.Error("expected error for unknown operator")
	}
}

func TestBuildQueryFieldsNotShared(t *testing.T) {
	fields := []string{"title"}
	q, err := BuildQuery(LiteralExpr{"x"}, fields)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	fields[0] = "changed"
	mm := q["multi_match"].(map[string]interface{})
	if got := mm["fields"].([]string)[0]; got != "title" {
		t.Errorf("query fields aliased caller slice: %q", got)
	}
}

func assertJSON(t *testing.T, expected string, actual interface{}) {
	t.Helper()

	var want interface{}
	if err := json.Unmarshal([]byte(expected), &want); err != nil {
		t.Fatalf("bad expected JSON: %v", err)
	}
	raw, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	var got interface{}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Errorf("JSON mismatch\nexpected: %s\ngot:      %s", expected, raw)
	}
}
