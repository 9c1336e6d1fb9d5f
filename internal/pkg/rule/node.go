// Package rule builds the tuple rules accepted by the rule subscription API.
//
// A rule is a nested array whose head names the predicate:
//
//	["and", ...]  ["or", ...]
//	["in", keyword, {"fl": [field, ...]}]
//	["in_list", {"f": field}, {"l": [...]}]
//	["list_intersect", {"f": field}, {"l": [...]}]
//
// The key names rule, f, l and fl are part of the API and must not change.
package rule

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Head tags of tuple nodes.
const (
	TagAnd           = "and"
	TagOr            = "or"
	TagIn            = "in"
	TagInList        = "in_list"
	TagListIntersect = "list_intersect"
)

// Node is a tuple rule node.
type Node interface {
	json.Marshaler
	Tag() string
}

// Group is an "and" or "or" node.
type Group struct {
	Op       string
	Operands []Node
}

// And returns an "and" group of operands.
func And(operands ...Node) Group {
	return Group{Op: TagAnd, Operands: operands}
}

// Or returns an "or" group of operands.
func Or(operands ...Node) Group {
	return Group{Op: TagOr, Operands: operands}
}

func (g Group) Tag() string { return g.Op }

func (g Group) MarshalJSON() ([]byte, error) {
	out := make([]interface{}, 0, len(g.Operands)+1)
	out = append(out, g.Op)
	for _, n := range g.Operands {
		out = append(out, n)
	}
	return json.Marshal(out)
}

// Keyword is an "in" leaf: the keyword must appear in one of Fields.
type Keyword struct {
	Keyword string
	Fields  []string
}

func (Keyword) Tag() string { return TagIn }

func (k Keyword) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{TagIn, k.Keyword, fieldList{Fields: nonNil(k.Fields)}})
}

// InList is an "in_list" leaf: Field must equal one of List.
type InList struct {
	Field string
	List  []Location
}

func (InList) Tag() string { return TagInList }

func (n InList) MarshalJSON() ([]byte, error) {
	list := n.List
	if list == nil {
		list = []Location{}
	}
	return json.Marshal([]interface{}{TagInList, target{Field: n.Field}, locationList{List: list}})
}

// ListIntersect is a "list_intersect" leaf: Field must share an element with List.
type ListIntersect struct {
	Field string
	List  []string
}

func (ListIntersect) Tag() string { return TagListIntersect }

func (n ListIntersect) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{TagListIntersect, target{Field: n.Field}, stringList{List: nonNil(n.List)}})
}

// Rule is the top-level document {"rule": ["and", ...]}.
type Rule struct {
	Root Group
}

func (r Rule) MarshalJSON() ([]byte, error) {
	if r.Root.Op != TagAnd || len(r.Root.Operands) == 0 {
		return nil, ErrEmptyRule
	}
	return json.Marshal(struct {
		Rule Group `json:"rule"`
	}{r.Root})
}

type fieldList struct {
	Fields []string `json:"fl"`
}

type target struct {
	Field string `json:"f"`
}

type stringList struct {
	List []string `json:"l"`
}

type locationList struct {
	List []Location `json:"l"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// locationKeys is the order location parts are written in.
var locationKeys = []string{"region", "province", "city", "district"}

// Location is one based-location entry, e.g. {"city": "上海市"}.
// Known keys are written from the widest area to the narrowest.
type Location map[string]interface{}

func (l Location) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(l))
	seen := make(map[string]bool, len(locationKeys))
	for _, k := range locationKeys {
		if _, ok := l[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range l {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(l[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Walk visits n and its descendants depth-first, stopping early when fn returns false.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	if g, ok := n.(Group); ok {
		for _, op := range g.Operands {
			Walk(op, fn)
		}
	}
}

// Keywords returns the keywords of all "in" leaves in source order.
func Keywords(n Node) []string {
	var out []string
	Walk(n, func(n Node) bool {
		if k, ok := n.(Keyword); ok {
			out = append(out, k.Keyword)
		}
		return true
	})
	return out
}
