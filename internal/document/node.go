package document

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies the JSON type of a Node.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// Field is one named member of an object node.
type Field struct {
	Name  string
	Value *Node
}

// Node is one value in a parsed document. All methods accept a nil receiver
// and treat it as an absent value.
type Node struct {
	kind   Kind
	str    string // string value or number literal
	b      bool
	items  []*Node
	fields []Field
}

// Kind returns the JSON type of the node.
func (n *Node) Kind() Kind {
	if n == nil {
		return Null
	}
	return n.kind
}

// IsNull reports whether the node is absent or a JSON null.
func (n *Node) IsNull() bool {
	return n == nil || n.kind == Null
}

// Field returns the named member of an object node.
func (n *Node) Field(name string) (*Node, bool) {
	if n == nil || n.kind != Object {
		return nil, false
	}
	for _, f := range n.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Fields returns the members of an object node in document order.
func (n *Node) Fields() []Field {
	if n == nil || n.kind != Object {
		return nil
	}
	return n.fields
}

// Len returns the number of elements of an array or members of an object.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	switch n.kind {
	case Array:
		return len(n.items)
	case Object:
		return len(n.fields)
	default:
		return 0
	}
}

// Index returns element i of an array node.
func (n *Node) Index(i int) (*Node, bool) {
	if n == nil || n.kind != Array || i < 0 || i >= len(n.items) {
		return nil, false
	}
	return n.items[i], true
}

// Items returns the elements of an array node in document order.
func (n *Node) Items() []*Node {
	if n == nil || n.kind != Array {
		return nil
	}
	return n.items
}

// AsString returns the value of a string node.
func (n *Node) AsString() (string, bool) {
	if n == nil || n.kind != String {
		return "", false
	}
	return n.str, true
}

// AsInt64 returns the value of a number node holding an integer.
func (n *Node) AsInt64() (int64, bool) {
	if n == nil || n.kind != Number {
		return 0, false
	}
	v, err := strconv.ParseInt(n.str, 10, 64)
	if err == nil {
		return v, true
	}
	// A plain integer literal that ParseInt rejects is out of range.
	if !strings.ContainsAny(n.str, ".eE") {
		return 0, false
	}
	f, err := strconv.ParseFloat(n.str, 64)
	if err != nil || f != math.Trunc(f) || f >= 1<<63 || f < -(1<<63) {
		return 0, false
	}
	return int64(f), true
}

// AsBool returns the value of a bool node.
func (n *Node) AsBool() (bool, bool) {
	if n == nil || n.kind != Bool {
		return false, false
	}
	return n.b, true
}

// Text renders a scalar node as text: strings verbatim, numbers as written in
// the input, booleans as "true"/"false". Null, arrays and objects render as "".
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	switch n.kind {
	case String, Number:
		return n.str
	case Bool:
		return strconv.FormatBool(n.b)
	default:
		return ""
	}
}
