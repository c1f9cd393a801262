// Package document decodes raw JSON text into an immutable, order-preserving
// tree of objects, arrays and scalars.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// MaxDepth is the deepest nesting of objects and arrays Parse accepts.
const MaxDepth = 512

// ErrEmptyInput is returned when Parse receives no text at all.
var ErrEmptyInput = errors.New("document: empty input")

// SyntaxError reports text that is not well-formed JSON.
type SyntaxError struct {
	// Offset is the byte offset in the input after which the error was detected.
	Offset int64
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("document: invalid JSON at offset %d: %s", e.Offset, e.Msg)
}

// DecodeError reports any decode failure other than a syntax error,
// such as invalid UTF-8, an unexpected root type or malformed base64.
type DecodeError struct {
	Msg string
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Document is a parsed JSON object. It is read-only after Parse returns and
// safe for concurrent readers.
type Document struct {
	root *Node
}

// Parse decodes raw into a Document. The root value must be a JSON object.
func Parse(raw string) (*Document, error) {
	if raw == "" {
		return nil, ErrEmptyInput
	}
	if !utf8.ValidString(raw) {
		return nil, &DecodeError{Msg: "document: input is not valid UTF-8"}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	root, err := decodeValue(dec, 0)
	if err != nil {
		return nil, err
	}

	// Anything after the first value is malformed input.
	if _, err := dec.Token(); err != io.EOF {
		if err != nil {
			return nil, classify(dec, err)
		}
		return nil, &SyntaxError{Offset: dec.InputOffset(), Msg: "unexpected data after top-level value"}
	}

	if root.kind != Object {
		return nil, &DecodeError{Msg: fmt.Sprintf("document: root must be an object, got %s", root.kind)}
	}

	return &Document{root: root}, nil
}

// Root returns the top-level object node.
func (d *Document) Root() *Node {
	return d.root
}

// Lookup walks a chain of field names from the root. It returns false if any
// step is missing or is not an object.
func (d *Document) Lookup(path ...string) (*Node, bool) {
	n := d.root
	for _, name := range path {
		next, ok := n.Field(name)
		if !ok {
			return nil, false
		}
		n = next
	}
	return n, true
}

// decodeValue reads one value; depth counts the containers already open.
func decodeValue(dec *json.Decoder, depth int) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, classify(dec, err)
	}

	switch v := tok.(type) {
	case json.Delim:
		if (v == '{' || v == '[') && depth >= MaxDepth {
			return nil, &DecodeError{Msg: fmt.Sprintf("document: nesting depth exceeds %d", MaxDepth)}
		}
		switch v {
		case '{':
			return decodeObject(dec, depth+1)
		case '[':
			return decodeArray(dec, depth+1)
		default:
			return nil, &SyntaxError{Offset: dec.InputOffset(), Msg: fmt.Sprintf("unexpected delimiter %q", rune(v))}
		}
	case string:
		return &Node{kind: String, str: v}, nil
	case json.Number:
		return &Node{kind: Number, str: v.String()}, nil
	case bool:
		return &Node{kind: Bool, b: v}, nil
	case nil:
		return &Node{kind: Null}, nil
	default:
		return nil, &DecodeError{Msg: fmt.Sprintf("document: unsupported token %T", tok)}
	}
}

func decodeObject(dec *json.Decoder, depth int) (*Node, error) {
	n := &Node{kind: Object}
	index := make(map[string]int)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, classify(dec, err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, &SyntaxError{Offset: dec.InputOffset(), Msg: "object key must be a string"}
		}

		value, err := decodeValue(dec, depth)
		if err != nil {
			return nil, err
		}

		// Duplicate keys keep the first position and the last value.
		if i, seen := index[name]; seen {
			n.fields[i].Value = value
			continue
		}
		index[name] = len(n.fields)
		n.fields = append(n.fields, Field{Name: name, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return nil, classify(dec, err)
	}
	return n, nil
}

func decodeArray(dec *json.Decoder, depth int) (*Node, error) {
	n := &Node{kind: Array}

	for dec.More() {
		value, err := decodeValue(dec, depth)
		if err != nil {
			return nil, err
		}
		n.items = append(n.items, value)
	}

	if _, err := dec.Token(); err != nil {
		return nil, classify(dec, err)
	}
	return n, nil
}

// classify maps decoder errors onto SyntaxError or DecodeError.
func classify(dec *json.Decoder, err error) error {
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &syntaxErr) && strings.Contains(syntaxErr.Error(), "exceeded max depth"):
		return &DecodeError{Msg: "document: nesting depth exceeded", Err: err}
	case errors.As(err, &syntaxErr):
		return &SyntaxError{Offset: syntaxErr.Offset, Msg: syntaxErr.Error()}
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return &SyntaxError{Offset: dec.InputOffset(), Msg: "unexpected end of JSON input"}
	default:
		return &DecodeError{Msg: "document: failed to decode JSON", Err: err}
	}
}
