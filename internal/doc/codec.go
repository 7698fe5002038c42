package doc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-json-experiment/json/jsontext"
)

// Parse decodes a single JSON value. Duplicate keys keep the first position
// and the last value. Trailing data after the value is an error.
func Parse(data []byte) (*Node, error) {
	dec := jsontext.NewDecoder(bytes.NewReader(data),
		jsontext.AllowDuplicateNames(true),
		jsontext.AllowInvalidUTF8(true),
	)
	n, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.ReadToken(); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, fmt.Errorf("unexpected data after top-level value")
		}
		return nil, err
	}
	return n, nil
}

func decodeValue(dec *jsontext.Decoder) (*Node, error) {
	tok, err := dec.ReadToken()
	if err != nil {
		return nil, err
	}
	switch tok.Kind() {
	case 'n':
		return NewNull(), nil
	case 't':
		return NewBool(true), nil
	case 'f':
		return NewBool(false), nil
	case '"':
		return NewString(tok.String()), nil
	case '0':
		return NewNumber(tok.String()), nil
	case '{':
		m := NewMapping()
		for dec.PeekKind() != '}' {
			keyTok, err := dec.ReadToken()
			if err != nil {
				return nil, err
			}
			// the token is only valid until the next decoder call
			key := keyTok.String()
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			m.Set(key, v)
		}
		if _, err := dec.ReadToken(); err != nil {
			return nil, err
		}
		return m, nil
	case '[':
		seq := NewSequence()
		for dec.PeekKind() != ']' {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			seq.Items = append(seq.Items, v)
		}
		if _, err := dec.ReadToken(); err != nil {
			return nil, err
		}
		return seq, nil
	default:
		return nil, fmt.Errorf("unexpected token %q", tok.Kind())
	}
}

// Marshal encodes n compactly
func Marshal(n *Node) ([]byte, error) {
	b, err := encode(n)
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(b, "\n"), nil
}

// MarshalIndent encodes n with two-space indentation and a trailing newline.
// Non-ASCII text is written as-is.
func MarshalIndent(n *Node) ([]byte, error) {
	b, err := encode(n, jsontext.WithIndent("  "), jsontext.SpaceAfterColon(true))
	if err != nil {
		return nil, err
	}
	return append(bytes.TrimRight(b, "\n"), '\n'), nil
}

func encode(n *Node, opts ...jsontext.Options) ([]byte, error) {
	var buf bytes.Buffer
	enc := jsontext.NewEncoder(&buf, opts...)
	if err := encodeValue(enc, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(enc *jsontext.Encoder, n *Node) error {
	if n == nil {
		return enc.WriteToken(jsontext.Null)
	}
	switch n.Kind {
	case Null:
		return enc.WriteToken(jsontext.Null)
	case Bool:
		return enc.WriteToken(jsontext.Bool(n.Bool))
	case String:
		return enc.WriteToken(jsontext.String(n.Str))
	case Number:
		return enc.WriteValue(jsontext.Value(n.Num))
	case Mapping:
		if err := enc.WriteToken(jsontext.BeginObject); err != nil {
			return err
		}
		for _, f := range n.Fields {
			if err := enc.WriteToken(jsontext.String(f.Key)); err != nil {
				return err
			}
			if err := encodeValue(enc, f.Value); err != nil {
				return fmt.Errorf("%s: %w", f.Key, err)
			}
		}
		return enc.WriteToken(jsontext.EndObject)
	case Sequence:
		if err := enc.WriteToken(jsontext.BeginArray); err != nil {
			return err
		}
		for _, it := range n.Items {
			if err := encodeValue(enc, it); err != nil {
				return err
			}
		}
		return enc.WriteToken(jsontext.EndArray)
	default:
		return fmt.Errorf("unknown node kind %d", n.Kind)
	}
}

// MarshalJSON lets a Node sit inside encoding/json structs
func (n *Node) MarshalJSON() ([]byte, error) {
	return Marshal(n)
}

// UnmarshalJSON lets a Node be decoded by encoding/json
func (n *Node) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*n = *parsed
	return nil
}

// FromValue converts any encoding/json-marshalable value into a Node
func FromValue(v any) (*Node, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return Parse(data)
}
