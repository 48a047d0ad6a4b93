// ABOUTME: Field bridges convert property values into index field values
// ABOUTME: Bridges are chosen per index-manager binding through a Provider

package bridge

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
)

var (
	// ErrNoBridge indicates no bridge could be resolved for a property type
	ErrNoBridge = errors.New("bridge: no field bridge for type")

	// ErrDuplicateBridge indicates a named bridge was registered twice
	ErrDuplicateBridge = errors.New("bridge: duplicate bridge name")

	// ErrUnsupportedValue indicates a bridge was handed a value it cannot encode
	ErrUnsupportedValue = errors.New("bridge: unsupported value")
)

// NumericEncoding describes how a numeric field is encoded in the index
type NumericEncoding int

const (
	NumericNone NumericEncoding = iota
	NumericInt
	NumericLong
	NumericFloat
	NumericDouble
)

func (e NumericEncoding) String() string {
	switch e {
	case NumericInt:
		return "int"
	case NumericLong:
		return "long"
	case NumericFloat:
		return "float"
	case NumericDouble:
		return "double"
	default:
		return "none"
	}
}

// FieldBridge encodes a single, non-nil property value
type FieldBridge interface {
	Name() string
	Encode(v reflect.Value) (any, error)
}

// NumericBridge is implemented by bridges producing numeric field values
type NumericBridge interface {
	FieldBridge
	Encoding() NumericEncoding
}

// Provider guesses a bridge for a Go type
type Provider interface {
	Name() string
	Guess(t reflect.Type) (FieldBridge, error)
}

// EncodingOf returns the numeric encoding of b, or NumericNone
func EncodingOf(b FieldBridge) NumericEncoding {
	if nb, ok := b.(NumericBridge); ok {
		return nb.Encoding()
	}
	return NumericNone
}

// ParseNumeric parses s as a value of the given encoding. Used to validate
// and encode null markers of numeric fields.
func ParseNumeric(enc NumericEncoding, s string) (any, error) {
	switch enc {
	case NumericInt:
		i, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse %q as int: %w", s, err)
		}
		return int32(i), nil
	case NumericLong:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q as long: %w", s, err)
		}
		return i, nil
	case NumericFloat:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("parse %q as float: %w", s, err)
		}
		return float32(f), nil
	case NumericDouble:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q as double: %w", s, err)
		}
		return f, nil
	default:
		return s, nil
	}
}
