// ABOUTME: Built-in bridges for strings, booleans, numbers, dates and text types
// ABOUTME: Local and Elasticsearch providers differ in date and boolean encoding

package bridge

import (
	"encoding"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

var (
	timeType          = reflect.TypeOf(time.Time{})
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	stringerType      = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
)

// Local date layout, millisecond resolution, always UTC
const localDateLayout = "20060102150405"

// Elasticsearch date layout, RFC 3339 with milliseconds
const isoDateLayout = "2006-01-02T15:04:05.000Z07:00"

type stringBridge struct{}

func (stringBridge) Name() string { return "string" }

func (stringBridge) Encode(v reflect.Value) (any, error) {
	if v.Kind() != reflect.String {
		return nil, fmt.Errorf("%w: %s is not a string", ErrUnsupportedValue, v.Type())
	}
	return v.String(), nil
}

type boolBridge struct {
	native bool
}

func (b boolBridge) Name() string {
	if b.native {
		return "bool-native"
	}
	return "bool"
}

func (b boolBridge) Encode(v reflect.Value) (any, error) {
	if v.Kind() != reflect.Bool {
		return nil, fmt.Errorf("%w: %s is not a bool", ErrUnsupportedValue, v.Type())
	}
	if b.native {
		return v.Bool(), nil
	}
	return strconv.FormatBool(v.Bool()), nil
}

type integerBridge struct {
	enc NumericEncoding
}

func (b integerBridge) Name() string { return b.enc.String() }

func (b integerBridge) Encoding() NumericEncoding { return b.enc }

func (b integerBridge) Encode(v reflect.Value) (any, error) {
	var i int64
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i = v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := v.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("%w: %d overflows long", ErrUnsupportedValue, u)
		}
		i = int64(u)
	default:
		return nil, fmt.Errorf("%w: %s is not an integer", ErrUnsupportedValue, v.Type())
	}

	if b.enc == NumericInt {
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, fmt.Errorf("%w: %d overflows int", ErrUnsupportedValue, i)
		}
		return int32(i), nil
	}
	return i, nil
}

type floatBridge struct {
	enc NumericEncoding
}

func (b floatBridge) Name() string { return b.enc.String() }

func (b floatBridge) Encoding() NumericEncoding { return b.enc }

func (b floatBridge) Encode(v reflect.Value) (any, error) {
	if v.Kind() != reflect.Float32 && v.Kind() != reflect.Float64 {
		return nil, fmt.Errorf("%w: %s is not a float", ErrUnsupportedValue, v.Type())
	}
	if b.enc == NumericFloat {
		return float32(v.Float()), nil
	}
	return v.Float(), nil
}

type dateBridge struct {
	iso bool
}

func (b dateBridge) Name() string {
	if b.iso {
		return "date-iso8601"
	}
	return "date"
}

func (b dateBridge) Encode(v reflect.Value) (any, error) {
	t, ok := v.Interface().(time.Time)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a time.Time", ErrUnsupportedValue, v.Type())
	}
	t = t.UTC()
	if b.iso {
		return t.Format(isoDateLayout), nil
	}
	return fmt.Sprintf("%s%03d", t.Format(localDateLayout), t.Nanosecond()/int(time.Millisecond)), nil
}

type textBridge struct{}

func (textBridge) Name() string { return "text" }

func (textBridge) Encode(v reflect.Value) (any, error) {
	i, ok := implementer(v, textMarshalerType)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not implement encoding.TextMarshaler", ErrUnsupportedValue, v.Type())
	}
	b, err := i.(encoding.TextMarshaler).MarshalText()
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", v.Type(), err)
	}
	return string(b), nil
}

type stringerBridge struct{}

func (stringerBridge) Name() string { return "stringer" }

func (stringerBridge) Encode(v reflect.Value) (any, error) {
	i, ok := implementer(v, stringerType)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not implement fmt.Stringer", ErrUnsupportedValue, v.Type())
	}
	return i.(fmt.Stringer).String(), nil
}

// implementer returns v (or a pointer to a copy of v) as an interface
// value satisfying iface
func implementer(v reflect.Value, iface reflect.Type) (any, bool) {
	if v.Type().Implements(iface) {
		return v.Interface(), true
	}
	if reflect.PointerTo(v.Type()).Implements(iface) {
		if v.CanAddr() {
			return v.Addr().Interface(), true
		}
		p := reflect.New(v.Type())
		p.Elem().Set(v)
		return p.Interface(), true
	}
	return nil, false
}

func implements(t, iface reflect.Type) bool {
	return t.Implements(iface) || reflect.PointerTo(t).Implements(iface)
}

type builtinProvider struct {
	name string
	es   bool
}

// LocalProvider returns the bridges of directory-based index managers:
// booleans and dates are encoded as sortable strings
func LocalProvider() Provider {
	return builtinProvider{name: "local"}
}

// ElasticsearchProvider returns the bridges of Elasticsearch index managers:
// booleans stay native and dates use ISO-8601
func ElasticsearchProvider() Provider {
	return builtinProvider{name: "elasticsearch", es: true}
}

func (p builtinProvider) Name() string { return p.name }

func (p builtinProvider) Guess(t reflect.Type) (FieldBridge, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch {
	case t == timeType:
		return dateBridge{iso: p.es}, nil
	case implements(t, textMarshalerType):
		return textBridge{}, nil
	case implements(t, stringerType):
		return stringerBridge{}, nil
	}

	switch t.Kind() {
	case reflect.String:
		return stringBridge{}, nil
	case reflect.Bool:
		return boolBridge{native: p.es}, nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return integerBridge{enc: NumericInt}, nil
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return integerBridge{enc: NumericLong}, nil
	case reflect.Float32:
		return floatBridge{enc: NumericFloat}, nil
	case reflect.Float64:
		return floatBridge{enc: NumericDouble}, nil
	}

	return nil, fmt.Errorf("%w %s (provider %s)", ErrNoBridge, t, p.name)
}

// IsScalar reports whether values of t are bridged as a whole even when t
// is a slice or map kind, e.g. net.IP or time.Time
func IsScalar(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t == timeType || implements(t, textMarshalerType) || implements(t, stringerType)
}
