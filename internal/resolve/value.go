// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package resolve

import (
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/canonical/sqlprep/dialect"
)

// A value is the resolver's internal representation of a single substitution
// value. Values form a small tagged union; the emitter switches over the
// concrete types below.
type value interface {
	// value is a marker method.
	value()
}

type nullValue struct{}

type boolValue bool

type intValue int64

type textValue string

type bytesValue []byte

type listValue []value

// customValue wraps a self-rendering value.
type customValue struct {
	renderer dialect.Renderer
}

func (nullValue) value()   {}
func (boolValue) value()   {}
func (intValue) value()    {}
func (textValue) value()   {}
func (bytesValue) value()  {}
func (listValue) value()   {}
func (customValue) value() {}

// sqlTimeLayout is the dialect-neutral spelling of a timestamp. Times are
// normalized to UTC before formatting.
const sqlTimeLayout = "2006-01-02 15:04:05"

// newValue normalizes a Go value into the resolver's value union. Integers
// and booleans keep their direct literal spellings; floats and times become
// text and reach the quoter; slices become collections.
func newValue(arg any) (value, error) {
	switch a := arg.(type) {
	case nil:
		return nullValue{}, nil
	case bool:
		return boolValue(a), nil
	case int:
		return intValue(a), nil
	case int8:
		return intValue(a), nil
	case int16:
		return intValue(a), nil
	case int32:
		return intValue(a), nil
	case int64:
		return intValue(a), nil
	case uint:
		return uintValue(uint64(a))
	case uint8:
		return intValue(a), nil
	case uint16:
		return intValue(a), nil
	case uint32:
		return intValue(a), nil
	case uint64:
		return uintValue(a)
	case float32:
		return textValue(strconv.FormatFloat(float64(a), 'g', -1, 64)), nil
	case float64:
		return textValue(strconv.FormatFloat(a, 'g', -1, 64)), nil
	case string:
		return textValue(a), nil
	case []byte:
		return bytesValue(a), nil
	case time.Time:
		return textValue(a.UTC().Format(sqlTimeLayout)), nil
	case dialect.Renderer:
		return customValue{renderer: a}, nil
	case driver.Valuer:
		v, err := a.Value()
		if err != nil {
			return nil, fmt.Errorf("cannot get value of %T: %s", arg, err)
		}
		return newValue(v)
	}
	return reflectValue(arg)
}

// uintValue converts an unsigned integer, guarding against overflow of the
// integer variant.
func uintValue(a uint64) (value, error) {
	if a > math.MaxInt64 {
		return nil, fmt.Errorf("%w uint64: %d overflows the integer literal range", ErrUnsupportedType, a)
	}
	return intValue(a), nil
}

// reflectValue normalizes named basic types, pointers and arbitrary slices.
func reflectValue(arg any) (value, error) {
	v := reflect.ValueOf(arg)
	switch v.Kind() {
	case reflect.Bool:
		return boolValue(v.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return intValue(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return uintValue(v.Uint())
	case reflect.Float32, reflect.Float64:
		return textValue(strconv.FormatFloat(v.Float(), 'g', -1, 64)), nil
	case reflect.String:
		return textValue(v.String()), nil
	case reflect.Pointer:
		if v.IsNil() {
			return nullValue{}, nil
		}
		return newValue(v.Elem().Interface())
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return bytesValue(v.Bytes()), nil
		}
		return newList(v)
	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, v.Len())
			reflect.Copy(reflect.ValueOf(b), v)
			return bytesValue(b), nil
		}
		return newList(v)
	}
	return nil, fmt.Errorf("%w %T", ErrUnsupportedType, arg)
}

// newList normalizes a Go slice or array into a collection. Collection
// elements are scalars: nested collections and self-rendering elements have
// no defined literal form.
func newList(v reflect.Value) (value, error) {
	list := make(listValue, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		elem, err := newValue(v.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		switch elem.(type) {
		case listValue:
			return nil, fmt.Errorf("%w: collection inside collection", ErrUnsupportedType)
		case customValue:
			return nil, fmt.Errorf("%w: self-rendering value inside collection", ErrUnsupportedType)
		}
		list = append(list, elem)
	}
	return list, nil
}
