package worker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// DecodeArgs strictly decodes data into a new value of the same concrete
// type as zero (typically obtained from Worker.NewArgs/EntryFunction.NewArgs),
// rejecting unknown fields. This is the one place raw JSON is coerced into a
// WorkerArgs implementation; every other call site passes a concrete Args
// value (spec "strict inputs": no implicit coercion).
func DecodeArgs(zero Args, data []byte) (Args, error) {
	t := reflect.TypeOf(zero)
	if t == nil {
		return nil, fmt.Errorf("worker: nil Args schema")
	}
	isPtr := t.Kind() == reflect.Ptr
	elemT := t
	if isPtr {
		elemT = t.Elem()
	}
	ptr := reflect.New(elemT)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(ptr.Interface()); err != nil {
		return nil, fmt.Errorf("worker: decoding args into %s: %w", elemT.Name(), err)
	}
	if isPtr {
		return ptr.Interface().(Args), nil
	}
	return ptr.Elem().Interface().(Args), nil
}
