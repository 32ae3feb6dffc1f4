// Package utils holds conversions between Go values and documents.
package utils

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/asaidimu/go-docquery/core"
)

// DeepCopy returns a copy of v in which every nested map and slice is
// duplicated. Scalars and other values, such as time.Time, are shared.
func DeepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = DeepCopy(item)
		}
		return out
	case core.Document:
		return CopyDocument(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = DeepCopy(item)
		}
		return out
	case []byte:
		return append([]byte(nil), val...)
	default:
		return v
	}
}

// CopyDocument returns a deep copy of doc.
func CopyDocument(doc core.Document) core.Document {
	if doc == nil {
		return nil
	}
	out := make(core.Document, len(doc))
	for k, v := range doc {
		out[k] = DeepCopy(v)
	}
	return out
}

// StructToDocument converts a struct, or a pointer to one, into a Document
// by way of its JSON encoding, so `json` tags are honoured.
//
//	type Booking struct {
//		Status string `json:"status"`
//	}
//	doc, err := StructToDocument(Booking{Status: "pending"})
//	// doc == core.Document{"status": "pending"}
func StructToDocument[T any](record T) (core.Document, error) {
	val := reflect.ValueOf(record)
	if !val.IsValid() {
		return nil, fmt.Errorf("input record cannot be nil")
	}
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, fmt.Errorf("input record cannot be a nil pointer to a struct")
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("input record must be a struct or a pointer to a struct, got %s", val.Kind())
	}

	jsonBytes, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("StructToDocument: failed to marshal input record to JSON: %w", err)
	}
	var doc core.Document
	if err := json.Unmarshal(jsonBytes, &doc); err != nil {
		return nil, fmt.Errorf("StructToDocument: failed to unmarshal JSON to document: %w", err)
	}
	return doc, nil
}

// DocumentToStruct is the inverse of StructToDocument. T must be a struct
// type or a pointer to one.
func DocumentToStruct[T any](input map[string]any) (T, error) {
	var zero T

	if input == nil {
		return zero, fmt.Errorf("DocumentToStruct: input map cannot be nil")
	}

	typ := reflect.TypeOf(zero)
	if typ != nil && typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return zero, fmt.Errorf("DocumentToStruct: generic type T must be a struct type (or pointer to struct)")
	}

	jsonBytes, err := json.Marshal(input)
	if err != nil {
		return zero, fmt.Errorf("DocumentToStruct: failed to marshal input map to JSON: %w", err)
	}
	var result T
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return zero, fmt.Errorf("DocumentToStruct: failed to unmarshal JSON to target struct: %w", err)
	}
	return result, nil
}
