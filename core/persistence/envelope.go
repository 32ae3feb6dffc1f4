package persistence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/asaidimu/go-docquery/core"
	"github.com/asaidimu/go-docquery/core/command"
)

// Field is a single key of a ResultEnvelope.
type Field struct {
	Key   string
	Value any
}

// ResultEnvelope is the JSON object returned for every command. Keys are
// serialized in the order they were set.
type ResultEnvelope struct {
	Fields []Field
	// Err is the error the envelope reports, if any. It is not serialized.
	Err error
}

// Set assigns value to key, keeping the key's original position if it is
// already present.
func (e *ResultEnvelope) Set(key string, value any) *ResultEnvelope {
	for i := range e.Fields {
		if e.Fields[i].Key == key {
			e.Fields[i].Value = value
			return e
		}
	}
	e.Fields = append(e.Fields, Field{Key: key, Value: value})
	return e
}

// Get returns the value stored under key.
func (e *ResultEnvelope) Get(key string) (any, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Keys returns the envelope's keys in serialization order.
func (e *ResultEnvelope) Keys() []string {
	keys := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		keys[i] = f.Key
	}
	return keys
}

// Succeeded reports whether the envelope carries "success": true.
func (e *ResultEnvelope) Succeeded() bool {
	v, _ := e.Get("success")
	ok, _ := v.(bool)
	return ok
}

// ErrorMessage returns the "error" key, or the empty string.
func (e *ResultEnvelope) ErrorMessage() string {
	v, _ := e.Get("error")
	s, _ := v.(string)
	return s
}

// Kind returns the kind of the reported error, or the empty string on success.
func (e *ResultEnvelope) Kind() core.ErrorKind {
	return core.KindOf(e.Err)
}

func (e *ResultEnvelope) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range e.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String returns the envelope as JSON. Values that cannot be encoded
// produce an error envelope instead.
func (e *ResultEnvelope) String() string {
	data, err := json.Marshal(e)
	if err != nil {
		fallback, _ := json.Marshal(errorOnly(fmt.Sprintf("failed to encode result: %v", err)))
		return string(fallback)
	}
	return string(data)
}

func errorOnly(msg string) *ResultEnvelope {
	return (&ResultEnvelope{}).Set("error", msg)
}

// newSuccessEnvelope builds the envelope for a successful operation.
func newSuccessEnvelope(result *Result) *ResultEnvelope {
	env := (&ResultEnvelope{}).Set("success", true)
	switch result.Operation {
	case command.OperationRead:
		env.Set("data", result.Data).Set("id", result.ID)
	case command.OperationWrite, command.OperationUpdate:
		env.Set("id", result.ID)
	case command.OperationDelete:
		env.Set("message", result.Message).Set("id", result.ID)
	case command.OperationQuery:
		documents := result.Documents
		if documents == nil {
			documents = []core.Document{}
		}
		env.Set("documents", documents).Set("count", len(documents))
	}
	return env
}

// NewErrorEnvelope maps err onto one of the failure shapes. Input that could
// not be parsed, a missing store and internal failures produce {"error"}; other
// failures carry "success": false, and missing-index failures add details
// and a hint.
func NewErrorEnvelope(err error) *ResultEnvelope {
	msg := err.Error()
	var cerr *core.Error
	if errors.As(err, &cerr) && cerr.Message != "" {
		msg = cerr.Message
	}

	env := &ResultEnvelope{Err: err}
	switch core.KindOf(err) {
	case core.KindMalformedInput, core.KindUnsupportedOperation, core.KindUninitialized, core.KindInternal:
		env.Set("error", msg)
	case core.KindMissingIndex:
		env.Set("success", false).Set("error", msg)
		if cerr != nil {
			env.Set("details", cerr.Details).Set("hint", cerr.Hint)
		}
	default:
		env.Set("success", false).Set("error", msg)
	}
	return env
}
