package command

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/asaidimu/go-docquery/core"
	"github.com/mitchellh/mapstructure"
)

// InvalidFormatMessage is reported when a command lacks its operation or
// collection segment.
const InvalidFormatMessage = "Invalid query format. Expected format: operation:collection:document_id[:data]"

func malformed(msg string) *core.Error {
	return core.NewError(core.KindMalformedInput, msg)
}

// Parse turns a command string into a Command. The string is split on its
// first two colons only; whatever follows the collection is interpreted
// according to the operation, so JSON payloads may contain colons freely.
// Every failure is a *core.Error of kind malformed_input or
// unsupported_operation.
func Parse(raw string) (*Command, error) {
	token, rest, ok := strings.Cut(raw, ":")
	if !ok {
		return nil, malformed(InvalidFormatMessage)
	}
	collection, remainder, ok := strings.Cut(rest, ":")
	if !ok {
		return nil, malformed(InvalidFormatMessage)
	}

	if collection == "" {
		return nil, malformed(InvalidFormatMessage)
	}
	op, ok := ParseOperation(token)
	if !ok {
		return nil, core.NewError(core.KindUnsupportedOperation, fmt.Sprintf("Unsupported operation: %s", strings.ToLower(token)))
	}

	cmd := &Command{Operation: op, Collection: collection}
	var err error
	switch op {
	case OperationRead, OperationDelete:
		err = cmd.parseDocumentID(remainder)
	case OperationWrite:
		err = cmd.parseWrite(remainder)
	case OperationUpdate:
		err = cmd.parseUpdate(remainder)
	case OperationQuery:
		cmd.Query, err = parseQueryParams(remainder)
	}
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

func (c *Command) parseDocumentID(remainder string) error {
	if remainder == "" {
		return malformed(fmt.Sprintf("Missing document ID for %s operation", c.Operation))
	}
	c.DocumentID = remainder
	return nil
}

func (c *Command) parseWrite(remainder string) error {
	id, payload, ok := strings.Cut(remainder, ":")
	if !ok {
		return malformed("Missing data for write operation")
	}
	data, err := decodeObject(payload)
	if err != nil {
		return core.WrapError(core.KindMalformedInput, "Invalid JSON in write data", err)
	}
	c.DocumentID = id
	c.Data = data
	return nil
}

func (c *Command) parseUpdate(remainder string) error {
	id, payload, ok := strings.Cut(remainder, ":")
	if !ok {
		return malformed("Missing data for update operation")
	}
	if id == "" {
		return malformed("Missing document ID for update operation")
	}
	data, err := decodeObject(payload)
	if err != nil {
		return core.WrapError(core.KindMalformedInput, "Invalid JSON in update data", err)
	}
	if a, b, overlap := core.OverlappingFieldPaths(data); overlap {
		return malformed(fmt.Sprintf("Invalid update data: field paths %s and %s overlap", a, b))
	}
	c.DocumentID = id
	c.Data = data
	return nil
}

// decodeObject decodes s, which must hold a single JSON object.
func decodeObject(s string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %T", v)
	}
	return obj, nil
}

// parseQueryParams decodes the parameters of a query. "{}" and blank input
// mean no parameters at all.
func parseQueryParams(s string) (*QueryFilterSpec, error) {
	if s == "{}" || strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var raw any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, core.WrapError(core.KindMalformedInput, "Invalid JSON in query parameters", err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, invalidParams(fmt.Errorf("expected a JSON object, got %T", raw))
	}

	spec := &QueryFilterSpec{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           spec,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(obj); err != nil {
		return nil, invalidParams(err)
	}
	if err := spec.validate(); err != nil {
		return nil, invalidParams(err)
	}
	spec.Direction = ParseDirection(string(spec.Direction))
	return spec, nil
}

func (s *QueryFilterSpec) validate() error {
	if s.Limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", s.Limit)
	}
	for i, f := range s.Filters {
		if !f.Active() {
			continue
		}
		if _, ok := comparisonOperators[f.Op]; !ok {
			return fmt.Errorf("filter %d: unsupported operator %q", i, f.Op)
		}
	}
	return nil
}

func invalidParams(err error) *core.Error {
	return core.WrapError(core.KindMalformedInput, fmt.Sprintf("Invalid query parameters: %v", err), err)
}
