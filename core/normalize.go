package core

import "time"

// timeValue is implemented by timestamp types that are not time.Time
// themselves, such as protobuf's timestamppb.Timestamp.
type timeValue interface {
	AsTime() time.Time
}

// FormatTimestamp renders t as an ISO-8601 string with nanosecond precision.
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// timestampString returns the normalized string for timestamp-like values.
func timestampString(v any) (string, bool) {
	switch t := v.(type) {
	case time.Time:
		return FormatTimestamp(t), true
	case *time.Time:
		if t == nil {
			return "", false
		}
		return FormatTimestamp(*t), true
	case timeValue:
		if t == nil {
			return "", false
		}
		return FormatTimestamp(t.AsTime()), true
	}
	return "", false
}

// NormalizeTimestamps replaces timestamp values in doc with ISO-8601
// strings. Top-level fields are converted, as are timestamps held directly
// inside top-level lists. Deeper nesting is left untouched. doc is modified
// in place and returned; lists are replaced rather than mutated.
func NormalizeTimestamps(doc Document) Document {
	for key, value := range doc {
		if s, ok := timestampString(value); ok {
			doc[key] = s
			continue
		}
		if list, ok := value.([]any); ok {
			doc[key] = normalizeList(list)
		}
	}
	return doc
}

func normalizeList(list []any) []any {
	var out []any
	for i, item := range list {
		s, ok := timestampString(item)
		if !ok {
			continue
		}
		if out == nil {
			out = append([]any(nil), list...)
		}
		out[i] = s
	}
	if out == nil {
		return list
	}
	return out
}
