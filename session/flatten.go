package session

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Fields is a flat mapping of field name to scalar value. A key present with
// a nil value means the source carried the field but it was null.
type Fields map[string]interface{}

// RawEvent is one logged interaction turn as read from the warehouse.
type RawEvent struct {
	Timestamp time.Time
	Resource  map[string]interface{}
	Payload   map[string]interface{}
}

// Flatten promotes the resource and payload bags of e into flat fields and
// keeps only the allow-listed names. A nil bag promotes nothing.
func Flatten(e RawEvent) Fields {
	out := Fields{}

	promote(out, e.Resource, resourceRenames)
	promote(out, e.Payload, payloadRenames)

	for k := range out {
		if _, ok := retainedFields[k]; !ok {
			delete(out, k)
		}
	}

	if !e.Timestamp.IsZero() {
		out[FieldTimestamp] = e.Timestamp.UTC()
	}

	return out
}

func promote(dst Fields, bag map[string]interface{}, renames map[string]string) {
	flat := map[string]interface{}{}
	flattenInto(flat, "", bag)

	// Renamed paths are applied last so they win over an unmapped path that
	// happens to carry the same name.
	for path, v := range flat {
		if _, ok := renames[path]; !ok {
			dst[path] = v
		}
	}
	for path, v := range flat {
		if name, ok := renames[path]; ok {
			dst[name] = v
		}
	}
}

func flattenInto(dst map[string]interface{}, prefix string, bag map[string]interface{}) {
	for k, v := range bag {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}

		if nested, ok := v.(map[string]interface{}); ok {
			flattenInto(dst, path, nested)
			continue
		}

		dst[path] = v
	}
}

// String returns the textual value of name and whether it carries a value.
// Absent fields, nulls and empty strings all report no value.
func (f Fields) String(name string) (string, bool) {
	v, ok := f[name]
	if !ok {
		return "", false
	}

	s := scalarString(v)
	return s, s != ""
}

// Has reports whether name was present in the source, even as null.
func (f Fields) Has(name string) bool {
	_, ok := f[name]
	return ok
}

func scalarString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return norm.NFC.String(x)
	case []byte:
		return norm.NFC.String(string(x))
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return FormatTimestamp(x)
	case []interface{}:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			if s := scalarString(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+scalarString(x[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
