package typesystem

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// JSONKind tags the variant held by a JSON node.
type JSONKind uint8

const (
	JSONNull JSONKind = iota
	JSONBool
	JSONNumber
	JSONString
	JSONArray
	JSONObject
)

// JSON is a parsed Jsonb tree in canonical in-memory form: objects keep
// their keys sorted so two structurally-equal documents always produce the
// same CanonicalString, independent of source key order.
type JSON struct {
	Kind   JSONKind
	Bool   bool
	Num    float64
	Str    string
	Arr    []JSON
	Obj    map[string]JSON
	objKey []string // sorted keys, populated alongside Obj
}

// ParseJSON parses raw JSON text into the engine's canonical tree form.
func ParseJSON(raw []byte) (JSON, error) {
	if len(raw) == 0 {
		return JSON{Kind: JSONNull}, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return JSON{}, fmt.Errorf("typesystem: invalid json: %w", err)
	}
	return fromAny(v), nil
}

func fromAny(v any) JSON {
	switch x := v.(type) {
	case nil:
		return JSON{Kind: JSONNull}
	case bool:
		return JSON{Kind: JSONBool, Bool: x}
	case float64:
		return JSON{Kind: JSONNumber, Num: x}
	case string:
		return JSON{Kind: JSONString, Str: x}
	case []any:
		arr := make([]JSON, len(x))
		for i, e := range x {
			arr[i] = fromAny(e)
		}
		return JSON{Kind: JSONArray, Arr: arr}
	case map[string]any:
		obj := make(map[string]JSON, len(x))
		keys := make([]string, 0, len(x))
		for k, e := range x {
			obj[k] = fromAny(e)
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return JSON{Kind: JSONObject, Obj: obj, objKey: keys}
	default:
		return JSON{Kind: JSONNull}
	}
}

// CanonicalString renders the tree deterministically (sorted object keys),
// used for equality, ordering and as input to GIN posting keys.
func (j JSON) CanonicalString() string {
	var sb strings.Builder
	j.writeCanonical(&sb)
	return sb.String()
}

func (j JSON) writeCanonical(sb *strings.Builder) {
	switch j.Kind {
	case JSONNull:
		sb.WriteString("null")
	case JSONBool:
		if j.Bool {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case JSONNumber:
		sb.WriteString(strconv.FormatFloat(j.Num, 'g', -1, 64))
	case JSONString:
		b, _ := json.Marshal(j.Str)
		sb.Write(b)
	case JSONArray:
		sb.WriteByte('[')
		for i, e := range j.Arr {
			if i > 0 {
				sb.WriteByte(',')
			}
			e.writeCanonical(sb)
		}
		sb.WriteByte(']')
	case JSONObject:
		sb.WriteByte('{')
		for i, k := range j.objKey {
			if i > 0 {
				sb.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			sb.Write(kb)
			sb.WriteByte(':')
			j.Obj[k].writeCanonical(sb)
		}
		sb.WriteByte('}')
	}
}

// Path is a parsed JSON path such as "$.a.b" split into ["a","b"].
type Path struct {
	Segments []string
	raw      string
}

// ParsePath parses a "$.a.b.c" style path. The leading "$" is mandatory;
// an empty tail ("$") addresses the document root.
func ParsePath(raw string) (Path, error) {
	if !strings.HasPrefix(raw, "$") {
		return Path{}, fmt.Errorf("typesystem: json path must start with '$': %q", raw)
	}
	rest := strings.TrimPrefix(raw, "$")
	rest = strings.TrimPrefix(rest, ".")
	var segs []string
	if rest != "" {
		segs = strings.Split(rest, ".")
	}
	return Path{Segments: segs, raw: raw}, nil
}

func (p Path) String() string { return p.raw }

// Leaf navigates the tree along the path and returns the leaf value found,
// converted to a comparable engine Value. ok is false if the path does not
// resolve to a scalar (missing key, or resolves to an object/array).
func (j JSON) Leaf(p Path) (Value, bool) {
	cur := j
	for _, seg := range p.Segments {
		if cur.Kind != JSONObject {
			return Value{}, false
		}
		next, ok := cur.Obj[seg]
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	switch cur.Kind {
	case JSONNull:
		return NewNull(), true
	case JSONBool:
		return NewBool(cur.Bool), true
	case JSONNumber:
		return NewFloat64(cur.Num), true
	case JSONString:
		return NewString(cur.Str), true
	default:
		return Value{}, false
	}
}
