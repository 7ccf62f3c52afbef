package gateway

import (
	"bytes"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
)

// Envelope is the outbound parameter set for one backend call. It always
// carries the gateway's Action and keeps field insertion order so that the
// serialized form reads action first, then the route's fields.
//
// Field values are either Go strings (from query strings and defaults) or
// json.RawMessage (copied verbatim from a caller's JSON body).
type Envelope struct {
	Action Action

	keys   []string
	values map[string]any
}

// NewEnvelope returns an empty envelope for the given action.
func NewEnvelope(action Action) *Envelope {
	return &Envelope{Action: action, values: make(map[string]any)}
}

// Set assigns a field. The reserved action key is ignored: the gateway's
// Action always wins over caller input.
func (e *Envelope) Set(key string, value any) {
	if key == ActionKey {
		return
	}
	if _, ok := e.values[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.values[key] = value
}

// Get returns the raw value of a field.
func (e *Envelope) Get(key string) (any, bool) {
	if key == ActionKey {
		return string(e.Action), true
	}
	v, ok := e.values[key]
	return v, ok
}

// String returns a field as text; see stringValue.
func (e *Envelope) String(key string) string {
	v, _ := e.Get(key)
	return stringValue(v)
}

// Keys returns the non-action field names in outbound order.
func (e *Envelope) Keys() []string {
	out := make([]string, len(e.keys))
	copy(out, e.keys)
	return out
}

// MarshalJSON writes {"action":..., <fields in order>}.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writePair(&buf, ActionKey, string(e.Action)); err != nil {
		return nil, err
	}
	for _, k := range e.keys {
		buf.WriteByte(',')
		if err := writePair(&buf, k, e.values[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// EncodeQuery renders the envelope as a URL query, action first.
func (e *Envelope) EncodeQuery() string {
	var sb strings.Builder
	sb.WriteString(url.QueryEscape(ActionKey))
	sb.WriteByte('=')
	sb.WriteString(url.QueryEscape(string(e.Action)))
	for _, k := range e.keys {
		sb.WriteByte('&')
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(stringValue(e.values[k])))
	}
	return sb.String()
}

// FromQuery builds the envelope for a query-sourced route. Only the declared
// fields are read; each missing one becomes "".
func FromQuery(r Route, q url.Values) *Envelope {
	env := NewEnvelope(r.Action)
	for _, f := range r.Fields {
		env.Set(f, q.Get(f))
	}
	return env
}

// FromBody builds the envelope for a body-sourced route. A body that is
// empty, malformed or not a JSON object is treated as {}.
func FromBody(r Route, body []byte) *Envelope {
	obj := decodeObject(body)
	env := NewEnvelope(r.Action)

	if r.Source == SourcePassThrough {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			env.Set(k, obj[k])
		}
		return env
	}

	for _, f := range r.Fields {
		if v, ok := obj[f]; ok {
			env.Set(f, v)
		} else {
			env.Set(f, "")
		}
	}
	return env
}

// Extract dispatches to FromQuery or FromBody according to the route.
func Extract(r Route, q url.Values, body []byte) *Envelope {
	if r.Source == SourceQuery {
		return FromQuery(r, q)
	}
	return FromBody(r, body)
}

func decodeObject(body []byte) map[string]json.RawMessage {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil
	}
	return obj
}

func writePair(buf *bytes.Buffer, key string, value any) error {
	if err := writeJSON(buf, key); err != nil {
		return err
	}
	buf.WriteByte(':')
	if raw, ok := value.(json.RawMessage); ok {
		return json.Compact(buf, toValidUTF8(raw))
	}
	return writeJSON(buf, value)
}

// writeJSON encodes v without HTML escaping and without the encoder's
// trailing newline.
func writeJSON(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// stringValue flattens a field for query encoding: strings as-is, JSON
// strings unquoted, null as "", any other JSON value as its compact text.
func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.RawMessage:
		// null unmarshals into a string as a no-op, leaving ""
		var s string
		if err := json.Unmarshal(t, &s); err == nil {
			return s
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, t); err != nil {
			return string(t)
		}
		return buf.String()
	default:
		var buf bytes.Buffer
		if err := writeJSON(&buf, t); err != nil {
			return ""
		}
		return buf.String()
	}
}
