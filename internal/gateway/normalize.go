package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"unicode/utf8"
)

// Error strings of the envelopes the gateway synthesizes itself.
const (
	ErrMsgInvalidResponse     = "Invalid response from Apps Script"
	ErrMsgUpstreamUnreachable = "upstream unreachable"
	ErrMsgRateLimited         = "rate limit exceeded"
	ErrMsgNotFound            = "not found"
	ErrMsgMethodNotAllowed    = "method not allowed"
	ErrMsgInternal            = "internal error"
)

// Response is what the caller receives: Body is always valid JSON.
type Response struct {
	Status int
	Body   json.RawMessage
}

// errorEnvelope keeps success, error, raw in that order on the wire.
type errorEnvelope struct {
	Success bool    `json:"success"`
	Error   string  `json:"error"`
	Raw     *string `json:"raw,omitempty"`
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Normalize turns a raw backend reply into a Response. A JSON body is kept
// as-is (compacted); anything else is wrapped in the invalid-response
// envelope with the original text under "raw". Statuses below 400 become 200.
func Normalize(status int, body []byte) Response {
	resp, _ := normalize(status, body)
	return resp
}

// normalize also reports whether the body was JSON.
func normalize(status int, body []byte) (Response, bool) {
	out := Response{Status: NormalizeStatus(status)}

	candidate := bytes.TrimPrefix(body, utf8BOM)
	if json.Valid(candidate) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, toValidUTF8(candidate)); err == nil {
			out.Body = buf.Bytes()
			return out, true
		}
	}

	raw := string(body)
	out.Body = mustEnvelope(errorEnvelope{Error: ErrMsgInvalidResponse, Raw: &raw})
	return out, false
}

// toValidUTF8 replaces each run of invalid UTF-8 with U+FFFD. json.Valid
// and json.Compact both let such bytes through inside strings.
func toValidUTF8(b []byte) []byte {
	if utf8.Valid(b) {
		return b
	}
	return bytes.ToValidUTF8(b, []byte("\uFFFD"))
}

// NormalizeStatus forwards error statuses and flattens everything else to 200.
func NormalizeStatus(status int) int {
	if status >= 400 {
		return status
	}
	return http.StatusOK
}

// Unreachable is the Response for a backend call that produced no HTTP reply.
func Unreachable() Response {
	return ErrorResponse(http.StatusBadGateway, ErrMsgUpstreamUnreachable)
}

// ErrorResponse builds a {success:false, error:msg} Response.
func ErrorResponse(status int, msg string) Response {
	return Response{Status: status, Body: mustEnvelope(errorEnvelope{Error: msg})}
}

func mustEnvelope(e errorEnvelope) json.RawMessage {
	var buf bytes.Buffer
	if err := writeJSON(&buf, e); err != nil {
		// Only strings and a bool; encoding cannot fail.
		panic(err)
	}
	return buf.Bytes()
}
