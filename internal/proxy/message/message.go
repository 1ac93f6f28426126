// Package message classifies a decoded JSON-RPC body into one of the four
// shapes the dispatcher cares about, expressed as a tagged variant rather
// than ad-hoc field probing at each call site (the reference source's
// repeated get("id")/get("method") checks are the single largest source of
// accidental complexity it has — see Design Notes).
package message

import "encoding/json"

// Kind tags the shape of a decoded JSON-RPC message.
type Kind int

const (
	// Illformed is neither a Request, Response, nor Notification.
	Illformed Kind = iota
	Request
	Response
	Notification
)

func (k Kind) String() string {
	switch k {
	case Request:
		return "request"
	case Response:
		return "response"
	case Notification:
		return "notification"
	default:
		return "ill-formed"
	}
}

// Envelope is the minimal JSON-RPC 2.0 shape the proxy needs to read in
// order to classify and route a message. Params/Result/Error are kept as
// raw bytes so the proxy never has to understand LSP method payloads it
// isn't specifically rewriting.
type Envelope struct {
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
	JSONRPC string          `json:"jsonrpc,omitempty"`
}

// hasID reports whether the id field was present in the decoded document,
// including an explicit `"id":null`. json.RawMessage is nil only when the
// field was entirely absent.
func (e Envelope) hasID() bool { return len(e.ID) > 0 }

func (e Envelope) hasMethod() bool { return e.Method != "" }

// Classify decodes raw and reports its Kind alongside the decoded
// Envelope. A JSON decode failure is reported as Illformed with a zero
// Envelope; callers should log and drop in that case (§4.4.1).
func Classify(raw []byte) (Envelope, Kind) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, Illformed
	}

	switch {
	case env.hasMethod() && env.hasID():
		return env, Request
	case env.hasMethod() && !env.hasID():
		return env, Notification
	case !env.hasMethod() && env.hasID():
		return env, Response
	default:
		return env, Illformed
	}
}
