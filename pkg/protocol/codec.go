package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uhyunpark/marketfeed/pkg/book"
)

// Error codes, 4xx-style. All codes mark client mistakes scoped to the
// offending connection; none are fatal to the hub.
const (
	CodeBadRequest      = 400 // malformed frame or unknown type
	CodeUnknownSymbol   = 404 // instrument not served
	CodeDuplicateStream = 409 // stream id already active on the connection
	CodeInvalidRequest  = 422 // bad view kind or non-positive depth
)

// NewError builds an error frame. streamID may be empty when the failure is
// not attributable to a stream.
func NewError(code int, message, streamID string) Error {
	return Error{Type: TypeError, Code: code, Message: message, StreamID: streamID}
}

type RequestKind int

const (
	RequestSubscribe RequestKind = iota
	RequestUnsubscribe
	RequestPing
)

// Request is a validated, normalized control request ready for the hub.
// Defaults (depth) are already applied.
type Request struct {
	Kind      RequestKind
	StreamID  string
	Symbol    string
	ViewKind  book.ViewKind
	Depth     int
	Timestamp time.Time
}

// Codec validates raw inbound frames against the set of served symbols.
type Codec struct {
	symbols      map[string]bool
	defaultDepth int
}

func NewCodec(symbols []string, defaultDepth int) *Codec {
	set := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		set[s] = true
	}
	return &Codec{symbols: set, defaultDepth: defaultDepth}
}

// Decode parses and validates one inbound frame. On failure it returns the
// Error frame to send back; the hub is never invoked for invalid input.
func (c *Codec) Decode(data []byte) (Request, *Error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		e := NewError(CodeBadRequest, fmt.Sprintf("malformed message: %v", err), "")
		return Request{}, &e
	}

	switch msg.Type {
	case TypeSubscribe:
		return c.validateSubscribe(msg)
	case TypeUnsubscribe:
		if msg.StreamID == "" {
			e := NewError(CodeBadRequest, "unsubscribe requires stream_id", "")
			return Request{}, &e
		}
		return Request{Kind: RequestUnsubscribe, StreamID: msg.StreamID}, nil
	case TypePing:
		return Request{Kind: RequestPing, Timestamp: msg.Timestamp}, nil
	default:
		e := NewError(CodeBadRequest, fmt.Sprintf("unknown message type %q", msg.Type), "")
		return Request{}, &e
	}
}

func (c *Codec) validateSubscribe(msg ClientMessage) (Request, *Error) {
	if msg.StreamID == "" {
		e := NewError(CodeBadRequest, "subscribe requires stream_id", "")
		return Request{}, &e
	}
	if !c.symbols[msg.Symbol] {
		e := NewError(CodeUnknownSymbol, fmt.Sprintf("unknown symbol %q", msg.Symbol), msg.StreamID)
		return Request{}, &e
	}

	kind := book.ViewKind(msg.ViewKind)
	if !kind.Valid() {
		e := NewError(CodeInvalidRequest, fmt.Sprintf("invalid view_kind %q", msg.ViewKind), msg.StreamID)
		return Request{}, &e
	}

	depth := c.defaultDepth
	if msg.Depth != nil {
		if *msg.Depth <= 0 {
			e := NewError(CodeInvalidRequest, fmt.Sprintf("depth must be positive, got %d", *msg.Depth), msg.StreamID)
			return Request{}, &e
		}
		depth = *msg.Depth
	}

	return Request{
		Kind:     RequestSubscribe,
		StreamID: msg.StreamID,
		Symbol:   msg.Symbol,
		ViewKind: kind,
		Depth:    depth,
	}, nil
}
