// Package protocol defines the wire schema spoken over the streaming
// connection and the codec that validates inbound control requests.
//
// Every frame is a JSON object tagged with a "type" field. Inbound types are
// subscribe, unsubscribe and ping; outbound types are subscribed,
// unsubscribed, market_data, heart_beat, connection_info and error.
package protocol

import (
	"time"

	"github.com/uhyunpark/marketfeed/pkg/book"
)

// Message type tags.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"

	TypeSubscribed     = "subscribed"
	TypeUnsubscribed   = "unsubscribed"
	TypeMarketData     = "market_data"
	TypeHeartBeat      = "heart_beat"
	TypeConnectionInfo = "connection_info"
	TypeError          = "error"
)

// ClientMessage is the flat decode target for all inbound frames; the Type
// tag decides which fields are meaningful.
type ClientMessage struct {
	Type      string    `json:"type"`
	StreamID  string    `json:"stream_id,omitempty"`
	Symbol    string    `json:"symbol,omitempty"`
	ViewKind  string    `json:"view_kind,omitempty"`
	Depth     *int      `json:"depth,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ServerMessage is implemented by every outbound frame.
type ServerMessage interface {
	serverMessage()
}

type Subscribed struct {
	Type     string        `json:"type"`
	StreamID string        `json:"stream_id"`
	Symbol   string        `json:"symbol"`
	ViewKind book.ViewKind `json:"view_kind"`
}

type Unsubscribed struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
}

// MarketData carries one snapshot for one stream. Bids and Asks hold
// book.OrderSnapshot or book.LevelSnapshot entries depending on ViewKind.
type MarketData struct {
	Type      string        `json:"type"`
	StreamID  string        `json:"stream_id"`
	Symbol    string        `json:"symbol"`
	ViewKind  book.ViewKind `json:"view_kind"`
	Sequence  uint64        `json:"sequence"`
	Timestamp time.Time     `json:"timestamp"`
	Bids      any           `json:"bids"`
	Asks      any           `json:"asks"`
}

type HeartBeat struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// ConnectionInfo greets a freshly registered connection.
type ConnectionInfo struct {
	Type             string    `json:"type"`
	ClientID         string    `json:"client_id"`
	ServerTime       time.Time `json:"server_time"`
	SupportedSymbols []string  `json:"supported_symbols"`
}

type Error struct {
	Type     string `json:"type"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	StreamID string `json:"stream_id,omitempty"`
}

func (Subscribed) serverMessage()     {}
func (Unsubscribed) serverMessage()   {}
func (MarketData) serverMessage()     {}
func (HeartBeat) serverMessage()      {}
func (ConnectionInfo) serverMessage() {}
func (Error) serverMessage()          {}

func NewSubscribed(streamID string, symbol string, kind book.ViewKind) Subscribed {
	return Subscribed{Type: TypeSubscribed, StreamID: streamID, Symbol: symbol, ViewKind: kind}
}

func NewUnsubscribed(streamID string) Unsubscribed {
	return Unsubscribed{Type: TypeUnsubscribed, StreamID: streamID}
}

func NewHeartBeat(ts time.Time) HeartBeat {
	return HeartBeat{Type: TypeHeartBeat, Timestamp: ts}
}

func NewConnectionInfo(clientID string, ts time.Time, symbols []string) ConnectionInfo {
	return ConnectionInfo{
		Type:             TypeConnectionInfo,
		ClientID:         clientID,
		ServerTime:       ts,
		SupportedSymbols: symbols,
	}
}

// NewMarketData tags a book snapshot with the stream it belongs to.
func NewMarketData(streamID string, snap book.Snapshot) MarketData {
	md := MarketData{
		Type:      TypeMarketData,
		StreamID:  streamID,
		Symbol:    snap.Symbol,
		ViewKind:  snap.Kind,
		Sequence:  snap.Sequence,
		Timestamp: snap.Timestamp,
	}
	if snap.Kind == book.PriceLevel {
		md.Bids, md.Asks = snap.LevelBids, snap.LevelAsks
	} else {
		md.Bids, md.Asks = snap.OrderBids, snap.OrderAsks
	}
	return md
}
