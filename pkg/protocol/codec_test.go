package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/marketfeed/pkg/book"
)

func testCodec() *Codec {
	return NewCodec([]string{"BTCUSD", "ETHUSD"}, 20)
}

func TestDecodeSubscribe(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantCode  int
		wantDepth int
		wantKind  book.ViewKind
	}{
		{
			name:      "valid order level",
			raw:       `{"type":"subscribe","stream_id":"s1","symbol":"BTCUSD","view_kind":"order_level","depth":10}`,
			wantDepth: 10,
			wantKind:  book.OrderLevel,
		},
		{
			name:      "valid price level with default depth",
			raw:       `{"type":"subscribe","stream_id":"s1","symbol":"ETHUSD","view_kind":"price_level"}`,
			wantDepth: 20,
			wantKind:  book.PriceLevel,
		},
		{
			name:     "missing stream id",
			raw:      `{"type":"subscribe","symbol":"BTCUSD","view_kind":"order_level"}`,
			wantCode: CodeBadRequest,
		},
		{
			name:     "unknown symbol",
			raw:      `{"type":"subscribe","stream_id":"s1","symbol":"DOGEUSD","view_kind":"order_level"}`,
			wantCode: CodeUnknownSymbol,
		},
		{
			name:     "invalid view kind",
			raw:      `{"type":"subscribe","stream_id":"s1","symbol":"BTCUSD","view_kind":"candles"}`,
			wantCode: CodeInvalidRequest,
		},
		{
			name:     "zero depth",
			raw:      `{"type":"subscribe","stream_id":"s1","symbol":"BTCUSD","view_kind":"order_level","depth":0}`,
			wantCode: CodeInvalidRequest,
		},
		{
			name:     "negative depth",
			raw:      `{"type":"subscribe","stream_id":"s1","symbol":"BTCUSD","view_kind":"order_level","depth":-3}`,
			wantCode: CodeInvalidRequest,
		},
	}

	c := testCodec()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, wireErr := c.Decode([]byte(tt.raw))
			if tt.wantCode != 0 {
				require.NotNil(t, wireErr)
				require.Equal(t, tt.wantCode, wireErr.Code)
				require.Equal(t, TypeError, wireErr.Type)
				return
			}
			require.Nil(t, wireErr)
			require.Equal(t, RequestSubscribe, req.Kind)
			require.Equal(t, "s1", req.StreamID)
			require.Equal(t, tt.wantDepth, req.Depth)
			require.Equal(t, tt.wantKind, req.ViewKind)
		})
	}
}

func TestDecodeUnsubscribeAndPing(t *testing.T) {
	c := testCodec()

	req, wireErr := c.Decode([]byte(`{"type":"unsubscribe","stream_id":"s9"}`))
	require.Nil(t, wireErr)
	require.Equal(t, RequestUnsubscribe, req.Kind)
	require.Equal(t, "s9", req.StreamID)

	_, wireErr = c.Decode([]byte(`{"type":"unsubscribe"}`))
	require.NotNil(t, wireErr)
	require.Equal(t, CodeBadRequest, wireErr.Code)

	req, wireErr = c.Decode([]byte(`{"type":"ping","timestamp":"2025-06-01T12:00:00Z"}`))
	require.Nil(t, wireErr)
	require.Equal(t, RequestPing, req.Kind)
	require.False(t, req.Timestamp.IsZero())
}

func TestDecodeMalformed(t *testing.T) {
	c := testCodec()

	for _, raw := range []string{`{not json`, `{"type":"shout"}`, `{}`} {
		_, wireErr := c.Decode([]byte(raw))
		require.NotNil(t, wireErr, "input %q", raw)
		require.Equal(t, CodeBadRequest, wireErr.Code, "input %q", raw)
	}
}

func TestMarketDataCarriesViewPayload(t *testing.T) {
	snap := book.Snapshot{
		Symbol:   "BTCUSD",
		Kind:     book.PriceLevel,
		Sequence: 42,
		LevelBids: []book.LevelSnapshot{
			{Price: 99.50, Quantity: 3000, OrderCount: 2, Side: book.Bid, TotalQuantity: 3000, AvgAgeMs: 150},
		},
		LevelAsks: []book.LevelSnapshot{},
	}

	md := NewMarketData("s1", snap)
	require.Equal(t, TypeMarketData, md.Type)
	require.Equal(t, uint64(42), md.Sequence)

	raw, err := json.Marshal(md)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "price_level", decoded["view_kind"])

	bids := decoded["bids"].([]any)
	require.Len(t, bids, 1)
	level := bids[0].(map[string]any)
	require.Equal(t, 99.50, level["price"])
	require.Equal(t, float64(2), level["order_count"])
	require.Equal(t, float64(150), level["avg_age_ms"])
}
