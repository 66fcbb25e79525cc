// Package hub owns subscriptions across all connections and drives the
// periodic simulate-then-snapshot-then-deliver cycle.
//
// All state lives behind a single run loop fed by channels: subscribe,
// unsubscribe, register, disconnect, tick and heartbeat events are applied
// one at a time, which makes a tick's simulator step plus every snapshot it
// delivers one indivisible unit per instrument. Fan-out to a connection is a
// non-blocking handoff to its outbound buffer, so one slow consumer cannot
// stall the cycle or its neighbors.
package hub

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uhyunpark/marketfeed/pkg/book"
	"github.com/uhyunpark/marketfeed/pkg/protocol"
	"github.com/uhyunpark/marketfeed/pkg/sim"
	"github.com/uhyunpark/marketfeed/pkg/util"
)

// Conn is the hub's view of one streaming connection. Send must not block:
// it reports false when the frame was dropped (buffer full or connection
// shutting down).
type Conn interface {
	ID() uuid.UUID
	Send(msg protocol.ServerMessage) bool
}

type subKey struct {
	conn   uuid.UUID
	stream string
}

// subscription is ACTIVE while indexed; removal is terminal.
type subscription struct {
	conn   Conn
	stream string
	symbol string
	kind   book.ViewKind
	depth  int
}

// command is one of registerCmd, disconnectCmd, subscribeCmd or
// unsubscribeCmd. A single channel keeps events from one connection in the
// order they were issued: a subscribe can never overtake its own register.
type command any

type registerCmd struct{ conn Conn }

type disconnectCmd struct{ id uuid.UUID }

type subscribeCmd struct {
	conn Conn
	req  protocol.Request
}

type unsubscribeCmd struct {
	conn   Conn
	stream string
}

type Options struct {
	Symbols           []string
	TickInterval      time.Duration
	HeartbeatInterval time.Duration
	// FallbackMid prices simulated adds when a book side is empty.
	FallbackMid float64
	// Rng drives both book seeding and the activity simulator; fix the
	// seed for reproducible runs.
	Rng   *rand.Rand
	Clock util.Clock
	// SeedBooks pre-populates each instrument with resting orders.
	SeedBooks bool
	Log       *zap.SugaredLogger
}

type Hub struct {
	log   *zap.SugaredLogger
	clock util.Clock

	symbols []string
	books   map[string]*book.Store
	sim     *sim.Simulator

	tickEvery time.Duration
	hbEvery   time.Duration

	// Loop-owned state. Touched only from Run.
	conns    map[uuid.UUID]Conn
	byConn   map[uuid.UUID]map[string]*subscription
	bySymbol map[string]map[subKey]*subscription

	cmds chan command
}

func New(opts Options) *Hub {
	h := &Hub{
		log:       opts.Log,
		clock:     opts.Clock,
		symbols:   append([]string(nil), opts.Symbols...),
		books:     make(map[string]*book.Store, len(opts.Symbols)),
		sim:       sim.New(opts.Rng, opts.Clock, opts.FallbackMid),
		tickEvery: opts.TickInterval,
		hbEvery:   opts.HeartbeatInterval,
		conns:     make(map[uuid.UUID]Conn),
		byConn:    make(map[uuid.UUID]map[string]*subscription),
		bySymbol:  make(map[string]map[subKey]*subscription),
		cmds:      make(chan command, 256),
	}

	for _, symbol := range h.symbols {
		store := book.NewStore(symbol, opts.Clock)
		if opts.SeedBooks {
			store.Seed(opts.Rng, opts.FallbackMid)
		}
		h.books[symbol] = store
	}
	return h
}

// Symbols returns the instruments served, in configuration order.
func (h *Hub) Symbols() []string {
	return append([]string(nil), h.symbols...)
}

// Book exposes an instrument's store for read-only snapshots. The books map
// never changes after construction, so this needs no coordination with the
// run loop.
func (h *Hub) Book(symbol string) (*book.Store, bool) {
	store, ok := h.books[symbol]
	return store, ok
}

// Register attaches a connection; the hub greets it and includes it in
// heartbeats until Disconnect.
func (h *Hub) Register(c Conn) { h.cmds <- registerCmd{conn: c} }

// Disconnect drops a connection and every subscription it owns. Safe to
// call repeatedly.
func (h *Hub) Disconnect(id uuid.UUID) { h.cmds <- disconnectCmd{id: id} }

// Subscribe requests a new stream for the connection. req must already be
// validated by the codec; the hub still rejects duplicate stream ids.
func (h *Hub) Subscribe(c Conn, req protocol.Request) {
	h.cmds <- subscribeCmd{conn: c, req: req}
}

// Unsubscribe tears down one stream. Unknown streams are a logged no-op.
func (h *Hub) Unsubscribe(c Conn, streamID string) {
	h.cmds <- unsubscribeCmd{conn: c, stream: streamID}
}

// Run processes events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	tick := time.NewTicker(h.tickEvery)
	defer tick.Stop()
	hb := time.NewTicker(h.hbEvery)
	defer hb.Stop()

	h.log.Infow("hub_started",
		"symbols", h.symbols,
		"tick_interval", h.tickEvery,
		"heartbeat_interval", h.hbEvery,
	)

	for {
		select {
		case <-ctx.Done():
			h.log.Infow("hub_stopped")
			return nil
		case cmd := <-h.cmds:
			h.apply(cmd)
		case <-tick.C:
			for _, symbol := range h.symbols {
				h.tick(symbol)
			}
		case <-hb.C:
			h.heartbeat()
		}
	}
}

func (h *Hub) apply(cmd command) {
	switch c := cmd.(type) {
	case registerCmd:
		h.handleRegister(c.conn)
	case disconnectCmd:
		h.handleDisconnect(c.id)
	case subscribeCmd:
		h.handleSubscribe(c.conn, c.req)
	case unsubscribeCmd:
		h.handleUnsubscribe(c.conn, c.stream)
	}
}

func (h *Hub) handleRegister(c Conn) {
	h.conns[c.ID()] = c
	h.byConn[c.ID()] = make(map[string]*subscription)
	c.Send(protocol.NewConnectionInfo(c.ID().String(), h.clock.Now(), h.Symbols()))
	h.log.Infow("client_connected", "client", c.ID(), "total", len(h.conns))
}

func (h *Hub) handleDisconnect(id uuid.UUID) {
	streams, ok := h.byConn[id]
	if !ok {
		// Already gone; disconnect is idempotent.
		return
	}

	for _, sub := range streams {
		h.unindex(sub)
	}
	delete(h.byConn, id)
	delete(h.conns, id)
	h.log.Infow("client_disconnected", "client", id, "streams_dropped", len(streams), "total", len(h.conns))
}

func (h *Hub) handleSubscribe(c Conn, req protocol.Request) {
	streams, ok := h.byConn[c.ID()]
	if !ok {
		// Connection raced its own teardown; nothing to attach to.
		return
	}

	if _, dup := streams[req.StreamID]; dup {
		c.Send(protocol.NewError(protocol.CodeDuplicateStream,
			"stream_id already active on this connection", req.StreamID))
		return
	}

	sub := &subscription{
		conn:   c,
		stream: req.StreamID,
		symbol: req.Symbol,
		kind:   req.ViewKind,
		depth:  req.Depth,
	}
	streams[req.StreamID] = sub

	key := subKey{conn: c.ID(), stream: req.StreamID}
	if h.bySymbol[req.Symbol] == nil {
		h.bySymbol[req.Symbol] = make(map[subKey]*subscription)
	}
	h.bySymbol[req.Symbol][key] = sub

	c.Send(protocol.NewSubscribed(req.StreamID, req.Symbol, req.ViewKind))
	h.log.Infow("subscribed",
		"client", c.ID(), "stream", req.StreamID,
		"symbol", req.Symbol, "view", req.ViewKind, "depth", req.Depth,
	)
}

func (h *Hub) handleUnsubscribe(c Conn, streamID string) {
	streams, ok := h.byConn[c.ID()]
	if !ok {
		return
	}

	sub, known := streams[streamID]
	if !known {
		// Not a client error: log and move on.
		h.log.Debugw("unsubscribe_unknown_stream", "client", c.ID(), "stream", streamID)
		return
	}

	delete(streams, streamID)
	h.unindex(sub)
	c.Send(protocol.NewUnsubscribed(streamID))
	h.log.Infow("unsubscribed", "client", c.ID(), "stream", streamID)
}

// unindex removes a subscription from the per-symbol reverse index,
// dropping the symbol entry when it empties.
func (h *Hub) unindex(sub *subscription) {
	key := subKey{conn: sub.conn.ID(), stream: sub.stream}
	if subs := h.bySymbol[sub.symbol]; subs != nil {
		delete(subs, key)
		if len(subs) == 0 {
			delete(h.bySymbol, sub.symbol)
		}
	}
}

// tick advances one instrument: a single simulator batch, then one snapshot
// per active subscription, all tagged with the same sequence number.
func (h *Hub) tick(symbol string) {
	store := h.books[symbol]
	activities := h.sim.Batch(store)
	h.log.Debugw("tick", "symbol", symbol, "activities", len(activities), "sequence", store.Sequence())

	for _, sub := range h.bySymbol[symbol] {
		snap := store.Snapshot(sub.kind, sub.depth)
		if !sub.conn.Send(protocol.NewMarketData(sub.stream, snap)) {
			h.log.Debugw("frame_dropped", "client", sub.conn.ID(), "stream", sub.stream)
		}
	}
}

// heartbeat pings every attached connection, subscribed or not.
func (h *Hub) heartbeat() {
	msg := protocol.NewHeartBeat(h.clock.Now())
	for _, c := range h.conns {
		if !c.Send(msg) {
			h.log.Debugw("heartbeat_dropped", "client", c.ID())
		}
	}
}
