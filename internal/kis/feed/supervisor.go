// Package feed owns the realtime WebSocket connection to the KIS vendor
// feed: the connection state machine, the subscription registry, heartbeat
// and liveness supervision, and bounded-backoff reconnection. Decoded ticks
// are published on a typed channel; the supervisor never blocks its read
// loop on a slow consumer.
package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"tradesignal/internal/kis/codec"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TokenProvider issues the vendor approval key placed in subscribe envelopes.
type TokenProvider interface {
	ApprovalKey(ctx context.Context) (string, error)
}

// wsConn is the slice of *websocket.Conn the supervisor uses; tests swap in
// a fake.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteJSON(v any) error
	Close() error
}

// Options configures a Supervisor.
type Options struct {
	URL               string
	CustType          string
	HeartbeatInterval time.Duration
	ReconnectInterval time.Duration // base backoff; delay = base * attempt
	MaxReconnect      int
	TickBuffer        int
	Pairs             []Pair // subscribed on every successful open
}

func (o *Options) applyDefaults() {
	if o.HeartbeatInterval == 0 {
		o.HeartbeatInterval = 30 * time.Second
	}
	if o.ReconnectInterval == 0 {
		o.ReconnectInterval = 5 * time.Second
	}
	if o.MaxReconnect == 0 {
		o.MaxReconnect = 5
	}
	if o.TickBuffer == 0 {
		o.TickBuffer = 256
	}
	if o.CustType == "" {
		o.CustType = "P"
	}
}

// Supervisor owns exactly one vendor socket. All state transitions are
// serialized under mu; external callers observe state through accessors and
// never mutate it.
type Supervisor struct {
	opts   Options
	tokens TokenProvider
	logger *zap.Logger

	// injection points for tests
	dial      func(url string) (wsConn, error)
	afterFunc func(d time.Duration, f func()) *time.Timer

	// writeMu serializes all socket writes; gorilla connections support at
	// most one concurrent writer.
	writeMu sync.Mutex

	mu             sync.Mutex
	state          ConnState
	conn           wsConn
	approvalKey    string
	attempts       int
	exceeded       bool // MaxReconnectExceeded emitted for the current episode
	reconnectTimer *time.Timer
	stopHeartbeat  chan struct{}
	pairs          []Pair
	subs           map[Pair]*SubscriptionEntry

	lastInbound atomic.Int64 // unix nanos of the last received frame

	ticks  chan codec.TickEvent
	events chan Event
}

// NewSupervisor creates a disconnected supervisor; call Connect to start.
func NewSupervisor(opts Options, tokens TokenProvider, logger *zap.Logger) *Supervisor {
	opts.applyDefaults()
	return &Supervisor{
		opts:      opts,
		tokens:    tokens,
		logger:    logger,
		dial:      defaultDial,
		afterFunc: time.AfterFunc,
		state:     StateDisconnected,
		pairs:     append([]Pair(nil), opts.Pairs...),
		subs:      make(map[Pair]*SubscriptionEntry),
		ticks:     make(chan codec.TickEvent, opts.TickBuffer),
		events:    make(chan Event, 16),
	}
}

func defaultDial(url string) (wsConn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *Supervisor) writeJSON(conn wsConn, v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (s *Supervisor) writeMessage(conn wsConn, messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(messageType, data)
}

// Ticks is the decoded realtime tick stream, in arrival order.
func (s *Supervisor) Ticks() <-chan codec.TickEvent { return s.ticks }

// Events is the connection lifecycle stream.
func (s *Supervisor) Events() <-chan Event { return s.events }

// State returns the current connection state.
func (s *Supervisor) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscriptions returns a snapshot of the live registry.
func (s *Supervisor) Subscriptions() []SubscriptionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SubscriptionEntry, 0, len(s.subs))
	for _, e := range s.subs {
		out = append(out, *e)
	}
	return out
}

// Connect opens the socket, fetches a fresh approval key, and re-issues the
// configured subscriptions. A no-op when already Connecting or Connected.
// Dial or token failures route into the reconnect scheduler and are also
// returned to the caller.
func (s *Supervisor) Connect() error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	s.mu.Unlock()

	conn, err := s.dial(s.opts.URL)
	if err != nil {
		s.logger.Error("websocket dial failed", zap.String("url", s.opts.URL), zap.Error(err))
		s.mu.Lock()
		s.state = StateDisconnected
		s.scheduleReconnectLocked(err)
		s.mu.Unlock()
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	key, err := s.tokens.ApprovalKey(ctx)
	cancel()
	if err != nil {
		s.logger.Error("approval key fetch failed", zap.Error(err))
		_ = conn.Close()
		s.mu.Lock()
		s.state = StateDisconnected
		s.scheduleReconnectLocked(err)
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	// A concurrent Disconnect may have ended this episode while the lock was
	// released for dial and token fetch; the fresh socket must not go live.
	if s.state != StateConnecting {
		s.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	s.conn = conn
	s.state = StateConnected
	s.approvalKey = key
	s.attempts = 0
	s.exceeded = false
	s.lastInbound.Store(time.Now().UnixNano())
	stop := make(chan struct{})
	s.stopHeartbeat = stop

	// Re-issue a subscribe request per configured pair; entries start
	// Pending and are promoted by the vendor acknowledgment.
	for _, p := range s.pairs {
		s.subs[p] = &SubscriptionEntry{Pair: p, Status: SubPending}
		req := newSubscribeRequest(key, s.opts.CustType, trTypeSubscribe, p.TrID, p.Code)
		if err := s.writeJSON(conn, req); err != nil {
			s.logger.Error("subscribe send failed",
				zap.String("tr_id", p.TrID), zap.String("tr_key", p.Code), zap.Error(err))
		}
	}
	s.mu.Unlock()

	s.logger.Info("websocket connected", zap.String("url", s.opts.URL))
	s.emit(Event{Kind: EventConnected})

	go s.readLoop(conn)
	go s.heartbeatLoop(conn, stop)
	return nil
}

// Disconnect closes the socket and cancels heartbeat and pending reconnect
// timers. In-flight consumers finish what they already received; no new
// ticks are dispatched.
func (s *Supervisor) Disconnect() {
	s.mu.Lock()
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	if s.stopHeartbeat != nil {
		close(s.stopHeartbeat)
		s.stopHeartbeat = nil
	}
	conn := s.conn
	s.conn = nil
	s.state = StateDisconnected
	s.subs = make(map[Pair]*SubscriptionEntry)
	s.attempts = 0
	s.exceeded = false
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
		s.emit(Event{Kind: EventDisconnected})
	}
}

// Subscribe registers a (transaction kind, instrument) pair and sends the
// subscribe envelope. Requires Connected; returns ErrNotConnected otherwise.
func (s *Supervisor) Subscribe(trID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected {
		return ErrNotConnected
	}

	p := Pair{TrID: trID, Code: code}
	if !s.registeredLocked(p) {
		s.pairs = append(s.pairs, p)
	}
	s.subs[p] = &SubscriptionEntry{Pair: p, Status: SubPending}

	req := newSubscribeRequest(s.approvalKey, s.opts.CustType, trTypeSubscribe, trID, code)
	return s.writeJSON(s.conn, req)
}

// Unsubscribe mirrors Subscribe with tr_type "2" and removes the registry
// entry.
func (s *Supervisor) Unsubscribe(trID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected {
		return ErrNotConnected
	}

	p := Pair{TrID: trID, Code: code}
	delete(s.subs, p)
	for i, existing := range s.pairs {
		if existing == p {
			s.pairs = append(s.pairs[:i], s.pairs[i+1:]...)
			break
		}
	}

	req := newSubscribeRequest(s.approvalKey, s.opts.CustType, trTypeUnsubscribe, trID, code)
	return s.writeJSON(s.conn, req)
}

func (s *Supervisor) registeredLocked(p Pair) bool {
	for _, existing := range s.pairs {
		if existing == p {
			return true
		}
	}
	return false
}

// readLoop consumes one connection sequentially; frame order is preserved.
func (s *Supervisor) readLoop(conn wsConn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			s.handleConnError(conn, err)
			return
		}
		s.lastInbound.Store(time.Now().UnixNano())
		s.handleMessage(msg)
	}
}

// handleConnError routes socket errors and abnormal closes into the
// reconnect scheduler. Errors from a replaced or manually closed connection
// are ignored.
func (s *Supervisor) handleConnError(conn wsConn, err error) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.logger.Error("websocket read error", zap.Error(err))
	if s.stopHeartbeat != nil {
		close(s.stopHeartbeat)
		s.stopHeartbeat = nil
	}
	s.conn = nil
	s.state = StateDisconnected
	s.subs = make(map[Pair]*SubscriptionEntry)
	s.scheduleReconnectLocked(err)
	s.mu.Unlock()

	_ = conn.Close()
	s.emit(Event{Kind: EventDisconnected, Err: err})
}

// scheduleReconnectLocked arms the next retry with linear backoff. After
// MaxReconnect consecutive failures it emits MaxReconnectExceeded once and
// stops; only an external Connect call resumes.
func (s *Supervisor) scheduleReconnectLocked(cause error) {
	s.attempts++
	if s.attempts > s.opts.MaxReconnect {
		if !s.exceeded {
			s.exceeded = true
			s.logger.Error("max reconnect attempts exceeded",
				zap.Int("attempts", s.attempts), zap.Error(cause))
			s.emit(Event{Kind: EventMaxReconnectExceeded, Attempts: s.attempts, Err: cause})
		}
		return
	}

	delay := s.opts.ReconnectInterval * time.Duration(s.attempts)
	s.logger.Warn("scheduling reconnect",
		zap.Int("attempt", s.attempts), zap.Duration("delay", delay))
	s.reconnectTimer = s.afterFunc(delay, func() {
		if err := s.Connect(); err != nil {
			s.logger.Warn("reconnect attempt failed", zap.Error(err))
		}
	})
}

// handleMessage classifies one inbound payload. Decode failures drop the
// frame and keep the stream alive; every decoded frame goes to exactly one
// handler.
func (s *Supervisor) handleMessage(msg []byte) {
	frame, err := codec.Decode(msg)
	if err != nil {
		var perr *codec.ProtocolError
		if errors.As(err, &perr) {
			s.logger.Warn("dropping malformed frame", zap.String("reason", perr.Reason))
		} else {
			s.logger.Warn("frame decode failed", zap.Error(err))
		}
		return
	}

	switch frame.Kind {
	case codec.FrameHeartbeat:
		// Vendor ping ack; liveness clock was already refreshed.
		return
	case codec.FrameSubscribeAck:
		s.promoteSubscription(frame.Ack)
		return
	case codec.FrameUnhandled:
		s.logger.Debug("unrouted transaction id", zap.String("tr_id", frame.TrID))
		return
	case codec.FrameTick:
		s.dispatchTick(frame)
	}
}

// dispatchTick routes a data frame by transaction id to a single handler.
func (s *Supervisor) dispatchTick(frame codec.Frame) {
	switch frame.TrID {
	case codec.TrIDTradeTick:
		select {
		case s.ticks <- *frame.Tick:
		default:
			s.logger.Warn("tick channel full, dropping",
				zap.String("code", frame.Tick.InstrumentCode))
		}
	default:
		s.logger.Debug("no tick handler for transaction id", zap.String("tr_id", frame.TrID))
	}
}

// promoteSubscription marks the acknowledged registry entry Active.
func (s *Supervisor) promoteSubscription(ack *codec.SubscribeAck) {
	if ack == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for p, entry := range s.subs {
		if p.TrID != ack.TrID {
			continue
		}
		if ack.TrKey != "" && p.Code != ack.TrKey {
			continue
		}
		entry.Status = SubActive
		s.logger.Info("subscription active",
			zap.String("tr_id", p.TrID), zap.String("tr_key", p.Code))
		return
	}
	s.logger.Debug("ack for unknown subscription",
		zap.String("tr_id", ack.TrID), zap.String("tr_key", ack.TrKey))
}

// heartbeatLoop sends a fixed-interval ping and enforces a receive deadline:
// three silent intervals force-close the socket so the read loop reconnects.
func (s *Supervisor) heartbeatLoop(conn wsConn, stop <-chan struct{}) {
	ticker := time.NewTicker(s.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			idle := time.Since(time.Unix(0, s.lastInbound.Load()))
			if idle > 3*s.opts.HeartbeatInterval {
				s.logger.Warn("no inbound frames within liveness window, closing socket",
					zap.Duration("idle", idle))
				_ = conn.Close()
				return
			}
			if err := s.writeMessage(conn, websocket.TextMessage, []byte("PINGPONG")); err != nil {
				s.logger.Warn("heartbeat send failed", zap.Error(err))
			}
		}
	}
}

func (s *Supervisor) emit(e Event) {
	select {
	case s.events <- e:
	default:
		s.logger.Debug("event channel full, dropping", zap.Int("kind", int(e.Kind)))
	}
}
