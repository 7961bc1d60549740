package codec

import "time"

// Realtime transaction ids carried in the second segment of a wire frame.
const (
	TrIDTradeTick = "H0STCNT0" // domestic stock execution tick
	TrIDOrderbook = "H0STASP0" // domestic stock quote/orderbook
)

// Minimum caret-delimited field counts per transaction id.
const (
	minGenericFields   = 16
	minTradeTickFields = 26
)

// SourceKind tells where a tick came from.
type SourceKind string

const (
	SourceRealtimeTrade  SourceKind = "realtime"
	SourcePolledSnapshot SourceKind = "snapshot"
)

// TickEvent is one decoded price/volume update for an instrument.
// Immutable once created; consumed exactly once by the orchestrator.
type TickEvent struct {
	InstrumentCode string
	Price          float64
	Open           float64
	High           float64
	Low            float64
	Volume         int64 // units traded in this execution
	AccVolume      int64 // session accumulated volume
	Timestamp      time.Time
	Source         SourceKind
}

// FrameKind classifies a decoded wire frame.
type FrameKind int

const (
	FrameTick FrameKind = iota
	FrameHeartbeat
	FrameSubscribeAck
	FrameUnhandled
)

// Frame is one decoded unit of the vendor wire protocol.
type Frame struct {
	Kind FrameKind
	TrID string
	Tick *TickEvent    // set when Kind == FrameTick
	Ack  *SubscribeAck // set when Kind == FrameSubscribeAck
}

// SubscribeAck is the JSON acknowledgment the vendor sends after a
// subscribe request, used to promote a pending subscription to active.
type SubscribeAck struct {
	TrID  string
	TrKey string
}
