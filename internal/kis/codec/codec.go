// Package codec decodes the KIS realtime wire protocol: UTF-8 text frames of
// four pipe-delimited segments whose caret-delimited data block is positional
// per transaction id. Decode never panics; malformed input comes back as a
// *ProtocolError so the read loop can drop the frame and continue.
package codec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Control texts checked by substring before structural parsing.
const (
	heartbeatMarker    = "PINGPONG"
	subscribeAckMarker = "SUBSCRIBE SUCCESS"
)

// KST is the exchange timezone; trade frames carry only a HHMMSS clock.
var KST = time.FixedZone("KST", 9*60*60)

// ProtocolError reports a malformed or short wire frame. The caller is
// expected to log it and keep reading; it is never fatal to the stream.
type ProtocolError struct {
	Reason string
	Raw    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

func protocolErrorf(raw, format string, args ...any) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...), Raw: raw}
}

// Decode parses one raw payload into a Frame.
//
// Control texts are special-cased first: a PINGPONG heartbeat decodes to
// FrameHeartbeat and a SUBSCRIBE SUCCESS JSON ack to FrameSubscribeAck.
// Everything else must be a 4-segment pipe frame. Transaction ids without a
// registered layout decode to FrameUnhandled rather than an error.
func Decode(raw []byte) (Frame, error) {
	payload := string(raw)

	if strings.Contains(payload, heartbeatMarker) {
		return Frame{Kind: FrameHeartbeat}, nil
	}

	if strings.Contains(payload, subscribeAckMarker) {
		return decodeSubscribeAck(payload)
	}

	segments := strings.Split(payload, "|")
	if len(segments) < 4 {
		return Frame{}, protocolErrorf(payload, "expected 4 pipe segments, got %d", len(segments))
	}

	trID := segments[1]
	fields := strings.Split(segments[3], "^")

	switch trID {
	case TrIDTradeTick:
		if len(fields) < minTradeTickFields {
			return Frame{}, protocolErrorf(payload,
				"trade tick needs %d fields, got %d", minTradeTickFields, len(fields))
		}
		tick, err := decodeTradeTick(fields)
		if err != nil {
			return Frame{}, err
		}
		return Frame{Kind: FrameTick, TrID: trID, Tick: tick}, nil

	default:
		if len(fields) < minGenericFields {
			return Frame{}, protocolErrorf(payload,
				"frame %s needs %d fields, got %d", trID, minGenericFields, len(fields))
		}
		return Frame{Kind: FrameUnhandled, TrID: trID}, nil
	}
}

// decodeSubscribeAck extracts {header:{tr_id, tr_key}} from the JSON ack.
func decodeSubscribeAck(payload string) (Frame, error) {
	var msg struct {
		Header struct {
			TrID  string `json:"tr_id"`
			TrKey string `json:"tr_key"`
		} `json:"header"`
	}
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return Frame{}, protocolErrorf(payload, "subscribe ack is not valid JSON: %v", err)
	}
	return Frame{
		Kind: FrameSubscribeAck,
		TrID: msg.Header.TrID,
		Ack:  &SubscribeAck{TrID: msg.Header.TrID, TrKey: msg.Header.TrKey},
	}, nil
}

// H0STCNT0 positional fields used here. The block carries 26+ fields; the
// rest are ignored.
const (
	fieldCode      = 0  // MKSC_SHRN_ISCD
	fieldTime      = 1  // STCK_CNTG_HOUR (HHMMSS)
	fieldPrice     = 2  // STCK_PRPR
	fieldOpen      = 7  // STCK_OPRC
	fieldHigh      = 8  // STCK_HGPR
	fieldLow       = 9  // STCK_LWPR
	fieldVolume    = 12 // CNTG_VOL
	fieldAccVolume = 13 // ACML_VOL
)

func decodeTradeTick(fields []string) (*TickEvent, error) {
	price, err := parseFloatField(fields, fieldPrice, "price")
	if err != nil {
		return nil, err
	}
	open, err := parseFloatField(fields, fieldOpen, "open")
	if err != nil {
		return nil, err
	}
	high, err := parseFloatField(fields, fieldHigh, "high")
	if err != nil {
		return nil, err
	}
	low, err := parseFloatField(fields, fieldLow, "low")
	if err != nil {
		return nil, err
	}
	volume, err := parseIntField(fields, fieldVolume, "volume")
	if err != nil {
		return nil, err
	}
	accVolume, err := parseIntField(fields, fieldAccVolume, "acc volume")
	if err != nil {
		return nil, err
	}

	// The tick carries only a clock; stamp it with today's exchange date.
	date := time.Now().In(KST).Format("20060102")
	ts, err := ParseTimestamp(date, fields[fieldTime])
	if err != nil {
		return nil, err
	}

	return &TickEvent{
		InstrumentCode: fields[fieldCode],
		Price:          price,
		Open:           open,
		High:           high,
		Low:            low,
		Volume:         volume,
		AccVolume:      accVolume,
		Timestamp:      ts,
		Source:         SourceRealtimeTrade,
	}, nil
}

// ParseTimestamp combines a "YYYYMMDD" date and "HHMMSS" clock into a KST time.
func ParseTimestamp(date, clock string) (time.Time, error) {
	ts, err := time.ParseInLocation("20060102150405", date+clock, KST)
	if err != nil {
		return time.Time{}, protocolErrorf(date+clock, "bad timestamp %q %q: %v", date, clock, err)
	}
	return ts, nil
}

func parseFloatField(fields []string, idx int, name string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(fields[idx]), 64)
	if err != nil {
		return 0, protocolErrorf(fields[idx], "non-numeric %s field %q", name, fields[idx])
	}
	return v, nil
}

func parseIntField(fields []string, idx int, name string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(fields[idx]), 10, 64)
	if err != nil {
		return 0, protocolErrorf(fields[idx], "non-numeric %s field %q", name, fields[idx])
	}
	return v, nil
}
