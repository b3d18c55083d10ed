// Package wire implements the binary TCP session layer: length-prefixed
// frames carrying an inbound command vocabulary (new-order, cancel-request,
// amend-request) that translates into calls on *engine.Engine, and an
// outbound execution-report vocabulary built from the resulting executions.
package wire

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"fenrir/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("wire: invalid message type")
	ErrMessageTooShort    = errors.New("wire: message too short")
)

// MessageType tags an inbound frame.
type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	AmendOrder
)

// ReportType tags an outbound frame.
type ReportType uint16

const (
	ExecutionReport ReportType = iota
	ErrorReport
)

const headerLen = 2 // message/report type tag

// putString encodes s as a uint16 length prefix followed by its bytes.
func putString(buf []byte, s string) []byte {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, s...)
}

// takeString reads a length-prefixed string starting at buf[0], returning
// the string and the remaining buffer.
func takeString(buf []byte) (string, []byte, error) {
	if len(buf) < 2 {
		return "", nil, ErrMessageTooShort
	}
	n := int(binary.BigEndian.Uint16(buf[0:2]))
	buf = buf[2:]
	if len(buf) < n {
		return "", nil, ErrMessageTooShort
	}
	return string(buf[:n]), buf[n:], nil
}

// NewOrderMessage is the wire form of a new-order instruction.
type NewOrderMessage struct {
	ClientID string
	Symbol   string
	Side     common.Side
	Type     common.OrderType
	Quantity uint64
	Price    decimal.Decimal // only meaningful when Type == common.Limit
	OwnerID  string
}

// Encode serializes m for transmission (used by the test client).
func (m NewOrderMessage) Encode() []byte {
	buf := make([]byte, 0, 64)
	buf = binary.BigEndian.AppendUint16(buf, uint16(NewOrder))
	buf = putString(buf, m.ClientID)
	buf = putString(buf, m.Symbol)
	buf = append(buf, byte(m.Side), byte(m.Type))
	buf = binary.BigEndian.AppendUint64(buf, m.Quantity)
	buf = putString(buf, m.Price.String())
	buf = putString(buf, m.OwnerID)
	return buf
}

func decodeNewOrder(body []byte) (NewOrderMessage, error) {
	var m NewOrderMessage
	var err error
	if m.ClientID, body, err = takeString(body); err != nil {
		return m, err
	}
	if m.Symbol, body, err = takeString(body); err != nil {
		return m, err
	}
	if len(body) < 2+8 {
		return m, ErrMessageTooShort
	}
	m.Side = common.Side(body[0])
	m.Type = common.OrderType(body[1])
	body = body[2:]
	m.Quantity = binary.BigEndian.Uint64(body[:8])
	body = body[8:]
	var priceStr string
	if priceStr, body, err = takeString(body); err != nil {
		return m, err
	}
	if priceStr != "" {
		if m.Price, err = decimal.NewFromString(priceStr); err != nil {
			return m, err
		}
	}
	if m.OwnerID, _, err = takeString(body); err != nil {
		return m, err
	}
	return m, nil
}

// CancelOrderMessage is the wire form of a cancel-request.
type CancelOrderMessage struct {
	Symbol       string
	OrigClientID string
	NewClientID  string
}

func (m CancelOrderMessage) Encode() []byte {
	buf := make([]byte, 0, 32)
	buf = binary.BigEndian.AppendUint16(buf, uint16(CancelOrder))
	buf = putString(buf, m.Symbol)
	buf = putString(buf, m.OrigClientID)
	buf = putString(buf, m.NewClientID)
	return buf
}

func decodeCancelOrder(body []byte) (CancelOrderMessage, error) {
	var m CancelOrderMessage
	var err error
	if m.Symbol, body, err = takeString(body); err != nil {
		return m, err
	}
	if m.OrigClientID, body, err = takeString(body); err != nil {
		return m, err
	}
	if m.NewClientID, _, err = takeString(body); err != nil {
		return m, err
	}
	return m, nil
}

// AmendOrderMessage is the wire form of an amend-request.
// HasNewQty/HasNewPrice distinguish an absent optional field from a
// legitimately zero one.
type AmendOrderMessage struct {
	Symbol       string
	OrigClientID string
	NewClientID  string
	HasNewQty    bool
	NewQty       uint64
	HasNewPrice  bool
	NewPrice     decimal.Decimal
}

func (m AmendOrderMessage) Encode() []byte {
	buf := make([]byte, 0, 48)
	buf = binary.BigEndian.AppendUint16(buf, uint16(AmendOrder))
	buf = putString(buf, m.Symbol)
	buf = putString(buf, m.OrigClientID)
	buf = putString(buf, m.NewClientID)
	if m.HasNewQty {
		buf = append(buf, 1)
		buf = binary.BigEndian.AppendUint64(buf, m.NewQty)
	} else {
		buf = append(buf, 0)
	}
	if m.HasNewPrice {
		buf = append(buf, 1)
		buf = putString(buf, m.NewPrice.String())
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func decodeAmendOrder(body []byte) (AmendOrderMessage, error) {
	var m AmendOrderMessage
	var err error
	if m.Symbol, body, err = takeString(body); err != nil {
		return m, err
	}
	if m.OrigClientID, body, err = takeString(body); err != nil {
		return m, err
	}
	if m.NewClientID, body, err = takeString(body); err != nil {
		return m, err
	}
	if len(body) < 1 {
		return m, ErrMessageTooShort
	}
	m.HasNewQty = body[0] == 1
	body = body[1:]
	if m.HasNewQty {
		if len(body) < 8 {
			return m, ErrMessageTooShort
		}
		m.NewQty = binary.BigEndian.Uint64(body[:8])
		body = body[8:]
	}
	if len(body) < 1 {
		return m, ErrMessageTooShort
	}
	m.HasNewPrice = body[0] == 1
	body = body[1:]
	if m.HasNewPrice {
		var priceStr string
		if priceStr, _, err = takeString(body); err != nil {
			return m, err
		}
		if m.NewPrice, err = decimal.NewFromString(priceStr); err != nil {
			return m, err
		}
	}
	return m, nil
}

// InboundMessage is the decoded form of any frame read off a session.
type InboundMessage struct {
	Type   MessageType
	New    NewOrderMessage
	Cancel CancelOrderMessage
	Amend  AmendOrderMessage
}

// Decode parses a raw frame into an InboundMessage.
func Decode(frame []byte) (InboundMessage, error) {
	if len(frame) < headerLen {
		return InboundMessage{}, ErrMessageTooShort
	}
	typeOf := MessageType(binary.BigEndian.Uint16(frame[0:2]))
	body := frame[2:]

	var out InboundMessage
	out.Type = typeOf
	var err error
	switch typeOf {
	case Heartbeat:
		return out, nil
	case NewOrder:
		out.New, err = decodeNewOrder(body)
	case CancelOrder:
		out.Cancel, err = decodeCancelOrder(body)
	case AmendOrder:
		out.Amend, err = decodeAmendOrder(body)
	default:
		return out, ErrInvalidMessageType
	}
	return out, err
}

// ExecutionReportMessage is the outbound form of a single execution.
type ExecutionReportMessage struct {
	ExchangeOrderID uint64
	ExecutionID     uint64
	ExecType        common.ExecType
	OrderStatus     common.OrderStatus
	Side            common.Side
	Symbol          string
	ClientID        string
	OrigClientID    string // empty when not applicable
	LeavesQty       uint64
	CumQty          uint64
	AvgPrice        decimal.Decimal
	LastQty         uint64
	LastPrice       decimal.Decimal
	Timestamp       time.Time
}

// Serialize converts the report to its wire representation.
func (r ExecutionReportMessage) Serialize() []byte {
	buf := make([]byte, 0, 96)
	buf = binary.BigEndian.AppendUint16(buf, uint16(ExecutionReport))
	buf = binary.BigEndian.AppendUint64(buf, r.ExchangeOrderID)
	buf = binary.BigEndian.AppendUint64(buf, r.ExecutionID)
	buf = append(buf, byte(r.ExecType), byte(r.OrderStatus), byte(r.Side))
	buf = putString(buf, r.Symbol)
	buf = putString(buf, r.ClientID)
	buf = putString(buf, r.OrigClientID)
	buf = binary.BigEndian.AppendUint64(buf, r.LeavesQty)
	buf = binary.BigEndian.AppendUint64(buf, r.CumQty)
	buf = putString(buf, r.AvgPrice.String())
	buf = binary.BigEndian.AppendUint64(buf, r.LastQty)
	buf = putString(buf, r.LastPrice.String())
	buf = binary.BigEndian.AppendUint64(buf, uint64(r.Timestamp.UnixNano()))
	return buf
}

// ErrorReportMessage is the outbound form of a client-visible rejection
// that the session layer itself raises (malformed frame), distinct from an
// engine-level rejected execution, which is always an ExecutionReportMessage.
type ErrorReportMessage struct {
	Err string
}

func (r ErrorReportMessage) Serialize() []byte {
	buf := make([]byte, 0, 16+len(r.Err))
	buf = binary.BigEndian.AppendUint16(buf, uint16(ErrorReport))
	buf = putString(buf, r.Err)
	return buf
}
