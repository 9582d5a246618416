package stream

import (
	"encoding/json"
	"fmt"
	"time"
)

// Frame names spoken by the provider protocol. Every message, inbound or
// outbound, is one JSON frame {"name": ..., "request_id": ..., "msg": ...}.
const (
	frameAuthenticate  = "authenticate"
	frameAuthenticated = "authenticated"
	frameSubscribe     = "subscribe"
	frameSubscribed    = "subscribed"
	frameUnsubscribe   = "unsubscribe"
	frameHeartbeat     = "heartbeat"
	frameTick          = "tick"
	frameCandle        = "candle"
	frameGoodbye       = "goodbye"
)

// Frame is the provider wire envelope.
type Frame struct {
	Name      string          `json:"name"`
	RequestID int64           `json:"request_id,omitempty"`
	Msg       json.RawMessage `json:"msg,omitempty"`
}

func newFrame(name string, requestID int64, msg interface{}) (Frame, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal %s msg: %w", name, err)
	}
	return Frame{Name: name, RequestID: requestID, Msg: b}, nil
}

type authMsg struct {
	Session string `json:"session"`
}

type authReply struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason"`
}

type subscribeMsg struct {
	Symbol    string `json:"symbol"`
	Exchange  string `json:"exchange"`
	Timeframe int    `json:"timeframe"`
}

type subscribedReply struct {
	ChannelID int64 `json:"channel_id"`
}

type unsubscribeMsg struct {
	ChannelID int64 `json:"channel_id"`
}

type heartbeatMsg struct {
	SentAt int64 `json:"sent_at"` // unix ms
}

// tickPayload is a quote update routed by provider channel id.
type tickPayload struct {
	ChannelID int64   `json:"channel_id"`
	Timestamp int64   `json:"timestamp"` // unix ms
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
}

// candlePayload is a provider-reported OHLCV bar.
type candlePayload struct {
	ChannelID int64   `json:"channel_id"`
	Timestamp int64   `json:"timestamp"` // bucket start, unix s
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (p tickPayload) time() time.Time {
	return time.UnixMilli(p.Timestamp).UTC()
}

func (p candlePayload) time() time.Time {
	return time.Unix(p.Timestamp, 0).UTC()
}
