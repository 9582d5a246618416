package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Maiki02/trading-bot-sub000/internal/domain/models"
	"github.com/Maiki02/trading-bot-sub000/internal/domain/repository"
	"github.com/Maiki02/trading-bot-sub000/pkg/logger"
)

// Config holds transport settings supplied by the caller.
type Config struct {
	URL               string
	Session           string
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	WriteTimeout      time.Duration
	BackoffBase       time.Duration
	BackoffCap        time.Duration
}

// Client is the multiplexed provider connection. All subscriptions share
// one socket; every outbound command goes through the single send path.
type Client struct {
	cfg      Config
	registry *Registry
	backoff  *Backoff
	log      *logger.Logger
	metrics  repository.Metrics

	mu        sync.Mutex // guards conn, connected
	conn      *websocket.Conn
	connected bool

	writeMu sync.Mutex // serializes socket writes
	lastAck atomic.Int64
	nextReq atomic.Int64
}

// New creates a provider stream client.
func New(cfg Config, log *logger.Logger, metrics repository.Metrics) *Client {
	return &Client{
		cfg:      cfg,
		registry: NewRegistry(),
		backoff:  NewBackoff(cfg.BackoffBase, cfg.BackoffCap),
		log:      log.Named("stream"),
		metrics:  metrics,
	}
}

// Registry exposes the subscription registry for inspection.
func (c *Client) Registry() *Registry { return c.registry }

// Connect dials the socket, performs the auth handshake and restores all
// active subscriptions.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return transient("dial", err)
	}

	if err := c.handshake(ctx, conn); err != nil {
		_ = conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.lastAck.Store(time.Now().UnixNano())

	// Restore subscriptions that were active before the disconnect. The
	// reconnect counts as successful, and the backoff resets, only once
	// the full set is restored.
	c.registry.ClearBindings()
	for _, inst := range c.registry.Active() {
		if err := c.sendSubscribe(inst); err != nil {
			c.markDisconnected()
			return err
		}
	}
	c.backoff.Reset()
	c.log.Info("connected", logger.String("url", c.cfg.URL))
	return nil
}

// handshake authenticates the session on a fresh socket. A rejected
// session is fatal and must never be retried.
func (c *Client) handshake(ctx context.Context, conn *websocket.Conn) error {
	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	f, err := newFrame(frameAuthenticate, c.nextReq.Add(1), authMsg{Session: c.cfg.Session})
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(f); err != nil {
		return transient("auth write", err)
	}

	_ = conn.SetReadDeadline(deadline)
	for {
		var reply Frame
		if err := conn.ReadJSON(&reply); err != nil {
			return transient("auth read", err)
		}
		if reply.Name != frameAuthenticated {
			continue // server may interleave unrelated frames
		}
		var ar authReply
		if err := json.Unmarshal(reply.Msg, &ar); err != nil {
			return transient("auth decode", err)
		}
		if !ar.Success {
			reason := ar.Reason
			if reason == "" {
				reason = "invalid session"
			}
			return &FatalAuthError{Reason: reason}
		}
		_ = conn.SetReadDeadline(time.Time{})
		return nil
	}
}

// IsConnected reports connection status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Subscribe registers the instrument and sends the subscribe command over
// the shared socket.
func (c *Client) Subscribe(ctx context.Context, inst repository.Instrument) error {
	if !c.IsConnected() {
		c.registry.Add(inst) // restored on next connect
		return ErrNotConnected
	}
	return c.sendSubscribe(inst)
}

func (c *Client) sendSubscribe(inst repository.Instrument) error {
	reqID := c.registry.Add(inst)
	f, err := newFrame(frameSubscribe, reqID, subscribeMsg{
		Symbol:    inst.Symbol,
		Exchange:  inst.Exchange,
		Timeframe: inst.Timeframe,
	})
	if err != nil {
		return err
	}
	if err := c.writeFrame(f); err != nil {
		return fmt.Errorf("subscribe %s: %w", inst.Symbol, err)
	}
	c.log.Info("subscribe sent", logger.String("symbol", inst.Symbol), logger.Int("timeframe", inst.Timeframe))
	return nil
}

// Unsubscribe sends the unsubscribe command and forgets the instrument.
func (c *Client) Unsubscribe(ctx context.Context, inst repository.Instrument) error {
	ch, bound := c.registry.Remove(inst.Symbol)
	if !bound {
		return nil // subscribe was never acked
	}
	f, err := newFrame(frameUnsubscribe, c.nextReq.Add(1), unsubscribeMsg{ChannelID: ch})
	if err != nil {
		return err
	}
	if err := c.writeFrame(f); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", inst.Symbol, err)
	}
	return nil
}

// writeFrame is the single send path. No other code writes to the socket.
func (c *Client) writeFrame(f Frame) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()
	if conn == nil || !connected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := conn.WriteJSON(f); err != nil {
		return transient("write "+f.Name, err)
	}
	return nil
}

// Read starts the read/heartbeat/reconnect machinery and returns the
// decoded event stream. The error channel only ever carries fatal errors;
// transient disconnects are retried internally with backoff.
func (c *Client) Read(ctx context.Context) (<-chan repository.MarketEvent, <-chan error) {
	events := make(chan repository.MarketEvent, 1024)
	fatal := make(chan error, 1)
	go c.run(ctx, events, fatal)
	return events, fatal
}

func (c *Client) run(ctx context.Context, events chan<- repository.MarketEvent, fatal chan<- error) {
	defer close(events)
	defer close(fatal)

	for {
		err := c.readLoop(ctx, events)
		c.markDisconnected()
		if ctx.Err() != nil {
			return
		}
		if IsFatal(err) {
			c.log.Error("fatal stream error", logger.Error(err))
			fatal <- err
			return
		}

		delay := c.backoff.Next()
		c.metrics.RecordReconnect()
		c.log.Warn("disconnected, scheduling reconnect",
			logger.Error(err),
			logger.Duration("delay", delay),
			logger.Int("attempt", c.backoff.Attempt()))

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		if err := c.Connect(ctx); err != nil {
			if IsFatal(err) {
				c.log.Error("fatal error on reconnect", logger.Error(err))
				fatal <- err
				return
			}
			c.metrics.RecordError("reconnect")
			continue
		}
	}
}

// readLoop pumps frames off the socket until the connection dies. A
// heartbeat monitor runs alongside it and force-closes the socket when the
// server stops acking probes.
func (c *Client) readLoop(ctx context.Context, events chan<- repository.MarketEvent) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()
	if conn == nil || !connected {
		return ErrNotConnected
	}

	hbStop := make(chan struct{})
	defer close(hbStop)
	go c.heartbeatLoop(ctx, conn, hbStop)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if time.Since(time.Unix(0, c.lastAck.Load())) > c.cfg.HeartbeatTimeout {
				return transient("read", ErrHeartbeatTimeout)
			}
			return transient("read", err)
		}
		c.handleFrame(raw, events)
	}
}

func (c *Client) heartbeatLoop(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if time.Since(time.Unix(0, c.lastAck.Load())) > c.cfg.HeartbeatTimeout {
				c.log.Warn("heartbeat ack missing, forcing disconnect")
				_ = conn.Close()
				return
			}
			f, err := newFrame(frameHeartbeat, 0, heartbeatMsg{SentAt: time.Now().UnixMilli()})
			if err != nil {
				continue
			}
			if err := c.writeFrame(f); err != nil {
				return
			}
		}
	}
}

// handleFrame decodes one inbound frame. Malformed frames are logged and
// skipped; they never take the connection down.
func (c *Client) handleFrame(raw []byte, events chan<- repository.MarketEvent) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		c.metrics.RecordError("decode_frame")
		c.log.Warn("malformed frame skipped", logger.Error(err))
		return
	}

	switch f.Name {
	case frameHeartbeat:
		c.lastAck.Store(time.Now().UnixNano())
		var hb heartbeatMsg
		if err := json.Unmarshal(f.Msg, &hb); err == nil && hb.SentAt > 0 {
			rtt := time.Since(time.UnixMilli(hb.SentAt))
			c.metrics.RecordHeartbeatRTT(rtt.Seconds())
		}

	case frameSubscribed:
		var sr subscribedReply
		if err := json.Unmarshal(f.Msg, &sr); err != nil {
			c.metrics.RecordError("decode_subscribed")
			c.log.Warn("malformed subscribe ack skipped", logger.Error(err))
			return
		}
		if inst, ok := c.registry.Bind(f.RequestID, sr.ChannelID); ok {
			c.log.Info("subscription bound",
				logger.String("symbol", inst.Symbol),
				logger.Int64("channel", sr.ChannelID))
		}

	case frameTick:
		var p tickPayload
		if err := json.Unmarshal(f.Msg, &p); err != nil {
			c.metrics.RecordError("decode_tick")
			c.log.Warn("malformed tick skipped", logger.Error(err))
			return
		}
		inst, ok := c.registry.Resolve(p.ChannelID)
		if !ok {
			c.log.Debug("tick for unknown channel", logger.Int64("channel", p.ChannelID))
			return
		}
		tick := &models.Tick{
			Symbol:    inst.Symbol,
			Timestamp: p.time(),
			Bid:       p.Bid,
			Ask:       p.Ask,
		}
		if !tick.Valid() {
			c.metrics.RecordError("invalid_tick")
			return
		}
		c.push(events, repository.MarketEvent{Tick: tick})

	case frameCandle:
		var p candlePayload
		if err := json.Unmarshal(f.Msg, &p); err != nil {
			c.metrics.RecordError("decode_candle")
			c.log.Warn("malformed candle skipped", logger.Error(err))
			return
		}
		inst, ok := c.registry.Resolve(p.ChannelID)
		if !ok {
			c.log.Debug("candle for unknown channel", logger.Int64("channel", p.ChannelID))
			return
		}
		candle := &models.Candle{
			Symbol:    inst.Symbol,
			Series:    models.SeriesNative,
			Timestamp: p.time(),
			Open:      p.Open,
			High:      p.High,
			Low:       p.Low,
			Close:     p.Close,
			Volume:    p.Volume,
		}
		if err := candle.Validate(); err != nil {
			c.metrics.RecordError("invalid_candle")
			c.log.Warn("invalid candle discarded", logger.Error(err), logger.String("symbol", inst.Symbol))
			return
		}
		c.push(events, repository.MarketEvent{Candle: candle})

	default:
		c.log.Debug("unhandled frame", logger.String("name", f.Name))
	}
}

// push never blocks the read loop; the newest event is dropped when the
// consumer falls behind.
func (c *Client) push(events chan<- repository.MarketEvent, ev repository.MarketEvent) {
	select {
	case events <- ev:
	default:
		c.metrics.RecordError("event_backpressure")
	}
}

// Close performs the graceful teardown: unsubscribe everything, announce
// the session end, then close the websocket. The remote side must not see
// the disconnect as an anomaly.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	c.connected = false
	c.mu.Unlock()
	if conn == nil || !connected {
		return nil
	}

	for _, ch := range c.registry.Channels() {
		if f, err := newFrame(frameUnsubscribe, c.nextReq.Add(1), unsubscribeMsg{ChannelID: ch}); err == nil {
			c.writeRaw(conn, f)
		}
	}
	if f, err := newFrame(frameGoodbye, c.nextReq.Add(1), struct{}{}); err == nil {
		c.writeRaw(conn, f)
	}

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"), deadline)
	return conn.Close()
}

// writeRaw writes during teardown when the client is already marked as
// disconnected and writeFrame would refuse.
func (c *Client) writeRaw(conn *websocket.Conn, f Frame) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	_ = conn.WriteJSON(f)
}

func (c *Client) markDisconnected() {
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.connected = false
	c.mu.Unlock()
}

var _ repository.MarketStream = (*Client)(nil)
