package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
)

// Channel is the live price channel: one push connection to the
// market-data provider plus the set of tickers the application wants
// updates for. The desired set is independent of connection state; a
// passive network drop never clears it, an explicit Disconnect does.
//
// Callback slots are single-slot, last writer wins. Callbacks are never
// invoked concurrently with themselves and may call Subscribe or
// Unsubscribe re-entrantly.
type Channel struct {
	cfg          Config
	creds        CredentialFetcher
	newTransport TransportFactory
	logger       *slog.Logger

	mu         sync.Mutex
	status     Status
	desired    map[string]struct{}
	transport  Transport
	retryCount int
	gen        int64 // attempt generation; bumped per attempt and on Disconnect
	retryTimer *time.Timer
	ctx        context.Context

	cbMu     sync.Mutex // serializes callback invocation
	onTick   func(PriceTick)
	onStatus func(Status)
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithTransportFactory overrides the transport constructor, for tests.
func WithTransportFactory(f TransportFactory) ChannelOption {
	return func(c *Channel) {
		c.newTransport = f
	}
}

// NewChannel creates a disconnected channel. Nothing happens until
// Connect is called.
func NewChannel(cfg Config, creds CredentialFetcher, logger *slog.Logger, opts ...ChannelOption) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Channel{
		cfg:          cfg,
		creds:        creds,
		newTransport: NewWSTransport,
		logger:       logger,
		status:       StatusDisconnected,
		desired:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect starts a connection attempt. It is idempotent: a no-op while
// Connected or while an attempt is in flight. Connect never returns a
// transport error; outcomes surface through the status callback. A call
// from the failed state resets the retry budget.
func (c *Channel) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.status == StatusConnected || c.status == StatusConnecting {
		c.mu.Unlock()
		return
	}
	c.stopRetryLocked()
	c.ctx = ctx
	c.retryCount = 0
	gen := c.beginAttemptLocked()
	c.mu.Unlock()

	c.emitStatus(StatusConnecting)
	go c.runAttempt(gen)
}

// Disconnect tears the connection down with a normal close and clears
// the desired set. Idempotent, including while an attempt is in flight.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.gen++ // invalidate any in-flight attempt
	c.stopRetryLocked()
	t := c.transport
	c.transport = nil
	c.desired = make(map[string]struct{})
	already := c.status == StatusDisconnected
	c.status = StatusDisconnected
	c.mu.Unlock()

	if t != nil {
		t.Close()
	}
	if !already {
		c.emitStatus(StatusDisconnected)
	}
}

// Subscribe adds tickers to the desired set unconditionally — they are
// buffered while disconnected. If connected, an incremental subscribe is
// sent for only the tickers that are new.
func (c *Channel) Subscribe(tickers []string) {
	symbols := normalizeSymbols(tickers)
	if len(symbols) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	added := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := c.desired[s]; !ok {
			c.desired[s] = struct{}{}
			added = append(added, s)
		}
	}

	if c.status == StatusConnected && len(added) > 0 {
		if err := c.sendControlLocked(actionSubscribe, added); err != nil {
			// The desired set already holds them; the next successful
			// connect resends everything.
			c.logger.Warn("subscribe send failed", "symbols", added, "error", err)
		}
	}
}

// Unsubscribe removes tickers from the desired set. If connected, an
// incremental unsubscribe is sent for exactly the tickers removed.
func (c *Channel) Unsubscribe(tickers []string) {
	symbols := normalizeSymbols(tickers)
	if len(symbols) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := c.desired[s]; ok {
			delete(c.desired, s)
			removed = append(removed, s)
		}
	}

	if c.status == StatusConnected && len(removed) > 0 {
		if err := c.sendControlLocked(actionUnsubscribe, removed); err != nil {
			c.logger.Warn("unsubscribe send failed", "symbols", removed, "error", err)
		}
	}
}

// OnPriceUpdate registers the tick callback. Single slot: the last
// writer wins.
func (c *Channel) OnPriceUpdate(fn func(PriceTick)) {
	c.mu.Lock()
	c.onTick = fn
	c.mu.Unlock()
}

// OnConnectionChange registers the status callback. Single slot: the
// last writer wins.
func (c *Channel) OnConnectionChange(fn func(Status)) {
	c.mu.Lock()
	c.onStatus = fn
	c.mu.Unlock()
}

// Status returns the current connection status.
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Subscribed returns a sorted snapshot of the desired set.
func (c *Channel) Subscribed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.desired))
	for s := range c.desired {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// beginAttemptLocked moves the channel to Connecting and returns the
// generation for the new attempt. Caller holds mu, then emits
// StatusConnecting and starts runAttempt(gen) after unlocking, so status
// callbacks observe connecting before connected.
func (c *Channel) beginAttemptLocked() int64 {
	c.gen++
	c.status = StatusConnecting
	return c.gen
}

func (c *Channel) stopRetryLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

func (c *Channel) connectCtx() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx != nil {
		return c.ctx
	}
	return context.Background()
}

// runAttempt fetches a credential, dials, and on success installs the
// transport and resends the whole desired set as one wire message.
func (c *Channel) runAttempt(gen int64) {
	ctx := c.connectCtx()

	apiKey, err := c.creds.FetchAPIKey(ctx)
	if err != nil {
		c.attemptFailed(gen, fmt.Errorf("fetch credential: %w", err))
		return
	}

	t := c.newTransport(c.cfg.Transport, c.logger)
	if err := t.Connect(ctx, c.dialURL(apiKey)); err != nil {
		c.attemptFailed(gen, fmt.Errorf("dial: %w", err))
		return
	}

	c.mu.Lock()
	if gen != c.gen || c.status != StatusConnecting {
		// Disconnected (or superseded) while dialing.
		c.mu.Unlock()
		t.Close()
		return
	}
	c.transport = t
	c.status = StatusConnected
	c.retryCount = 0

	// Resubscription is sent under the lock, so it is sequenced ahead of
	// any incremental message from a Subscribe racing with the connect.
	resub := make([]string, 0, len(c.desired))
	for s := range c.desired {
		resub = append(resub, s)
	}
	if len(resub) > 0 {
		if err := c.sendControlLocked(actionSubscribe, resub); err != nil {
			c.logger.Warn("resubscribe failed", "symbols", len(resub), "error", err)
		}
	}
	c.mu.Unlock()

	c.logger.Info("channel connected", "subscriptions", len(resub))
	c.emitStatus(StatusConnected)

	go c.pump(t, gen)
}

// attemptFailed records a failed connect and either schedules a retry
// after the fixed delay or parks the channel in the failed state.
func (c *Channel) attemptFailed(gen int64, err error) {
	c.mu.Lock()
	if gen != c.gen || c.status != StatusConnecting {
		c.mu.Unlock()
		return
	}

	if c.retryCount < c.cfg.MaxRetries {
		c.retryCount++
		c.status = StatusError
		c.logger.Warn("connect attempt failed, will retry",
			"error", err,
			"attempt", c.retryCount,
			"max_retries", c.cfg.MaxRetries,
			"delay", c.cfg.RetryDelay,
		)
		c.retryTimer = time.AfterFunc(c.cfg.RetryDelay, func() {
			c.mu.Lock()
			if c.status != StatusError || gen != c.gen {
				c.mu.Unlock()
				return
			}
			next := c.beginAttemptLocked()
			c.mu.Unlock()
			c.emitStatus(StatusConnecting)
			c.runAttempt(next)
		})
		c.mu.Unlock()
		c.emitStatus(StatusError)
		return
	}

	c.status = StatusFailed
	c.mu.Unlock()

	c.logger.Error("connect retries exhausted", "error", err, "max_retries", c.cfg.MaxRetries)
	c.emitStatus(StatusFailed)
}

// pump dispatches inbound messages in receive order and hands
// connection errors to the reconnect path.
func (c *Channel) pump(t Transport, gen int64) {
	for {
		select {
		case data, ok := <-t.Messages():
			if !ok {
				c.handleTransportError(gen, io.ErrUnexpectedEOF)
				return
			}
			c.handleMessage(data)
		case err := <-t.Errors():
			c.handleTransportError(gen, err)
			return
		}
	}
}

// handleTransportError handles a connection loss. A normal server close
// leaves the channel disconnected; anything else re-enters the connect
// path without touching the desired set.
func (c *Channel) handleTransportError(gen int64, err error) {
	c.mu.Lock()
	if gen != c.gen || c.status != StatusConnected {
		c.mu.Unlock()
		return
	}
	t := c.transport
	c.transport = nil
	c.status = StatusDisconnected
	c.mu.Unlock()

	if t != nil {
		t.Close()
	}

	normal := errors.Is(err, ErrNormalClosure)
	if normal {
		c.logger.Info("server closed connection")
	} else {
		c.logger.Warn("connection lost", "error", err)
	}
	c.emitStatus(StatusDisconnected)

	if normal {
		// Terminal until the application calls Connect again.
		return
	}

	c.mu.Lock()
	if gen != c.gen || c.status != StatusDisconnected {
		c.mu.Unlock()
		return
	}
	next := c.beginAttemptLocked()
	c.mu.Unlock()
	c.emitStatus(StatusConnecting)
	c.runAttempt(next)
}

// handleMessage parses one inbound wire message. Malformed messages are
// logged and dropped; unknown events are ignored.
func (c *Channel) handleMessage(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("dropping malformed message", "error", err)
		return
	}

	switch msg.Event {
	case "price":
		c.mu.Lock()
		fn := c.onTick
		c.mu.Unlock()
		if fn != nil {
			c.cbMu.Lock()
			fn(PriceTick{Symbol: msg.Symbol, Price: msg.Price, Timestamp: msg.Timestamp})
			c.cbMu.Unlock()
		}
	case "subscribe-status":
		c.logger.Debug("subscription status", "symbol", msg.Symbol, "status", msg.Status)
	case "heartbeat":
		// keepalive, no payload
	default:
		// unknown events are ignored
	}
}

// sendControlLocked sends one subscribe/unsubscribe wire message.
// Caller holds mu, which also sequences control messages.
func (c *Channel) sendControlLocked(action string, symbols []string) error {
	if c.transport == nil {
		return ErrNotConnected
	}

	sort.Strings(symbols)
	msg := controlMessage{
		Action: action,
		Params: controlParams{Symbols: strings.Join(symbols, ",")},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", action, err)
	}
	return c.transport.Send(data)
}

// emitStatus invokes the status callback outside mu so callbacks can
// call back into the channel.
func (c *Channel) emitStatus(s Status) {
	c.mu.Lock()
	fn := c.onStatus
	c.mu.Unlock()
	if fn == nil {
		return
	}
	c.cbMu.Lock()
	fn(s)
	c.cbMu.Unlock()
}

func (c *Channel) dialURL(apiKey string) string {
	u, err := url.Parse(c.cfg.WSURL)
	if err != nil {
		return c.cfg.WSURL
	}
	q := u.Query()
	q.Set("token", apiKey)
	u.RawQuery = q.Encode()
	return u.String()
}

// normalizeSymbols uppercases, trims, and dedupes ticker symbols,
// preserving first-seen order.
func normalizeSymbols(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	seen := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		s := strings.ToUpper(strings.TrimSpace(t))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
