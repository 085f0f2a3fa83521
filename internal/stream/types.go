package stream

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")

	// ErrNormalClosure is surfaced by a transport when the server closes
	// the connection with a normal close code. The channel does not
	// reconnect after it.
	ErrNormalClosure = errors.New("normal closure")
)

// Status is the externally visible connection state.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
	StatusFailed       Status = "failed"
)

// PriceTick is a single pushed price update. Ticks are ephemeral: they
// are handed to the registered callback and never persisted.
type PriceTick struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // ms since epoch, provider clock
}

// controlMessage is an outbound subscribe/unsubscribe wire message.
type controlMessage struct {
	Action string        `json:"action"` // "subscribe" or "unsubscribe"
	Params controlParams `json:"params"`
}

type controlParams struct {
	Symbols string `json:"symbols"` // comma-separated uppercase tickers
}

// inboundMessage is any message from the provider, discriminated by the
// event field. Unknown events are ignored.
type inboundMessage struct {
	Event     string  `json:"event"` // "price", "subscribe-status", "heartbeat"
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
	Status    string  `json:"status"` // subscribe-status only
}

// TransportConfig configures a WebSocket transport.
type TransportConfig struct {
	HandshakeTimeout time.Duration // Dial deadline
	PingTimeout      time.Duration // Max time without ping before the connection is stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Inbound message channel buffer size
}

// DefaultTransportConfig returns sensible defaults.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		HandshakeTimeout: 10 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// Config configures a Channel.
type Config struct {
	WSURL      string        // Provider WebSocket URL
	MaxRetries int           // Consecutive failed connects before parking in failed
	RetryDelay time.Duration // Fixed delay between retries
	Transport  TransportConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 5,
		RetryDelay: 5 * time.Second,
		Transport:  DefaultTransportConfig(),
	}
}
