package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/quotedash/streamcache/internal/cache"
	"github.com/quotedash/streamcache/internal/marketdata"
	"github.com/quotedash/streamcache/internal/policy"
	"github.com/quotedash/streamcache/internal/stream"
)

// PriceFeed is the live channel surface the service needs. Satisfied by
// *stream.Channel.
type PriceFeed interface {
	Subscribe(tickers []string)
	Unsubscribe(tickers []string)
	OnPriceUpdate(fn func(stream.PriceTick))
	Status() stream.Status
}

// Service serves market data cache-first with provider fallback.
type Service struct {
	store    cache.Store
	md       *marketdata.Client
	feed     PriceFeed
	provider string
	logger   *slog.Logger

	group singleflight.Group

	mu     sync.RWMutex
	latest map[string]stream.PriceTick
}

// NewService creates the fetch service. feed may be nil when running
// without a live channel (REST-only mode).
func NewService(store cache.Store, md *marketdata.Client, feed PriceFeed, provider string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:    store,
		md:       md,
		feed:     feed,
		provider: provider,
		logger:   logger,
		latest:   make(map[string]stream.PriceTick),
	}
	if feed != nil {
		feed.OnPriceUpdate(s.handleTick)
	}
	return s
}

// Quote returns the quote for a symbol, from cache when fresh.
func (s *Service) Quote(ctx context.Context, symbol string, variant policy.Variant) (*marketdata.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	ttl := policy.TTLFor(policy.CategoryQuote, variant)

	var quote marketdata.Quote
	err := s.fetch(ctx, cache.PartitionQuotes, symbol, ttl, &quote, func(ctx context.Context) (any, error) {
		s.recordAPICall(ctx, "/v1/quote", symbol)
		return s.md.GetQuote(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// Candles returns historical bars for a symbol and period, from cache
// when fresh. Intraday periods expire faster than daily series.
func (s *Service) Candles(ctx context.Context, symbol, period string) (*marketdata.CandleSeries, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	key := symbol + "_" + period
	ttl := policy.TTLFor(policy.CategoryHistory, historyVariant(period))

	var series marketdata.CandleSeries
	err := s.fetch(ctx, cache.PartitionHistorical, key, ttl, &series, func(ctx context.Context) (any, error) {
		s.recordAPICall(ctx, "/v1/candles", symbol)
		return s.md.GetCandles(ctx, symbol, period)
	})
	if err != nil {
		return nil, err
	}
	return &series, nil
}

// Fundamentals returns company fundamentals for a symbol, from cache
// when fresh.
func (s *Service) Fundamentals(ctx context.Context, symbol string) (*marketdata.Fundamentals, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	ttl := policy.TTLFor(policy.CategoryFundamentals, "")

	var f marketdata.Fundamentals
	err := s.fetch(ctx, cache.PartitionFundamentals, symbol, ttl, &f, func(ctx context.Context) (any, error) {
		s.recordAPICall(ctx, "/v1/fundamentals", symbol)
		return s.md.GetFundamentals(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Watch subscribes the live channel to the given tickers.
func (s *Service) Watch(tickers []string) {
	if s.feed != nil {
		s.feed.Subscribe(tickers)
	}
}

// Unwatch removes tickers from the live channel.
func (s *Service) Unwatch(tickers []string) {
	if s.feed != nil {
		s.feed.Unsubscribe(tickers)
	}
}

// Latest returns the most recent live tick seen for a symbol, if any.
// Live ticks are fresher than any cached quote but carry price only.
func (s *Service) Latest(symbol string) (stream.PriceTick, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tick, ok := s.latest[strings.ToUpper(strings.TrimSpace(symbol))]
	return tick, ok
}

// FeedStatus reports the live channel status, or disconnected when no
// channel is attached.
func (s *Service) FeedStatus() stream.Status {
	if s.feed == nil {
		return stream.StatusDisconnected
	}
	return s.feed.Status()
}

func (s *Service) handleTick(tick stream.PriceTick) {
	s.mu.Lock()
	s.latest[tick.Symbol] = tick
	s.mu.Unlock()
}

// fetch implements the cache-first read path. Concurrent callers for
// the same partition/key share one provider call.
func (s *Service) fetch(ctx context.Context, p cache.Partition, key string, ttl time.Duration, out any, load func(context.Context) (any, error)) error {
	payload, err := s.store.Get(ctx, p, key)
	if err == nil {
		return json.Unmarshal(payload, out)
	}
	if !errors.Is(err, cache.ErrNotFound) {
		s.logger.Warn("cache read failed, falling through to provider",
			"partition", string(p),
			"key", key,
			"error", err,
		)
	}

	raw, err, _ := s.group.Do(string(p)+":"+key, func() (any, error) {
		result, err := load(ctx)
		if err != nil {
			return nil, err
		}

		encoded, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		payload := json.RawMessage(encoded)

		expiresAt := policy.ExpiresAt(time.Now(), ttl)
		if err := s.store.Set(ctx, p, key, payload, expiresAt); err != nil {
			s.logger.Warn("cache write failed, serving uncached",
				"partition", string(p),
				"key", key,
				"error", err,
			)
		}
		return payload, nil
	})
	if err != nil {
		return err
	}

	return json.Unmarshal(raw.(json.RawMessage), out)
}

// apiCall is one provider request, recorded for usage accounting.
type apiCall struct {
	ID       string    `json:"id"`
	Provider string    `json:"provider"`
	Endpoint string    `json:"endpoint"`
	Symbol   string    `json:"symbol"`
	CalledAt time.Time `json:"calledAt"`
}

// apiCallRetention bounds how long usage rows survive before sweeps
// collect them.
const apiCallRetention = 24 * time.Hour

// recordAPICall writes a usage row. Best effort: accounting never blocks
// or fails a fetch.
func (s *Service) recordAPICall(ctx context.Context, endpoint, symbol string) {
	call := apiCall{
		ID:       uuid.New().String(),
		Provider: s.provider,
		Endpoint: endpoint,
		Symbol:   symbol,
		CalledAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(call)
	if err != nil {
		return
	}

	expiresAt := policy.ExpiresAt(call.CalledAt, apiCallRetention)
	if err := s.store.Set(ctx, cache.PartitionAPITracker, call.ID, payload, expiresAt); err != nil {
		s.logger.Debug("api usage row dropped", "error", err)
	}
}

// historyVariant maps a request period onto a TTL variant. Single-day
// series refresh hourly; everything longer refreshes daily.
func historyVariant(period string) policy.Variant {
	if period == "1d" {
		return policy.VariantIntraday
	}
	return policy.VariantDaily
}
