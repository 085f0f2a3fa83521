package marketdata

import (
	"context"
	"net/url"
	"strings"
)

// GetQuote fetches the current quote for a symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	query := url.Values{}
	query.Set("symbol", strings.ToUpper(symbol))

	var quote Quote
	if err := c.get(ctx, "/v1/quote", query, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// GetCandles fetches historical OHLCV bars for a symbol and period
// (e.g. "1d" for intraday bars, "1y" for daily bars).
func (c *Client) GetCandles(ctx context.Context, symbol, period string) (*CandleSeries, error) {
	query := url.Values{}
	query.Set("symbol", strings.ToUpper(symbol))
	query.Set("period", period)

	var series CandleSeries
	if err := c.get(ctx, "/v1/candles", query, &series); err != nil {
		return nil, err
	}
	return &series, nil
}

// GetFundamentals fetches company fundamentals for a symbol.
func (c *Client) GetFundamentals(ctx context.Context, symbol string) (*Fundamentals, error) {
	query := url.Values{}
	query.Set("symbol", strings.ToUpper(symbol))

	var f Fundamentals
	if err := c.get(ctx, "/v1/fundamentals", query, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
