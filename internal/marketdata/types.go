package marketdata

// Quote is a point-in-time price snapshot for one symbol.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	PreviousClose float64 `json:"previousClose"`
	Volume        int64   `json:"volume"`
	Timestamp     int64   `json:"timestamp"` // ms since epoch, provider clock
}

// Candle is one OHLCV bar.
type Candle struct {
	Time   int64   `json:"time"` // bar open, ms since epoch
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// CandleSeries is a historical price series for one symbol and period.
type CandleSeries struct {
	Symbol  string   `json:"symbol"`
	Period  string   `json:"period"` // e.g. "1d", "1w", "1mo", "1y"
	Candles []Candle `json:"candles"`
}

// Fundamentals holds slow-moving company data.
type Fundamentals struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Sector        string  `json:"sector"`
	Industry      string  `json:"industry"`
	MarketCap     float64 `json:"marketCap"`
	PERatio       float64 `json:"peRatio"`
	EPS           float64 `json:"eps"`
	DividendYield float64 `json:"dividendYield"`
}
