// Package stream maintains the push connection to the market-data
// provider. A Channel owns the set of tickers the application wants live
// updates for, keeps that set across reconnects, and replays it to the
// provider after every successful connect. Reconnection is bounded:
// after the configured number of consecutive failures the channel parks
// in the failed state until Connect is called again.
package stream
