// Package stats derives rolling price, OHLC candle and volume series from a
// stream of trades. It consumes (price, quantity, tick) primitives so it can
// observe any book's history without owning it.
package stats

import (
	"github.com/shopspring/decimal"

	"github.com/stablesim/stablesim/pkg/econ/fixed"
)

// Config selects how the rolling price is derived.
type Config struct {
	// Window is the trailing number of ticks considered by the rolling price.
	Window int64
	// VolumeWeighted selects VWAP over the window instead of a simple mean.
	VolumeWeighted bool
	Precision      fixed.Precision
}

// Candle is a one-tick OHLC summary. On a tick with no trades the candle is
// flat: high = low = close = open.
type Candle struct {
	Open  decimal.Decimal `json:"open"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
}

type tradePoint struct {
	price decimal.Decimal
	qty   decimal.Decimal
	tick  int64
}

// Series accumulates per-tick candles and volumes, and caches the rolling
// price so it is recomputed at most once per tick.
type Series struct {
	cfg Config

	cached         decimal.Decimal
	lastCachedTick int64

	candles []Candle
	volumes []decimal.Decimal
	prices  []decimal.Decimal

	trades      []tradePoint
	curHasTrade bool
}

// New creates a series seeded at a unit price, matching a fresh book whose
// assets have no trade history yet.
func New(cfg Config) *Series {
	one := decimal.NewFromInt(1)
	return &Series{
		cfg:            cfg,
		cached:         one,
		lastCachedTick: 0,
		candles:        []Candle{{Open: one, High: one, Low: one, Close: one}},
		volumes:        []decimal.Decimal{decimal.Zero},
		prices:         []decimal.Decimal{one},
	}
}

// Price returns the rolling average trade price as of the given tick.
// It is recomputed at most once per tick; when no trades fall inside the
// window the previous cached value is retained, so the price never resets.
func (s *Series) Price(now int64) decimal.Decimal {
	if now <= s.lastCachedTick {
		return s.cached
	}
	if s.cfg.VolumeWeighted {
		s.cached = s.weightedAverage(now)
	} else {
		s.cached = s.simpleAverage(now)
	}
	s.lastCachedTick = now
	return s.cached
}

func (s *Series) simpleAverage(now int64) decimal.Decimal {
	total := decimal.Zero
	counted := int64(0)
	for i := len(s.trades) - 1; i >= 0; i-- {
		if s.trades[i].tick < now-s.cfg.Window {
			break
		}
		total = total.Add(s.trades[i].price)
		counted++
	}
	if counted == 0 {
		return s.cached
	}
	return s.cfg.Precision.DivRound(total, decimal.NewFromInt(counted))
}

func (s *Series) weightedAverage(now int64) decimal.Decimal {
	total := decimal.Zero
	volume := decimal.Zero
	for i := len(s.trades) - 1; i >= 0; i-- {
		if s.trades[i].tick < now-s.cfg.Window {
			break
		}
		total = total.Add(s.trades[i].price.Mul(s.trades[i].qty))
		volume = volume.Add(s.trades[i].qty)
	}
	if volume.IsZero() {
		return s.cached
	}
	return s.cfg.Precision.DivRound(total, volume)
}

// RecordTrade folds one trade into the current tick's candle and volume,
// and retains it for the rolling window.
func (s *Series) RecordTrade(price, qty decimal.Decimal, tick int64) {
	s.trades = append(s.trades, tradePoint{price: price, qty: qty, tick: tick})

	cur := &s.candles[len(s.candles)-1]
	if !s.curHasTrade {
		cur.High = price
		cur.Low = price
	}
	cur.Close = price
	if price.Cmp(cur.High) > 0 {
		cur.High = price
	}
	if price.Cmp(cur.Low) < 0 {
		cur.Low = price
	}
	s.curHasTrade = true

	last := len(s.volumes) - 1
	s.volumes[last] = s.volumes[last].Add(qty)
}

// StepTick closes the current tick: the candle is flattened to its open if no
// trade occurred, and fresh candle, volume and price entries are appended.
// Exactly one entry per series is appended per tick.
func (s *Series) StepTick(now int64) {
	cur := &s.candles[len(s.candles)-1]
	if !s.curHasTrade {
		cur.High = cur.Open
		cur.Low = cur.Open
		cur.Close = cur.Open
	}
	s.candles = append(s.candles, Candle{Open: cur.Close})
	s.volumes = append(s.volumes, decimal.Zero)
	s.prices = append(s.prices, s.Price(now))
	s.curHasTrade = false

	// Trades older than the window can no longer affect the rolling price.
	cutoff := now - s.cfg.Window
	drop := 0
	for drop < len(s.trades) && s.trades[drop].tick < cutoff {
		drop++
	}
	if drop > 0 {
		s.trades = append(s.trades[:0], s.trades[drop:]...)
	}
}

// Candles returns the per-tick candle series, including the open tick.
func (s *Series) Candles() []Candle { return s.candles }

// Volumes returns the per-tick traded volume series.
func (s *Series) Volumes() []decimal.Decimal { return s.volumes }

// Prices returns the per-tick rolling price series.
func (s *Series) Prices() []decimal.Decimal { return s.prices }

// Cached returns the last computed rolling price without recomputing.
func (s *Series) Cached() decimal.Decimal { return s.cached }
