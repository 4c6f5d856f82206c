// Package storage archives trade history and candles in Pebble so finished
// runs can be inspected without keeping the model alive.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/stablesim/stablesim/pkg/econ/book"
	"github.com/stablesim/stablesim/pkg/econ/stats"
)

type Archive struct {
	db  *pebble.DB
	seq uint64
}

func NewArchive(path string) (*Archive, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error { return a.db.Close() }

// keys: t:<pair>:<8-byte tick><8-byte seq>, c:<pair>:<8-byte tick>
func tradePrefix(pair string) []byte {
	return []byte(fmt.Sprintf("t:%s:", pair))
}

func tradeKey(pair string, tick int64, seq uint64) []byte {
	key := tradePrefix(pair)
	key = binary.BigEndian.AppendUint64(key, uint64(tick))
	return binary.BigEndian.AppendUint64(key, seq)
}

func candlePrefix(pair string) []byte {
	return []byte(fmt.Sprintf("c:%s:", pair))
}

func candleKey(pair string, tick int64) []byte {
	return binary.BigEndian.AppendUint64(candlePrefix(pair), uint64(tick))
}

func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// SaveTrade appends a settlement to the archive. Writes are unsynced; a
// crash loses at most the tail of the log.
func (a *Archive) SaveTrade(rec *book.TradeRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}
	a.seq++
	key := tradeKey(rec.Pair, rec.CompletionTime, a.seq)
	if err := a.db.Set(key, data, pebble.NoSync); err != nil {
		return fmt.Errorf("save trade: %w", err)
	}
	return nil
}

// RecentTrades loads the most recent trades for a pair, newest first.
func (a *Archive) RecentTrades(pair string, limit int) ([]*book.TradeRecord, error) {
	prefix := tradePrefix(pair)
	iter, err := a.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var trades []*book.TradeRecord
	for iter.Last(); iter.Valid() && len(trades) < limit; iter.Prev() {
		var rec book.TradeRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue
		}
		trades = append(trades, &rec)
	}
	return trades, nil
}

// SaveCandle persists one tick's candle for a pair.
func (a *Archive) SaveCandle(pair string, tick int64, c stats.Candle) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal candle: %w", err)
	}
	if err := a.db.Set(candleKey(pair, tick), data, pebble.NoSync); err != nil {
		return fmt.Errorf("save candle: %w", err)
	}
	return nil
}

// Candles loads up to limit candles for a pair starting at fromTick.
func (a *Archive) Candles(pair string, fromTick int64, limit int) ([]stats.Candle, error) {
	prefix := candlePrefix(pair)
	iter, err := a.db.NewIter(&pebble.IterOptions{
		LowerBound: candleKey(pair, fromTick),
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []stats.Candle
	for iter.First(); iter.Valid() && len(out) < limit; iter.Next() {
		var c stats.Candle
		if err := json.Unmarshal(iter.Value(), &c); err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Flush syncs everything written so far to disk.
func (a *Archive) Flush() error {
	return a.db.Flush()
}
