package candles

import (
	"errors"
	"fmt"
	"sort"

	"web3-launchpad/internal/launchpad/model"
)

var ErrUnknownTimeframe = errors.New("unknown timeframe")

const DefaultTimeframe = "1h"

// 桶宽度(毫秒)
var timeframes = map[string]int64{
	"1m":  60_000,
	"5m":  5 * 60_000,
	"15m": 15 * 60_000,
	"1h":  60 * 60_000,
	"4h":  4 * 60 * 60_000,
	"1d":  24 * 60 * 60_000,
}

// Width 返回 timeframe 的桶宽度(毫秒)
func Width(timeframe string) (int64, error) {
	width, ok := timeframes[timeframe]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTimeframe, timeframe)
	}
	return width, nil
}

// BucketStart 时间戳(毫秒)所在桶的起点, 单位秒
func BucketStart(timestampMs, width int64) int64 {
	return timestampMs / width * width / 1000
}

// Aggregate 把成交按 timeframe 分桶, 只输出有成交的桶, 按时间升序
func Aggregate(trades []model.Trade, timeframe string) ([]model.Candle, error) {
	width, err := Width(timeframe)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return []model.Candle{}, nil
	}

	sorted := make([]model.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	candles := make([]model.Candle, 0)
	for _, t := range sorted {
		bucket := BucketStart(t.Timestamp, width)
		price := t.Price.InexactFloat64()
		volume := t.Amount.InexactFloat64()

		n := len(candles)
		if n > 0 && candles[n-1].Time == bucket {
			c := &candles[n-1]
			if price > c.High {
				c.High = price
			}
			if price < c.Low {
				c.Low = price
			}
			c.Close = price
			c.Volume += volume
			continue
		}
		candles = append(candles, model.Candle{
			Time:   bucket,
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: volume,
		})
	}
	return candles, nil
}
