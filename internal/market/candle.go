package market

// Candle 表示单根 K 线（时间均为 Unix 毫秒）。
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume,omitempty"`
}

// Valid 校验 OHLC 不变量：low <= min(open, close) 且 high >= max(open, close)。
func (c Candle) Valid() bool {
	if c.OpenTime <= 0 {
		return false
	}
	lo, hi := c.Open, c.Open
	if c.Close < lo {
		lo = c.Close
	}
	if c.Close > hi {
		hi = c.Close
	}
	return c.Low <= lo && c.High >= hi
}
