package ledger

import (
	"github.com/shopspring/decimal"
)

// 展示精度：货币金额 2 位小数，FX 价格 5 位小数。
// 舍入只发生在展示层，存储与计算保持原始 float64。
const (
	currencyPlaces = 2
	fxPricePlaces  = 5
)

// FormatCurrency 将金额按货币精度四舍五入为字符串。
func FormatCurrency(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(currencyPlaces)
}

// FormatPrice 将价格按品种精度四舍五入为字符串；fx 为 true 时用 5 位小数。
func FormatPrice(v float64, fx bool) string {
	places := int32(currencyPlaces)
	if fx {
		places = fxPricePlaces
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// RoundCurrency 返回货币精度的数值，仅供展示序列化使用。
func RoundCurrency(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(currencyPlaces).Float64()
	return f
}
