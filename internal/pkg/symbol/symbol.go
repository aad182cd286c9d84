package symbol

import (
	"strings"
)

// Symbol 拆分后的交易对。FX 形态（EURUSD）与加密形态（BTCUSDT）均可解析。
type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) Internal() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

func (s Symbol) Concat() string {
	return s.Base + s.Quote
}

var quoteCurrencies = []string{"USDT", "BUSD", "USDC", "USD", "EUR", "GBP", "JPY", "CHF", "AUD", "CAD", "BTC", "ETH", "BNB"}

// Parse 将任意形态的交易对归一化为 Base/Quote。
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:  strings.TrimSpace(parts[0]),
			Quote: strings.TrimSpace(parts[1]),
		}
	}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{
				Base:  s[:len(s)-len(quote)],
				Quote: quote,
			}
		}
	}
	return Symbol{}
}

// Normalize 返回 EUR/USD 形态；无法解析时返回空串。
func Normalize(s string) string {
	return Parse(s).Internal()
}

// ToExchange 返回交易所无斜杠形态（EURUSD、BTCUSDT）。
func ToExchange(s string) string {
	up := strings.ToUpper(strings.TrimSpace(s))
	return strings.ReplaceAll(up, "/", "")
}

// IsFX 判断是否为法币交易对（用于展示精度选择）。
func IsFX(s string) bool {
	sym := Parse(s)
	if sym.Quote == "" {
		return false
	}
	switch sym.Quote {
	case "USD", "EUR", "GBP", "JPY", "CHF", "AUD", "CAD":
		switch sym.Base {
		case "BTC", "ETH", "BNB":
			return false
		}
		return true
	default:
		return false
	}
}

func IsValid(s string) bool {
	sym := Parse(s)
	return sym.Base != "" && sym.Quote != ""
}
