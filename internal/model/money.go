package model

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ==================== 金额工具（分） ====================

// ErrInvalidAmount 金额格式错误
var ErrInvalidAmount = errors.New("invalid amount")

var maxCents = decimal.NewFromInt(math.MaxInt64)

// ParseAmount 解析十进制金额字符串为分
// 支持 "100"、"100.5"、"100.00"，不支持负数、超过 2 位小数和超出 int64 的金额
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}

	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	if hasDot && (fracPart == "" || len(fracPart) > 2) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !isDigits(intPart) || !isDigits(fracPart) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	d, err := decimal.NewFromString(intPart + "." + fracPart + "0")
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	cents := d.Shift(2)
	if cents.GreaterThan(maxCents) {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidAmount, s)
	}
	return cents.IntPart(), nil
}

// FormatAmount 分 → "12.34"
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// MulRate 金额乘以比例，十进制计算后四舍五入到分（0.5 远离零）
// rate 取其最短十进制表示，0.29 按 0.29 计算而不是 0.28999...
func MulRate(cents int64, rate float64) int64 {
	return decimal.NewFromInt(cents).
		Mul(decimal.NewFromFloat(rate)).
		Round(0).
		IntPart()
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
