package models

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

const moneyScale = 2

// Money 金额，统一保留两位小数（四舍五入）。
// 订单总额只由服务端按单价与数量累加，不信任客户端传入的金额。
type Money struct {
	decimal.Decimal
}

func moneyOf(d decimal.Decimal) Money {
	return Money{Decimal: d.Round(moneyScale)}
}

// ParseMoney 解析十进制金额字符串
func ParseMoney(raw string) (Money, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return moneyOf(d), nil
}

// MustMoney 同 ParseMoney，失败时 panic，用于常量与测试
func MustMoney(raw string) Money {
	m, err := ParseMoney(raw)
	if err != nil {
		panic(err)
	}
	return m
}

// Times 单价乘数量
func (m Money) Times(quantity int) Money {
	return moneyOf(m.Decimal.Mul(decimal.NewFromInt(int64(quantity))))
}

// Plus 金额相加
func (m Money) Plus(other Money) Money {
	return moneyOf(m.Decimal.Add(other.Decimal))
}

// String 两位小数，如 "280.50"
func (m Money) String() string {
	return m.Decimal.StringFixed(moneyScale)
}

// MarshalJSON 输出为字符串，避免客户端按浮点解析
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}

// UnmarshalJSON 接受字符串或数字字面量；数字按原文解析，不经过 float64
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = Money{}
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return fmt.Errorf("invalid amount %s: %w", raw, err)
		}
		raw = unquoted
	}
	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value 以定点字符串写库，sqlite 与 postgres numeric 都能接收
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan 读取时同样归一到两位小数
func (m *Money) Scan(value interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return err
	}
	*m = moneyOf(d)
	return nil
}
