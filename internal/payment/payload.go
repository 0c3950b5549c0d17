package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var errNoValue = errors.New("no value")

// String returns the first non-empty string value among keys.
func String(p map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := p[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int64:
			return strconv.FormatInt(v, 10)
		case int:
			return strconv.Itoa(v)
		}
	}
	return ""
}

// Map returns a nested object.
func Map(p map[string]any, key string) map[string]any {
	m, _ := p[key].(map[string]any)
	return m
}

// Decimal reads a numeric field holding a major-unit amount.
func Decimal(p map[string]any, key string) (decimal.Decimal, error) {
	s := String(p, key)
	if s == "" {
		return decimal.Zero, errNoValue
	}
	return decimal.NewFromString(s)
}

// MinorUnits reads a numeric field holding an integer amount in minor units.
func MinorUnits(p map[string]any, key string) (int64, error) {
	s := String(p, key)
	if s == "" {
		return 0, errNoValue
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("minor unit amount %s is not an integer", s)
	}
	return d.IntPart(), nil
}

// IsMissing reports whether err means the field was absent.
func IsMissing(err error) bool {
	return errors.Is(err, errNoValue)
}

// ClientReference formats the order reference sent to providers.
func ClientReference(orderID int64) string {
	return itoa(orderID)
}

// ParseClientReference accepts "123" and "ORDER-123-<suffix>" forms.
func ParseClientReference(ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, errNoValue
	}
	if rest, ok := strings.CutPrefix(ref, "ORDER-"); ok {
		ref = rest
		if i := strings.IndexByte(ref, '-'); i >= 0 {
			ref = ref[:i]
		}
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid order reference %q", ref)
	}
	return id, nil
}
