package strategy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Params holds numeric strategy parameters by name.
type Params map[string]float64

// Float returns p[key] or def when absent.
func (p Params) Float(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Int returns p[key] truncated to int, or def when absent.
func (p Params) Int(key string, def int) int {
	if v, ok := p[key]; ok {
		return int(v)
	}
	return def
}

// Merge returns a copy of p with overrides applied.
func (p Params) Merge(overrides Params) Params {
	out := make(Params, len(p)+len(overrides))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// String renders params as sorted key=value pairs.
func (p Params) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.FormatFloat(p[k], 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

// ParseParam parses a "key=value" pair.
func ParseParam(s string) (string, float64, error) {
	key, val, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return "", 0, fmt.Errorf("param %q: want key=value", s)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return "", 0, fmt.Errorf("param %q: %w", s, err)
	}
	return strings.TrimSpace(key), f, nil
}

func requirePositive(name string, p Params, keys ...string) error {
	for _, k := range keys {
		if v, ok := p[k]; ok && v < 1 {
			return fmt.Errorf("strategy %s: %s must be >= 1, got %v", name, k, v)
		}
	}
	return nil
}
