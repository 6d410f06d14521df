package strategy

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// ErrUnknownStrategy is returned by Build for unregistered names.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Factory builds a strategy from parameters; absent keys take defaults.
type Factory func(p Params) (Strategy, error)

// Warner is implemented by strategies that can flag questionable parameters.
type Warner interface {
	Warnings() []string
}

// Registry holds a named collection of strategy factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// NewDefaultRegistry returns a registry with every built-in strategy.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("cci", func(p Params) (Strategy, error) { return NewCCI(p) })
	r.Register("rsi", func(p Params) (Strategy, error) { return NewRSI(p) })
	r.Register("macd", func(p Params) (Strategy, error) { return NewMACD(p) })
	r.Register("ma", func(p Params) (Strategy, error) { return NewPullback(p) })
	r.Register("stochastic", func(p Params) (Strategy, error) { return NewStochastic(p) })
	r.Register("ma_cross", func(p Params) (Strategy, error) { return NewMACrossover(p) })
	r.Register("breakout", func(p Params) (Strategy, error) { return NewBreakout(p) })
	return r
}

// Register adds a factory under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Build creates the named strategy. Parameter warnings are logged and
// returned; they never fail the build.
func (r *Registry) Build(name string, p Params, logger *slog.Logger) (Strategy, []string, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownStrategy, name, r.List())
	}
	s, err := f(p)
	if err != nil {
		return nil, nil, err
	}

	var warnings []string
	if w, ok := s.(Warner); ok {
		warnings = w.Warnings()
	}
	if logger == nil {
		logger = slog.Default()
	}
	for _, msg := range warnings {
		logger.Warn("strategy parameter warning", "strategy", name, "warning", msg)
	}
	return s, warnings, nil
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func oscillatorWarnings(name string, buy, sell float64) []string {
	var out []string
	if buy < 0 || buy > 100 || sell < 0 || sell > 100 {
		out = append(out, fmt.Sprintf("%s: thresholds %.0f/%.0f fall outside 0..100", name, buy, sell))
	}
	if buy >= sell {
		out = append(out, fmt.Sprintf("%s: buy threshold %.0f is not below sell threshold %.0f", name, buy, sell))
	}
	return out
}
