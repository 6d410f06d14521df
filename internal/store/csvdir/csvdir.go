// Package csvdir reads and writes a directory of per-symbol CSV bar files.
//
// Files are named SYMBOL.csv or SYMBOL_<anything>.csv (for example
// INFY_Infosys_2023-01-02.csv); when several files share a symbol the
// lexically greatest name wins. Columns are matched by header name:
//
//	DATE,OPEN,HIGH,LOW,CLOSE,52W H,52W L,SYMBOL
//
// Only DATE, OPEN, HIGH, LOW and CLOSE are required. An optional
// universes.yaml maps universe names to symbol lists.
package csvdir

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"equity-backtest/internal/model"
)

// UniversesFile is the optional universe definition file inside a dataset
// directory.
const UniversesFile = "universes.yaml"

var header = []string{"DATE", "OPEN", "HIGH", "LOW", "CLOSE", "52W H", "52W L", "SYMBOL"}

var dateLayouts = []string{"2006-01-02", "02-Jan-2006", "2006-01-02 15:04:05", "02-01-2006", "2006/01/02"}

// Dataset serves bars from a CSV directory. It implements model.MarketDataset.
type Dataset struct {
	dir       string
	files     map[string]string
	universes map[string][]string
}

// Open indexes the CSV files of dir and loads universes.yaml if present.
func Open(dir string) (*Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("csvdir open %s: %w", dir, err)
	}

	d := &Dataset{dir: dir, files: make(map[string]string)}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		sym := SymbolFromFile(name)
		if sym == "" {
			continue
		}
		if prev, ok := d.files[sym]; !ok || name > prev {
			d.files[sym] = name
		}
	}

	if d.universes, err = LoadUniverses(dir); err != nil {
		return nil, fmt.Errorf("csvdir %s: %w", dir, err)
	}
	return d, nil
}

// SymbolFromFile returns the symbol encoded in a CSV file name.
func SymbolFromFile(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	sym, _, _ := strings.Cut(stem, "_")
	return strings.ToUpper(strings.TrimSpace(sym))
}

// LoadUniverses reads universes.yaml from dir. A missing file yields an
// empty map.
func LoadUniverses(dir string) (map[string][]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, UniversesFile))
	if errors.Is(err, os.ErrNotExist) {
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read universes: %w", err)
	}
	var out map[string][]string
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse universes: %w", err)
	}
	if out == nil {
		out = map[string][]string{}
	}
	return out, nil
}

// ResolveUniverse looks name up in universes, normalizing member symbols.
func ResolveUniverse(universes map[string][]string, name string) ([]string, error) {
	members, ok := universes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownUniverse, name)
	}
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = strings.ToUpper(strings.TrimSpace(m))
	}
	return out, nil
}

// Symbols resolves a universe. "all" (or "") lists every indexed symbol.
func (d *Dataset) Symbols(_ context.Context, universe string) ([]string, error) {
	if universe == "" || universe == model.UniverseAll {
		out := make([]string, 0, len(d.files))
		for s := range d.files {
			out = append(out, s)
		}
		sort.Strings(out)
		return out, nil
	}
	return ResolveUniverse(d.universes, universe)
}

// Close is a no-op; files are opened per call.
func (d *Dataset) Close() error { return nil }

// Bars parses the file of symbol. Rows keep the file's order.
func (d *Dataset) Bars(ctx context.Context, symbol string) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, ok := d.files[strings.ToUpper(symbol)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrNoBars, symbol)
	}
	f, err := os.Open(filepath.Join(d.dir, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := Read(f, strings.ToUpper(symbol))
	if err != nil {
		return nil, fmt.Errorf("csvdir %s: %w", name, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrNoBars, symbol)
	}
	return bars, nil
}

// Read parses bars from r. symbol fills rows without a SYMBOL column.
func Read(r io.Reader, symbol string) ([]model.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	col := make(map[string]int, len(head))
	for i, h := range head {
		col[strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, req := range header[:5] {
		if _, ok := col[req]; !ok {
			return nil, fmt.Errorf("missing column %s", req)
		}
	}

	var bars []model.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		b, err := parseRow(rec, col, symbol)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseRow(rec []string, col map[string]int, symbol string) (model.Bar, error) {
	field := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	b := model.Bar{Symbol: symbol}
	if s := field("SYMBOL"); s != "" {
		b.Symbol = s
	}
	date, err := parseDate(field("DATE"))
	if err != nil {
		return b, err
	}
	b.Date = date

	for _, f := range []struct {
		name     string
		dst      *float64
		optional bool
	}{
		{"OPEN", &b.Open, false},
		{"HIGH", &b.High, false},
		{"LOW", &b.Low, false},
		{"CLOSE", &b.Close, false},
		{"52W H", &b.High52W, true},
		{"52W L", &b.Low52W, true},
	} {
		raw := strings.ReplaceAll(field(f.name), ",", "")
		if raw == "" || raw == "-" {
			if f.optional {
				continue
			}
			return b, fmt.Errorf("empty %s", f.name)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return b, fmt.Errorf("%s: %w", f.name, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return b, fmt.Errorf("%s: non-finite value %q", f.name, raw)
		}
		*f.dst = v
	}
	return b, nil
}

// parseDate keeps the clock of timed layouts; date-only layouts land on
// midnight UTC.
func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if strings.Contains(layout, "15:04") {
			return t.UTC(), nil
		}
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// Writer writes one SYMBOL.csv per symbol, newest row first. It implements
// model.BarWriter.
type Writer struct {
	dir string
}

// NewWriter creates dir if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csvdir mkdir %s: %w", dir, err)
	}
	return &Writer{dir: dir}, nil
}

// WriteBars replaces the file of symbol.
func (w *Writer) WriteBars(_ context.Context, symbol string, bars []model.Bar) error {
	sorted := make([]model.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.After(sorted[j].Date) })

	path := filepath.Join(w.dir, strings.ToUpper(symbol)+".csv")
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := Write(f, symbol, sorted); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("csvdir write %s: %w", symbol, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Write encodes bars in the canonical column order.
func Write(out io.Writer, symbol string, bars []model.Bar) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(header); err != nil {
		return err
	}
	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, b := range bars {
		rec := []string{
			formatDate(b.Date),
			ff(b.Open), ff(b.High), ff(b.Low), ff(b.Close),
			ff(b.High52W), ff(b.Low52W),
			strings.ToUpper(symbol),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatDate(t time.Time) string {
	t = t.UTC()
	if t.Equal(t.Truncate(24 * time.Hour)) {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// Close is a no-op; every WriteBars call finishes its file.
func (w *Writer) Close() error { return nil }
