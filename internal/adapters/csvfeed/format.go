// Package csvfeed reads market snapshots and index bars from CSV files. It backs
// both the historical snapshot source and the replay feed used by the live loop.
package csvfeed

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"niftyGreeksBot/internal/domain"
	"niftyGreeksBot/internal/ports"
)

// SnapshotHeader is the column order written by WriteSnapshots.
var SnapshotHeader = []string{
	"timestamp", "symbol", "price",
	"call_delta", "call_gamma", "call_theta", "call_vega",
	"put_delta", "put_gamma", "put_theta", "put_vega",
	"rsi", "ma", "vix",
}

var barColumns = []string{"timestamp", "open", "high", "low", "close"}

// Accepted timestamp layouts, tried in order. Layouts without an offset are
// read in the reader's location.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// columnIndex maps lower-cased header names to positions and checks required columns.
func columnIndex(header []string, required []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: CSV header lacks %s", ports.ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return idx, nil
}

// rowDecoder turns CSV records into snapshots.
type rowDecoder struct {
	idx map[string]int
	loc *time.Location
}

func newRowDecoder(header []string, loc *time.Location) (*rowDecoder, error) {
	// symbol is optional; the source fills in the requested symbol
	required := make([]string, 0, len(SnapshotHeader)-1)
	for _, col := range SnapshotHeader {
		if col != "symbol" {
			required = append(required, col)
		}
	}
	idx, err := columnIndex(header, required)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return &rowDecoder{idx: idx, loc: loc}, nil
}

func (d *rowDecoder) cell(record []string, col string) string {
	i, ok := d.idx[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// decode builds a snapshot from one record. Empty cells are reported as missing
// fields; unparsable cells as malformed.
func (d *rowDecoder) decode(record []string) (domain.MarketSnapshot, error) {
	var f domain.SnapshotFields
	var bad []string

	if s := d.cell(record, "timestamp"); s != "" {
		ts, err := parseTime(s, d.loc)
		if err != nil {
			bad = append(bad, "timestamp")
		} else {
			f.Timestamp = &ts
		}
	}
	f.Symbol = d.cell(record, "symbol")

	num := func(col string) *float64 {
		s := d.cell(record, col)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			bad = append(bad, col)
			return nil
		}
		return &v
	}
	f.Price = num("price")
	f.CallDelta, f.CallGamma, f.CallTheta, f.CallVega = num("call_delta"), num("call_gamma"), num("call_theta"), num("call_vega")
	f.PutDelta, f.PutGamma, f.PutTheta, f.PutVega = num("put_delta"), num("put_gamma"), num("put_theta"), num("put_vega")
	f.RSI, f.MA, f.VIX = num("rsi"), num("ma"), num("vix")

	if len(bad) > 0 {
		return domain.MarketSnapshot{}, fmt.Errorf("%w: unparsable %s", ports.ErrMalformedSnapshot, strings.Join(bad, ", "))
	}
	return f.Build()
}

// ReadBars reads index bars with columns timestamp, open, high, low, close and
// optional volume and vix.
func ReadBars(r io.Reader, loc *time.Location) ([]domain.Bar, error) {
	if loc == nil {
		loc = time.UTC
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read bar header: %w", ports.ErrInvalidRequest, err)
	}
	idx, err := columnIndex(header, barColumns)
	if err != nil {
		return nil, err
	}

	var bars []domain.Bar
	for row := 2; ; row++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: bar row %d: %w", ports.ErrInvalidRequest, row, err)
		}
		get := func(col string) (float64, error) {
			i, ok := idx[col]
			if !ok || i >= len(record) || strings.TrimSpace(record[i]) == "" {
				return 0, nil
			}
			return strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
		}

		ts, err := parseTime(record[idx["timestamp"]], loc)
		if err != nil {
			return nil, fmt.Errorf("%w: bar row %d: %w", ports.ErrInvalidRequest, row, err)
		}
		bar := domain.Bar{Time: ts}
		for _, field := range []struct {
			col  string
			dest *float64
		}{
			{"open", &bar.Open}, {"high", &bar.High}, {"low", &bar.Low}, {"close", &bar.Close},
			{"volume", &bar.Volume}, {"vix", &bar.VIX},
		} {
			if *field.dest, err = get(field.col); err != nil {
				return nil, fmt.Errorf("%w: bar row %d column %s: %w", ports.ErrInvalidRequest, row, field.col, err)
			}
		}
		if bar.Close <= 0 {
			return nil, fmt.Errorf("%w: bar row %d has no close price", ports.ErrInvalidRequest, row)
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, ports.ErrNoData
	}
	return bars, nil
}

// WriteSnapshots writes snapshots in the SnapshotHeader layout with RFC3339 timestamps.
func WriteSnapshots(w io.Writer, snapshots []domain.MarketSnapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SnapshotHeader); err != nil {
		return fmt.Errorf("failed to write snapshot header: %w", err)
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, s := range snapshots {
		record := []string{
			s.Timestamp.Format(time.RFC3339), s.Symbol, f(s.Price),
			f(s.Call.Delta), f(s.Call.Gamma), f(s.Call.Theta), f(s.Call.Vega),
			f(s.Put.Delta), f(s.Put.Gamma), f(s.Put.Theta), f(s.Put.Vega),
			f(s.RSI), f(s.MA), f(s.VIX),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write snapshot at %s: %w", s.Timestamp.Format(time.RFC3339), err)
		}
	}
	cw.Flush()
	return cw.Error()
}
