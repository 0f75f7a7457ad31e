package csvfeed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"niftyGreeksBot/internal/domain"
	"niftyGreeksBot/internal/ports"
)

// Source implements ports.SnapshotSource over every CSV file matching a
// doublestar pattern such as "data/**/NIFTY_*.csv".
type Source struct {
	pattern  string
	location *time.Location
	logger   ports.Logger
}

// NewSource creates a source. loc is used for timestamps without an offset.
func NewSource(pattern string, loc *time.Location, logger ports.Logger) *Source {
	if loc == nil {
		loc = time.UTC
	}
	return &Source{pattern: pattern, location: loc, logger: logger}
}

// Files returns the files matching the pattern in lexical order.
func (s *Source) Files() ([]string, error) {
	matches, err := doublestar.FilepathGlob(s.pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: bad pattern %q: %w", ports.ErrInvalidRequest, s.pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// LoadSnapshots reads every matching file and returns the snapshots for symbol
// within [from, to] sorted by time. Rows without a symbol are taken to belong
// to the requested one. Any malformed row fails the whole load.
func (s *Source) LoadSnapshots(ctx context.Context, symbol string, from, to time.Time) ([]domain.MarketSnapshot, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files match %q", ports.ErrNotFound, s.pattern)
	}

	var out []domain.MarketSnapshot
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
		}
		snaps, err := readSnapshotFile(path, s.location)
		if err != nil {
			return nil, err
		}
		kept := 0
		for _, snap := range snaps {
			if snap.Symbol == "" {
				snap.Symbol = symbol
			}
			if symbol != "" && snap.Symbol != symbol {
				continue
			}
			if !from.IsZero() && snap.Timestamp.Before(from) {
				continue
			}
			if !to.IsZero() && snap.Timestamp.After(to) {
				continue
			}
			out = append(out, snap)
			kept++
		}
		if s.logger != nil {
			s.logger.Debug(ctx, "Loaded snapshot file", map[string]interface{}{"path": path, "rows": len(snaps), "kept": kept})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func readSnapshotFile(path string, loc *time.Location) ([]domain.MarketSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", ports.ErrNotFound, path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header of %s: %w", ports.ErrInvalidRequest, path, err)
	}
	dec, err := newRowDecoder(header, loc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var out []domain.MarketSnapshot
	for row := 2; ; row++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: %w", ports.ErrMalformedSnapshot, path, row, err)
		}
		snap, err := dec.decode(record)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, row, err)
		}
		out = append(out, snap)
	}
	return out, nil
}

// ReadBarFiles reads and merges the bars of every file matching pattern,
// sorted by time.
func ReadBarFiles(pattern string, loc *time.Location) ([]domain.Bar, error) {
	files, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: bad pattern %q: %w", ports.ErrInvalidRequest, pattern, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files match %q", ports.ErrNotFound, pattern)
	}
	sort.Strings(files)

	var bars []domain.Bar
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to open %s: %w", ports.ErrNotFound, path, err)
		}
		b, err := ReadBars(f, loc)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		bars = append(bars, b...)
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}
