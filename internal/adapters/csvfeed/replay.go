package csvfeed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"niftyGreeksBot/internal/domain"
	"niftyGreeksBot/internal/ports"
)

// Replay implements ports.SnapshotFeed by serving one CSV row per call to Next.
// It stands in for a live option-chain feed in paper trading.
type Replay struct {
	file   io.Closer
	reader *csv.Reader
	dec    *rowDecoder
	symbol string
	row    int
	done   bool
}

// NewReplay opens path and reads its header. Rows without a symbol get symbol.
func NewReplay(path, symbol string, loc *time.Location) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", ports.ErrFeedUnavailable, path, err)
	}
	r, err := newReplay(f, symbol, loc)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.file = f
	return r, nil
}

func newReplay(r io.Reader, symbol string, loc *time.Location) (*Replay, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %w", ports.ErrInvalidRequest, err)
	}
	dec, err := newRowDecoder(header, loc)
	if err != nil {
		return nil, err
	}
	return &Replay{reader: cr, dec: dec, symbol: symbol, row: 1}, nil
}

// Next returns the next row. A bad row yields ErrMalformedSnapshot and the
// cursor moves past it; the end of the file yields ErrFeedExhausted.
func (r *Replay) Next(ctx context.Context) (domain.MarketSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
	}
	if r.done {
		return domain.MarketSnapshot{}, ports.ErrFeedExhausted
	}

	record, err := r.reader.Read()
	r.row++
	if errors.Is(err, io.EOF) {
		r.done = true
		return domain.MarketSnapshot{}, ports.ErrFeedExhausted
	}
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("%w: row %d: %w", ports.ErrMalformedSnapshot, r.row, err)
	}

	snap, err := r.dec.decode(record)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("row %d: %w", r.row, err)
	}
	if snap.Symbol == "" {
		snap.Symbol = r.symbol
	}
	return snap, nil
}

// Close releases the underlying file.
func (r *Replay) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}
