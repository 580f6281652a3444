package chunk

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	"github.com/joeycumines/floater"
	"github.com/joeycumines/go-replicore/dbmsevent"
	"github.com/joeycumines/go-replicore/reerr"
	"github.com/joeycumines/go-replicore/replog"
)

// Config configures a Planner.
type Config struct {
	// ExtractChannels is the number of downstream workers; Plan emits
	// exactly this many poison-pill chunks once planning completes.
	ExtractChannels int
	// DefaultChunkSize is used for a Request whose ChunkSize is
	// DefaultChunkSize (explicit requests and store-enumerated tables
	// alike). Must be >= 0 (0 meaning whole-table).
	DefaultChunkSize int
	Logger           *replog.Logger
}

// Planner is the chunk planner (C8): it divides tables into numeric
// key-range chunks for parallel bulk extraction.
type Planner struct {
	store Store
	cfg   Config
	log   *replog.Logger
}

// New constructs a Planner. store must be non-nil; ExtractChannels must be
// positive.
func New(store Store, cfg Config) (*Planner, error) {
	if store == nil {
		return nil, fmt.Errorf(`chunk: nil store`)
	}
	if cfg.ExtractChannels < 1 {
		return nil, fmt.Errorf(`chunk: extract channels must be >= 1, got %d`, cfg.ExtractChannels)
	}
	if cfg.DefaultChunkSize < 0 {
		return nil, fmt.Errorf(`chunk: default chunk size must be >= 0, got %d`, cfg.DefaultChunkSize)
	}
	return &Planner{store: store, cfg: cfg, log: replog.OrNoOp(cfg.Logger)}, nil
}

// Plan enumerates the requested (or, if definitions is empty, every
// non-system) schema/table, computes and sends a NumericChunk per range to
// out, then sends exactly cfg.ExtractChannels poison-pill chunks. It closes
// out before returning. Send and enumeration calls respect ctx
// cancellation.
func (p *Planner) Plan(ctx context.Context, definitions []Request, out chan<- dbmsevent.NumericChunk) (err error) {
	defer close(out)

	requests := definitions
	if len(requests) == 0 {
		requests, err = p.discoverRequests(ctx)
		if err != nil {
			return err
		}
	}

	for _, req := range requests {
		tables, terr := p.resolveTables(ctx, req)
		if terr != nil {
			return terr
		}
		for _, table := range tables {
			if perr := p.planTable(ctx, table, req, out); perr != nil {
				return perr
			}
		}
	}

	for i := 0; i < p.cfg.ExtractChannels; i++ {
		if serr := p.send(ctx, out, dbmsevent.NumericChunk{}); serr != nil {
			return serr
		}
	}
	return nil
}

func (p *Planner) discoverRequests(ctx context.Context) ([]Request, error) {
	schemas, err := p.store.Schemas(ctx)
	if err != nil {
		return nil, fmt.Errorf(`chunk: enumerate schemas: %w`, err)
	}

	var requests []Request
	for _, schema := range schemas {
		if p.store.IsSystemSchema(schema) {
			continue
		}
		requests = append(requests, Request{Schema: schema, ChunkSize: DefaultChunkSize})
	}
	return requests, nil
}

func (p *Planner) resolveTables(ctx context.Context, req Request) ([]dbmsevent.Table, error) {
	if req.Table != `` {
		return []dbmsevent.Table{{Schema: req.Schema, Name: req.Table}}, nil
	}
	names, err := p.store.Tables(ctx, req.Schema)
	if err != nil {
		return nil, fmt.Errorf(`chunk: enumerate tables in %s: %w`, req.Schema, err)
	}
	tables := make([]dbmsevent.Table, len(names))
	for i, name := range names {
		tables[i] = dbmsevent.Table{Schema: req.Schema, Name: name}
	}
	return tables, nil
}

func (p *Planner) planTable(ctx context.Context, table dbmsevent.Table, req Request, out chan<- dbmsevent.NumericChunk) error {
	chunkSize := req.ChunkSize
	if chunkSize == DefaultChunkSize {
		chunkSize = p.cfg.DefaultChunkSize
	}

	pk, ok, err := p.store.PrimaryKey(ctx, table)
	if err != nil {
		return fmt.Errorf(`chunk: primary key probe for %s: %w`, table, err)
	}

	columns := req.Columns
	if len(columns) == 0 && ok {
		columns = []string{pk.Column}
	}

	if !ok || pk.Kind == KeyUnsupported || chunkSize == 0 {
		p.log.Debug().Str(`table`, table.String()).Log(`emitting whole-table chunk`)
		return p.send(ctx, out, dbmsevent.NumericChunk{Table: table, Columns: columns, TotalBlocks: 1})
	}

	min, max, count, err := p.probe(ctx, table, pk.Column)
	if err != nil {
		return err
	}
	if min == nil || max == nil || count <= int64(chunkSize) {
		p.log.Debug().Str(`table`, table.String()).Int64(`count`, count).Log(`emitting whole-table chunk`)
		return p.send(ctx, out, dbmsevent.NumericChunk{Table: table, Columns: columns, TotalBlocks: 1})
	}

	return p.emitRanges(ctx, table, columns, pk.Kind, min, max, count, chunkSize, out)
}

// probe runs the (min, max, count) aggregate over table's pk column. A nil
// min/max means the table is empty.
func (p *Planner) probe(ctx context.Context, table dbmsevent.Table, pkColumn string) (min, max *big.Rat, count int64, err error) {
	query, err := probeSQL(table, pkColumn)
	if err != nil {
		return nil, nil, 0, fmt.Errorf(`chunk: build probe query for %s: %w`, table, err)
	}

	rows, err := p.store.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, 0, fmt.Errorf(`chunk: probe %s: %w`, table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil, 0, reerr.Invariant(fmt.Errorf(`chunk: probe for %s returned no rows`, table))
	}

	var minStr, maxStr sql.NullString
	if err := rows.Scan(&minStr, &maxStr, &count); err != nil {
		return nil, nil, 0, fmt.Errorf(`chunk: scan probe for %s: %w`, table, err)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, 0, fmt.Errorf(`chunk: probe rows for %s: %w`, table, err)
	}

	if !minStr.Valid || !maxStr.Valid {
		if count != 0 {
			return nil, nil, 0, reerr.Invariant(fmt.Errorf(`chunk: probe for %s: null bound with non-empty count %d`, table, count))
		}
		return nil, nil, 0, nil
	}

	min, ok := new(big.Rat).SetString(minStr.String)
	if !ok {
		return nil, nil, 0, reerr.Invariant(fmt.Errorf(`chunk: probe for %s: non-numeric min %q`, table, minStr.String))
	}
	max, ok = new(big.Rat).SetString(maxStr.String)
	if !ok {
		return nil, nil, 0, reerr.Invariant(fmt.Errorf(`chunk: probe for %s: non-numeric max %q`, table, maxStr.String))
	}
	return min, max, count, nil
}

// emitRanges divides (min, max] into chunkSize-row slices and sends one
// NumericChunk per slice, per spec.md §4.7 step 4: gap = max-min,
// block = chunkSize*gap/count, nb_blocks = ceil(gap/block), iterating
// start = min-1; end = min(start+block, max) until start >= max.
func (p *Planner) emitRanges(ctx context.Context, table dbmsevent.Table, columns []string, kind KeyKind, min, max *big.Rat, count int64, chunkSize int, out chan<- dbmsevent.NumericChunk) error {
	gap := new(big.Rat).Sub(max, min)
	rawBlock := new(big.Rat).Mul(gap, big.NewRat(int64(chunkSize), 1))
	rawBlock.Quo(rawBlock, big.NewRat(count, 1))
	if rawBlock.Sign() <= 0 {
		return reerr.Invariant(fmt.Errorf(`chunk: %s: non-positive block size`, table))
	}
	// block is rounded up to the next whole unit so ranges land on integer
	// boundaries; leaving it as the exact rawBlock fraction (e.g. 249.75)
	// drifts the tiling and produces one short trailing chunk beyond
	// ceil(gap/block).
	block := new(big.Rat).SetInt(ceilToInt(rawBlock))

	nbBlocks := int(ceilToInt(new(big.Rat).Quo(gap, block)).Int64())

	start := new(big.Rat).Sub(min, big.NewRat(1, 1))
	for start.Cmp(max) < 0 {
		end := new(big.Rat).Add(start, block)
		if end.Cmp(max) > 0 {
			end = new(big.Rat).Set(max)
		}

		startKey, endKey := start, end
		if kind == KeyDecimal {
			startKey = new(big.Rat).SetInt(ceilToInt(start))
			endKey = new(big.Rat).SetInt(ceilToInt(end))
			p.log.Debug().
				Str(`table`, table.String()).
				Str(`start`, floater.FormatDecimalRat(startKey, 0, 64)).
				Str(`end`, floater.FormatDecimalRat(endKey, 0, 64)).
				Log(`decimal chunk bounds rounded to ceiling integer`)
		}

		if err := p.send(ctx, out, dbmsevent.NumericChunk{
			Table:       table,
			StartKey:    startKey,
			EndKey:      endKey,
			Columns:     columns,
			TotalBlocks: nbBlocks,
		}); err != nil {
			return err
		}

		start = end
	}
	return nil
}

func (p *Planner) send(ctx context.Context, out chan<- dbmsevent.NumericChunk, chunk dbmsevent.NumericChunk) error {
	select {
	case out <- chunk:
		return nil
	case <-ctx.Done():
		return reerr.Cancelled(ctx.Err())
	}
}

// ceilToInt returns the ceiling of r as a big.Int, for r of either sign.
// QuoRem truncates toward zero, which is already the ceiling for a negative
// r, so only a positive remainder needs the bump.
func ceilToInt(r *big.Rat) *big.Int {
	q, m := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if m.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
