// code-ingest bulk-loads disposable redemption codes for one coupon from
// gzip-compressed code lists. Codes are deduplicated with a bloom filter
// before insertion, and written with COPY in batches.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/edukit/commerce/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	batchSize     = 50_000
	minCodeLen    = 8
	maxCodeLen    = 32
)

func main() {
	var (
		databaseURL string
		couponID    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&couponID, "coupon-id", "", "coupon to attach the codes to")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if couponID == "" {
		slog.Error("--coupon-id is required")
		os.Exit(1)
	}
	if flag.NArg() == 0 {
		slog.Error("at least one code file is required", slog.String("usage", "code-ingest [flags] file.gz..."))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, couponID, flag.Args()); err != nil {
		slog.Error("code ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("code ingest completed successfully")
}

func run(ctx context.Context, databaseURL, couponID string, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	var exists bool
	err = pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM coupons WHERE id = $1)`, couponID).Scan(&exists)
	if err != nil {
		return errors.Wrap(err, "check coupon")
	}
	if !exists {
		return errors.Errorf("coupon %s does not exist", couponID)
	}

	// The filter spans all input files, so a code repeated across files is
	// still inserted once.
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	codes := make(chan string, batchSize)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(codes)
		for _, f := range files {
			if err := streamCodes(ctx, f, seen, codes); err != nil {
				return errors.Wrapf(err, "stream %s", f)
			}
		}
		return nil
	})
	g.Go(func() error {
		return insertBatches(ctx, pool, couponID, codes)
	})

	return g.Wait()
}

// streamCodes reads one gzip file line by line and forwards codes that pass
// length validation and the dedup filter.
func streamCodes(ctx context.Context, path string, seen *bloom.BloomFilter, out chan<- string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	var total, kept uint64
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		total++

		code := scanner.Text()
		if len(code) < minCodeLen || len(code) > maxCodeLen {
			continue
		}
		if seen.TestAndAddString(code) {
			continue
		}
		kept++

		select {
		case out <- code:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "scan")
	}

	slog.Info("file streamed",
		slog.String("path", path),
		slog.Uint64("lines", total),
		slog.Uint64("new_codes", kept),
	)
	return nil
}

// insertBatches drains the code channel and COPYs rows into
// coupon_disposables in batches.
func insertBatches(ctx context.Context, pool *pgxpool.Pool, couponID string, codes <-chan string) error {
	batch := make([][]any, 0, batchSize)
	var written int64

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := pool.CopyFrom(ctx,
			pgx.Identifier{"coupon_disposables"},
			[]string{"id", "coupon_id", "code"},
			pgx.CopyFromRows(batch),
		)
		if err != nil {
			return errors.Wrap(err, "copy batch")
		}
		written += n
		slog.Info("batch written", slog.Int64("total", written))
		batch = batch[:0]
		return nil
	}

	for code := range codes {
		batch = append(batch, []any{uuid.New().String(), couponID, code})
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	slog.Info("all codes written", slog.Int64("count", written))
	return nil
}
