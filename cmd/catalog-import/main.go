// Command catalog-import loads product catalog dumps into the database.
//
// Dumps are gzip-compressed CSV files with the columns
// id,kind,name,weight_kg,stock_quantity. Files are streamed concurrently;
// when the same product ID appears in more than one file the first
// occurrence wins. Optionally the command also seeds an API key so a fresh
// environment is usable right after import.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/coffeeflow/backoffice/internal/domain/product"
	"github.com/coffeeflow/backoffice/internal/handler"
	"github.com/coffeeflow/backoffice/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	batchSize     = 500
	progressEvery = 100_000
)

const upsertProductSQL = `
INSERT INTO products (id, kind, name, weight_kg, stock_quantity)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    kind           = EXCLUDED.kind,
    name           = EXCLUDED.name,
    weight_kg      = EXCLUDED.weight_kg,
    stock_quantity = EXCLUDED.stock_quantity`

func main() {
	var (
		databaseURL  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed after import (or COFFEE_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or COFFEE_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("COFFEE_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("COFFEE_API_KEY_PEPPER")
	}

	files := flag.Args()
	if len(files) == 0 && apiKey == "" {
		slog.Error("nothing to do: pass catalog .csv.gz dumps and/or --api-key")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files, apiKey, apiKeyPepper); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string, apiKey, pepper string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if len(files) > 0 {
		if err := importProducts(ctx, pool, files); err != nil {
			return errors.Wrap(err, "import products")
		}
	}

	if apiKey != "" {
		if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
			return errors.Wrap(err, "seed api key")
		}
	}

	return nil
}

// importProducts streams every dump concurrently; a single writer goroutine
// dedupes IDs with a bloom filter and flushes batched upserts.
func importProducts(ctx context.Context, pool *pgxpool.Pool, files []string) error {
	rows := make(chan product.Product, batchSize)

	g, ctx := errgroup.WithContext(ctx)

	readers, readCtx := errgroup.WithContext(ctx)
	for _, f := range files {
		readers.Go(func() error {
			return streamDump(readCtx, f, rows)
		})
	}
	g.Go(func() error {
		defer close(rows)
		return readers.Wait()
	})

	g.Go(func() error {
		return writeProducts(ctx, pool, rows)
	})

	return g.Wait()
}

// streamDump parses one gzipped CSV dump and sends each row downstream.
func streamDump(ctx context.Context, path string, out chan<- product.Product) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = 5
	r.ReuseRecord = true

	var count uint64
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		if count == 0 && rec[0] == "id" {
			count++
			continue // header row
		}

		p, err := parseRow(rec)
		if err != nil {
			return errors.Wrapf(err, "parse %s row %d", path, count+1)
		}

		count++
		if count%progressEvery == 0 {
			slog.Info("import progress", slog.String("file", path), slog.Uint64("rows", count))
		}

		select {
		case out <- p:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	slog.Info("file done", slog.String("file", path), slog.Uint64("rows", count))
	return nil
}

func parseRow(rec []string) (product.Product, error) {
	if rec[0] == "" {
		return product.Product{}, errors.New("empty product id")
	}
	weight, err := decimal.NewFromString(rec[3])
	if err != nil {
		return product.Product{}, errors.Wrap(err, "parse weight_kg")
	}
	qty, err := strconv.Atoi(rec[4])
	if err != nil {
		return product.Product{}, errors.Wrap(err, "parse stock_quantity")
	}
	if qty < 0 {
		return product.Product{}, errors.Errorf("negative stock_quantity %d", qty)
	}
	return product.Product{
		ID:            rec[0],
		Kind:          rec[1],
		Name:          rec[2],
		WeightKg:      weight,
		StockQuantity: qty,
	}, nil
}

// writeProducts consumes parsed rows, skips IDs already seen and upserts in
// batches. The bloom filter trades a small false-positive rate (silently
// skipped duplicates) for constant memory on arbitrarily large dumps.
func writeProducts(ctx context.Context, pool *pgxpool.Pool, rows <-chan product.Product) error {
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	batch := make([]product.Product, 0, batchSize)
	var written uint64

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		b := &pgx.Batch{}
		for _, p := range batch {
			b.Queue(upsertProductSQL, p.ID, p.Kind, p.Name, p.WeightKg, p.StockQuantity)
		}
		if err := pool.SendBatch(ctx, b).Close(); err != nil {
			return errors.Wrap(err, "send batch")
		}
		written += uint64(len(batch))
		batch = batch[:0]
		return nil
	}

	for p := range rows {
		if seen.TestAndAddString(p.ID) {
			continue
		}
		batch = append(batch, p)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	slog.Info("products written", slog.Uint64("count", written))
	return nil
}

const upsertAPIKeySQL = `
INSERT INTO api_keys (id, key_hash, name, scopes, active)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    key_hash = EXCLUDED.key_hash,
    name     = EXCLUDED.name,
    scopes   = EXCLUDED.scopes,
    active   = EXCLUDED.active`

// seedAPIKey upserts a default key hashed the same way the server hashes
// incoming keys.
func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	hash := handler.HashAPIKey(apiKey, []byte(pepper))
	_, err := pool.Exec(ctx, upsertAPIKeySQL,
		"default", hash, "Default back-office key", []string{"sales", "products"}, true)
	if err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"))
	return nil
}
