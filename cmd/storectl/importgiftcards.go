package main

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"math/bits"
	"os"
	"sort"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xenking/storefront-orders/internal/domain/giftcard"
	"github.com/xenking/storefront-orders/internal/storage/postgres"
	"github.com/xenking/storefront-orders/internal/storage/seed"
)

const (
	maxManifests  = 64
	bloomFPR      = 0.001
	progressEvery = 100_000
)

type importOptions struct {
	capacity       uint
	rate           float64
	skipDuplicates bool
	dryRun         bool
}

// cardWriter persists one gift card.
type cardWriter interface {
	Upsert(ctx context.Context, gc giftcard.GiftCard) error
}

type importStats struct {
	Read       int
	Imported   int
	Duplicates int
}

func newImportGiftCardsCmd(root *rootOptions) *cobra.Command {
	opts := importOptions{}
	cmd := &cobra.Command{
		Use:   "import-giftcards MANIFEST.jsonl.gz...",
		Short: "Bulk import gift cards from gzip manifests",
		Long: `Each manifest is a gzip-compressed file with one JSON gift card per line:

  {"code":"GC-0001","balance":25,"active":true}

A code listed in more than one manifest is a duplicate. Duplicates abort the
import unless --skip-duplicates is set, in which case they are left out.`,
		Args: cobra.RangeArgs(1, maxManifests),
		RunE: func(cmd *cobra.Command, files []string) error {
			ctx := cmd.Context()
			for _, f := range files {
				if _, err := os.Stat(f); err != nil {
					return errors.Wrapf(err, "check file %s", f)
				}
			}

			var w cardWriter = discardWriter{}
			if !opts.dryRun {
				pool, err := root.connect(ctx)
				if err != nil {
					return err
				}
				defer pool.Close()
				w = postgres.NewGiftCardRepository(pool)
			}

			stats, err := importGiftCards(ctx, files, w, opts)
			if err != nil {
				return err
			}
			slog.Info("gift card import completed",
				slog.Int("read", stats.Read),
				slog.Int("imported", stats.Imported),
				slog.Int("duplicates", stats.Duplicates),
				slog.Bool("dry_run", opts.dryRun),
			)
			return nil
		},
	}
	cmd.Flags().UintVar(&opts.capacity, "capacity", 1_000_000, "expected codes per manifest, sizes the bloom filters")
	cmd.Flags().Float64Var(&opts.rate, "rate", 0, "maximum upserts per second, 0 for unlimited")
	cmd.Flags().BoolVar(&opts.skipDuplicates, "skip-duplicates", false, "leave out codes found in several manifests instead of failing")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "validate manifests without writing")
	return cmd
}

type discardWriter struct{}

func (discardWriter) Upsert(context.Context, giftcard.GiftCard) error { return nil }

// DuplicateCodesError lists codes present in more than one manifest.
type DuplicateCodesError struct {
	Codes []string
}

func (e *DuplicateCodesError) Error() string {
	const shown = 5
	msg := "duplicate gift card codes across manifests:"
	for i, c := range e.Codes {
		if i == shown {
			return msg + " ..."
		}
		msg += " " + c
	}
	return msg
}

func importGiftCards(ctx context.Context, files []string, w cardWriter, opts importOptions) (importStats, error) {
	var stats importStats
	if len(files) > maxManifests {
		return stats, errors.Errorf("at most %d manifests are supported", maxManifests)
	}
	if opts.capacity == 0 {
		opts.capacity = 1_000_000
	}

	// Pass 1: one bloom filter per manifest, concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))
	filters, err := buildFilters(ctx, files, opts.capacity)
	if err != nil {
		return stats, errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: exact confirmation of bloom hits.
	slog.Info("pass 2: confirming duplicate candidates")
	dups, err := findDuplicates(ctx, files, filters)
	if err != nil {
		return stats, errors.Wrap(err, "find duplicates")
	}
	if len(dups) > 0 && !opts.skipDuplicates {
		codes := make([]string, 0, len(dups))
		for c := range dups {
			codes = append(codes, c)
		}
		sort.Strings(codes)
		return stats, &DuplicateCodesError{Codes: codes}
	}

	// Pass 3: write.
	limit := rate.Inf
	if opts.rate > 0 {
		limit = rate.Limit(opts.rate)
	}
	limiter := rate.NewLimiter(limit, 1)

	for _, f := range files {
		err := streamManifest(ctx, f, func(gc giftcard.GiftCard) error {
			stats.Read++
			if _, dup := dups[gc.Code]; dup {
				stats.Duplicates++
				return nil
			}
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			if err := w.Upsert(ctx, gc); err != nil {
				return errors.Wrapf(err, "upsert gift card %s", gc.Code)
			}
			stats.Imported++
			if stats.Imported%progressEvery == 0 {
				slog.Info("write progress", slog.Int("imported", stats.Imported))
			}
			return nil
		})
		if err != nil {
			return stats, errors.Wrapf(err, "import %s", f)
		}
	}
	return stats, nil
}

func buildFilters(ctx context.Context, files []string, capacity uint) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(capacity, bloomFPR)
			var count int
			err := streamManifest(ctx, path, func(gc giftcard.GiftCard) error {
				filter.AddString(gc.Code)
				count++
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}
			slog.Info("pass 1 complete", slog.String("file", path), slog.Int("codes", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findDuplicates re-streams each manifest and records the codes that hit
// another manifest's filter. Only codes confirmed in two or more manifests
// are returned, so bloom false positives never reject a card.
func findDuplicates(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[string]struct{}, error) {
	candidates := make([]map[string]uint64, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			found := make(map[string]uint64)
			fileBit := uint64(1) << uint(i)
			err := streamManifest(ctx, path, func(gc giftcard.GiftCard) error {
				for j, f := range filters {
					if j != i && f.TestString(gc.Code) {
						found[gc.Code] |= fileBit
						break
					}
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}
			candidates[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint64)
	for _, found := range candidates {
		for code, mask := range found {
			merged[code] |= mask
		}
	}
	dups := make(map[string]struct{})
	for code, mask := range merged {
		if bits.OnesCount64(mask) >= 2 {
			dups[code] = struct{}{}
		}
	}
	return dups, nil
}

// streamManifest calls fn for every gift card of a gzip JSON-lines file.
// Codes are normalized before fn sees them.
func streamManifest(ctx context.Context, path string, fn func(gc giftcard.GiftCard) error) error {
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

	scanner := bufio.NewScanner(gz)
	for line := 1; scanner.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		gc, err := seed.DecodeGiftCard(jx.DecodeBytes(raw))
		if err != nil {
			return errors.Wrapf(err, "%s:%d", path, line)
		}
		gc.Code = giftcard.NormalizeCode(gc.Code)
		if gc.CreatedAt.IsZero() {
			gc.CreatedAt = time.Now().UTC()
		}
		if err := fn(gc); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
