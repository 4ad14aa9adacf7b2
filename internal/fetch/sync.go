package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rotation/market"
)

// BarSink is where fetched bars land; the SQLite store satisfies it.
type BarSink interface {
	UpsertBars(bars []market.Bar) error
}

// Syncer fans code downloads out over a few workers and funnels the
// results into a single writer goroutine, so the sink never sees
// concurrent writes.
type Syncer struct {
	Client  *Client
	Sink    BarSink
	Workers int
	log     zerolog.Logger
}

func NewSyncer(client *Client, sink BarSink, workers int, log zerolog.Logger) *Syncer {
	if workers < 1 {
		workers = 4
	}
	return &Syncer{
		Client:  client,
		Sink:    sink,
		Workers: workers,
		log:     log.With().Str("component", "sync").Logger(),
	}
}

// Sync downloads [start, end] bars for every code and stores them. A code
// that fails is logged and skipped; Sync only errors when the context is
// done or the sink rejects a write.
func (s *Syncer) Sync(ctx context.Context, codes []string, start, end time.Time) error {
	// Cancelling on return releases any worker still blocked on results
	// when the sink rejects a write mid-sync.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan string)
	results := make(chan []market.Bar)

	var wg sync.WaitGroup
	for w := 0; w < s.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for code := range jobs {
				bars, err := s.Client.DailyBars(ctx, code, start, end)
				if err != nil {
					s.log.Warn().Err(err).Str("code", code).Msg("fetch failed, skipped")
					continue
				}
				select {
				case results <- bars:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, code := range codes {
			select {
			case jobs <- code:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	total := 0
	for bars := range results {
		if err := s.Sink.UpsertBars(bars); err != nil {
			return err
		}
		total += len(bars)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Info().Int("codes", len(codes)).Int("bars", total).Msg("sync complete")
	return nil
}
