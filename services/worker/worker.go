package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"sjsage522/dealworker/internal/scraper"
	"sjsage522/dealworker/logger"
	"sjsage522/dealworker/services/cache"
	"sjsage522/dealworker/services/sink"
)

// BlockKey is set after a fatal run so the portal is left alone for a while
const BlockKey = "dealworker:block"

// ErrBlocked is returned by RunOnce while the block key is set
var ErrBlocked = errors.New("scraping is blocked after a failed run")

// Runner performs one scrape
type Runner interface {
	Run(ctx context.Context) *scraper.Result
}

// RunnerFactory builds the runner for a run starting at now.
// The search window is relative to the run time.
type RunnerFactory func(now time.Time) (Runner, error)

// Worker handles the scraping and delivery process
type Worker struct {
	ctx         context.Context
	newRunner   RunnerFactory
	sink        sink.Sink
	cache       cache.CacheService
	deduper     *cache.Deduper
	blockTime   time.Duration
	interval    time.Duration
	environment string
	log         *logger.Logger
}

// Options configures a worker
type Options struct {
	// Cache enables dedupe and run back-off; nil disables both
	Cache       cache.CacheService
	DedupeTTL   time.Duration
	BlockTime   time.Duration
	Interval    time.Duration
	Environment string
}

// NewWorker creates a new worker
func NewWorker(ctx context.Context, newRunner RunnerFactory, s sink.Sink, opts Options) *Worker {
	w := &Worker{
		ctx:         ctx,
		newRunner:   newRunner,
		sink:        s,
		cache:       opts.Cache,
		blockTime:   opts.BlockTime,
		interval:    opts.Interval,
		environment: opts.Environment,
		log:         logger.ForWorker(),
	}
	if opts.Cache != nil {
		w.deduper = cache.NewDeduper(opts.Cache, opts.DedupeTTL)
	}
	return w
}

// Start runs the pipeline every interval until the context is cancelled
func (w *Worker) Start() {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")
	for {
		start := time.Now()
		_, err := w.RunOnce(w.ctx)
		if err != nil && !errors.Is(err, ErrBlocked) && w.ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Run failed")
		}
		w.log.Info().Dur("elapsed", time.Since(start)).Msg("Run done")

		timer := time.NewTimer(w.interval)
		select {
		case <-w.ctx.Done():
			timer.Stop()
			w.log.Info().Msg("Worker stopped")
			return
		case <-timer.C:
		}
	}
}

// RunOnce performs one scrape and delivers the new records to the sink.
// A partial failure still delivers what was extracted.
func (w *Worker) RunOnce(ctx context.Context) (*scraper.Result, error) {
	if w.blocked() {
		w.log.Warn().Msg("Skipping run, portal is blocked after a failed run")
		return nil, ErrBlocked
	}

	runner, err := w.newRunner(time.Now())
	if err != nil {
		return nil, err
	}

	res := runner.Run(ctx)
	log := w.log.WithField("run_id", res.RunID)

	if res.Status == scraper.StatusCancelled || ctx.Err() != nil {
		err := res.Err
		if err == nil {
			err = ctx.Err()
		}
		log.Warn().Err(err).Msg("Run cancelled, nothing delivered")
		return res, err
	}

	if res.Status == scraper.StatusFatal {
		w.block(log)
		return res, res.Err
	}

	if res.NoCards() {
		log.Warn().Msg("No result cards found, the portal may have changed")
		if sw, ok := w.sink.(sink.SnapshotWriter); ok && res.Snapshot != "" {
			if err := sw.WriteSnapshot(ctx, res.Snapshot); err != nil {
				log.Warn().Err(err).Msg("Failed to store page snapshot")
			}
		}
	}

	uncategorized, categorized := res.Uncategorized, res.Categorized
	if w.deduper != nil {
		var droppedU, droppedC int
		uncategorized, droppedU = w.deduper.Filter(uncategorized)
		categorized, droppedC = w.deduper.Filter(categorized)
		if droppedU+droppedC > 0 {
			log.Info().Int("duplicates", droppedU+droppedC).Msg("Dropped records from a previous run")
		}
	}

	if err := w.sink.Store(ctx, uncategorized, categorized); err != nil {
		return res, err
	}

	if w.deduper != nil {
		if err := w.deduper.Mark(append(append([]scraper.Record{}, uncategorized...), categorized...)); err != nil {
			log.Warn().Err(err).Msg("Failed to remember delivered records")
		}
	}

	w.logSample(log, uncategorized, categorized)
	log.Info().
		Str("status", string(res.Status)).
		Int("uncategorized", len(uncategorized)).
		Int("categorized", len(categorized)).
		Msg("Records delivered")
	return res, nil
}

func (w *Worker) blocked() bool {
	if w.cache == nil {
		return false
	}
	_, err := w.cache.Get(BlockKey)
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		w.log.Warn().Err(err).Msg("Block lookup failed")
	}
	return err == nil
}

func (w *Worker) block(log *logger.Logger) {
	if w.cache == nil || w.blockTime <= 0 {
		return
	}
	seconds := strconv.Itoa(int(w.blockTime / time.Second))
	if err := w.cache.Set(BlockKey, []byte(seconds), w.blockTime); err != nil {
		log.Warn().Err(err).Msg("Failed to set block key")
		return
	}
	log.Warn().Dur("block_time", w.blockTime).Msg("Fatal run, blocking further runs")
}

// logSample logs the first record of each list outside production
func (w *Worker) logSample(log *logger.Logger, lists ...[]scraper.Record) {
	if w.environment == "production" {
		return
	}
	for _, records := range lists {
		if len(records) == 0 {
			continue
		}
		data, err := json.Marshal(records[0])
		if err != nil {
			log.Warn().Err(err).Msg("Failed to marshal sample record")
			continue
		}
		log.Debug().RawJSON("record", data).Msg("Sample record")
	}
}
