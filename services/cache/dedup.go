package cache

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"sjsage522/dealworker/internal/scraper"
	"sjsage522/dealworker/logger"
)

// recordNamespace seeds the name-based record fingerprints
var recordNamespace = uuid.MustParse("5b1f5c7e-3c1a-4f4e-9d7a-2f0c8a6d41e2")

// Fingerprint identifies a transaction across runs.
// The portal has no stable deal id, so the identifying fields are hashed.
func Fingerprint(r scraper.Record) string {
	key := strings.Join([]string{r.District, r.Category, r.Date, r.Price, r.Area}, "|")
	return "deal:" + uuid.NewSHA1(recordNamespace, []byte(key)).String()
}

// Deduper drops records that were already delivered within the TTL.
// Consecutive yesterday..today windows overlap by one day.
type Deduper struct {
	cache CacheService
	ttl   time.Duration
	log   *logger.Logger
}

// NewDeduper creates a deduper backed by c
func NewDeduper(c CacheService, ttl time.Duration) *Deduper {
	return &Deduper{
		cache: c,
		ttl:   ttl,
		log:   logger.ForCache(),
	}
}

// Filter returns the records not seen before and the number of dropped duplicates.
// A cache failure lets the record through.
func (d *Deduper) Filter(records []scraper.Record) ([]scraper.Record, int) {
	var fresh []scraper.Record
	dropped := 0
	for _, r := range records {
		_, err := d.cache.Get(Fingerprint(r))
		switch {
		case err == nil:
			dropped++
			continue
		case !errors.Is(err, ErrMiss):
			d.log.Warn().Err(err).Str("district", r.District).Msg("Dedupe lookup failed")
		}
		fresh = append(fresh, r)
	}
	return fresh, dropped
}

// Mark remembers records as delivered
func (d *Deduper) Mark(records []scraper.Record) error {
	var errs []error
	for _, r := range records {
		if err := d.cache.Set(Fingerprint(r), []byte(r.Date), d.ttl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
