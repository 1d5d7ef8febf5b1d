package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/soulcompass-app/SoulCompass/internal/pkg/cache"
	"github.com/soulcompass-app/SoulCompass/internal/pkg/pricing"
)

// Chart-cache classification keys are written by the astrology service:
//
//	chartcache:{userID}:{slug} -> "none" | "partial:<coverage>" | "full"
//
// This side only reads them.
const chartCacheKey = "chartcache:%d:%s"

// ChartCacheReader reads the birth-chart cache classification signal. It
// satisfies pricing.ChartCacheSource.
type ChartCacheReader struct{}

// NewChartCacheReader returns the redis-backed chart cache reader.
func NewChartCacheReader() *ChartCacheReader {
	return &ChartCacheReader{}
}

// Status returns the cache classification for a user/service pair. A missing
// key means the collaborator has not classified this pair yet; that is a
// signal failure, not a "none" classification.
func (c *ChartCacheReader) Status(userID uint, slug string) (pricing.CacheStatus, error) {
	ctx := context.Background()
	rdb := cache.GetClient()

	val, err := rdb.Get(ctx, fmt.Sprintf(chartCacheKey, userID, slug)).Result()
	if err == redis.Nil {
		return pricing.CacheStatus{}, fmt.Errorf("no chart cache classification for user %d / %s", userID, slug)
	}
	if err != nil {
		return pricing.CacheStatus{}, err
	}

	return ParseCacheStatus(val)
}

// ParseCacheStatus decodes the collaborator's wire format.
func ParseCacheStatus(val string) (pricing.CacheStatus, error) {
	val = strings.TrimSpace(strings.ToLower(val))
	switch {
	case val == pricing.CacheLevelNone:
		return pricing.CacheStatus{Level: pricing.CacheLevelNone}, nil
	case val == pricing.CacheLevelFull:
		return pricing.CacheStatus{Level: pricing.CacheLevelFull, Coverage: 1}, nil
	case strings.HasPrefix(val, pricing.CacheLevelPartial):
		coverage := 0.0
		if _, rest, found := strings.Cut(val, ":"); found {
			c, err := strconv.ParseFloat(rest, 64)
			if err != nil {
				return pricing.CacheStatus{}, fmt.Errorf("malformed partial coverage %q", val)
			}
			coverage = c
		}
		return pricing.CacheStatus{Level: pricing.CacheLevelPartial, Coverage: coverage}, nil
	}
	return pricing.CacheStatus{}, fmt.Errorf("unknown chart cache classification %q", val)
}
