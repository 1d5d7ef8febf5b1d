package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/soulcompass-app/SoulCompass/app/models"
	"github.com/soulcompass-app/SoulCompass/internal/pkg/cache"
	"github.com/soulcompass-app/SoulCompass/internal/pkg/database"
)

const (
	// Hour buckets back the rolling demand window.
	hourBucketKey = "telemetry:sessions:%s:%s" // slug, yyyy-mm-dd-HH
	hourBucketTTL = 48 * time.Hour

	// Pending hash drains into daily_service_stats on each flush.
	pendingDailyKey = "telemetry:sessions:pending"

	// Per-slug baseline written by the scheduler's recompute job.
	baselineKey = "telemetry:baseline:%s" // value: expected sessions per hour
	baselineTTL = 6 * time.Hour

	baselineDays = 14
)

// Recorder writes session-start telemetry and serves it back to the demand
// analyzer. It satisfies pricing.TelemetrySource and booking.SessionObserver.
type Recorder struct{}

// NewRecorder returns the redis-backed telemetry recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// SessionStarted increments the hour bucket and the pending daily hash for a
// service. Telemetry failures are logged and dropped; they never affect the
// booking that triggered them.
func (r *Recorder) SessionStarted(slug string) {
	ctx := context.Background()
	rdb := cache.GetClient()

	bucket := fmt.Sprintf(hourBucketKey, slug, time.Now().UTC().Format("2006-01-02-15"))
	pipe := rdb.Pipeline()
	pipe.Incr(ctx, bucket)
	pipe.Expire(ctx, bucket, hourBucketTTL)
	pipe.HIncrBy(ctx, pendingDailyKey, slug, 1)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warnf("[Telemetry] could not record session start for %s: %v", slug, err)
	}
}

// RecentSessionCount sums the hour buckets inside the trailing window.
func (r *Recorder) RecentSessionCount(slug string, window time.Duration) (int64, error) {
	ctx := context.Background()
	rdb := cache.GetClient()

	hours := int(window.Hours())
	if hours < 1 {
		hours = 1
	}
	keys := make([]string, 0, hours)
	now := time.Now().UTC()
	for i := 0; i < hours; i++ {
		keys = append(keys, fmt.Sprintf(hourBucketKey, slug, now.Add(-time.Duration(i)*time.Hour).Format("2006-01-02-15")))
	}

	vals, err := rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, v := range vals {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			if n, perr := strconv.ParseInt(s, 10, 64); perr == nil {
				total += n
			}
		}
	}
	return total, nil
}

// BaselineSessionCount scales the per-hour baseline to the window length.
// A missing baseline key reads as zero: cold start.
func (r *Recorder) BaselineSessionCount(slug string, window time.Duration) (float64, error) {
	ctx := context.Background()
	rdb := cache.GetClient()

	val, err := rdb.Get(ctx, fmt.Sprintf(baselineKey, slug)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	perHour, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed baseline for %s: %w", slug, err)
	}
	return perHour * window.Hours(), nil
}

// FlushPending drains the pending hash into daily_service_stats. Uses RENAME
// to a temp key so in-flight increments are never lost.
func FlushPending() error {
	ctx := context.Background()
	rdb := cache.GetClient()

	tmpKey := fmt.Sprintf("%s:tmp:%d", pendingDailyKey, time.Now().UnixNano())
	if err := rdb.Do(ctx, "RENAME", pendingDailyKey, tmpKey).Err(); err != nil {
		// Nothing pending.
		if strings.Contains(strings.ToLower(err.Error()), "no such key") || err == redis.Nil {
			return nil
		}
		return err
	}
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	db := database.GetDB()
	today := time.Now().UTC().Truncate(24 * time.Hour)
	for slug, raw := range data {
		count, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil || count == 0 {
			continue
		}
		stat := &models.DailyServiceStat{
			ServiceTypeSlug: slug,
			Date:            today,
			SessionCount:    count,
		}
		err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "service_type_slug"}, {Name: "date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"session_count": gorm.Expr("session_count + ?", count),
			}),
		}).Create(stat).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// RecomputeBaselines derives per-hour baselines from the trailing daily stats
// and writes them back to redis for the demand analyzer.
func RecomputeBaselines() error {
	ctx := context.Background()
	rdb := cache.GetClient()
	db := database.GetDB()

	since := time.Now().UTC().AddDate(0, 0, -baselineDays)
	var stats []models.DailyServiceStat
	if err := db.Where("date >= ?", since).Find(&stats).Error; err != nil {
		return err
	}

	totals := make(map[string]int64)
	days := make(map[string]map[string]struct{})
	for _, s := range stats {
		totals[s.ServiceTypeSlug] += s.SessionCount
		if days[s.ServiceTypeSlug] == nil {
			days[s.ServiceTypeSlug] = make(map[string]struct{})
		}
		days[s.ServiceTypeSlug][s.Date.Format("2006-01-02")] = struct{}{}
	}

	for slug, total := range totals {
		n := len(days[slug])
		if n == 0 {
			continue
		}
		perHour := float64(total) / float64(n) / 24.0
		key := fmt.Sprintf(baselineKey, slug)
		if err := rdb.Set(ctx, key, strconv.FormatFloat(perHour, 'f', 6, 64), baselineTTL).Err(); err != nil {
			return err
		}
	}
	return nil
}
