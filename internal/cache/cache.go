// Package cache keeps report metadata and upload fingerprints in Redis.
// Every method degrades to a miss when Redis is unavailable; the database
// stays the source of truth.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/searchterm-optimizer/internal/analysis"
	"github.com/ignite/searchterm-optimizer/internal/domain"
	"github.com/ignite/searchterm-optimizer/internal/pkg/logger"
)

const (
	reportPrefix      = "searchterm:report:"
	fingerprintPrefix = "searchterm:fp:"
)

// SummaryCache caches report metadata and maps upload fingerprints to the
// report they produced. A nil *SummaryCache is a cache that always misses.
type SummaryCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

func New(rdb *redis.Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SummaryCache{rdb: rdb, ttl: ttl, log: logger.With("component", "cache")}
}

func reportKey(orgID, id string) string {
	return fmt.Sprintf("%s%s:%s", reportPrefix, orgID, id)
}

func fingerprintKey(orgID, fp string) string {
	return fmt.Sprintf("%s%s:%s", fingerprintPrefix, orgID, fp)
}

// Get returns the cached report, if any.
func (c *SummaryCache) Get(ctx context.Context, orgID, id string) (*domain.Report, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, reportKey(orgID, id)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.Warn("cache get failed", "report_id", id, "error", err)
		return nil, false
	}
	var r domain.Report
	if err := json.Unmarshal(data, &r); err != nil {
		c.log.Warn("cache entry corrupt", "report_id", id, "error", err)
		c.rdb.Del(ctx, reportKey(orgID, id))
		return nil, false
	}
	return &r, true
}

// Set stores r under its organization and id.
func (c *SummaryCache) Set(ctx context.Context, r *domain.Report) {
	if c == nil || c.rdb == nil || r == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		c.log.Warn("cache encode failed", "report_id", r.ID, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, reportKey(r.OrganizationID, r.ID), data, c.ttl).Err(); err != nil {
		c.log.Warn("cache set failed", "report_id", r.ID, "error", err)
	}
}

// Delete drops a cached report.
func (c *SummaryCache) Delete(ctx context.Context, orgID, id string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, reportKey(orgID, id)).Err(); err != nil {
		c.log.Warn("cache delete failed", "report_id", id, "error", err)
	}
}

// LookupFingerprint returns the report id a previous identical upload
// produced.
func (c *SummaryCache) LookupFingerprint(ctx context.Context, orgID, fp string) (string, bool) {
	if c == nil || c.rdb == nil || fp == "" {
		return "", false
	}
	id, err := c.rdb.Get(ctx, fingerprintKey(orgID, fp)).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("fingerprint lookup failed", "error", err)
		}
		return "", false
	}
	return id, true
}

// RememberFingerprint records that fp produced reportID. An existing entry
// is kept so concurrent identical uploads agree on the first report.
func (c *SummaryCache) RememberFingerprint(ctx context.Context, orgID, fp, reportID string) {
	if c == nil || c.rdb == nil || fp == "" {
		return
	}
	if err := c.rdb.SetNX(ctx, fingerprintKey(orgID, fp), reportID, c.ttl).Err(); err != nil {
		c.log.Warn("fingerprint store failed", "report_id", reportID, "error", err)
	}
}

// ForgetFingerprint removes fp, used when its report is deleted or
// reanalyzed with different params.
func (c *SummaryCache) ForgetFingerprint(ctx context.Context, orgID, fp string) {
	if c == nil || c.rdb == nil || fp == "" {
		return
	}
	c.rdb.Del(ctx, fingerprintKey(orgID, fp))
}

// Fingerprint hashes a batch and the params it is analyzed with. Two
// uploads with the same rows in the same order and the same params get the
// same fingerprint.
func Fingerprint(records []domain.SearchTermRecord, p analysis.Params) string {
	h := sha256.New()
	for _, v := range []float64{p.TargetAcosIndex, p.ExactNegativeLv, p.PhraseNegativeLv, p.Reliability, p.IncreaseBidLv, p.DecreaseBidLv} {
		writeFloat(h, v)
	}
	for _, r := range records {
		writeString(h, r.SearchTerm)
		writeString(h, r.Campaign)
		writeString(h, r.AdGroup)
		for _, v := range []float64{r.Impressions, r.Clicks, r.Spend, r.Sales, r.Orders} {
			writeFloat(h, v)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeFloat(h hash.Hash, v float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	h.Write(buf[:])
}

// writeString length-prefixes s so adjacent fields cannot run together.
func writeString(h hash.Hash, s string) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(len(s)))
	h.Write(buf[:])
	h.Write([]byte(s))
}
