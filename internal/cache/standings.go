package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ojudge/internal/model"
)

const (
	standingsGenKey = "standings:gen"
	standingsTTL    = 5 * time.Minute
)

// StandingsCache memoizes computed standings per scope and rule. Every
// job transition bumps a generation counter, so stale entries are never
// served and simply age out. Cache failures are swallowed: a broken
// cache means recomputing, never a wrong answer.
type StandingsCache struct {
	cache Cache
}

// NewStandingsCache wraps a Cache. A nil cache degrades to Noop.
func NewStandingsCache(c Cache) *StandingsCache {
	if c == nil {
		c = Noop{}
	}
	return &StandingsCache{cache: c}
}

// Get returns the cached rows for the scope and rule, or found=false.
func (s *StandingsCache) Get(ctx context.Context, scope int64, rule model.RankingRule) ([]model.RankRow, bool) {
	key, err := s.key(ctx, scope, rule)
	if err != nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil || raw == "" {
		return nil, false
	}
	var rows []model.RankRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, false
	}
	return rows, true
}

// Put stores computed rows for the scope and rule.
func (s *StandingsCache) Put(ctx context.Context, scope int64, rule model.RankingRule, rows []model.RankRow) {
	key, err := s.key(ctx, scope, rule)
	if err != nil {
		return
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, key, string(raw), standingsTTL)
}

// Invalidate bumps the generation, detaching every cached entry.
func (s *StandingsCache) Invalidate(ctx context.Context) {
	_, _ = s.cache.Incr(ctx, standingsGenKey)
}

func (s *StandingsCache) key(ctx context.Context, scope int64, rule model.RankingRule) (string, error) {
	gen, err := s.cache.Get(ctx, standingsGenKey)
	if err != nil {
		return "", err
	}
	if gen == "" {
		gen = "0"
	}
	return fmt.Sprintf("standings:%s:%d:%s:%s", gen, scope, rule.ScoringRule, rule.TieBreaker), nil
}
