// Package games is the cache-backed read path over the game catalog.
package games

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gamestore/internal/cache"
	"gamestore/internal/catalog"
	"gamestore/pkg/logging/logging"
)

// Cache key prefixes. The durable tier keeps popularGames, gameStats and
// categories across restarts.
const (
	KindGames      = "games"
	KindPopular    = "popularGames"
	KindLatest     = "latestGames"
	KindGameDetail = "gameDetail"
	KindSearch     = "search"
	KindStats      = "gameStats"
	KindCategories = "categories"
)

const (
	gamesTTL      = 5 * time.Minute
	popularTTL    = 10 * time.Minute
	latestTTL     = 5 * time.Minute
	detailTTL     = 15 * time.Minute
	searchTTL     = 2 * time.Minute
	statsTTL      = 30 * time.Minute
	categoriesTTL = 30 * time.Minute
)

// Defaults applied when a caller passes a non-positive limit.
const (
	DefaultPageSize     = 12
	DefaultHomeLimit    = 5
	DefaultSearchLimit  = 20
	MaxPageSize         = 100
	preloadHomeSections = 5
)

// ErrInvalidID is returned for an empty game id.
var ErrInvalidID = errors.New("games: game id is required")

type Service struct {
	cache  cache.Cache
	client catalog.Client
	logger *zap.Logger

	retryAttempts int
	retryDelay    time.Duration

	views *throttle
}

type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRetry sets how often a game detail lookup is attempted and the base
// delay; attempt n waits delay*n before the next one.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.retryAttempts = attempts
		}
		if delay >= 0 {
			s.retryDelay = delay
		}
	}
}

// WithViewInterval sets the minimum gap between two counted views of the
// same game.
func WithViewInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.views.interval = d
		}
	}
}

// WithClock overrides the time source used by the view throttle.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.views.now = now
		}
	}
}

func NewService(c cache.Cache, client catalog.Client, opts ...Option) *Service {
	s := &Service{
		cache:         c,
		client:        client,
		logger:        zap.NewNop(),
		retryAttempts: 3,
		retryDelay:    time.Second,
		views:         newThrottle(time.Minute),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("games")
	return s
}

// Games returns one page of published games, optionally filtered by
// category.
func (s *Service) Games(ctx context.Context, category string, page, limit int) (*catalog.GamePage, error) {
	page = max(page, 1)
	limit = clampLimit(limit, DefaultPageSize)

	key := cache.MakeKey(KindGames, map[string]any{
		"category": category,
		"page":     page,
		"limit":    limit,
	})
	return cache.FetchOrPopulate(ctx, s.cache, key, gamesTTL, func(ctx context.Context) (*catalog.GamePage, error) {
		return s.client.ListGames(ctx, catalog.ListQuery{Category: category, Page: page, Limit: limit})
	})
}

func (s *Service) PopularGames(ctx context.Context, limit int) ([]catalog.Game, error) {
	limit = clampLimit(limit, DefaultHomeLimit)
	key := cache.MakeKey(KindPopular, map[string]any{"limit": limit})
	return cache.FetchOrPopulate(ctx, s.cache, key, popularTTL, func(ctx context.Context) ([]catalog.Game, error) {
		return s.client.PopularGames(ctx, limit)
	})
}

func (s *Service) LatestGames(ctx context.Context, limit int) ([]catalog.Game, error) {
	limit = clampLimit(limit, DefaultHomeLimit)
	key := cache.MakeKey(KindLatest, map[string]any{"limit": limit})
	return cache.FetchOrPopulate(ctx, s.cache, key, latestTTL, func(ctx context.Context) ([]catalog.Game, error) {
		return s.client.LatestGames(ctx, limit)
	})
}

// GameByID returns a published game with every column. Backend failures
// other than catalog.ErrNotFound are retried with a linearly growing delay.
func (s *Service) GameByID(ctx context.Context, id string) (*catalog.Game, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	key := cache.MakeKey(KindGameDetail, map[string]any{"id": id})
	return cache.FetchOrPopulate(ctx, s.cache, key, detailTTL, func(ctx context.Context) (*catalog.Game, error) {
		var game *catalog.Game
		err := s.withRetry(ctx, "game_by_id", func(ctx context.Context) error {
			g, err := s.client.GameByID(ctx, id)
			if err != nil {
				return err
			}
			game = g
			return nil
		})
		return game, err
	})
}

// Search matches term against titles and descriptions.
func (s *Service) Search(ctx context.Context, term string, limit int) ([]catalog.Game, error) {
	limit = clampLimit(limit, DefaultSearchLimit)
	key := cache.MakeKey(KindSearch, map[string]any{
		"searchTerm": term,
		"limit":      limit,
	})
	return cache.FetchOrPopulate(ctx, s.cache, key, searchTTL, func(ctx context.Context) ([]catalog.Game, error) {
		return s.client.SearchGames(ctx, term, limit)
	})
}

// Stats returns catalog totals over all games, drafts included.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return cache.FetchOrPopulate(ctx, s.cache, KindStats, statsTTL, func(ctx context.Context) (*Stats, error) {
		rows, err := s.client.GameStatRows(ctx)
		if err != nil {
			return nil, err
		}
		return computeStats(rows), nil
	})
}

// Categories lists every known category in lang with its game count.
func (s *Service) Categories(ctx context.Context, lang string) ([]Category, error) {
	lang = NormalizeLang(lang)
	key := cache.MakeKey(KindCategories, map[string]any{"lang": lang})
	return cache.FetchOrPopulate(ctx, s.cache, key, categoriesTTL, func(ctx context.Context) ([]Category, error) {
		stats, err := s.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return buildCategories(lang, stats.ByCategory), nil
	})
}

// SitemapGames lists every published game, most popular first. It is not
// cached; callers cache the rendered document.
func (s *Service) SitemapGames(ctx context.Context) ([]catalog.Game, error) {
	return s.client.SitemapGames(ctx)
}

// Preload warms the home page sections. Every loader runs to completion;
// the first failure is returned after all of them have finished.
func (s *Service) Preload(ctx context.Context) error {
	start := time.Now()

	var g errgroup.Group
	g.Go(func() error {
		if _, err := s.PopularGames(ctx, preloadHomeSections); err != nil {
			return fmt.Errorf("preload popular games: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if _, err := s.LatestGames(ctx, preloadHomeSections); err != nil {
			return fmt.Errorf("preload latest games: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if _, err := s.Stats(ctx); err != nil {
			return fmt.Errorf("preload stats: %w", err)
		}
		return nil
	})

	err := g.Wait()
	if err != nil {
		s.logger.Warn("preload incomplete", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return err
	}
	s.logger.Info("game data preloaded", zap.Duration("duration", time.Since(start)))
	return nil
}

// ClearCache drops every cached entry of one kind, or everything when kind
// is empty.
func (s *Service) ClearCache(ctx context.Context, kind string) {
	s.cache.Clear(ctx, kind)
}

// CacheStats exposes the underlying cache counters.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// IncrementPopularity counts a view of game id. Views of the same game are
// counted at most once per interval; backend failures are logged and
// dropped. It reports whether the view was recorded.
func (s *Service) IncrementPopularity(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	if !s.views.allow(id) {
		return false
	}

	err := s.withRetry(ctx, "increment_popularity", func(ctx context.Context) error {
		return s.client.IncrementPopularity(ctx, id)
	})
	if err != nil {
		logging.L(ctx).Error("increment popularity failed",
			zap.String("game_id", id),
			zap.Error(err),
		)
		return false
	}

	s.ClearCache(ctx, KindGameDetail)
	s.ClearCache(ctx, KindPopular)
	return true
}

// withRetry runs fn up to retryAttempts times. catalog.ErrNotFound and
// context errors end the loop immediately.
func (s *Service) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for i := 0; i < s.retryAttempts; i++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, catalog.ErrNotFound) || ctx.Err() != nil {
			return err
		}
		lastErr = err

		s.logger.Warn("attempt failed",
			zap.String("operation", op),
			zap.Int("attempt", i+1),
			zap.Error(err),
		)

		if i == s.retryAttempts-1 {
			break
		}

		timer := time.NewTimer(s.retryDelay * time.Duration(i+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, s.retryAttempts, lastErr)
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, MaxPageSize)
}
