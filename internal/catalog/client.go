package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"gamestore/internal/metrics"
)

const (
	gamesPath = "/games"
	rpcPath   = "/rpc/increment_game_popularity"

	maxErrorBody = 64 * 1024
)

type client struct {
	cfg        Config
	base       string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a catalog client for a Supabase project.
func NewClient(cfg Config, logger *zap.Logger) (Client, error) {
	cfg = cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("catalog: invalid config: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: newTransport()}
	}

	return &client{
		cfg:        cfg,
		base:       cfg.restBase(),
		httpClient: httpClient,
		logger:     logger.Named("catalog"),
	}, nil
}

// Close drops idle backend connections.
func (c *client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// listColumns is the projection used by every list endpoint.
const listColumns = "id,title,title_en,description,description_en,preview_image," +
	"preview_image_thumb,category,created_at,popularity_score,iframe_url"

func (c *client) ListGames(ctx context.Context, q ListQuery) (*GamePage, error) {
	page := max(q.Page, 1)
	limit := max(q.Limit, 1)

	params := url.Values{}
	params.Set("select", listColumns)
	params.Set("published", "eq.true")
	if q.Category != "" {
		params.Set("category", "eq."+q.Category)
	}
	params.Set("order", "created_at.desc")
	params.Set("offset", strconv.Itoa((page-1)*limit))
	params.Set("limit", strconv.Itoa(limit))

	var games []Game
	hdr, err := c.get(ctx, "list_games", gamesPath, params, http.Header{"Prefer": {"count=exact"}}, &games)
	if err != nil {
		return nil, err
	}

	count, ok := parseContentRangeTotal(hdr.Get("Content-Range"))
	if !ok {
		count = len(games)
	}
	if games == nil {
		games = []Game{}
	}

	return &GamePage{Data: games, Count: count}, nil
}

func (c *client) PopularGames(ctx context.Context, limit int) ([]Game, error) {
	params := url.Values{}
	params.Set("select", listColumns)
	params.Set("published", "eq.true")
	params.Set("order", "popularity_score.desc,created_at.desc")
	params.Set("limit", strconv.Itoa(max(limit, 1)))

	return c.listGames(ctx, "popular_games", params)
}

func (c *client) LatestGames(ctx context.Context, limit int) ([]Game, error) {
	params := url.Values{}
	params.Set("select", listColumns)
	params.Set("published", "eq.true")
	params.Set("order", "created_at.desc")
	params.Set("limit", strconv.Itoa(max(limit, 1)))

	return c.listGames(ctx, "latest_games", params)
}

// GameByID returns one published game with all columns, or ErrNotFound.
func (c *client) GameByID(ctx context.Context, id string) (*Game, error) {
	if id == "" {
		return nil, fmt.Errorf("catalog: game id is required")
	}

	params := url.Values{}
	params.Set("select", "*")
	params.Set("id", "eq."+id)
	params.Set("published", "eq.true")

	var game Game
	_, err := c.get(ctx, "game_by_id", gamesPath, params,
		http.Header{"Accept": {"application/vnd.pgrst.object+json"}}, &game)
	if err != nil {
		return nil, err
	}
	if game.ID == "" {
		return nil, ErrNotFound
	}
	return &game, nil
}

// SearchGames matches term against the titles and descriptions in both
// languages, most popular first.
func (c *client) SearchGames(ctx context.Context, term string, limit int) ([]Game, error) {
	term = sanitizeFilterTerm(term)
	if term == "" {
		return []Game{}, nil
	}

	pattern := "*" + term + "*"
	filters := make([]string, 0, 4)
	for _, col := range []string{"title", "title_en", "description", "description_en"} {
		filters = append(filters, col+".ilike."+pattern)
	}

	params := url.Values{}
	params.Set("select", strings.TrimSuffix(listColumns, ",iframe_url"))
	params.Set("published", "eq.true")
	params.Set("or", "("+strings.Join(filters, ",")+")")
	params.Set("order", "popularity_score.desc")
	params.Set("limit", strconv.Itoa(max(limit, 1)))

	return c.listGames(ctx, "search_games", params)
}

func (c *client) GameStatRows(ctx context.Context) ([]StatRow, error) {
	params := url.Values{}
	params.Set("select", "category,published,popularity_score")

	var rows []StatRow
	if _, err := c.get(ctx, "game_stats", gamesPath, params, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *client) SitemapGames(ctx context.Context) ([]Game, error) {
	params := url.Values{}
	params.Set("select", "id,created_at,updated_at,category,popularity_score")
	params.Set("published", "eq.true")
	params.Set("order", "popularity_score.desc,created_at.desc")

	return c.listGames(ctx, "sitemap_games", params)
}

// IncrementPopularity bumps a game's popularity score atomically on the
// backend.
func (c *client) IncrementPopularity(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("catalog: game id is required")
	}

	body, err := json.Marshal(map[string]string{"game_id": id})
	if err != nil {
		return fmt.Errorf("catalog: marshal rpc body: %w", err)
	}

	_, err = c.do(ctx, "increment_popularity", http.MethodPost, rpcPath, nil, nil, body, nil)
	return err
}

func (c *client) listGames(ctx context.Context, op string, params url.Values) ([]Game, error) {
	var games []Game
	if _, err := c.get(ctx, op, gamesPath, params, nil, &games); err != nil {
		return nil, err
	}
	if games == nil {
		games = []Game{}
	}
	return games, nil
}

func (c *client) get(ctx context.Context, op, path string, params url.Values, hdr http.Header, out any) (http.Header, error) {
	return c.do(ctx, op, http.MethodGet, path, params, hdr, nil, out)
}

// do performs one logical backend call (with retries) and decodes a 2xx
// JSON body into out when out is non-nil.
func (c *client) do(
	parentCtx context.Context,
	op, method, path string,
	params url.Values,
	hdr http.Header,
	body []byte,
	out any,
) (http.Header, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.Timeout)
	defer cancel()

	u := c.base + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	doOnce := func(ctx context.Context) (*http.Response, error) {
		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rdr)
		if err != nil {
			return nil, fmt.Errorf("catalog: build HTTP request: %w", err)
		}
		c.cfg.authorize(req)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, vs := range hdr {
			req.Header[http.CanonicalHeaderKey(k)] = vs
		}
		return c.httpClient.Do(req)
	}

	resp, err := c.doWithRetry(ctx, op, doOnce)
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(op, "error").Inc()
		c.logger.Error("catalog request failed",
			zap.String("operation", op),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeAPIError(resp)
		metrics.BackendRequestsTotal.WithLabelValues(op, "error").Inc()
		if apiErr.Code != codeNoRows {
			c.logger.Error("catalog upstream error",
				zap.String("operation", op),
				zap.Int("status", apiErr.Status),
				zap.String("code", apiErr.Code),
				zap.String("message", apiErr.Message),
			)
		}
		return nil, apiErr
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			metrics.BackendRequestsTotal.WithLabelValues(op, "error").Inc()
			return nil, fmt.Errorf("catalog: decode %s response: %w", op, err)
		}
	}

	metrics.BackendRequestsTotal.WithLabelValues(op, "ok").Inc()
	c.logger.Debug("catalog request completed",
		zap.String("operation", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	return resp.Header, nil
}

func decodeAPIError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{}
	if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = truncate(strings.TrimSpace(string(raw)), 200)
	}
	apiErr.Status = resp.StatusCode
	return apiErr
}

// parseContentRangeTotal extracts the total from "0-11/123" or "*/0".
func parseContentRangeTotal(v string) (int, bool) {
	i := strings.LastIndexByte(v, '/')
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(v[i+1:])
	if err != nil {
		return 0, false
	}
	return n, true
}

// sanitizeFilterTerm drops characters that carry meaning inside a
// PostgREST logical filter.
func sanitizeFilterTerm(term string) string {
	term = strings.Map(func(r rune) rune {
		switch r {
		case ',', '(', ')', '*', '"', '\\':
			return -1
		}
		return r
	}, term)
	return strings.TrimSpace(term)
}

// truncate limits string length for logging
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
