// Package catalogtest provides an in-memory catalog.Client for tests.
package catalogtest

import (
	"context"
	"slices"
	"strings"
	"sync"

	"gamestore/internal/catalog"
)

// Fake serves games from memory and counts calls per method. Set Err to
// make every call fail; set ErrN to fail only the first N calls.
type Fake struct {
	mu    sync.Mutex
	games []catalog.Game
	calls map[string]int

	Err  error
	ErrN int
}

func NewFake(games ...catalog.Game) *Fake {
	return &Fake{
		games: games,
		calls: make(map[string]int),
	}
}

// Calls returns how often method was invoked.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// SetErr replaces the error returned by every subsequent call.
func (f *Fake) SetErr(err error) {
	f.mu.Lock()
	f.Err = err
	f.ErrN = 0
	f.mu.Unlock()
}

func (f *Fake) enter(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	if f.Err == nil {
		return nil
	}
	if f.ErrN > 0 {
		f.ErrN--
		if f.ErrN == 0 {
			err := f.Err
			f.Err = nil
			return err
		}
	}
	return f.Err
}

func (f *Fake) published() []catalog.Game {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]catalog.Game, 0, len(f.games))
	for _, g := range f.games {
		if g.Published {
			out = append(out, g)
		}
	}
	return out
}

func byCreatedDesc(a, b catalog.Game) int {
	return b.CreatedAt.Compare(a.CreatedAt)
}

func byPopularityDesc(a, b catalog.Game) int {
	switch {
	case a.PopularityScore > b.PopularityScore:
		return -1
	case a.PopularityScore < b.PopularityScore:
		return 1
	}
	return byCreatedDesc(a, b)
}

func head(games []catalog.Game, n int) []catalog.Game {
	if n < len(games) {
		return games[:n]
	}
	return games
}

func (f *Fake) ListGames(_ context.Context, q catalog.ListQuery) (*catalog.GamePage, error) {
	if err := f.enter("ListGames"); err != nil {
		return nil, err
	}
	var games []catalog.Game
	for _, g := range f.published() {
		if q.Category == "" || g.Category == q.Category {
			games = append(games, g)
		}
	}
	slices.SortStableFunc(games, byCreatedDesc)

	page, limit := max(q.Page, 1), max(q.Limit, 1)
	from := min((page-1)*limit, len(games))
	to := min(from+limit, len(games))

	data := append([]catalog.Game{}, games[from:to]...)
	return &catalog.GamePage{Data: data, Count: len(games)}, nil
}

func (f *Fake) PopularGames(_ context.Context, limit int) ([]catalog.Game, error) {
	if err := f.enter("PopularGames"); err != nil {
		return nil, err
	}
	games := f.published()
	slices.SortStableFunc(games, byPopularityDesc)
	return head(games, limit), nil
}

func (f *Fake) LatestGames(_ context.Context, limit int) ([]catalog.Game, error) {
	if err := f.enter("LatestGames"); err != nil {
		return nil, err
	}
	games := f.published()
	slices.SortStableFunc(games, byCreatedDesc)
	return head(games, limit), nil
}

func (f *Fake) GameByID(_ context.Context, id string) (*catalog.Game, error) {
	if err := f.enter("GameByID"); err != nil {
		return nil, err
	}
	for _, g := range f.published() {
		if string(g.ID) == id {
			return &g, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (f *Fake) SearchGames(_ context.Context, term string, limit int) ([]catalog.Game, error) {
	if err := f.enter("SearchGames"); err != nil {
		return nil, err
	}
	term = strings.ToLower(term)
	var out []catalog.Game
	for _, g := range f.published() {
		for _, s := range []string{g.Title, g.TitleEN, g.Description, g.DescriptionEN} {
			if strings.Contains(strings.ToLower(s), term) {
				out = append(out, g)
				break
			}
		}
	}
	slices.SortStableFunc(out, byPopularityDesc)
	if out == nil {
		out = []catalog.Game{}
	}
	return head(out, limit), nil
}

func (f *Fake) GameStatRows(_ context.Context) ([]catalog.StatRow, error) {
	if err := f.enter("GameStatRows"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := make([]catalog.StatRow, 0, len(f.games))
	for _, g := range f.games {
		rows = append(rows, catalog.StatRow{
			Category:        g.Category,
			Published:       g.Published,
			PopularityScore: g.PopularityScore,
		})
	}
	return rows, nil
}

func (f *Fake) SitemapGames(_ context.Context) ([]catalog.Game, error) {
	if err := f.enter("SitemapGames"); err != nil {
		return nil, err
	}
	games := f.published()
	slices.SortStableFunc(games, byPopularityDesc)
	return games, nil
}

func (f *Fake) IncrementPopularity(_ context.Context, id string) error {
	if err := f.enter("IncrementPopularity"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.games {
		if string(f.games[i].ID) == id {
			f.games[i].PopularityScore++
			return nil
		}
	}
	return nil
}

var _ catalog.Client = (*Fake)(nil)
