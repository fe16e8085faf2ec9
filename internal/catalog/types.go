package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"time"
)

// GameID is a game's primary key. The backend may send it as a JSON
// number or string; it is always carried as a string.
type GameID string

func (id *GameID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = GameID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = GameID(n.String())
	return nil
}

type Game struct {
	ID                GameID     `json:"id"`
	Title             string     `json:"title"`
	TitleEN           string     `json:"title_en,omitempty"`
	Description       string     `json:"description,omitempty"`
	DescriptionEN     string     `json:"description_en,omitempty"`
	Instructions      string     `json:"instructions,omitempty"`
	InstructionsEN    string     `json:"instructions_en,omitempty"`
	PreviewImage      string     `json:"preview_image,omitempty"`
	PreviewImageThumb string     `json:"preview_image_thumb,omitempty"`
	Category          string     `json:"category,omitempty"`
	IframeURL         string     `json:"iframe_url,omitempty"`
	PopularityScore   int64      `json:"popularity_score"`
	Published         bool       `json:"published"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// ListQuery selects one page of published games.
type ListQuery struct {
	Category string
	Page     int // 1-based
	Limit    int
}

type GamePage struct {
	Data  []Game `json:"data"`
	Count int    `json:"count"`
}

// StatRow is the projection used to compute catalog statistics.
type StatRow struct {
	Category        string `json:"category"`
	Published       bool   `json:"published"`
	PopularityScore int64  `json:"popularity_score"`
}

type Client interface {
	ListGames(ctx context.Context, q ListQuery) (*GamePage, error)
	PopularGames(ctx context.Context, limit int) ([]Game, error)
	LatestGames(ctx context.Context, limit int) ([]Game, error)
	GameByID(ctx context.Context, id string) (*Game, error)
	SearchGames(ctx context.Context, term string, limit int) ([]Game, error)
	GameStatRows(ctx context.Context) ([]StatRow, error)
	SitemapGames(ctx context.Context) ([]Game, error)
	IncrementPopularity(ctx context.Context, id string) error
}
