package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"gamestore/internal/catalog"
	"gamestore/internal/games"
	"gamestore/pkg/logging/logging"
)

// GamesHandler serves the public catalog endpoints.
type GamesHandler struct {
	Games *games.Service
}

func NewGamesHandler(svc *games.Service) *GamesHandler {
	return &GamesHandler{Games: svc}
}

type gameList struct {
	Games []catalog.Game `json:"games"`
	Count int            `json:"count"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// List handles GET /api/games?category=&page=&limit=.
func (h *GamesHandler) List(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category != "" && !games.IsKnownCategory(category) {
		writeError(w, http.StatusBadRequest, "Invalid game category")
		return
	}

	page := intParam(r, "page", 1)
	limit := min(intParam(r, "limit", games.DefaultPageSize), games.MaxPageSize)

	res, err := h.Games.Games(r.Context(), category, page, limit)
	if err != nil {
		h.backendError(w, r, "list games", err)
		return
	}

	writeData(w, gameList{Games: res.Data, Count: res.Count, Page: page, Limit: limit})
}

// Popular handles GET /api/games/popular?limit=.
func (h *GamesHandler) Popular(w http.ResponseWriter, r *http.Request) {
	res, err := h.Games.PopularGames(r.Context(), intParam(r, "limit", games.DefaultHomeLimit))
	if err != nil {
		h.backendError(w, r, "popular games", err)
		return
	}
	writeData(w, res)
}

// Latest handles GET /api/games/latest?limit=.
func (h *GamesHandler) Latest(w http.ResponseWriter, r *http.Request) {
	res, err := h.Games.LatestGames(r.Context(), intParam(r, "limit", games.DefaultHomeLimit))
	if err != nil {
		h.backendError(w, r, "latest games", err)
		return
	}
	writeData(w, res)
}

// Search handles GET /api/games/search?q=&limit=.
func (h *GamesHandler) Search(w http.ResponseWriter, r *http.Request) {
	term := games.Sanitize(r.URL.Query().Get("q"))
	if term == "" {
		writeError(w, http.StatusBadRequest, "Search term is required")
		return
	}

	res, err := h.Games.Search(r.Context(), term, intParam(r, "limit", games.DefaultSearchLimit))
	if err != nil {
		h.backendError(w, r, "search games", err)
		return
	}
	writeData(w, res)
}

// Stats handles GET /api/games/stats.
func (h *GamesHandler) Stats(w http.ResponseWriter, r *http.Request) {
	res, err := h.Games.Stats(r.Context())
	if err != nil {
		h.backendError(w, r, "game stats", err)
		return
	}
	writeData(w, res)
}

// Detail handles GET /api/games/{id}.
func (h *GamesHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.Games.GameByID(r.Context(), id)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "Game not found")
		return
	case errors.Is(err, games.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "Game ID is required")
		return
	case err != nil:
		h.backendError(w, r, "game detail", err)
		return
	}
	writeData(w, res)
}

// RecordView handles POST /api/games/{id}/view.
func (h *GamesHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	counted := h.Games.IncrementPopularity(r.Context(), id)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"counted": counted,
	})
}

// Categories handles GET /api/categories?lang=.
func (h *GamesHandler) Categories(w http.ResponseWriter, r *http.Request) {
	res, err := h.Games.Categories(r.Context(), r.URL.Query().Get("lang"))
	if err != nil {
		h.backendError(w, r, "categories", err)
		return
	}
	writeData(w, res)
}

// Validate handles POST /api/admin/games/validate. It checks a game
// payload without storing it.
func (h *GamesHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var g catalog.Game
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		logging.L(r.Context()).Warn("invalid request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	g.TitleEN = games.Sanitize(g.TitleEN)
	errs := games.ValidateGame(g)
	if errs == nil {
		errs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"valid":   len(errs) == 0,
		"errors":  errs,
	})
}

func (h *GamesHandler) backendError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logging.L(r.Context()).Error("catalog backend error",
		zap.String("operation", op),
		zap.Error(err),
	)
	writeError(w, http.StatusBadGateway, "Failed to load games")
}
