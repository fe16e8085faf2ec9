package handlers

import (
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"gamestore/internal/cache"
	"gamestore/internal/games"
	"gamestore/internal/seo"
	"gamestore/pkg/logging/logging"
)

const (
	sitemapKey = "sitemap"
	sitemapTTL = time.Hour
)

// SEOHandler serves sitemap.xml, robots.txt and ads.txt.
type SEOHandler struct {
	Games       *games.Service
	Cache       cache.Cache
	SiteURL     string
	PublisherID string
	Now         func() time.Time
}

func NewSEOHandler(svc *games.Service, c cache.Cache, siteURL, publisherID string) *SEOHandler {
	return &SEOHandler{
		Games:       svc,
		Cache:       c,
		SiteURL:     siteURL,
		PublisherID: publisherID,
		Now:         time.Now,
	}
}

// Sitemap handles GET /sitemap.xml. It always answers 200; a backend
// failure yields the static pages only, and a render failure yields the
// home page only.
func (h *SEOHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	if doc, ok := h.Cache.Get(ctx, sitemapKey); ok {
		h.writeSitemap(w, doc, true)
		return
	}

	list, err := h.Games.SitemapGames(ctx)
	if err != nil {
		logger.Error("fetch games for sitemap", zap.Error(err))
	}

	doc, renderErr := seo.BuildSitemap(h.SiteURL, list, h.Now())
	if renderErr != nil {
		logger.Error("render sitemap", zap.Error(renderErr))
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(seo.MinimalSitemap(h.SiteURL, h.Now()))
		return
	}

	// a sitemap without games is not worth keeping for an hour
	if err == nil {
		h.Cache.Set(ctx, sitemapKey, doc, sitemapTTL)
	}
	h.writeSitemap(w, doc, err == nil)
}

func (h *SEOHandler) writeSitemap(w http.ResponseWriter, doc []byte, cacheable bool) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	if cacheable {
		w.Header().Set("Cache-Control", "public, max-age=3600, s-maxage=3600")
	}
	w.Header().Set("Vary", "Accept-Encoding")
	w.Header().Set("X-Robots-Tag", "noindex")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// Robots handles GET /robots.txt.
func (h *SEOHandler) Robots(w http.ResponseWriter, r *http.Request) {
	writeText(w, seo.RobotsTxt(h.SiteURL))
}

// Ads handles GET /ads.txt.
func (h *SEOHandler) Ads(w http.ResponseWriter, r *http.Request) {
	host := h.SiteURL
	if u, err := url.Parse(h.SiteURL); err == nil && u.Host != "" {
		host = u.Host
	}
	writeText(w, seo.AdsTxt(host, h.PublisherID))
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("X-Robots-Tag", "noindex")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
