// Package seo renders the crawler-facing documents: sitemap.xml,
// robots.txt and ads.txt.
package seo

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"

	"gamestore/internal/catalog"
)

const (
	sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"
	xhtmlNS   = "http://www.w3.org/1999/xhtml"
	dayLayout = "2006-01-02"
)

// Categories listed in the sitemap, in order.
var sitemapCategories = []string{
	"action", "puzzle", "strategy", "arcade",
	"adventure", "racing", "sports", "casual",
}

var alternateLangs = []string{"en", "zh"}

type urlSet struct {
	XMLName    xml.Name     `xml:"urlset"`
	Xmlns      string       `xml:"xmlns,attr"`
	XmlnsXhtml string       `xml:"xmlns:xhtml,attr,omitempty"`
	URLs       []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string      `xml:"loc"`
	LastMod    string      `xml:"lastmod"`
	ChangeFreq string      `xml:"changefreq"`
	Priority   string      `xml:"priority"`
	Alternates []alternate `xml:"xhtml:link,omitempty"`
}

type alternate struct {
	Rel      string `xml:"rel,attr"`
	HrefLang string `xml:"hreflang,attr"`
	Href     string `xml:"href,attr"`
}

func alternates(href string) []alternate {
	out := make([]alternate, 0, len(alternateLangs))
	for _, lang := range alternateLangs {
		out = append(out, alternate{Rel: "alternate", HrefLang: lang, Href: href})
	}
	return out
}

// GamePriority ranks a game by its position in popularity order and its
// score.
func GamePriority(index int, popularity int64) string {
	switch {
	case index < 10:
		return "0.9"
	case index < 50, popularity > 100:
		return "0.8"
	default:
		return "0.7"
	}
}

// BuildSitemap renders the full sitemap. games must already be ordered by
// popularity; a nil slice yields the static pages only.
func BuildSitemap(siteURL string, games []catalog.Game, now time.Time) ([]byte, error) {
	today := now.UTC().Format(dayLayout)

	set := urlSet{
		Xmlns:      sitemapNS,
		XmlnsXhtml: xhtmlNS,
	}
	set.URLs = append(set.URLs, sitemapURL{
		Loc:        siteURL,
		LastMod:    today,
		ChangeFreq: "daily",
		Priority:   "1.0",
		Alternates: alternates(siteURL + "/"),
	})

	for _, cat := range sitemapCategories {
		loc := siteURL + "/?category=" + cat
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        loc,
			LastMod:    today,
			ChangeFreq: "weekly",
			Priority:   "0.8",
			Alternates: alternates(loc),
		})
	}

	set.URLs = append(set.URLs, sitemapURL{
		Loc:        siteURL + "/freewebgames",
		LastMod:    today,
		ChangeFreq: "weekly",
		Priority:   "0.9",
		Alternates: alternates(siteURL + "/freewebgames"),
	})

	for i, g := range games {
		lastMod := g.CreatedAt
		if g.UpdatedAt != nil && !g.UpdatedAt.IsZero() {
			lastMod = *g.UpdatedAt
		}
		loc := fmt.Sprintf("%s/games/%s", siteURL, g.ID)
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        loc,
			LastMod:    lastMod.UTC().Format(dayLayout),
			ChangeFreq: "monthly",
			Priority:   GamePriority(i, g.PopularityScore),
			Alternates: alternates(loc),
		})
	}

	return encode(set)
}

// MinimalSitemap lists the home page only. It is served when the full
// sitemap cannot be rendered.
func MinimalSitemap(siteURL string, now time.Time) []byte {
	b, err := encode(urlSet{
		Xmlns: sitemapNS,
		URLs: []sitemapURL{{
			Loc:        siteURL,
			LastMod:    now.UTC().Format(dayLayout),
			ChangeFreq: "daily",
			Priority:   "1.0",
		}},
	})
	if err != nil {
		return []byte(xml.Header + `<urlset xmlns="` + sitemapNS + `"></urlset>`)
	}
	return b
}

func encode(set urlSet) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "\t")
	if err := enc.Encode(set); err != nil {
		return nil, fmt.Errorf("encode sitemap: %w", err)
	}
	return buf.Bytes(), nil
}
