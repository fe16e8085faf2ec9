package seo

import (
	"fmt"
	"strings"
)

// blockedBots are crawlers denied the whole site.
var blockedBots = []string{"SemrushBot", "AhrefsBot", "MJ12bot"}

type crawlerRule struct {
	agent      string
	crawlDelay int
	rate       string
}

var crawlerRules = []crawlerRule{
	{agent: "Googlebot", crawlDelay: 1, rate: "1/2s"},
	{agent: "Bingbot", crawlDelay: 1, rate: "1/3s"},
	{agent: "Baiduspider", crawlDelay: 2, rate: "1/5s"},
}

// RobotsTxt renders robots.txt for siteURL.
func RobotsTxt(siteURL string) string {
	var b strings.Builder

	b.WriteString("User-agent: *\n")
	b.WriteString("Allow: /\nAllow: /games/*\nAllow: /?category=*\n\n")
	b.WriteString("# Private areas\nDisallow: /api/*\n\n")
	b.WriteString("# Technical files\n")
	b.WriteString("Disallow: /*.json$\nDisallow: /*.xml$\nDisallow: /static/\nDisallow: /_app/\n\n")
	fmt.Fprintf(&b, "Sitemap: %s/sitemap.xml\n", siteURL)

	for _, r := range crawlerRules {
		fmt.Fprintf(&b, "\nUser-agent: %s\nAllow: /\nCrawl-delay: %d\nRequest-rate: %s\n", r.agent, r.crawlDelay, r.rate)
	}
	for _, bot := range blockedBots {
		fmt.Fprintf(&b, "\nUser-agent: %s\nDisallow: /\n", bot)
	}

	return b.String()
}

// AdsTxt renders ads.txt authorising the AdSense publisher.
func AdsTxt(host, publisherID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# ads.txt file for %s\n", host)
	b.WriteString("# This file authorizes digital advertising platforms to serve ads on this domain\n\n")
	b.WriteString("# Google AdSense\n")
	fmt.Fprintf(&b, "google.com, %s, DIRECT, f08c47fec0942fa0\n", publisherID)
	return b.String()
}
