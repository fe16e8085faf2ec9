package games

import "gamestore/internal/catalog"

const uncategorized = "uncategorized"

type Stats struct {
	Total      int            `json:"total"`
	Published  int            `json:"published"`
	Draft      int            `json:"draft"`
	TotalViews int64          `json:"totalViews"`
	ByCategory map[string]int `json:"byCategory"`
}

func computeStats(rows []catalog.StatRow) *Stats {
	st := &Stats{
		Total:      len(rows),
		ByCategory: make(map[string]int),
	}
	for _, r := range rows {
		if r.Published {
			st.Published++
		} else {
			st.Draft++
		}
		st.TotalViews += r.PopularityScore

		cat := r.Category
		if cat == "" {
			cat = uncategorized
		}
		st.ByCategory[cat]++
	}
	return st
}
