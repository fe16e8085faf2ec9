package games

import (
	"strings"

	"gamestore/internal/catalog"
)

const (
	LangEN = "en"
	LangZH = "zh"

	defaultIcon = "🎮"
)

type translation struct {
	en, zh, icon string
}

// categoryOrder is the display order of the known categories.
var categoryOrder = []string{
	"action", "puzzle", "strategy", "arcade",
	"adventure", "racing", "sports", "casual",
}

var categoryTranslations = map[string]translation{
	"action":    {en: "Action Games", zh: "动作游戏", icon: "⚔️"},
	"puzzle":    {en: "Puzzle Games", zh: "益智游戏", icon: "🧩"},
	"strategy":  {en: "Strategy Games", zh: "策略游戏", icon: "♟️"},
	"arcade":    {en: "Arcade Games", zh: "街机游戏", icon: "🕹️"},
	"adventure": {en: "Adventure Games", zh: "冒险游戏", icon: "🗺️"},
	"racing":    {en: "Racing Games", zh: "竞速游戏", icon: "🏎️"},
	"sports":    {en: "Sports Games", zh: "体育游戏", icon: "⚽"},
	"casual":    {en: "Casual Games", zh: "休闲游戏", icon: "🎯"},
}

type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Count int    `json:"count"`
}

// NormalizeLang maps anything other than zh to en.
func NormalizeLang(lang string) string {
	if strings.HasPrefix(strings.ToLower(lang), LangZH) {
		return LangZH
	}
	return LangEN
}

// IsKnownCategory reports whether id is one of the storefront categories.
func IsKnownCategory(id string) bool {
	_, ok := categoryTranslations[id]
	return ok
}

// CategoryName returns the display name of id in lang, or id itself when
// the category is unknown.
func CategoryName(id, lang string) string {
	tr, ok := categoryTranslations[id]
	if !ok {
		return id
	}
	if NormalizeLang(lang) == LangZH {
		return tr.zh
	}
	return tr.en
}

func CategoryIcon(id string) string {
	if tr, ok := categoryTranslations[id]; ok {
		return tr.icon
	}
	return defaultIcon
}

func buildCategories(lang string, counts map[string]int) []Category {
	out := make([]Category, 0, len(categoryOrder))
	for _, id := range categoryOrder {
		out = append(out, Category{
			ID:    id,
			Name:  CategoryName(id, lang),
			Icon:  CategoryIcon(id),
			Count: counts[id],
		})
	}
	return out
}

// Field names accepted by LocalizedField.
const (
	FieldTitle        = "title"
	FieldDescription  = "description"
	FieldInstructions = "instructions"
)

// LocalizedField picks the language variant of a text field. English
// prefers the _en column and falls back to the base column; Chinese uses
// the base column first.
func LocalizedField(g *catalog.Game, field, lang string) string {
	if g == nil {
		return ""
	}

	var base, en string
	switch field {
	case FieldTitle:
		base, en = g.Title, g.TitleEN
	case FieldDescription:
		base, en = g.Description, g.DescriptionEN
	case FieldInstructions:
		base, en = g.Instructions, g.InstructionsEN
	default:
		return ""
	}

	if NormalizeLang(lang) == LangZH && base != "" {
		return base
	}
	if en != "" {
		return en
	}
	return base
}
