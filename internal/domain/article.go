package domain

import (
	"errors"
	"time"
)

// ErrDuplicate is returned by storage when a uniqueness constraint (url, slug, quote text) is violated.
var ErrDuplicate = errors.New("duplicate record")

// Category is the closed set of article categories.
type Category string

const (
	CategoryAI                  Category = "AI"
	CategoryComputerScience     Category = "Computer Science"
	CategorySoftwareEngineering Category = "Software Engineering"
	CategoryResearch            Category = "Research"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryAI,
	CategoryComputerScience,
	CategorySoftwareEngineering,
	CategoryResearch,
}

// ParseCategory maps free text onto the closed set; anything unknown becomes Research.
func ParseCategory(value string) Category {
	for _, c := range Categories {
		if string(c) == value {
			return c
		}
	}
	return CategoryResearch
}

// RawItem is an unpersisted fetch result, valid only within one run.
type RawItem struct {
	Title       string
	URL         string
	Source      string
	Content     string
	PublishedAt PublishedAt
}

// Article is the persisted, enriched form of a RawItem.
type Article struct {
	ID              string
	Title           string
	Slug            *string
	URL             string
	Source          string
	Summary         *string
	OriginalSnippet *string
	Category        Category
	Tags            []string
	ViabilityScore  int
	PublishedAt     time.Time
	CreatedAt       time.Time
	IsProcessed     bool

	// Reaction counters are maintained by downstream readers.
	Likes     int
	Dislikes  int
	Bookmarks int
}

// snippetLimit bounds Article.OriginalSnippet.
const snippetLimit = 500

// Snippet returns the first 500 characters of raw content, or nil when empty.
func Snippet(content string) *string {
	if content == "" {
		return nil
	}
	runes := []rune(content)
	if len(runes) > snippetLimit {
		runes = runes[:snippetLimit]
	}
	s := string(runes)
	return &s
}

// Enrichment is the output of the text-analysis backend for one item.
type Enrichment struct {
	Summary        string
	Category       Category
	ViabilityScore int
}

// Hidden reports whether downstream readers should suppress the article.
func (e Enrichment) Hidden() bool {
	return e.ViabilityScore <= 0
}
