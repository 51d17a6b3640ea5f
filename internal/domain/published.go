package domain

import (
	"strings"
	"time"
)

// PublishedAt keeps the heterogeneous publication stamp a source reported.
// Epoch wins over Text; both empty means the source gave nothing.
type PublishedAt struct {
	Epoch int64
	Text  string
}

// EpochPublished wraps a unix timestamp.
func EpochPublished(sec int64) PublishedAt {
	return PublishedAt{Epoch: sec}
}

// TextPublished wraps a textual date as the source reported it.
func TextPublished(text string) PublishedAt {
	return PublishedAt{Text: strings.TrimSpace(text)}
}

var publishedLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Resolve converts the stamp to a time, in order: epoch, known text layouts, now.
// The boolean is false when now was used although text was present.
func (p PublishedAt) Resolve(now time.Time) (time.Time, bool) {
	if p.Epoch > 0 {
		return time.Unix(p.Epoch, 0).UTC(), true
	}
	if p.Text == "" {
		return now, true
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, p.Text); err == nil {
			return t.UTC(), true
		}
	}
	return now, false
}
