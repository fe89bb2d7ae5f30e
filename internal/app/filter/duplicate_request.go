package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/requestbox/internal/domain/request"
)

// ActiveLister gives read access to the requests currently queued or playing.
type ActiveLister interface {
	Active() []request.Request
}

// DuplicateRequestFilter rejects a title that is already queued or playing.
// Titles are compared after normalization, so "Song (Live)" and
// "song - 2011 Remaster" both collide with "Song".
type DuplicateRequestFilter struct {
	queue ActiveLister
}

// NewDuplicateRequestFilter creates a new duplicate request filter.
func NewDuplicateRequestFilter(queue ActiveLister) *DuplicateRequestFilter {
	return &DuplicateRequestFilter{queue: queue}
}

// Name returns the filter name.
func (f *DuplicateRequestFilter) Name() string {
	return "duplicate_request_filter"
}

// Description returns the filter description.
func (f *DuplicateRequestFilter) Description() string {
	return "Rejects a song already queued or playing, including remaster and live variants of it"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateRequestFilter) ReturnCodes() []string {
	return []string{CodeDuplicateRequest}
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateRequestFilter) ValidateConfig(config map[string]any) error {
	return nil
}

// Check checks if the title is a duplicate.
func (f *DuplicateRequestFilter) Check(ctx context.Context, r *request.Request) Result {
	want := NormalizeTitle(r.Title)
	for _, active := range f.queue.Active() {
		if NormalizeTitle(active.Title) == want {
			return Reject(CodeDuplicateRequest)
		}
	}
	return Accept()
}

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
		regexp.MustCompile(`\s*\(live\)`),              // "(Live)"
		regexp.MustCompile(`\s*-\s*live\b.*$`),         // "- Live at Wembley"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
	}
	whitespace = regexp.MustCompile(`\s+`)
)

// NormalizeTitle lowercases a title and strips remaster and version suffixes.
func NormalizeTitle(title string) string {
	normalized := strings.ToLower(title)

	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = strings.TrimSpace(normalized)
	normalized = whitespace.ReplaceAllString(normalized, " ")

	return strings.TrimRight(normalized, " -")
}

func init() {
	Register("duplicate_request_filter", func(src Source) Filter {
		return NewDuplicateRequestFilter(src)
	})
}
