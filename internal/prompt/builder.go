package prompt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultMaxLength caps the rendered prompt so a large backlog day cannot
	// blow past provider context windows.
	DefaultMaxLength = 12000

	samplePlaceholder = "content_sample"
)

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_][a-zA-Z0-9_.-]*)\}`)

// Stats carries the computed figures for one (source, day, modality) bucket
// that templates may reference alongside scenario scope values.
type Stats struct {
	Platform      string
	Day           string
	Modality      string
	ItemCount     int
	Reactions     int64
	Comments      int64
	Views         int64
	InferredCount int
	ContentSample string
}

func (s Stats) lookup(key string) (string, bool) {
	switch key {
	case "platform":
		return s.Platform, true
	case "day":
		return s.Day, true
	case "modality":
		return s.Modality, true
	case "item_count":
		return strconv.Itoa(s.ItemCount), true
	case "total_reactions":
		return strconv.FormatInt(s.Reactions, 10), true
	case "total_comments":
		return strconv.FormatInt(s.Comments, 10), true
	case "total_views":
		return strconv.FormatInt(s.Views, 10), true
	case "inferred_count":
		return strconv.Itoa(s.InferredCount), true
	case samplePlaceholder:
		return s.ContentSample, true
	}
	return "", false
}

// Builder renders prompt templates with a bounded output length.
type Builder struct {
	maxLength int
}

func NewBuilder(maxLength int) *Builder {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Builder{maxLength: maxLength}
}

// Render substitutes {name} and {parent.child} placeholders. Resolution
// order: computed stats, then scenario scope. Unresolved placeholders stay
// verbatim in the output and come back as warnings; templates are
// user-authored and a typo must not break analysis. When the rendered prompt
// would exceed the length cap, the content sample is shortened; the
// instructional text of the template is never cut.
func (b *Builder) Render(template string, stats Stats, scope Scope) (string, []string) {
	rendered, warnings := b.renderOnce(template, stats, scope)
	if len(rendered) <= b.maxLength {
		return rendered, warnings
	}

	// Shrink the sample by the overage and re-render.
	overage := len(rendered) - b.maxLength
	sample := stats.ContentSample
	if len(sample) >= overage {
		stats.ContentSample = truncateAtWord(sample, len(sample)-overage)
	} else {
		stats.ContentSample = ""
	}
	rendered, warnings = b.renderOnce(template, stats, scope)
	if len(rendered) > b.maxLength {
		warnings = append(warnings, fmt.Sprintf("prompt still %d chars over limit after dropping content sample", len(rendered)-b.maxLength))
	}
	return rendered, warnings
}

func (b *Builder) renderOnce(template string, stats Stats, scope Scope) (string, []string) {
	var warnings []string
	rendered := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1]
		if value, ok := stats.lookup(key); ok {
			return value
		}
		if value, ok := scope.Lookup(key); ok {
			return value.Render()
		}
		warnings = append(warnings, fmt.Sprintf("unresolved placeholder %s", match))
		return match
	})
	return rendered, warnings
}

// BuildSample concatenates item bodies into a bounded excerpt for the
// {content_sample} placeholder. Items beyond maxItems are summarized with a
// trailing count so the model knows the sample is partial.
func BuildSample(bodies []string, maxItems int) string {
	if maxItems <= 0 {
		maxItems = 20
	}
	var builder strings.Builder
	shown := 0
	for _, body := range bodies {
		body = strings.TrimSpace(body)
		if body == "" {
			continue
		}
		if shown >= maxItems {
			break
		}
		fmt.Fprintf(&builder, "- %s\n", body)
		shown++
	}
	if remaining := countNonEmpty(bodies) - shown; remaining > 0 {
		fmt.Fprintf(&builder, "(and %d more items)\n", remaining)
	}
	return strings.TrimRight(builder.String(), "\n")
}

func countNonEmpty(bodies []string) int {
	count := 0
	for _, body := range bodies {
		if strings.TrimSpace(body) != "" {
			count++
		}
	}
	return count
}

func truncateAtWord(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	truncated := s[:maxLen]
	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace > maxLen/2 {
		return truncated[:lastSpace]
	}
	return truncated
}
