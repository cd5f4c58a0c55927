package content

import (
	"fmt"
	"sort"
	"time"

	"spyglass/internal/catalog"
)

// DayBucket groups one calendar day's items by modality. Day is midnight UTC
// of the day the content was published, never the day the analysis ran.
type DayBucket struct {
	Day      time.Time
	Groups   map[catalog.Modality][]RawContentItem
	Inferred int // items whose publish day was inferred from the collection time
}

// ItemCount returns the total number of items across all modalities.
func (b DayBucket) ItemCount() int {
	total := 0
	for _, items := range b.Groups {
		total += len(items)
	}
	return total
}

// Modalities returns the bucket's populated modalities in canonical order.
func (b DayBucket) Modalities() []catalog.Modality {
	out := make([]catalog.Modality, 0, len(b.Groups))
	for _, modality := range catalog.AllModalities {
		if len(b.Groups[modality]) > 0 {
			out = append(out, modality)
		}
	}
	return out
}

// Classify partitions a batch by UTC calendar day and modality. Items
// without a publish timestamp fall into collectedAt's day and are counted in
// the bucket's Inferred tally. Items with an unknown modality are excluded
// with a warning; a bad item never aborts the batch. Buckets come back in
// ascending day order.
func Classify(items []RawContentItem, collectedAt time.Time) ([]DayBucket, []string) {
	buckets := make(map[time.Time]*DayBucket)
	var warnings []string

	fallbackDay := truncateToDay(collectedAt)
	for _, item := range items {
		if _, ok := catalog.ParseModality(string(item.Modality)); !ok {
			warnings = append(warnings, fmt.Sprintf("item %s: unknown modality %q, skipped", item.ExternalID, item.Modality))
			continue
		}

		day := fallbackDay
		inferred := true
		if item.PublishedAt != nil && !item.PublishedAt.IsZero() {
			day = truncateToDay(*item.PublishedAt)
			inferred = false
		}

		bucket, ok := buckets[day]
		if !ok {
			bucket = &DayBucket{
				Day:    day,
				Groups: make(map[catalog.Modality][]RawContentItem),
			}
			buckets[day] = bucket
		}
		bucket.Groups[item.Modality] = append(bucket.Groups[item.Modality], item)
		if inferred {
			bucket.Inferred++
			warnings = append(warnings, fmt.Sprintf("item %s: missing publish timestamp, classified into collection day %s", item.ExternalID, day.Format("2006-01-02")))
		}
	}

	out := make([]DayBucket, 0, len(buckets))
	for _, bucket := range buckets {
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Day.Before(out[j].Day)
	})
	return out, warnings
}

func truncateToDay(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
