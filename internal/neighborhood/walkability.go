package neighborhood

import (
	"fmt"
	"sort"
	"strings"
)

// categoryWeights bias walkability toward daily-needs destinations.
var categoryWeights = map[string]int{
	"grocery_store": 8,
	"restaurant":    3,
	"coffee_shop":   3,
	"park":          5,
	"school":        4,
	"gym":           3,
}

const defaultCategoryWeight = 2

// walkabilityScore reduces per-category counts to a 0-100 score.
func walkabilityScore(counts map[string]int) int {
	score := 0
	for category, count := range counts {
		weight, ok := categoryWeights[category]
		if !ok {
			weight = defaultCategoryWeight
		}
		// Diminishing returns past five places per category.
		if count > 5 {
			count = 5
		}
		score += weight * count
	}
	if score > 100 {
		score = 100
	}
	return score
}

// describe renders a one-line neighborhood description from the dominant
// categories.
func describe(counts map[string]int, score int) string {
	type entry struct {
		category string
		count    int
	}
	entries := make([]entry, 0, len(counts))
	for category, count := range counts {
		if count > 0 {
			entries = append(entries, entry{category, count})
		}
	}
	if len(entries) == 0 {
		return "Few amenities within walking distance."
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].category < entries[j].category
	})

	top := entries
	if len(top) > 3 {
		top = top[:3]
	}
	names := make([]string, len(top))
	for i, e := range top {
		names[i] = strings.ReplaceAll(e.category, "_", " ") + "s"
	}

	var level string
	switch {
	case score >= 70:
		level = "Very walkable"
	case score >= 40:
		level = "Somewhat walkable"
	default:
		level = "Car-dependent"
	}
	return fmt.Sprintf("%s area with nearby %s.", level, strings.Join(names, ", "))
}
