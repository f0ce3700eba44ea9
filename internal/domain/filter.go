package domain

import "sort"

// FilterQuestions narrows a pool by optional category and difficulty.
// Filters are conjunctive, case-sensitive exact matches; an empty filter
// value matches everything. Order is preserved.
func FilterQuestions(pool []Question, category, difficulty string) []Question {
	out := make([]Question, 0, len(pool))
	for _, q := range pool {
		if category != "" && q.Category != category {
			continue
		}
		if difficulty != "" && q.Difficulty != difficulty {
			continue
		}
		out = append(out, q)
	}
	return out
}

// DistinctCategories returns the sorted set of non-empty categories.
func DistinctCategories(pool []Question) []string {
	return distinct(pool, func(q Question) string { return q.Category })
}

// DistinctDifficulties returns the sorted set of non-empty difficulties.
func DistinctDifficulties(pool []Question) []string {
	return distinct(pool, func(q Question) string { return q.Difficulty })
}

func distinct(pool []Question, key func(Question) string) []string {
	seen := make(map[string]struct{})
	values := make([]string, 0)
	for _, q := range pool {
		v := key(q)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}
