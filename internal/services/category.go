package services

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	apperrors "github.com/htverse/apiserver/internal/errors"
	"github.com/htverse/apiserver/types"
)

var categoryNames = func() []string {
	names := make([]string, 0, len(types.Categories))
	for _, c := range types.Categories {
		names = append(names, string(c))
	}
	return names
}()

// ResolveCategory maps user input onto the category enumeration. An exact
// match wins, then a case-insensitive one, then the closest fuzzy match.
func ResolveCategory(raw string) (types.Category, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperrors.Validation("Category is required")
	}
	if c := types.Category(raw); c.Valid() {
		return c, nil
	}
	for _, c := range types.Categories {
		if strings.EqualFold(raw, string(c)) {
			return c, nil
		}
	}

	ranks := fuzzy.RankFindFold(raw, categoryNames)
	if len(ranks) == 0 {
		return "", apperrors.Validationf("Unknown category %q", raw).
			WithMetadata("allowed", strings.Join(categoryNames, ", "))
	}
	sort.Stable(ranks)
	return types.Category(ranks[0].Target), nil
}
