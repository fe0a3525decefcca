package constants

import (
	"strings"
)

type Category string

const (
	Food          Category = "Food"
	Transport     Category = "Transport"
	Shopping      Category = "Shopping"
	Rent          Category = "Rent"
	Bills         Category = "Bills"
	Entertainment Category = "Entertainment"
	Health        Category = "Health"
	Other         Category = "Other"
)

// DefaultIcon is used when an expense carries no icon key.
const DefaultIcon = "creditcard"

var allCategories = []Category{
	Food,
	Transport,
	Shopping,
	Rent,
	Bills,
	Entertainment,
	Health,
	Other,
}

var categoryIcons = map[Category]string{
	Food:          "fork.knife",
	Transport:     "car",
	Shopping:      "bag",
	Rent:          "house",
	Bills:         "doc.text",
	Entertainment: "film",
	Health:        "cross.case",
	Other:         DefaultIcon,
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// IconFor returns the glyph key for a category, DefaultIcon when unknown.
func IconFor(category string) string {
	cat, _ := Canonicalize(category)
	if icon, ok := categoryIcons[cat]; ok {
		return icon
	}
	return DefaultIcon
}

func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]Category{
		"groceries":  Food,
		"restaurant": Food,
		"dining":     Food,
		"taxi":       Transport,
		"uber":       Transport,
		"fuel":       Transport,
		"clothes":    Shopping,
		"utilities":  Bills,
		"internet":   Bills,
		"movies":     Entertainment,
		"pharmacy":   Health,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	// check if it matches any category string
	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	return Other, false
}
