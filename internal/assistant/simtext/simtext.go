// Package simtext provides the pure text utilities shared by the gateway
// fallback selection and the auto-learning engine: normalization,
// word-overlap similarity and keyword-based topic classification.
package simtext

import (
	"sort"
	"strings"
	"unicode"
)

// Topic categories used to bucket unanswered and fallback traffic.
const (
	CategoryPricing      = "pricing"
	CategoryFinancing    = "financing"
	CategoryWarranty     = "warranty"
	CategoryAvailability = "availability"
	CategoryTestDrive    = "test_drive"
	CategoryGeneral      = "general"
)

// categoryKeywords maps each bucket to its trigger words. English and
// Spanish, matching the traffic the assistant actually sees.
var categoryKeywords = map[string][]string{
	CategoryPricing:      {"price", "cost", "pricing", "discount", "precio", "costo", "cuanto", "descuento", "oferta"},
	CategoryFinancing:    {"financing", "finance", "credit", "loan", "installment", "financiamiento", "credito", "enganche", "mensualidad"},
	CategoryWarranty:     {"warranty", "guarantee", "garantia", "seguro", "cobertura"},
	CategoryAvailability: {"available", "availability", "stock", "inventory", "disponible", "existencia", "inventario"},
	CategoryTestDrive:    {"test", "drive", "prueba", "manejo", "manejar", "probar"},
}

// Categories returns all topic buckets in their fixed classification order.
func Categories() []string {
	return []string{CategoryPricing, CategoryFinancing, CategoryWarranty, CategoryAvailability, CategoryTestDrive, CategoryGeneral}
}

// Normalize trims, lowercases and collapses whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

func stripPunct(w string) string {
	return strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Words returns the unique word set of the normalized text.
func Words(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(Normalize(s)) {
		w = stripPunct(w)
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

// Overlap computes the word-overlap ratio between two texts: common unique
// words divided by the larger unique word count. Case-insensitive; 0 when
// either side is empty.
func Overlap(a, b string) float64 {
	wa := Words(a)
	wb := Words(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	common := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			common++
		}
	}
	maxLen := len(wa)
	if len(wb) > maxLen {
		maxLen = len(wb)
	}
	return float64(common) / float64(maxLen)
}

// ClassifyTopic assigns a text to the first category bucket with a keyword
// hit, in a fixed bucket order so classification is deterministic.
func ClassifyTopic(text string) string {
	words := Words(text)
	for _, cat := range []string{CategoryPricing, CategoryFinancing, CategoryWarranty, CategoryAvailability, CategoryTestDrive} {
		for _, kw := range categoryKeywords[cat] {
			if _, ok := words[kw]; ok {
				return cat
			}
		}
	}
	return CategoryGeneral
}

// TopKeywords returns the n most frequent words longer than 3 characters
// across the given texts, most frequent first, alphabetical on ties.
func TopKeywords(texts []string, n int) []string {
	freq := make(map[string]int)
	for _, t := range texts {
		for w := range Words(t) {
			if len([]rune(w)) > 3 {
				freq[w]++
			}
		}
	}
	keywords := make([]string, 0, len(freq))
	for w := range freq {
		keywords = append(keywords, w)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if freq[keywords[i]] != freq[keywords[j]] {
			return freq[keywords[i]] > freq[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})
	if len(keywords) > n {
		keywords = keywords[:n]
	}
	return keywords
}

// IntentName derives a candidate intent name from a representative question:
// the top 3 longest words over 3 characters, title-cased and concatenated.
func IntentName(text string) string {
	seen := make(map[string]struct{})
	var words []string
	for _, w := range strings.Fields(Normalize(text)) {
		w = stripPunct(w)
		if len([]rune(w)) <= 3 {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	sort.SliceStable(words, func(i, j int) bool {
		return len([]rune(words[i])) > len([]rune(words[j]))
	})
	if len(words) > 3 {
		words = words[:3]
	}
	var b strings.Builder
	for _, w := range words {
		b.WriteString(titleCase(w))
	}
	return b.String()
}

func titleCase(w string) string {
	runes := []rune(w)
	if len(runes) == 0 {
		return w
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
