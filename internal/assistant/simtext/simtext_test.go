package simtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "collapses whitespace", in: "  What   is\tthe  price ", want: "what is the price"},
		{name: "lowercases", in: "HOW MUCH", want: "how much"},
		{name: "empty", in: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestOverlap(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		// 3 common words over max set size 5 is exactly the clustering threshold.
		{name: "exactly 0.6", a: "alpha bravo charlie delta echo", b: "alpha bravo charlie xray yankee", want: 0.6},
		{name: "identical", a: "do you have financing", b: "do you have financing", want: 1.0},
		{name: "case and whitespace insensitive", a: "Price  LIST", b: "price list", want: 1.0},
		{name: "disjoint", a: "one two", b: "three four", want: 0.0},
		{name: "empty side", a: "", b: "anything", want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Overlap(tt.a, tt.b), 1e-9)
		})
	}
}

func TestOverlapBoundary(t *testing.T) {
	const threshold = 0.6

	// 3/5 common: must cluster.
	atBoundary := Overlap("alpha bravo charlie delta echo", "alpha bravo charlie xx yy")
	assert.GreaterOrEqual(t, atBoundary, threshold)

	// 59/100 common: must not cluster.
	var a, b []string
	for i := 0; i < 100; i++ {
		a = append(a, word(i))
		if i < 59 {
			b = append(b, word(i))
		} else {
			b = append(b, word(1000+i))
		}
	}
	below := Overlap(join(a), join(b))
	assert.InDelta(t, 0.59, below, 1e-9)
	assert.Less(t, below, threshold)
}

func TestClassifyTopic(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "pricing english", in: "what is the price of the sedan", want: CategoryPricing},
		{name: "pricing spanish", in: "cuanto cuesta precio final", want: CategoryPricing},
		{name: "financing", in: "do you offer financing plans", want: CategoryFinancing},
		{name: "warranty", in: "tiene garantia extendida", want: CategoryWarranty},
		{name: "availability", in: "is the truck available in stock", want: CategoryAvailability},
		{name: "test drive", in: "quiero una prueba de manejo", want: CategoryTestDrive},
		{name: "general", in: "hello there", want: CategoryGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyTopic(tt.in))
		})
	}
}

func TestTopKeywords(t *testing.T) {
	texts := []string{
		"warranty coverage details",
		"warranty coverage period",
		"warranty claim",
	}
	got := TopKeywords(texts, 2)
	assert.Equal(t, []string{"warranty", "coverage"}, got)
}

func TestIntentName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "three longest words", in: "do you offer extended warranty coverage", want: "ExtendedWarrantyCoverage"},
		{name: "short words dropped", in: "is it new", want: ""},
		{name: "duplicates collapse", in: "price price pricing", want: "PricingPrice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IntentName(tt.in))
		})
	}
}

// --- helpers ---

func word(i int) string {
	const letters = "abcdefghij"
	// base-10 spelled with letters so every word is unique and >1 char
	s := []byte{'w'}
	for i > 0 {
		s = append(s, letters[i%10])
		i /= 10
	}
	return string(s)
}

func join(ws []string) string {
	out := ""
	for i, w := range ws {
		if i > 0 {
			out += " "
		}
		out += w
	}
	return out
}
