package gateway

import (
	"strings"
	"time"

	"github.com/motorchat-core/server/internal/assistant/model"
)

// fallback categories, keyed off the user's text when generation is
// unavailable
const (
	fallbackPricing = "pricing"
	fallbackSearch  = "search"
	fallbackContact = "contact"
	fallbackGeneric = "generic"
)

// busyMessage is returned when a session exceeds its request rate.
const busyMessage = "You're sending messages a little faster than I can keep up with. Give me a moment and try again."

var fallbackMessages = map[string]string{
	fallbackPricing: "I can't pull up exact pricing right now, but our team can send you a full quote with current offers. Could you share the model you're interested in and a phone number or email to reach you?",
	fallbackSearch:  "I'm having trouble searching our inventory at the moment. Tell me the model, body style, or budget you have in mind and one of our advisors will follow up with matching vehicles shortly.",
	fallbackContact: "I can't connect you automatically right now. You can reach our showroom directly, or leave your name and number here and an advisor will call you back as soon as possible.",
	fallbackGeneric: "Sorry, I'm having trouble answering that right now. An advisor from our team will follow up with you shortly. Is there anything else I can help you with in the meantime?",
}

var fallbackKeywords = map[string][]string{
	fallbackPricing: {"price", "cost", "how much", "payment", "financing", "finance", "lease", "apr", "precio", "cuanto", "cuánto", "financiamiento", "mensualidad"},
	fallbackSearch:  {"looking for", "search", "find", "available", "inventory", "in stock", "model", "suv", "sedan", "truck", "busco", "disponible", "modelo"},
	fallbackContact: {"contact", "phone", "call", "talk", "speak", "human", "agent", "advisor", "hablar", "llamar", "asesor", "persona"},
}

// order matters: pricing wins over search when both match
var fallbackOrder = []string{fallbackPricing, fallbackSearch, fallbackContact}

func classifyFallback(userText string) string {
	text := strings.ToLower(userText)
	for _, cat := range fallbackOrder {
		for _, kw := range fallbackKeywords[cat] {
			if strings.Contains(text, kw) {
				return cat
			}
		}
	}
	return fallbackGeneric
}

// fallbackResult builds the safe canned reply returned whenever generation
// fails or is short-circuited. It is always flagged so the cache and the
// learning loop treat it as an unanswered turn.
func fallbackResult(userText string, startedAt time.Time) *model.InferenceResult {
	cat := classifyFallback(userText)
	return &model.InferenceResult{
		Text:            fallbackMessages[cat],
		DetectedIntent:  "fallback_" + cat,
		Confidence:      0,
		IsFallback:      true,
		LatencyMs:       time.Since(startedAt).Milliseconds(),
		SuggestedAction: "human_followup",
	}
}
