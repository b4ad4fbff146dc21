package parsers

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/motorchat-core/server/internal/assistant/model"
	logx "github.com/motorchat-core/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
	maxErrSnippet = 200
)

// repair tiers, in attempt order
const (
	tierStrictJSON    = "strict_json"
	tierResponseField = "response_field"
	tierRawText       = "raw_text"
)

var (
	// The response field extractor tolerates a missing closing quote so that a
	// reply cut off mid-string still yields its prefix.
	responseFieldRe = regexp.MustCompile(`"response"\s*:\s*"((?:[^"\\]|\\.)*)`)
	intentFieldRe   = regexp.MustCompile(`"intent"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	confidenceRe    = regexp.MustCompile(`"confidence"\s*:\s*(-?[0-9]+(?:\.[0-9]+)?)`)
	fallbackRe      = regexp.MustCompile(`"is_fallback"\s*:\s*(true|false)`)

	// matches a leading JSON scaffold like `{"response": "` for the raw tier
	jsonPrefixRe = regexp.MustCompile(`^\s*\{?\s*"?response"?\s*:\s*"?`)

	unescaper = strings.NewReplacer(`\"`, `"`, `\n`, "\n", `\t`, "\t", `\r`, "\r", `\\`, `\`)
)

type repairAttempt struct {
	tier string
	fn   func(string) *model.ModelOutput
}

var attempts = []repairAttempt{
	{tierStrictJSON, parseStrictJSON},
	{tierResponseField, parseResponseField},
	{tierRawText, parseRawText},
}

// Repair recovers a structured ModelOutput from raw model text. Tiers are
// tried in order: full JSON decode of the outermost object, then field
// extraction from broken or truncated JSON, then the raw text stripped of any
// JSON scaffolding. The tier name that succeeded is returned for logging; ok
// is false only when nothing at all could be recovered.
func Repair(raw string) (out *model.ModelOutput, tier string, ok bool) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "repair_parser").Msgf("panic recovered: %v", r)
			out, tier, ok = nil, "", false
		}
	}()

	if len(raw) > maxContentLen {
		logx.Warn().
			Str("component", "repair_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(raw)).
			Msg("content truncated due to size limit")
		raw = raw[:maxContentLen]
	}
	if strings.TrimSpace(raw) == "" {
		return nil, "", false
	}

	for _, a := range attempts {
		if got := a.fn(raw); got != nil {
			if a.tier != tierStrictJSON {
				logx.Warn().
					Str("component", "repair_parser").
					Str("tier", a.tier).
					Str("snippet", safeSnippet(raw)).
					Msg("model output repaired")
			}
			return got, a.tier, true
		}
	}
	return nil, "", false
}

// parseStrictJSON decodes the substring between the first '{' and the last
// '}'. This also handles replies wrapped in markdown code fences.
func parseStrictJSON(raw string) *model.ModelOutput {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil
	}

	var out model.ModelOutput
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return nil
	}
	if strings.TrimSpace(out.Response) == "" {
		return nil
	}
	clampConfidence(&out)
	return &out
}

// parseResponseField regex-extracts individual fields from JSON that failed
// to decode, typically because the reply was truncated mid-generation.
func parseResponseField(raw string) *model.ModelOutput {
	m := responseFieldRe.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	text := strings.TrimSpace(unescaper.Replace(m[1]))
	if text == "" {
		return nil
	}

	out := &model.ModelOutput{Response: text, Confidence: 0.5}
	if im := intentFieldRe.FindStringSubmatch(raw); im != nil {
		out.Intent = im[1]
	}
	if cm := confidenceRe.FindStringSubmatch(raw); cm != nil {
		var c float64
		if err := json.Unmarshal([]byte(cm[1]), &c); err == nil {
			out.Confidence = c
		}
	}
	if fm := fallbackRe.FindStringSubmatch(raw); fm != nil {
		out.IsFallback = fm[1] == "true"
	}
	clampConfidence(out)
	return out
}

// parseRawText is the last resort: strip any JSON scaffolding and treat what
// remains as the reply itself, with low confidence so the cache skips it.
func parseRawText(raw string) *model.ModelOutput {
	text := jsonPrefixRe.ReplaceAllString(raw, "")
	text = strings.Trim(text, "\"}` \t\n\r")
	if text == "" {
		return nil
	}
	return &model.ModelOutput{Response: text, Confidence: 0.3}
}

func clampConfidence(out *model.ModelOutput) {
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
