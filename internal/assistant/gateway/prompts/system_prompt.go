package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/motorchat-core/server/internal/assistant/model"
)

//go:embed template/system_prompt.txt
var coreSystemPrompt string

// RenderSystem renders the dynamic system prompt and triggers prompt callbacks.
// An explicit override from the request wins over the embedded template; the
// grounding context and JSON output contract are still appended so the repair
// parser downstream keeps working.
func RenderSystem(ctx context.Context, cfg model.PromptConfig, override string, retrieved []model.RankedResult, languageCode string) (string, error) {
	lang := strings.ToLower(strings.TrimSpace(languageCode))
	if lang == "" {
		lang = "en"
	}

	base := coreSystemPrompt
	if o := strings.TrimSpace(override); o != "" {
		// keep everything after the grounding marker from the template
		if idx := strings.Index(coreSystemPrompt, "Relevant inventory"); idx >= 0 {
			base = o + "\n\n" + coreSystemPrompt[idx:]
		} else {
			base = o
		}
	}

	// Render via Eino prompt component (Go template) to both format and emit callbacks
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(base),
	)
	vars := map[string]any{
		"BusinessType":   cfg.BusinessType,
		"BusinessName":   cfg.BusinessName,
		"Language":       lang,
		"CatalogContext": FormatCatalogContext(retrieved),
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("system prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("system prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// FormatCatalogContext renders retrieved catalog items as compact lines the
// model can quote from.
func FormatCatalogContext(retrieved []model.RankedResult) string {
	if len(retrieved) == 0 {
		return "(no matching inventory found for this message)"
	}

	var b strings.Builder
	for i, r := range retrieved {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(r.Content)
		if name, ok := r.Metadata["name"].(string); ok && name != "" && !strings.Contains(r.Content, name) {
			b.WriteString(" [")
			b.WriteString(name)
			b.WriteString("]")
		}
	}
	return b.String()
}
