// Package normalizer rewrites raw feedback into neutral text and extracts
// sentiment, themes, and severity via the chat model, with a deterministic
// degraded result when the model is unavailable or answers garbage. The
// normalized text is never shown to end users; it only feeds the embedder
// and the structured AI fields.
package normalizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/avisio/hub/internal/models"
)

// ChatClient is the chat-completion dependency. Implemented by the OpenAI client.
type ChatClient interface {
	Configured() bool
	ChatJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Result is the fixed-shape outcome of normalization. All fields are always
// valid: SentimentScore in [-1, 1], at most models.MaxThemes themes, Severity
// from the closed enum.
type Result struct {
	NormalizedText string
	SentimentScore float64
	Themes         []string
	Severity       models.Severity
}

// Normalizer turns one feedback into a Result. It never returns an error:
// model and parse failures degrade to the deterministic fallback.
type Normalizer struct {
	chat   ChatClient
	logger *slog.Logger
}

// New creates a Normalizer. logger may be nil (slog default is used).
func New(chat ChatClient, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Normalizer{chat: chat, logger: logger}
}

const systemPrompt = "Tu es un assistant qui analyse des avis clients de restaurant. " +
	"Réponds uniquement en JSON valide."

// userPrompt builds the analysis instruction. The theme list must stay in
// sync with models.ThemeVocabulary.
func userPrompt(positiveText string, negativeText *string) string {
	var b strings.Builder

	b.WriteString("Analyse cet avis client de restaurant et retourne un JSON avec exactement ces champs :\n")
	b.WriteString(`- "normalizedText": reformulation claire et neutre de l'avis (sans ironie, sarcasme, argot, emojis). Combine le positif et le négatif en un texte cohérent. Garde le sens exact.` + "\n")
	b.WriteString(`- "sentimentScore": nombre entre -1.0 (très négatif) et 1.0 (très positif). 0 = neutre.` + "\n")
	b.WriteString(`- "themes": tableau de 1 à 5 thèmes parmi : ["` + strings.Join(models.ThemeVocabulary, `", "`) + `"]` + "\n")
	b.WriteString(`- "severity": "low" (remarque mineure), "medium" (problème notable), "high" (problème grave)` + "\n\n")
	b.WriteString("Réponds UNIQUEMENT avec le JSON, rien d'autre.\n\n")
	b.WriteString(fmt.Sprintf("Avis positif : %q\n", positiveText))

	if negativeText != nil && *negativeText != "" {
		b.WriteString(fmt.Sprintf("Avis négatif : %q", *negativeText))
	} else {
		b.WriteString("Pas de commentaire négatif.")
	}

	return b.String()
}

// modelResponse is the strict parse target for the model output.
type modelResponse struct {
	NormalizedText string   `json:"normalizedText"`
	SentimentScore float64  `json:"sentimentScore"`
	Themes         []string `json:"themes"`
	Severity       string   `json:"severity"`
}

// Normalize produces the neutral rewrite and AI fields for one feedback.
// When the chat model is unconfigured, errors, or returns an unparseable
// response, the degraded fallback is returned instead; the failure is logged
// and never propagated.
func (n *Normalizer) Normalize(ctx context.Context, positiveText string, negativeText *string) Result {
	if n.chat == nil || !n.chat.Configured() {
		return n.fallback(positiveText, negativeText)
	}

	content, err := n.chat.ChatJSON(ctx, systemPrompt, userPrompt(positiveText, negativeText))
	if err != nil {
		n.logger.Error("normalizer: chat completion failed", "error", err)

		return n.fallback(positiveText, negativeText)
	}

	parsed, err := parseModelResponse(content)
	if err != nil {
		n.logger.Error("normalizer: unparseable model response", "error", err)

		return n.fallback(positiveText, negativeText)
	}

	result := Result{
		NormalizedText: parsed.NormalizedText,
		SentimentScore: clamp(parsed.SentimentScore, -1, 1),
		Themes:         parsed.Themes,
		Severity:       models.Severity(parsed.Severity),
	}

	if result.NormalizedText == "" {
		result.NormalizedText = combineTexts(positiveText, negativeText)
	}

	if len(result.Themes) > models.MaxThemes {
		result.Themes = result.Themes[:models.MaxThemes]
	}
	if result.Themes == nil {
		result.Themes = []string{}
	}

	if !models.ValidSeverity(result.Severity) {
		result.Severity = models.SeverityMedium
	}

	return result
}

// fallback is the degraded deterministic result used when no model is
// available: raw concatenated text, a coarse sentiment, no themes.
func (n *Normalizer) fallback(positiveText string, negativeText *string) Result {
	hasNegative := negativeText != nil && *negativeText != ""

	sentiment := 0.5
	severity := models.SeverityLow
	if hasNegative {
		sentiment = -0.3
		severity = models.SeverityMedium
	}

	return Result{
		NormalizedText: combineTexts(positiveText, negativeText),
		SentimentScore: sentiment,
		Themes:         []string{},
		Severity:       severity,
	}
}

// parseModelResponse strips an optional Markdown code fence and parses the
// JSON payload into the fixed response shape.
func parseModelResponse(content string) (*modelResponse, error) {
	jsonStr := stripCodeFence(content)

	var parsed modelResponse
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}

	return &parsed, nil
}

// stripCodeFence removes a leading ```json (or bare ```) fence and the
// trailing ``` so fenced model output still parses.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	return strings.TrimSpace(s)
}

// combineTexts joins the non-empty raw texts with a space.
func combineTexts(positiveText string, negativeText *string) string {
	parts := make([]string, 0, 2)
	if positiveText != "" {
		parts = append(parts, positiveText)
	}
	if negativeText != nil && *negativeText != "" {
		parts = append(parts, *negativeText)
	}

	return strings.Join(parts, " ")
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
