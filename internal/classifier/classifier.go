// Package classifier derives themes, a sentiment estimate, and a severity
// from raw feedback text without any external call. It is the normalizer's
// offline fallback and the only classification used during bulk backfill.
package classifier

import (
	"math"
	"strings"

	"github.com/avisio/hub/internal/models"
)

// themeKeywords maps each vocabulary theme to the keyword substrings that
// assign it. Order matters: themes are emitted in vocabulary order.
var themeKeywords = []struct {
	theme    string
	keywords []string
}{
	{"attente", []string{"attente", "attendre", "attendu", "long", "lent", "rapide", "vite"}},
	{"service", []string{"service", "serveur", "serveuse", "personnel", "équipe", "staff"}},
	{"nourriture", []string{"nourriture", "plat", "cuisine", "cuit", "goût", "gout", "saveur", "frais", "fraîche", "délicieux", "delicieux", "manger"}},
	{"prix", []string{"prix", "cher", "chère", "tarif", "addition", "abordable", "rapport qualité"}},
	{"ambiance", []string{"ambiance", "atmosphère", "atmosphere", "cadre", "musique", "lumière", "lumiere"}},
	{"propreté", []string{"propre", "sale", "propreté", "proprete", "hygiène", "hygiene", "toilettes"}},
	{"quantité", []string{"quantité", "quantite", "portion", "copieux", "petit plat", "faim"}},
	{"température", []string{"froid", "chaud", "tiède", "tiede", "température", "temperature", "réchauff"}},
	{"accueil", []string{"accueil", "accueilli", "bienvenue", "sourire", "aimable", "sympathique", "chaleureux"}},
	{"carte", []string{"carte", "menu", "choix", "variété", "variete", "suggestion"}},
	{"boisson", []string{"boisson", "vin", "bière", "biere", "cocktail", "café", "cafe", "verre"}},
	{"dessert", []string{"dessert", "sucré", "sucre", "gâteau", "gateau", "glace", "tarte"}},
	{"terrasse", []string{"terrasse", "extérieur", "exterieur", "dehors"}},
	{"bruit", []string{"bruit", "bruyant", "sonore", "calme", "silencieux"}},
	{"décoration", []string{"décor", "decor", "déco", "deco"}},
	{"parking", []string{"parking", "stationnement", "garer"}},
	{"réservation", []string{"réservation", "reservation", "réserv", "reserv"}},
	{"enfants", []string{"enfant", "famille", "chaise haute", "bébé", "bebe"}},
	{"allergènes", []string{"allergie", "allergène", "allergene", "gluten", "lactose", "végétarien", "vegetarien", "vegan"}},
}

// ThemeOther is the catch-all assigned when no keyword matches.
const ThemeOther = "autre"

// Classify returns the themes matched in text, in vocabulary order, capped at
// models.MaxThemes entries. When no theme matches it returns ["autre"].
// Deterministic, no I/O, never fails.
func Classify(text string) []string {
	lower := strings.ToLower(text)

	var themes []string
	for _, entry := range themeKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				themes = append(themes, entry.theme)
				break
			}
		}
		if len(themes) == models.MaxThemes {
			break
		}
	}

	if len(themes) == 0 {
		return []string{ThemeOther}
	}

	return themes
}

// positiveOnlySentiment is the fixed estimate for feedback with no negative text.
const positiveOnlySentiment = 0.7

// EstimateSentiment returns a length-ratio sentiment proxy in [-1, 1],
// rounded to 2 decimals. This is a known approximation, not a semantic
// model: it only weighs how much of the feedback is positive text.
func EstimateSentiment(positiveText, negativeText string) float64 {
	if negativeText == "" {
		return positiveOnlySentiment
	}

	total := len(positiveText) + len(negativeText)
	if total == 0 {
		return 0
	}

	ratio := float64(len(positiveText)) / float64(total)
	sentiment := ratio*1.4 - 0.2

	return math.Round(clamp(sentiment, -1, 1)*100) / 100
}

// EstimateSeverity maps the heuristic sentiment to a triage level.
// No negative text is always low severity.
func EstimateSeverity(sentiment float64, hasNegative bool) models.Severity {
	if !hasNegative {
		return models.SeverityLow
	}

	switch {
	case sentiment < 0:
		return models.SeverityHigh
	case sentiment < 0.3:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
