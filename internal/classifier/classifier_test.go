package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avisio/hub/internal/models"
)

func TestClassify(t *testing.T) {
	t.Run("matches themes by keyword substring", func(t *testing.T) {
		themes := Classify("Le service était excellent mais l'attente trop longue")

		assert.Contains(t, themes, "attente")
		assert.Contains(t, themes, "service")
		assert.NotContains(t, themes, ThemeOther)
	})

	t.Run("matching is case insensitive", func(t *testing.T) {
		themes := Classify("SERVICE IMPECCABLE")

		assert.Equal(t, []string{"service"}, themes)
	})

	t.Run("returns autre when nothing matches", func(t *testing.T) {
		themes := Classify("rien à signaler")

		assert.Equal(t, []string{ThemeOther}, themes)
	})

	t.Run("caps themes at five", func(t *testing.T) {
		text := "l'attente, le service, la nourriture, le prix, l'ambiance et la propreté"
		themes := Classify(text)

		assert.Len(t, themes, models.MaxThemes)
	})

	t.Run("themes come out in vocabulary order", func(t *testing.T) {
		themes := Classify("dessert parfait, accueil charmant")

		assert.Equal(t, []string{"accueil", "dessert"}, themes)
	})

	t.Run("deterministic across calls", func(t *testing.T) {
		text := "plat froid et service lent"

		first := Classify(text)
		second := Classify(text)

		assert.Equal(t, first, second)
	})
}

func TestEstimateSentiment(t *testing.T) {
	t.Run("no negative text is fixed at 0.7", func(t *testing.T) {
		assert.InDelta(t, 0.7, EstimateSentiment("Super accueil", ""), 1e-9)
		assert.InDelta(t, 0.7, EstimateSentiment("", ""), 1e-9)
	})

	t.Run("all negative text clamps at the bottom of the ratio scale", func(t *testing.T) {
		// ratio 0 => 0*1.4 - 0.2 = -0.2
		assert.InDelta(t, -0.2, EstimateSentiment("", "tout était mauvais"), 1e-9)
	})

	t.Run("balanced texts land mid scale", func(t *testing.T) {
		// equal lengths: ratio 0.5 => 0.5*1.4 - 0.2 = 0.5
		assert.InDelta(t, 0.5, EstimateSentiment("abcd", "efgh"), 1e-9)
	})

	t.Run("result is rounded to two decimals", func(t *testing.T) {
		// ratio 1/3 => 1.4/3 - 0.2 = 0.2666... => 0.27
		assert.InDelta(t, 0.27, EstimateSentiment("ab", "cdef"), 1e-9)
	})

	t.Run("always within [-1, 1]", func(t *testing.T) {
		long := make([]byte, 10000)
		for i := range long {
			long[i] = 'a'
		}

		s := EstimateSentiment(string(long), "x")
		assert.LessOrEqual(t, s, 1.0)
		assert.GreaterOrEqual(t, s, -1.0)
	})
}

func TestEstimateSeverity(t *testing.T) {
	t.Run("no negative text is always low", func(t *testing.T) {
		assert.Equal(t, models.SeverityLow, EstimateSeverity(0.7, false))
		assert.Equal(t, models.SeverityLow, EstimateSeverity(-1, false))
	})

	t.Run("negative sentiment is high", func(t *testing.T) {
		assert.Equal(t, models.SeverityHigh, EstimateSeverity(-0.1, true))
	})

	t.Run("sentiment below 0.3 is medium", func(t *testing.T) {
		assert.Equal(t, models.SeverityMedium, EstimateSeverity(0.0, true))
		assert.Equal(t, models.SeverityMedium, EstimateSeverity(0.29, true))
	})

	t.Run("sentiment at or above 0.3 is low", func(t *testing.T) {
		assert.Equal(t, models.SeverityLow, EstimateSeverity(0.3, true))
		assert.Equal(t, models.SeverityLow, EstimateSeverity(0.9, true))
	})
}
