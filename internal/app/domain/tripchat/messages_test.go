package tripchat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestLocalizeFallsBackToSpanish(t *testing.T) {
	es := messagesByLanguage[language.Spanish]

	assert.Equal(t, es, localize(""))
	assert.Equal(t, es, localize("zh"))
	assert.Equal(t, es, localize("not-a-tag"))
}

func TestLocalizeMatchesSupportedLanguages(t *testing.T) {
	assert.Equal(t, messagesByLanguage[language.English], localize("en"))
	assert.Equal(t, messagesByLanguage[language.English], localize("en-US"))
	assert.Equal(t, messagesByLanguage[language.Portuguese], localize("pt-BR"))
	assert.Equal(t, messagesByLanguage[language.French], localize("fr"))
	assert.Equal(t, messagesByLanguage[language.Spanish], localize("es-AR"))
}
