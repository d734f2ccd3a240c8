package tripchat

import "golang.org/x/text/language"

// Spanish first so it is the matcher's fallback.
var supportedLanguages = []language.Tag{
	language.Spanish,
	language.English,
	language.Portuguese,
	language.French,
}

var languageMatcher = language.NewMatcher(supportedLanguages)

type localizedStrings struct {
	Generating         string
	GenerationFailed   string
	SummaryFallback    string
	RegistrationPrompt string
}

var messagesByLanguage = map[language.Tag]localizedStrings{
	language.Spanish: {
		Generating:         "Perfecto, ya tengo todo lo que necesito. Estoy preparando tu itinerario...",
		GenerationFailed:   "Lo siento, no pude generar tu itinerario en este momento. Por favor, inténtalo de nuevo.",
		SummaryFallback:    "¡Tu itinerario está listo! Revisa las pestañas para ver todos los detalles.",
		RegistrationPrompt: "Para seguir planificando tu viaje, crea una cuenta gratuita. Tu mensaje se enviará automáticamente al registrarte.",
	},
	language.English: {
		Generating:         "Perfect, I have everything I need. Preparing your itinerary...",
		GenerationFailed:   "Sorry, I couldn't generate your itinerary right now. Please try again.",
		SummaryFallback:    "Your itinerary is ready! Check the tabs for all the details.",
		RegistrationPrompt: "To keep planning your trip, create a free account. Your message will be sent automatically once you sign up.",
	},
	language.Portuguese: {
		Generating:         "Perfeito, já tenho tudo o que preciso. Estou preparando seu roteiro...",
		GenerationFailed:   "Desculpe, não consegui gerar seu roteiro agora. Por favor, tente novamente.",
		SummaryFallback:    "Seu roteiro está pronto! Confira as abas para ver todos os detalhes.",
		RegistrationPrompt: "Para continuar planejando sua viagem, crie uma conta gratuita. Sua mensagem será enviada automaticamente após o cadastro.",
	},
	language.French: {
		Generating:         "Parfait, j'ai tout ce qu'il me faut. Je prépare votre itinéraire...",
		GenerationFailed:   "Désolé, je n'ai pas pu générer votre itinéraire pour le moment. Veuillez réessayer.",
		SummaryFallback:    "Votre itinéraire est prêt ! Consultez les onglets pour tous les détails.",
		RegistrationPrompt: "Pour continuer à planifier votre voyage, créez un compte gratuit. Votre message sera envoyé automatiquement après l'inscription.",
	},
}

// localize picks the message set for a BCP 47 language hint, falling back to
// Spanish when the hint is missing or unsupported.
func localize(lang string) localizedStrings {
	if lang == "" {
		return messagesByLanguage[language.Spanish]
	}
	tag, _ := language.MatchStrings(languageMatcher, lang)
	base, _ := tag.Base()
	for _, supported := range supportedLanguages {
		if sb, _ := supported.Base(); sb == base {
			return messagesByLanguage[supported]
		}
	}
	return messagesByLanguage[language.Spanish]
}
