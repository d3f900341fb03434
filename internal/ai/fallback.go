package ai

import "golang.org/x/text/language"

var fallbackMatcher = language.NewMatcher([]language.Tag{language.Persian, language.English})

type localized struct {
	question Question
	chatErr  string
}

var fallbacks = map[language.Tag]localized{
	language.Persian: {
		question: Question{
			Text:    "آیا سابقه آسیب‌دیدگی، بیماری یا محدودیت خاصی در تمرین دارید؟",
			Options: []string{"بله", "خیر"},
		},
		chatErr: "خطا در ارتباط با سرور. لطفاً دوباره تلاش کنید.",
	},
	language.English: {
		question: Question{
			Text:    "Do you have any injuries, medical conditions or training limitations?",
			Options: []string{"Yes", "No"},
		},
		chatErr: "Could not reach the server. Please try again.",
	},
}

func localize(tag language.Tag) localized {
	_, idx, _ := fallbackMatcher.Match(tag)
	switch idx {
	case 1:
		return fallbacks[language.English]
	default:
		return fallbacks[language.Persian]
	}
}

// FallbackQuestion is asked when the model cannot produce one.
func FallbackQuestion(tag language.Tag) Question {
	q := localize(tag).question
	q.Options = append([]string(nil), q.Options...)
	return q
}

// ChatFallbackText is the generic error shown in a chat transcript.
func ChatFallbackText(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Persian
	}
	return localize(tag).chatErr
}
