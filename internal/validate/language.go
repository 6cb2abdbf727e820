package validate

import (
	"slices"
	"strings"

	"golang.org/x/text/language"
)

// languageAliases maps language names (English and native) and flag emoji to
// ISO 639-1 codes. Codes outside the supported set still resolve here so the
// user gets an "unsupported" answer rather than "unrecognized".
var languageAliases = map[string]string{
	"english": "en", "inglés": "en", "ingles": "en", "anglais": "en", "🇬🇧": "en", "🇺🇸": "en",
	"spanish": "es", "español": "es", "espanol": "es", "espagnol": "es", "castellano": "es", "🇪🇸": "es", "🇲🇽": "es",
	"french": "fr", "français": "fr", "francais": "fr", "francés": "fr", "frances": "fr", "🇫🇷": "fr",
	"german": "de", "deutsch": "de", "🇩🇪": "de",
	"hindi": "hi", "हिन्दी": "hi", "हिंदी": "hi", "🇮🇳": "hi",
	"portuguese": "pt", "português": "pt", "portugues": "pt", "🇵🇹": "pt", "🇧🇷": "pt",
	"italian": "it", "italiano": "it", "🇮🇹": "it",
}

// Language resolves a language name, flag or BCP-47 code ("es", "en-GB") to
// a canonical code from supported. Anything else yields an unsupported
// outcome listing the supported codes in Options.
func Language(input string, supported []string) Outcome {
	s := normalize(input)
	code, ok := languageAliases[s]
	if !ok {
		code, ok = parseLanguageTag(s)
	}
	if ok && slices.Contains(supported, code) {
		return valid(code)
	}
	out := invalid(ReasonUnsupportedLanguage, "error.language_unsupported", nil)
	out.Options = append([]string(nil), supported...)
	return out
}

// greetingWords are language codes that also read as a greeting. On their
// own they are not taken as a language choice.
var greetingWords = map[string]bool{"hi": true}

// LanguageHint recognizes names, flags and bare supported codes ("es") in free
// text such as a first greeting. Codes listed in greetingWords are ignored.
func LanguageHint(input string, supported []string) (string, bool) {
	s := normalize(input)
	code, ok := languageAliases[s]
	if !ok && len(s) == 2 && !greetingWords[s] {
		code, ok = s, true
	}
	if !ok || !slices.Contains(supported, code) {
		return "", false
	}
	return code, true
}

func parseLanguageTag(s string) (string, bool) {
	if len(s) < 2 || len(s) > 12 {
		return "", false
	}
	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		return "", false
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "", false
	}
	return base.String(), true
}
