package entities

import (
	"os"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Language is a hyphen-separated, case-sensitive locale tag such as "en-US".
type Language string

// MaxLanguageLength is the longest tag accepted on the boundary.
const MaxLanguageLength = 255

// Common tags.
const (
	LanguageEnUS Language = "en-US"
	LanguageJaJP Language = "ja-JP"
	LanguageZhCN Language = "zh-CN"
	LanguageZhTW Language = "zh-TW"
	LanguageKoKR Language = "ko-KR"
	LanguageFrFR Language = "fr-FR"
	LanguageDeDE Language = "de-DE"
	LanguageEsES Language = "es-ES"
	LanguageItIT Language = "it-IT"
	LanguageRuRU Language = "ru-RU"
	LanguagePtBR Language = "pt-BR"

	// DefaultLanguage is used whenever a tag is missing or malformed.
	DefaultLanguage = LanguageEnUS
)

// IsValid reports whether l is a well-formed tag within the size limit.
func (l Language) IsValid() bool {
	if l == "" || len(l) > MaxLanguageLength || strings.ContainsRune(string(l), 0) {
		return false
	}
	if strings.Contains(string(l), "_") {
		return false
	}
	_, err := language.Parse(string(l))
	return err == nil
}

// OrDefault returns l if it is valid and DefaultLanguage otherwise.
func (l Language) OrDefault() Language {
	if l.IsValid() {
		return l
	}
	return DefaultLanguage
}

func (l Language) String() string { return string(l) }

// ParseLanguage validates s and falls back to DefaultLanguage.
func ParseLanguage(s string) Language {
	return Language(s).OrDefault()
}

// LanguageFromLocale converts a POSIX locale such as "ja_JP.UTF-8" to a tag.
// "C", "POSIX" and unparsable values yield DefaultLanguage.
func LanguageFromLocale(locale string) Language {
	locale = strings.TrimSpace(locale)
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}
	if locale == "" || locale == "C" || locale == "POSIX" {
		return DefaultLanguage
	}
	return ParseLanguage(strings.ReplaceAll(locale, "_", "-"))
}

// DetectSystemLanguage reads LC_ALL, LC_MESSAGES and LANG in that order.
func DetectSystemLanguage() Language {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" {
			return LanguageFromLocale(v)
		}
	}
	return DefaultLanguage
}

// LocalizedText maps tags to translations of one string.
type LocalizedText map[Language]string

// Lookup picks the best translation for lang: an exact match, then the
// closest tag by x/text matching, then DefaultLanguage, then fallback.
func (t LocalizedText) Lookup(lang Language, fallback string) string {
	if len(t) == 0 {
		return fallback
	}
	if s, ok := t[lang]; ok {
		return s
	}
	want, err := language.Parse(string(lang.OrDefault()))
	if err == nil {
		keys := make([]Language, 0, len(t))
		tags := make([]language.Tag, 0, len(t))
		// Default first so ties resolve to it.
		if _, ok := t[DefaultLanguage]; ok {
			keys = append(keys, DefaultLanguage)
			tags = append(tags, language.MustParse(string(DefaultLanguage)))
		}
		others := make([]Language, 0, len(t))
		for k := range t {
			if k != DefaultLanguage {
				others = append(others, k)
			}
		}
		sort.Slice(others, func(i, j int) bool { return others[i] < others[j] })
		for _, k := range others {
			tag, perr := language.Parse(string(k))
			if perr != nil {
				continue
			}
			keys = append(keys, k)
			tags = append(tags, tag)
		}
		if len(tags) > 0 {
			_, idx, conf := language.NewMatcher(tags).Match(want)
			if conf != language.No {
				return t[keys[idx]]
			}
		}
	}
	if s, ok := t[DefaultLanguage]; ok {
		return s
	}
	return fallback
}
