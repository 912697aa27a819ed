// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// SourceLanguageCode is the language blog posts are written in.
const SourceLanguageCode = "en"

// Language is a translation target.
type Language struct {
	Code string `json:"code"` // BCP 47: es, pt-BR, zh
	Name string `json:"name"` // English display name used in prompts
}

// DefaultLanguageCodes are the target languages every document is translated into.
var DefaultLanguageCodes = []string{
	"es", "fr", "de", "it", "pt", "nl", "pl", "ru", "uk", "tr",
	"ar", "he", "hi", "bn", "ja", "ko", "zh", "id", "vi", "th",
	"sv", "da", "no", "fi", "el", "cs",
}

var englishNames = display.English.Languages()

// ParseLanguage validates a language code and resolves its English display name.
func ParseLanguage(code string) (Language, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Language{}, fmt.Errorf("empty language code")
	}
	tag, err := language.Parse(code)
	if err != nil {
		return Language{}, fmt.Errorf("invalid language code %q: %w", code, err)
	}
	name := englishNames.Name(tag)
	if name == "" {
		name = code
	}
	return Language{Code: code, Name: name}, nil
}

// ParseLanguages resolves a list of codes, rejecting duplicates and the source language.
func ParseLanguages(codes []string) ([]Language, error) {
	seen := make(map[string]bool, len(codes))
	langs := make([]Language, 0, len(codes))
	for _, code := range codes {
		lang, err := ParseLanguage(code)
		if err != nil {
			return nil, err
		}
		if lang.Code == SourceLanguageCode {
			return nil, fmt.Errorf("target languages must not include source language %q", SourceLanguageCode)
		}
		if seen[lang.Code] {
			return nil, fmt.Errorf("duplicate language code %q", lang.Code)
		}
		seen[lang.Code] = true
		langs = append(langs, lang)
	}
	return langs, nil
}

// DefaultLanguages returns the default target languages.
func DefaultLanguages() []Language {
	langs, err := ParseLanguages(DefaultLanguageCodes)
	if err != nil {
		panic(err)
	}
	return langs
}

// LanguageName returns the display name for code, falling back to the code itself.
func LanguageName(code string) string {
	lang, err := ParseLanguage(code)
	if err != nil {
		return code
	}
	return lang.Name
}
