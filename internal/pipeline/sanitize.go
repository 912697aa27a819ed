// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package pipeline

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/olegiv/ocms-translator/internal/model"
)

// sourceContent joins the original text of the content chunks.
func sourceContent(chunks []model.TranslationChunk) string {
	var parts []string
	for _, c := range chunks {
		if c.ChunkType == model.ChunkTypeContent {
			parts = append(parts, c.OriginalText)
		}
	}
	return strings.Join(parts, contentSeparator)
}

// sourcePolicy allows exactly the elements of source, each with the
// attributes it carries there. Markup a provider invents is stripped.
func sourcePolicy(source string) *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	z := html.NewTokenizer(strings.NewReader(source))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return p
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := z.TagName()
		tag := string(name)
		p.AllowElements(tag)
		p.AllowNoAttrs().OnElements(tag)
		if tag == "script" || tag == "style" {
			p.AllowUnsafe(true)
		}
		for hasAttr {
			var key []byte
			key, _, hasAttr = z.TagAttr()
			p.AllowAttrs(string(key)).OnElements(tag)
		}
	}
}

// sanitizeContent strips markup from translated that is absent from source.
// Text without markup is returned as is.
func sanitizeContent(source, translated string) string {
	if !strings.Contains(translated, "<") {
		return translated
	}
	return sourcePolicy(source).Sanitize(translated)
}
