// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package chunker splits document fields into bounded-length segments for translation.
package chunker

import (
	"strings"
	"unicode"

	"github.com/olegiv/ocms-translator/internal/model"
)

// DefaultMaxLength is the default maximum chunk length in characters.
const DefaultMaxLength = 1500

// minFillRatio is the smallest fraction of maxLen a sentence or line cut may leave.
const minFillRatio = 0.7

// Segment is one chunk of a document field with its position in the job.
type Segment struct {
	Index int
	Type  string
	Text  string
}

// Split divides text into chunks of at most maxLen characters.
// Cuts prefer the last '.' in the window, then the last newline (both only if
// the chunk keeps at least 70% of maxLen), then the last space, then the hard limit.
// Whitespace at cut points is trimmed. Empty input yields a single empty chunk.
func Split(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}

	runes := []rune(text)
	if len(runes) <= maxLen {
		return []string{text}
	}

	minCut := int(float64(maxLen) * minFillRatio)
	var chunks []string

	start := 0
	for start < len(runes) {
		if len(runes)-start <= maxLen {
			if chunk := strings.TrimSpace(string(runes[start:])); chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		window := runes[start : start+maxLen]
		cut := findCut(window, minCut)

		if chunk := strings.TrimSpace(string(window[:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		start += cut
		for start < len(runes) && unicode.IsSpace(runes[start]) {
			start++
		}
	}

	if len(chunks) == 0 {
		return []string{""}
	}
	return chunks
}

// findCut returns the length of the next chunk within window.
func findCut(window []rune, minCut int) int {
	if i := lastIndex(window, '.'); i >= 0 && i+1 >= minCut {
		return i + 1
	}
	if i := lastIndex(window, '\n'); i > 0 && i >= minCut {
		return i
	}
	if i := lastIndex(window, ' '); i > 0 {
		return i
	}
	return len(window)
}

func lastIndex(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

// Segments chunks a document's title, excerpt and content, in that order,
// assigning consecutive indexes from 0. Blank fields produce no segments.
func Segments(title, excerpt, content string, maxLen int) []Segment {
	var segments []Segment
	add := func(chunkType, text string) {
		if strings.TrimSpace(text) == "" {
			return
		}
		for _, part := range Split(text, maxLen) {
			segments = append(segments, Segment{
				Index: len(segments),
				Type:  chunkType,
				Text:  part,
			})
		}
	}

	add(model.ChunkTypeTitle, title)
	add(model.ChunkTypeExcerpt, excerpt)
	add(model.ChunkTypeContent, content)

	return segments
}
