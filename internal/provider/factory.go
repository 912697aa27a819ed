// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package provider

import "fmt"

// Settings configures one provider.
type Settings struct {
	Name    string
	APIKey  string
	Model   string
	BaseURL string // empty means the public API endpoint
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(name string) string {
	switch name {
	case ProviderGroq:
		return "llama-3.3-70b-versatile"
	case ProviderGemini:
		return "gemini-2.0-flash"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderClaude:
		return "claude-haiku-4-5-20251001"
	default:
		return ""
	}
}

// New creates the Provider implementation for s.Name.
func New(s Settings) (Provider, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("provider %s: API key is required", s.Name)
	}
	model := s.Model
	if model == "" {
		model = DefaultModel(s.Name)
	}

	switch s.Name {
	case ProviderOpenAI:
		return newChatClient(ProviderOpenAI, s.APIKey, model, orDefault(s.BaseURL, openAIBaseURL), nil), nil
	case ProviderGroq:
		return newChatClient(ProviderGroq, s.APIKey, model, orDefault(s.BaseURL, groqBaseURL), nil), nil
	case ProviderClaude:
		return newClaudeClient(s.APIKey, model, orDefault(s.BaseURL, claudeBaseURL)), nil
	case ProviderGemini:
		return newGeminiClient(s.APIKey, model, orDefault(s.BaseURL, geminiBaseURL)), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", s.Name)
	}
}

// BuildChain creates providers in the given order, skipping names without an API key.
func BuildChain(order []string, settings map[string]Settings) ([]Provider, error) {
	var chain []Provider
	seen := make(map[string]bool)
	for _, name := range order {
		if seen[name] {
			continue
		}
		seen[name] = true

		s, ok := settings[name]
		if !ok || s.APIKey == "" {
			continue
		}
		s.Name = name
		p, err := New(s)
		if err != nil {
			return nil, err
		}
		chain = append(chain, p)
	}
	return chain, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
