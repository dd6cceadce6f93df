package brain

import (
	"encoding/json"
	"strings"
)

// Default models per provider.
const (
	DefaultClaudeModel = "claude-3-5-haiku-latest"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultOllamaModel = "llama3.2"
	DefaultOllamaHost  = "http://localhost:11434"
)

// defaultMaxTokens covers a one-word label or a short summary.
const defaultMaxTokens = 256

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Anthropic messages API.

type claudeRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type claudeReply struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func ClaudeConfig(apiKey, model string) *ProviderConfig {
	return &ProviderConfig{
		Name:         "claude",
		Endpoint:     "https://api.anthropic.com/v1/messages",
		APIKey:       apiKey,
		Model:        fallback(model, DefaultClaudeModel),
		AuthHeader:   "x-api-key",
		ExtraHeaders: map[string]string{"anthropic-version": "2023-06-01"},
		BuildBody: func(cfg *ProviderConfig, req Request) any {
			return claudeRequest{
				Model:     cfg.Model,
				MaxTokens: req.tokens(),
				System:    req.SystemPrompt,
				Messages:  []chatMessage{{Role: "user", Content: req.UserPrompt}},
			}
		},
		ParseResponse: func(body []byte) (string, string, error) {
			var r claudeReply
			if err := json.Unmarshal(body, &r); err != nil {
				return "", "", err
			}
			parts := make([]string, 0, len(r.Content))
			for _, c := range r.Content {
				if c.Type == "text" {
					parts = append(parts, c.Text)
				}
			}
			return strings.Join(parts, "\n\n"), r.Model, nil
		},
	}
}

// OpenAI chat completions.

type openAIRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_completion_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type openAIReply struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func OpenAIConfig(apiKey, model string) *ProviderConfig {
	return &ProviderConfig{
		Name:       "openai",
		Endpoint:   "https://api.openai.com/v1/chat/completions",
		APIKey:     apiKey,
		Model:      fallback(model, DefaultOpenAIModel),
		AuthHeader: "Authorization",
		AuthPrefix: "Bearer ",
		BuildBody: func(cfg *ProviderConfig, req Request) any {
			var msgs []chatMessage
			if req.SystemPrompt != "" {
				msgs = append(msgs, chatMessage{Role: "system", Content: req.SystemPrompt})
			}
			msgs = append(msgs, chatMessage{Role: "user", Content: req.UserPrompt})
			return openAIRequest{Model: cfg.Model, MaxTokens: req.tokens(), Messages: msgs}
		},
		ParseResponse: func(body []byte) (string, string, error) {
			var r openAIReply
			if err := json.Unmarshal(body, &r); err != nil {
				return "", "", err
			}
			if len(r.Choices) == 0 {
				return "", r.Model, nil
			}
			return r.Choices[0].Message.Content, r.Model, nil
		},
	}
}

// Ollama generate endpoint. No credential, the system prompt is folded into
// the prompt text.

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaReply struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

func OllamaConfig(host, model string) *ProviderConfig {
	return &ProviderConfig{
		Name:     "ollama",
		Endpoint: strings.TrimRight(fallback(host, DefaultOllamaHost), "/") + "/api/generate",
		Model:    fallback(model, DefaultOllamaModel),
		Keyless:  true,
		BuildBody: func(cfg *ProviderConfig, req Request) any {
			prompt := req.UserPrompt
			if req.SystemPrompt != "" {
				prompt = req.SystemPrompt + "\n\n" + prompt
			}
			return ollamaRequest{Model: cfg.Model, Prompt: prompt}
		},
		ParseResponse: func(body []byte) (string, string, error) {
			var r ollamaReply
			if err := json.Unmarshal(body, &r); err != nil {
				return "", "", err
			}
			return r.Response, r.Model, nil
		},
	}
}

// NewProvider builds a provider by name. Unknown names return nil.
// For ollama the key argument is ignored and endpoint is the server host;
// for the hosted APIs a non-empty endpoint replaces the public URL.
func NewProvider(name, apiKey, model, endpoint string) *HTTPProvider {
	var cfg *ProviderConfig
	switch strings.ToLower(name) {
	case "claude", "anthropic":
		cfg = ClaudeConfig(apiKey, model)
	case "openai":
		cfg = OpenAIConfig(apiKey, model)
	case "ollama":
		return NewHTTPProvider(OllamaConfig(endpoint, model))
	default:
		return nil
	}
	if endpoint != "" {
		cfg.Endpoint = endpoint
	}
	return NewHTTPProvider(cfg)
}

func (r Request) tokens() int {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return defaultMaxTokens
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
