package services

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"

	"localclaw/internal/models"
)

const (
	gatewayPort     = 18789
	maxAPIKeyLength = 512
	redactedValue   = "***"
)

var (
	telegramTokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]{20,}$`)
	phoneDigitsPattern   = regexp.MustCompile(`^\d{7,15}$`)
)

// AgentConfig is the openclaw.json document an agent container reads at start
type AgentConfig struct {
	Tools    ToolsBlock    `json:"tools"`
	Agents   AgentsBlock   `json:"agents"`
	Models   ModelsBlock   `json:"models"`
	Gateway  GatewayBlock  `json:"gateway"`
	Channels ChannelsBlock `json:"channels"`
}

type ToolsBlock struct {
	Profile string `json:"profile"`
}

type AgentsBlock struct {
	Defaults AgentDefaults `json:"defaults"`
}

type AgentDefaults struct {
	MaxConcurrent int          `json:"maxConcurrent"`
	Workspace     string       `json:"workspace"`
	Model         PrimaryModel `json:"model"`
}

type PrimaryModel struct {
	Primary string `json:"primary"`
}

type ModelsBlock struct {
	Providers map[string]ProviderBlock `json:"providers"`
}

type ProviderBlock struct {
	BaseURL string     `json:"baseUrl,omitempty"`
	APIKey  string     `json:"apiKey"`
	API     string     `json:"api,omitempty"`
	Models  []ModelRef `json:"models"`
}

type ModelRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type GatewayBlock struct {
	Bind      string         `json:"bind"`
	Port      int            `json:"port"`
	ControlUI ControlUIBlock `json:"controlUi"`
	Auth      GatewayAuth    `json:"auth"`
}

type ControlUIBlock struct {
	AllowInsecureAuth bool `json:"allowInsecureAuth"`
}

type GatewayAuth struct {
	Mode  string `json:"mode"`
	Token string `json:"token"`
}

type ChannelsBlock struct {
	Telegram *TelegramChannel `json:"telegram,omitempty"`
	WhatsApp *WhatsAppChannel `json:"whatsapp,omitempty"`
}

type TelegramChannel struct {
	Enabled   bool     `json:"enabled"`
	BotToken  string   `json:"botToken"`
	DMPolicy  string   `json:"dmPolicy"`
	AllowFrom []string `json:"allowFrom"`
}

type WhatsAppChannel struct {
	SelfChatMode     bool        `json:"selfChatMode"`
	DMPolicy         string      `json:"dmPolicy"`
	AllowFrom        []string    `json:"allowFrom"`
	SendReadReceipts bool        `json:"sendReadReceipts"`
	AckReaction      AckReaction `json:"ackReaction"`
}

type AckReaction struct {
	Emoji  string `json:"emoji"`
	Direct bool   `json:"direct"`
}

type providerModel struct {
	modelID     string
	providerKey string
}

var remoteProviders = map[models.Provider]providerModel{
	models.ProviderOpenAI: {modelID: "gpt-4o", providerKey: "openai"},
	models.ProviderGemini: {modelID: "gemini-1.5-flash", providerKey: "google"},
}

// ConfigSynthesizer builds agent config documents. It does no I/O and the same
// inputs always give byte-identical output.
type ConfigSynthesizer struct {
	gatewayToken string
	localBaseURL string
	localModel   string
}

// NewConfigSynthesizer returns a synthesizer for the given gateway token and
// local inference endpoint (the sidecar root URL, without /v1)
func NewConfigSynthesizer(gatewayToken, ollamaURL, localModel string) *ConfigSynthesizer {
	return &ConfigSynthesizer{
		gatewayToken: gatewayToken,
		localBaseURL: strings.TrimRight(ollamaURL, "/") + "/v1",
		localModel:   localModel,
	}
}

// LocalModel is the model id local agents are configured with
func (s *ConfigSynthesizer) LocalModel() string {
	return s.localModel
}

// Synthesize validates the tenant-supplied values and returns the indented JSON document
func (s *ConfigSynthesizer) Synthesize(agentID string, provider models.Provider, apiKey string, channels models.Channels) ([]byte, error) {
	doc, err := s.Build(agentID, provider, apiKey, channels)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Redacted returns the same document with every secret replaced
func (s *ConfigSynthesizer) Redacted(agentID string, provider models.Provider, apiKey string, channels models.Channels) ([]byte, error) {
	doc, err := s.Build(agentID, provider, apiKey, channels)
	if err != nil {
		return nil, err
	}
	doc.Gateway.Auth.Token = redactedValue
	for key, p := range doc.Models.Providers {
		if provider != models.ProviderLocal {
			p.APIKey = redactedValue
		}
		doc.Models.Providers[key] = p
	}
	if doc.Channels.Telegram != nil {
		doc.Channels.Telegram.BotToken = redactedValue
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Build returns the structured document
func (s *ConfigSynthesizer) Build(agentID string, provider models.Provider, apiKey string, channels models.Channels) (*AgentConfig, error) {
	if err := validSegment(agentID); err != nil {
		return nil, invalid("agentId", "must be a single path segment")
	}

	doc := &AgentConfig{
		Tools: ToolsBlock{Profile: "messaging"},
		Agents: AgentsBlock{Defaults: AgentDefaults{
			MaxConcurrent: 4,
			Workspace:     containerWorkspacePath,
		}},
		Gateway: GatewayBlock{
			Bind:      "lan",
			Port:      gatewayPort,
			ControlUI: ControlUIBlock{AllowInsecureAuth: true},
			Auth:      GatewayAuth{Mode: "token", Token: s.gatewayToken},
		},
	}

	if provider == models.ProviderLocal {
		doc.Agents.Defaults.Model.Primary = "ollama/" + s.localModel
		doc.Models.Providers = map[string]ProviderBlock{
			"ollama": {
				BaseURL: s.localBaseURL,
				APIKey:  "ollama",
				API:     "openai-responses",
				Models:  []ModelRef{{ID: s.localModel, Name: s.localModel}},
			},
		}
	} else {
		pm, ok := remoteProviders[provider]
		if !ok {
			return nil, invalid("provider", "must be one of local, openai, gemini")
		}
		if err := validateAPIKey(apiKey); err != nil {
			return nil, err
		}
		doc.Agents.Defaults.Model.Primary = pm.providerKey + "/" + pm.modelID
		doc.Models.Providers = map[string]ProviderBlock{
			pm.providerKey: {
				APIKey: apiKey,
				Models: []ModelRef{{ID: pm.modelID, Name: "Cloud Model"}},
			},
		}
	}

	if token := strings.TrimSpace(channels.Telegram); token != "" {
		if !telegramTokenPattern.MatchString(token) {
			return nil, invalid("channels.telegram", "is not a valid bot token")
		}
		doc.Channels.Telegram = &TelegramChannel{
			Enabled:   true,
			BotToken:  token,
			DMPolicy:  "open",
			AllowFrom: []string{"*"},
		}
	}

	if strings.TrimSpace(channels.WhatsApp) != "" {
		number, err := NormalizePhone(channels.WhatsApp)
		if err != nil {
			return nil, err
		}
		doc.Channels.WhatsApp = &WhatsAppChannel{
			SelfChatMode:     true,
			DMPolicy:         "allowlist",
			AllowFrom:        []string{number},
			SendReadReceipts: true,
			AckReaction:      AckReaction{Emoji: "👀", Direct: true},
		}
	}

	return doc, nil
}

func validateAPIKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return invalid("apiKey", "is required for remote providers")
	}
	if len(key) > maxAPIKeyLength {
		return invalid("apiKey", "cannot exceed %d characters", maxAPIKeyLength)
	}
	for _, r := range key {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return invalid("apiKey", "contains invalid characters")
		}
	}
	return nil
}

// NormalizePhone returns the number as "+" followed by its digits.
// Spaces, dashes and parentheses are dropped.
func NormalizePhone(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	digits = strings.TrimPrefix(digits, "+")
	if !phoneDigitsPattern.MatchString(digits) {
		return "", invalid("channels.whatsapp", "must be a phone number of 7 to 15 digits")
	}
	return "+" + digits, nil
}
