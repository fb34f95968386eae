package models

// Provider selects the model backend an agent talks to
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// ParseProvider maps request values onto a Provider. "localclaw" is accepted as local.
func ParseProvider(s string) (Provider, bool) {
	switch s {
	case "local", "localclaw":
		return ProviderLocal, true
	case "openai":
		return ProviderOpenAI, true
	case "gemini":
		return ProviderGemini, true
	default:
		return "", false
	}
}

// Channels holds the optional messaging channels of an agent
type Channels struct {
	Telegram string `json:"telegram,omitempty"`
	WhatsApp string `json:"whatsapp,omitempty"`
}

// AgentDescriptor is derived per deployment request. The container and its
// bound directory, both named AgentID, are its only durable state.
type AgentDescriptor struct {
	AgentID  string
	TenantID string
	Provider Provider
	APIKey   string
	Channels Channels
}

// DeployRequest is the body of a deployment request
type DeployRequest struct {
	AgentName string   `json:"agentName"`
	AgentID   string   `json:"agentId,omitempty"`
	Provider  string   `json:"provider"`
	APIKey    string   `json:"apiKey,omitempty"`
	Channels  Channels `json:"channels"`
}

// Deployment is the result of a successful deployment
type Deployment struct {
	AgentID      string `json:"agentId"`
	Port         string `json:"port"`
	DashboardURL string `json:"dashboardUrl"`
}

// AdmissionDecision is the outcome of a quota check. Unlimited implies Allowed.
type AdmissionDecision struct {
	Allowed   bool
	Remaining int
	Unlimited bool
}
