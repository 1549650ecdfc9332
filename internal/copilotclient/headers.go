package copilotclient

import (
	"net/http"

	"github.com/google/uuid"
)

const (
	// editorPluginVersion and userAgent identify this proxy to Copilot as the
	// VS Code Copilot Chat extension; Copilot's backend gates behavior on
	// these values.
	editorPluginVersion = "copilot-chat/0.26.7"
	userAgent           = "GitHubCopilotChat/0.26.7"
	githubAPIVersion    = "2025-04-01"

	githubAPIBaseURL = "https://api.github.com"
)

// BaseURL picks the Copilot host for the configured account type.
// "individual" accounts use the bare domain; business/enterprise accounts
// use a subdomain keyed on the account type.
func BaseURL(accountType string) string {
	if accountType == "individual" {
		return "https://api.githubcopilot.com"
	}
	return "https://api." + accountType + ".githubcopilot.com"
}

// githubHeaders builds the header set for the GitHub token-exchange call.
func githubHeaders(ghToken, vscodeVersion string) http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("Authorization", "token "+ghToken)
	h.Set("Editor-Version", "vscode/"+vscodeVersion)
	h.Set("Editor-Plugin-Version", editorPluginVersion)
	h.Set("User-Agent", userAgent)
	h.Set("X-Github-Api-Version", githubAPIVersion)
	h.Set("X-Vscode-User-Agent-Library-Version", "electron-fetch")
	return h
}

// copilotHeaders builds the header set for calls to the Copilot chat
// backend itself (models, chat/completions).
func copilotHeaders(copilotToken, vscodeVersion string, vision bool) http.Header {
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+copilotToken)
	h.Set("Content-Type", "application/json")
	h.Set("Copilot-Integration-Id", "vscode-chat")
	h.Set("Editor-Version", "vscode/"+vscodeVersion)
	h.Set("Editor-Plugin-Version", editorPluginVersion)
	h.Set("User-Agent", userAgent)
	h.Set("Openai-Intent", "conversation-panel")
	h.Set("X-Github-Api-Version", githubAPIVersion)
	h.Set("X-Request-Id", uuid.NewString())
	h.Set("X-Vscode-User-Agent-Library-Version", "electron-fetch")
	if vision {
		h.Set("Copilot-Vision-Request", "true")
	}
	return h
}
