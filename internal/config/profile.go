package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"roo-task/internal/protocol"
)

// EnvOpenRouterAPIKey holds the API key placed in the default profile.
const EnvOpenRouterAPIKey = "OPENROUTER_API_KEY"

func object(kv ...interface{}) *protocol.Configuration {
	c := protocol.NewConfiguration()
	for i := 0; i+1 < len(kv); i += 2 {
		c.Set(kv[i].(string), kv[i+1])
	}
	return c
}

// DefaultProfile returns the task configuration sent with a new task: an
// openrouter provider with auto-approval enabled. The API key is read through
// getenv and left out when unset.
func DefaultProfile(getenv func(string) string) *protocol.Configuration {
	if getenv == nil {
		getenv = os.Getenv
	}

	p := object("apiProvider", "openrouter")
	if key := getenv(EnvOpenRouterAPIKey); key != "" {
		p.Set("openRouterApiKey", key)
	}
	p.Set("openRouterModelId", "google/gemini-2.0-flash-001")
	p.Set("openRouterModelInfo", object(
		"maxTokens", 8192,
		"contextWindow", 1000000,
		"supportsImages", true,
		"supportsPromptCache", false,
		"inputPrice", 0.1,
		"outputPrice", 0.4,
		"thinking", false,
	))

	settings := object(
		"pinnedApiConfigs", protocol.NewConfiguration(),
		"lastShownAnnouncementId", "mar-20-2025-3-10",

		"autoApprovalEnabled", true,
		"alwaysAllowReadOnly", true,
		"alwaysAllowReadOnlyOutsideWorkspace", false,
		"alwaysAllowWrite", true,
		"alwaysAllowWriteOutsideWorkspace", false,
		"writeDelayMs", 200,
		"alwaysAllowBrowser", true,
		"alwaysApproveResubmit", true,
		"requestDelaySeconds", 5,
		"alwaysAllowMcp", true,
		"alwaysAllowModeSwitch", true,
		"alwaysAllowSubtasks", true,
		"alwaysAllowExecute", true,
		"allowedCommands", []interface{}{"*"},

		"browserToolEnabled", false,
		"browserViewportSize", "900x600",
		"screenshotQuality", 38,
		"remoteBrowserEnabled", true,

		"enableCheckpoints", false,
		"checkpointStorage", "task",

		"ttsEnabled", false,
		"ttsSpeed", 1,
		"soundEnabled", false,
		"soundVolume", 0.5,

		"maxOpenTabsContext", 20,
		"maxWorkspaceFiles", 200,
		"showRooIgnoredFiles", true,
		"maxReadFileLine", 500,

		"terminalOutputLineLimit", 500,
		"terminalShellIntegrationTimeout", 15000,

		"diffEnabled", true,
		"fuzzyMatchThreshold", 1.0,

		"experiments", object(
			"search_and_replace", true,
			"insert_content", false,
			"powerSteering", false,
		),

		"language", "en",
		"telemetrySetting", "enabled",

		"mcpEnabled", false,
		"mode", "code",
		"customModes", []interface{}{},
	)
	p.Merge(settings)
	return p
}

// LoadProfile reads a task configuration from a YAML or JSON file. Files
// ending in .json are decoded as JSON, anything else as YAML. Key order is
// kept.
func LoadProfile(path string) (*protocol.Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	profile := protocol.NewConfiguration()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, profile)
	} else {
		err = yaml.Unmarshal(data, profile)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: profile %s: %v", ErrInvalidConfig, path, err)
	}
	return profile, nil
}

// Profile returns the default profile with the file at path, if any, merged
// over it.
func Profile(path string, getenv func(string) string) (*protocol.Configuration, error) {
	base := DefaultProfile(getenv)
	if path == "" {
		return base, nil
	}
	overlay, err := LoadProfile(path)
	if err != nil {
		return nil, err
	}
	base.Merge(overlay)
	return base, nil
}
