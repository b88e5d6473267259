// Package config defines the on-disk TOML configuration (§6) and the
// OS-specific application data directory layout it lives alongside.
package config

import "time"

// OllamaConfig names the models the gateway resolves per role (§4.4). Model
// resolution falls back to a family-prefix match when the exact name is
// absent from the server's inventory; Family* fields name that prefix.
type OllamaConfig struct {
	VisionModel       string `toml:"vision-model"`
	EmbeddingModel    string `toml:"embedding-model"`
	ReasoningModel    string `toml:"reasoning-model"`
	ReasoningFamily   string `toml:"reasoning-family"`
	TranslatorModel   string `toml:"translator-model"`
	TranslatorFamily  string `toml:"translator-family"`
	Endpoint          string `toml:"endpoint"`
}

// AgentConfig configures the LLM gateway (§4.4, §6 [agent]).
type AgentConfig struct {
	PowerMode      bool         `toml:"power-mode"`
	Ollama         OllamaConfig `toml:"ollama"`
	AllowGraphView bool         `toml:"allow-graph-view"`
}

// RedditConfig configures the scraper and clustering engine (§6 [reddit]).
type RedditConfig struct {
	Subreddits              []string `toml:"subreddits"`
	UpdateIntervalSeconds   int      `toml:"update-interval-seconds"`
	DataRetentionHours      int      `toml:"data-retention-hours"`
	SignificanceThreshold   float64  `toml:"significance-threshold"`
	InvestigationTTLMinutes int      `toml:"investigation-ttl-minutes"`
	SimilarityThreshold     float64  `toml:"similarity-threshold"`
}

// HeadlinesConfig configures the report builder (§6 [headlines]).
type HeadlinesConfig struct {
	Enabled bool     `toml:"enabled"`
	ShowAll bool     `toml:"show-all"`
	Topics  []string `toml:"topics"`
}

// UserConfig configures end-user facing preferences (§6 [user]).
type UserConfig struct {
	Language string `toml:"language"`
}

// Config is the root configuration document, matching the TOML shape in §6.
type Config struct {
	DebugMode      bool            `toml:"debug-mode"`
	UIRedditVisible bool           `toml:"ui-reddit-visible"`
	Agent          AgentConfig     `toml:"agent"`
	Reddit         RedditConfig    `toml:"reddit"`
	Headlines      HeadlinesConfig `toml:"headlines"`
	User           UserConfig      `toml:"user"`
}

// Default returns the configuration defaults named in §6.
func Default() Config {
	return Config{
		DebugMode:       false,
		UIRedditVisible: true,
		Agent: AgentConfig{
			PowerMode: false,
			Ollama: OllamaConfig{
				VisionModel:     "glm-ocr:latest",
				EmbeddingModel:  "nomic-embed-text-v2-moe:latest",
				ReasoningModel:  "gemma3:4b",
				ReasoningFamily: "gemma3",
				Endpoint:        "http://localhost:11434",
			},
			AllowGraphView: true,
		},
		Reddit: RedditConfig{
			Subreddits:              []string{"wallstreetbetsGER"},
			UpdateIntervalSeconds:   60,
			DataRetentionHours:      6,
			SignificanceThreshold:   10.0,
			InvestigationTTLMinutes: 60,
			SimilarityThreshold:     0.55,
		},
		Headlines: HeadlinesConfig{
			Enabled: true,
			ShowAll: true,
			Topics:  []string{},
		},
		User: UserConfig{
			Language: "de",
		},
	}
}

// UpdateInterval returns Reddit.UpdateIntervalSeconds as a Duration.
func (c Config) UpdateInterval() time.Duration {
	return time.Duration(c.Reddit.UpdateIntervalSeconds) * time.Second
}

// DataRetention returns Reddit.DataRetentionHours as a Duration.
func (c Config) DataRetention() time.Duration {
	return time.Duration(c.Reddit.DataRetentionHours) * time.Hour
}

// InvestigationTTL returns Reddit.InvestigationTTLMinutes as a Duration.
func (c Config) InvestigationTTL() time.Duration {
	return time.Duration(c.Reddit.InvestigationTTLMinutes) * time.Minute
}
