// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package config loads the configuration shared by dailypush and wxhook.
//
// Values come from an optional dotenv or YAML file, overlaid by the process
// environment. Keys are the environment variable names, for example
// TELEGRAM_BOT_TOKEN.
package config

import (
	"cmp"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Configuration keys.
const (
	TelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	TelegramChatID    = "TELEGRAM_CHAT_ID"
	WeComCorpID       = "WX_CORP_ID"
	WeComAgentID      = "WX_AGENT_ID"
	WeComSecret       = "WX_SECRET"
	WeComToken        = "WX_TOKEN"
	WeComAESKey       = "WX_ENCODING_AES_KEY"
	WeatherKeyID      = "QWEATHER_KEY_ID"
	WeatherProjectID  = "QWEATHER_PROJECT_ID"
	WeatherPrivateKey = "QWEATHER_PRIVATE_KEY"
	WeatherAPIHost    = "QWEATHER_API_HOST"
	WeatherLocation   = "QWEATHER_LOCATION"
	CityName          = "CITY_NAME"
	QuestionFile      = "QUESTION_FILE"
	Addr              = "ADDR"
	CommandsFile      = "WXHOOK_COMMANDS"
	RunnerPath        = "DAILYPUSH_BIN"
	ConfigFile        = "DAILYPUSH_CONFIG"
)

var knownKeys = []string{
	TelegramBotToken, TelegramChatID,
	WeComCorpID, WeComAgentID, WeComSecret, WeComToken, WeComAESKey,
	WeatherKeyID, WeatherProjectID, WeatherPrivateKey, WeatherAPIHost, WeatherLocation,
	CityName, QuestionFile, Addr, CommandsFile, RunnerPath,
}

// Keys required by the runners when they push messages.
var (
	SenderKeys  = []string{TelegramBotToken, TelegramChatID, WeComCorpID, WeComAgentID, WeComSecret}
	WeatherKeys = []string{WeatherKeyID, WeatherProjectID, WeatherPrivateKey, WeatherAPIHost, WeatherLocation}
	WebhookKeys = []string{WeComToken, WeComAESKey, WeComCorpID}

	// ServerKeys are required by wxhook: its own callback keys plus the
	// sender keys the runners it starts inherit.
	ServerKeys = []string{
		WeComToken, WeComAESKey, WeComCorpID, WeComAgentID, WeComSecret,
		TelegramBotToken, TelegramChatID,
	}
)

// ErrMissing is returned by [Config.Require] when required keys have no value.
var ErrMissing = errors.New("missing required configuration")

// Config is the parsed configuration.
type Config struct {
	Telegram struct {
		Token  string
		ChatID string
	}
	WeCom struct {
		CorpID         string
		AgentID        int
		Secret         string
		Token          string
		EncodingAESKey string
	}
	Weather struct {
		KeyID      string
		ProjectID  string
		PrivateKey string
		APIHost    string
		Location   string
	}
	CityName     string
	QuestionFile string
	Addr         string
	CommandsFile string
	RunnerPath   string

	k *koanf.Koanf
}

// Load reads the configuration from filename, if not empty, and then from
// getenv. Environment values take precedence over the file.
func Load(filename string, getenv func(string) string) (*Config, error) {
	k := koanf.New(".")

	if filename != "" {
		var parser koanf.Parser = dotenv.Parser()
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		}
		if err := k.Load(file.Provider(filename), parser); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", filename, err)
		}
	}

	if getenv != nil {
		overlay := make(map[string]any)
		for _, key := range knownKeys {
			if v := getenv(key); v != "" {
				overlay[key] = v
			}
		}
		if err := k.Load(confmap.Provider(overlay, ""), nil); err != nil {
			return nil, fmt.Errorf("loading environment: %w", err)
		}
	}

	c := &Config{k: k}
	c.Telegram.Token = k.String(TelegramBotToken)
	c.Telegram.ChatID = k.String(TelegramChatID)
	c.WeCom.CorpID = k.String(WeComCorpID)
	c.WeCom.Secret = k.String(WeComSecret)
	c.WeCom.Token = k.String(WeComToken)
	c.WeCom.EncodingAESKey = k.String(WeComAESKey)
	c.Weather.KeyID = k.String(WeatherKeyID)
	c.Weather.ProjectID = k.String(WeatherProjectID)
	c.Weather.PrivateKey = k.String(WeatherPrivateKey)
	c.Weather.APIHost = k.String(WeatherAPIHost)
	c.Weather.Location = k.String(WeatherLocation)
	c.CityName = k.String(CityName)
	c.QuestionFile = cmp.Or(k.String(QuestionFile), "questions.json")
	c.Addr = cmp.Or(k.String(Addr), ":8081")
	c.CommandsFile = k.String(CommandsFile)
	c.RunnerPath = cmp.Or(k.String(RunnerPath), "dailypush")

	if s := k.String(WeComAgentID); s != "" {
		id, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a number", WeComAgentID, s)
		}
		c.WeCom.AgentID = id
	}

	return c, nil
}

// Require returns an error wrapping [ErrMissing] that names every key in keys
// that has no value.
func (c *Config) Require(keys ...string) error {
	var missing []string
	for _, key := range keys {
		if strings.TrimSpace(c.k.String(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	return nil
}

// Scrubber returns a replacer that hides secrets from log and error messages.
func (c *Config) Scrubber() *strings.Replacer {
	var oldnew []string
	for _, secret := range []string{c.Telegram.Token, c.WeCom.Secret, c.WeCom.EncodingAESKey} {
		if secret != "" {
			oldnew = append(oldnew, secret, "[EXPUNGED]")
		}
	}
	return strings.NewReplacer(oldnew...)
}
