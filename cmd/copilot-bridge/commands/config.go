package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/copilot-bridge/internal/app"
)

// ambientEnvPrefix is stripped from ambient settings not named by the
// domain's own environment table (log level/format and the like), mirroring
// the teacher's CLAUDINE_ convention under this project's own name.
const ambientEnvPrefix = "COPILOT_BRIDGE_"

// loadConfig loads application configuration with precedence:
// config file → ambient environment → domain environment → CLI flags → defaults.
func loadConfig(configPath string, cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	ambientEnv := env.Provider(".", env.Opt{
		Prefix: ambientEnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			stripped := strings.TrimPrefix(key, ambientEnvPrefix)
			nested := strings.ToLower(strings.ReplaceAll(stripped, "__", "."))
			return nested, value
		},
		EnvironFunc: environFunc,
	})
	if err := k.Load(ambientEnv, nil); err != nil {
		return nil, fmt.Errorf("loading ambient environment variables: %w", err)
	}

	domainValues := domainEnvValues(environFunc())
	if err := k.Load(confmap.Provider(domainValues, "."), nil); err != nil {
		return nil, fmt.Errorf("loading domain environment variables: %w", err)
	}

	if cmd != nil {
		flagValues := extractAndTransformFlags(cmd)
		if err := k.Load(confmap.Provider(flagValues, "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	config := &app.Config{}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// domainEnvValues reads this proxy's own literal environment variable names
// (GH_TOKEN, PORT, ...) directly, rather than through koanf's prefixed/
// dotted nesting convention, since the domain's own names don't follow it.
// Unrecognized or malformed values are skipped; a malformed MODEL_RENAME_MAP
// is additionally reported with a warning logged here.
func domainEnvValues(environ []string) map[string]any {
	raw := make(map[string]string, len(environ))
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		raw[name] = value
	}

	values := make(map[string]any)

	if v, ok := raw["GH_TOKEN"]; ok && v != "" {
		values["auth.default_credential"] = v
	}
	if v, ok := raw["PORT"]; ok {
		if port, err := strconv.ParseUint(v, 10, 16); err == nil {
			values["server.port"] = uint16(port)
		}
	}
	if v, ok := raw["ACCOUNT_TYPE"]; ok && v != "" {
		values["upstream.account_type"] = v
	}
	if v, ok := raw["VSCODE_VERSION"]; ok && v != "" {
		values["upstream.vscode_version"] = v
	}
	if v, ok := raw["MODEL_RENAME_AUTO"]; ok {
		values["renamer.auto"] = v != "false"
	} else {
		values["renamer.auto"] = app.DefaultConfigRenamerAutoOn
	}
	if v, ok := raw["MODEL_RENAME_MAP"]; ok && v != "" {
		var renameMap map[string]string
		if err := json.Unmarshal([]byte(v), &renameMap); err == nil {
			values["renamer.map"] = renameMap
		} else {
			slog.Warn("ignoring malformed MODEL_RENAME_MAP", "error", err)
		}
	}
	if v, ok := raw["MODELS_CACHE_TTL"]; ok {
		if seconds, err := strconv.Atoi(v); err == nil {
			values["models_cache.ttl"] = time.Duration(seconds) * time.Second
		}
	}
	if v, ok := raw["EMULATE_THINKING"]; ok {
		values["thinking.emulate"] = v != "false"
	} else {
		values["thinking.emulate"] = app.DefaultConfigEmulateThinkOn
	}

	return values
}

// extractAndTransformFlags transforms CLI flag names to match config structure.
// Includes parent flags. Examples: --server--host → server.host, --log-level → log_level
func extractAndTransformFlags(cmd *cli.Command) map[string]any {
	values := make(map[string]any)

	for _, name := range cmd.FlagNames() {
		if !cmd.IsSet(name) {
			continue
		}

		if value := cmd.Value(name); value != nil {
			key := strings.ReplaceAll(name, "--", ".")
			key = strings.ReplaceAll(key, "-", "_")
			values[key] = value
		}
	}

	return values
}
