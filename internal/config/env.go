package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override the [report] section.
const (
	EnvAPIURL  = "SUBITISE_API_URL"
	EnvChildID = "SUBITISE_CHILD_ID"
	EnvGameID  = "SUBITISE_GAME_ID"
)

var envKeys = []string{EnvAPIURL, EnvChildID, EnvGameID}

// LoadEnv collects the known variables from the given .env files and the
// process environment. Earlier files win over later ones and the process
// environment wins over all files. Missing files are skipped.
func LoadEnv(paths ...string) (map[string]string, error) {
	out := map[string]string{}
	for i := len(paths) - 1; i >= 0; i-- {
		path := paths[i]
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		vars, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		for _, key := range envKeys {
			if v, ok := vars[key]; ok {
				out[key] = v
			}
		}
	}
	for _, key := range envKeys {
		if v, ok := os.LookupEnv(key); ok {
			out[key] = v
		}
	}
	return out, nil
}

// ApplyEnv overrides report settings in cfg with non-empty env values.
func ApplyEnv(cfg *FileConfig, env map[string]string) error {
	if v := strings.TrimSpace(env[EnvAPIURL]); v != "" {
		cfg.Report.APIURL = &v
	}
	for _, item := range []struct {
		key    string
		target **int64
	}{
		{EnvChildID, &cfg.Report.ChildID},
		{EnvGameID, &cfg.Report.GameID},
	} {
		raw := strings.TrimSpace(env[item.key])
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", item.key, raw, err)
		}
		*item.target = &n
	}
	return nil
}
