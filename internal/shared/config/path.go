package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveConfigPath returns the explicitly requested configuration file and
// its source label. Priority order:
//  1. The explicit path (the --config flag).
//  2. FOCUSVAULT_CONFIG.
//
// An empty path means the file is searched for in ./ and ~/.focusvault/.
func ResolveConfigPath(explicit string) (string, string) {
	if trimmed := strings.TrimSpace(explicit); trimmed != "" {
		return expandHome(trimmed, ""), "flag"
	}
	if value, ok := os.LookupEnv(envPrefix + "_CONFIG"); ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return expandHome(trimmed, ""), envPrefix + "_CONFIG"
		}
	}
	return "", "search"
}

// DefaultConfigPath returns the file "config init" writes to.
func DefaultConfigPath(home string) string {
	return filepath.Join(home, defaultConfigDir, defaultConfigName+".yaml")
}

func resolveHome(homeDir func() (string, error)) string {
	if homeDir != nil {
		if resolved, err := homeDir(); err == nil && strings.TrimSpace(resolved) != "" {
			return strings.TrimSpace(resolved)
		}
	}
	if resolved, err := os.UserHomeDir(); err == nil && resolved != "" {
		return resolved
	}
	return "."
}

// expandHome replaces a leading "~" with home. An empty home resolves the
// current user's home directory.
func expandHome(path, home string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	if home == "" {
		home = resolveHome(nil)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
