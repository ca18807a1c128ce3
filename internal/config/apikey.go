package config

import (
	"os"

	"github.com/rescale/filequery/internal/constants"
)

// ResolveAPIKey returns an API key by checking multiple sources in priority order.
//
// Priority (highest to lowest):
//  1. Provided apiKey parameter (if non-empty), e.g. from a flag
//  2. FILEQUERY_API_KEY environment variable
//  3. configured value (api_key in the config file)
//  4. token file at tokenPath, usually GetDefaultTokenPath()
//
// Returns empty string if no API key found in any source.
func ResolveAPIKey(apiKey, configured, tokenPath string) string {
	if apiKey != "" {
		return apiKey
	}
	if env := os.Getenv(constants.EnvPrefix + "API_KEY"); env != "" {
		return env
	}
	if configured != "" {
		return configured
	}
	if tokenPath != "" {
		if key, err := ReadTokenFile(tokenPath); err == nil {
			return key
		}
	}
	return ""
}
