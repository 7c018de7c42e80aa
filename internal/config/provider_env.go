package config

import (
	"context"
	"os"
)

// EnvVarProvider resolves secret paths by treating them as environment
// variable names. Passed to LoadConfig for a non-local APP_ENV, it lets
// API_KEY_SSM_PARAM name a variable exported in the shell instead of
// /{env}/courtwind/security/api_key. Missing keys are omitted from the result.
type EnvVarProvider struct{}

// NewEnvVarProvider creates a new EnvVarProvider.
func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{}
}

// GetParametersBatch implements SecretProvider.
func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := os.LookupEnv(key); ok {
			result[key] = val
		}
	}
	return result, nil
}
