package config

import "context"

// SecretProvider resolves the targets of _SSM_PARAM pointer variables. In a
// deployed stage those are SecureStrings such as
//
//	API_KEY_SSM_PARAM=/prod/courtwind/security/api_key
//	DATABASE_URL_SSM_PARAM=/prod/courtwind/database/url
//	INFERENCE_API_KEY_SSM_PARAM=/prod/courtwind/inference/api_key
//
// as written by cmd/ops/params. SSMProvider serves deployed environments and
// EnvVarProvider serves local development.
type SecretProvider interface {
	// GetParametersBatch returns path -> plaintext for every path it could
	// resolve. Implementations batch internally to respect API limits.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
