package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tokenByteLength gives a 64 character hex API key.
const tokenByteLength = 32

// GenerateAPIKey returns a random hex token for the API_KEY parameter.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, tokenByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating API key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
