package types

const redactedPlaceholder = "***REDACTED***"

// SecretString hides its value from fmt and JSON output so connection strings
// and API keys never reach logs. Unmask returns the raw value.
type SecretString string

// String returns a redacted placeholder.
func (s SecretString) String() string { return redactedPlaceholder }

// MarshalJSON encodes the redacted placeholder.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// Unmask returns the plaintext value. Use only where the secret is consumed.
func (s SecretString) Unmask() string { return string(s) }
