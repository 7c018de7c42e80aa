package modelstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteDir writes a manifest, and weights when non-nil, into dir using the
// layout Load expects from a DirSource rooted at dir.
func WriteDir(dir, manifestName string, m *Manifest, weights []float32) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	if weights != nil {
		blob, err := EncodeWeights(weights)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, m.WeightsKey), blob, 0o644); err != nil {
			return fmt.Errorf("write weights: %w", err)
		}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestName), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
