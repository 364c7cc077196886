package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelyard/selector/pkg/registry"
)

// Manifest describes one stored model binary: identity, provenance, the
// SHA-256 of the binary, and the evaluation record the training pipeline
// attached to it.
type Manifest struct {
	ID        string   `json:"id"`
	ModelName string   `json:"model_name"`
	Version   string   `json:"version"`
	Kind      string   `json:"kind"`      // regression|binary|multiclass
	FileName  string   `json:"file_name"` // model binary file within the artifact directory
	SHA256    string   `json:"sha256"`
	Tags      []string `json:"tags"`
	TrainedAt string   `json:"trained_at"` // RFC3339 UTC

	Evaluation *registry.Record `json:"evaluation,omitempty"`
}

// NewManifest creates a new manifest with default values.
func NewManifest(id, modelName, version, kind string) *Manifest {
	return &Manifest{
		ID:        id,
		ModelName: modelName,
		Version:   version,
		Kind:      kind,
		Tags:      []string{},
		TrainedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// SetBinary records the binary file name and its SHA-256 digest.
func (m *Manifest) SetBinary(fileName string, data []byte) {
	m.FileName = fileName
	hash := sha256.Sum256(data)
	m.SHA256 = hex.EncodeToString(hash[:])
}

// VerifyBinary checks the stored digest against the given binary contents.
func (m *Manifest) VerifyBinary(data []byte) error {
	hash := sha256.Sum256(data)
	if got := hex.EncodeToString(hash[:]); got != m.SHA256 {
		return fmt.Errorf("binary digest mismatch for %s: want %s, got %s", m.ID, m.SHA256, got)
	}
	return nil
}

// TrainedTime parses the training-completion timestamp.
func (m *Manifest) TrainedTime() (time.Time, error) {
	return time.Parse(time.RFC3339, m.TrainedAt)
}

// AddTag adds a tag to the manifest.
func (m *Manifest) AddTag(tag string) {
	for _, t := range m.Tags {
		if t == tag {
			return
		}
	}
	m.Tags = append(m.Tags, tag)
}

// Validate checks if the manifest is valid.
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("manifest ID is required")
	}
	if m.ModelName == "" {
		return fmt.Errorf("manifest model name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("manifest version is required")
	}
	switch m.Kind {
	case registry.KindRegression, registry.KindBinary, registry.KindMulticlass:
	default:
		return fmt.Errorf("unknown run kind %q", m.Kind)
	}
	if m.FileName == "" {
		return fmt.Errorf("manifest file name is required")
	}
	if m.SHA256 == "" {
		return fmt.Errorf("manifest SHA256 is required")
	}
	return nil
}

// ToJSON converts the manifest to JSON.
func (m *Manifest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// FromJSON creates a manifest from JSON.
func FromJSON(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ArtifactPath returns the path to the artifact directory.
func (m *Manifest) ArtifactPath(baseDir string) string {
	return fmt.Sprintf("%s/%s@%s", baseDir, m.ID, m.Version)
}

// ManifestPath returns the path to the manifest file.
func (m *Manifest) ManifestPath(baseDir string) string {
	return fmt.Sprintf("%s/manifest.json", m.ArtifactPath(baseDir))
}

// BinaryPath returns the path to the model binary.
func (m *Manifest) BinaryPath(baseDir string) string {
	if m.FileName == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s", m.ArtifactPath(baseDir), m.FileName)
}
