package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/modelyard/selector/artifact"
)

// Store is a file-system backed model store. Each artifact lives in its own
// `<id>@<version>` directory holding a manifest.json and the model binary;
// every manifest is loaded into in-memory indexes on startup.
type Store struct {
	rootDir string
	cache   map[string]*artifact.Manifest
	byModel map[string][]*artifact.Manifest
	byKind  map[string][]*artifact.Manifest
	byTag   map[string][]*artifact.Manifest
	mu      sync.RWMutex
}

// NewStore creates a file-system model store rooted at rootDir and loads any
// manifests already present.
func NewStore(rootDir string) *Store {
	s := &Store{
		rootDir: rootDir,
		cache:   make(map[string]*artifact.Manifest),
		byModel: make(map[string][]*artifact.Manifest),
		byKind:  make(map[string][]*artifact.Manifest),
		byTag:   make(map[string][]*artifact.Manifest),
	}

	s.LoadManifests()

	return s
}

// LoadManifests loads all manifests from the store directory.
func (s *Store) LoadManifests() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache = make(map[string]*artifact.Manifest)
	s.byModel = make(map[string][]*artifact.Manifest)
	s.byKind = make(map[string][]*artifact.Manifest)
	s.byTag = make(map[string][]*artifact.Manifest)

	if err := os.MkdirAll(s.rootDir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	return filepath.Walk(s.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.Name() == "manifest.json" {
			if err := s.loadManifest(path); err != nil {
				fmt.Printf("Warning: failed to load manifest %s: %v\n", path, err)
			}
		}

		return nil
	})
}

// loadManifest loads, validates, and indexes a single manifest file. The
// caller must hold the write lock.
func (s *Store) loadManifest(manifestPath string) error {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	manifest, err := artifact.FromJSON(data)
	if err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}

	if err := manifest.Validate(); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}

	if err := s.verifySHA256(manifest.BinaryPath(s.rootDir), manifest.SHA256); err != nil {
		return fmt.Errorf("SHA256 verification failed: %w", err)
	}

	s.index(manifest)
	return nil
}

func (s *Store) index(manifest *artifact.Manifest) {
	key := fmt.Sprintf("%s@%s", manifest.ID, manifest.Version)
	s.cache[key] = manifest
	s.byModel[manifest.ModelName] = append(s.byModel[manifest.ModelName], manifest)
	s.byKind[manifest.Kind] = append(s.byKind[manifest.Kind], manifest)
	for _, tag := range manifest.Tags {
		s.byTag[tag] = append(s.byTag[tag], manifest)
	}
}

// verifySHA256 verifies the SHA256 hash of a file.
func (s *Store) verifySHA256(filePath, expectedHash string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return err
	}

	actualHash := hex.EncodeToString(hash.Sum(nil))
	if actualHash != expectedHash {
		return fmt.Errorf("SHA256 mismatch: expected %s, got %s", expectedHash, actualHash)
	}

	return nil
}

// Put writes the model binary and its manifest to the store and indexes it.
func (s *Store) Put(manifest *artifact.Manifest, binary []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := manifest.Validate(); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	if err := manifest.VerifyBinary(binary); err != nil {
		return err
	}

	artifactDir := manifest.ArtifactPath(s.rootDir)
	if err := os.MkdirAll(artifactDir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	if err := os.WriteFile(manifest.BinaryPath(s.rootDir), binary, 0644); err != nil {
		return fmt.Errorf("failed to write model binary: %w", err)
	}

	manifestData, err := manifest.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(manifest.ManifestPath(s.rootDir), manifestData, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	s.index(manifest)
	return nil
}

// Get returns the manifest and model binary for an ID and version, verifying
// the binary's digest on every read.
func (s *Store) Get(id, version string) (*artifact.Manifest, []byte, error) {
	s.mu.RLock()
	manifest := s.cache[fmt.Sprintf("%s@%s", id, version)]
	s.mu.RUnlock()

	if manifest == nil {
		return nil, nil, fmt.Errorf("artifact %s@%s not found", id, version)
	}

	binary, err := os.ReadFile(manifest.BinaryPath(s.rootDir))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read model binary: %w", err)
	}
	if err := manifest.VerifyBinary(binary); err != nil {
		return nil, nil, err
	}

	return manifest, binary, nil
}

// FindByModel returns all manifests for a model name.
func (s *Store) FindByModel(name string) []*artifact.Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyManifests(s.byModel[name])
}

// FindByKind returns all manifests of a run kind.
func (s *Store) FindByKind(kind string) []*artifact.Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyManifests(s.byKind[kind])
}

// FindByTag returns all manifests carrying a tag.
func (s *Store) FindByTag(tag string) []*artifact.Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyManifests(s.byTag[tag])
}

// List returns all manifests in the store.
func (s *Store) List() []*artifact.Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*artifact.Manifest, 0, len(s.cache))
	for _, manifest := range s.cache {
		result = append(result, manifest)
	}
	return result
}

// Evaluations returns the evaluation records embedded in stored manifests.
func (s *Store) Evaluations(model string) []*artifact.Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*artifact.Manifest
	for _, m := range s.byModel[model] {
		if m.Evaluation != nil {
			out = append(out, m)
		}
	}
	return out
}

// Delete removes an artifact from disk and all indexes.
func (s *Store) Delete(id, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("%s@%s", id, version)
	manifest := s.cache[key]
	if manifest == nil {
		return fmt.Errorf("artifact %s@%s not found", id, version)
	}

	if err := os.RemoveAll(manifest.ArtifactPath(s.rootDir)); err != nil {
		return fmt.Errorf("failed to remove artifact directory: %w", err)
	}

	delete(s.cache, key)
	s.byModel[manifest.ModelName] = removeManifest(s.byModel[manifest.ModelName], manifest)
	s.byKind[manifest.Kind] = removeManifest(s.byKind[manifest.Kind], manifest)
	for _, tag := range manifest.Tags {
		s.byTag[tag] = removeManifest(s.byTag[tag], manifest)
	}

	return nil
}

func copyManifests(in []*artifact.Manifest) []*artifact.Manifest {
	out := make([]*artifact.Manifest, len(in))
	copy(out, in)
	return out
}

func removeManifest(in []*artifact.Manifest, target *artifact.Manifest) []*artifact.Manifest {
	out := in[:0]
	for _, m := range in {
		if m != target {
			out = append(out, m)
		}
	}
	return out
}
