package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ArtifactSuffix separates family and version in descriptor file names:
// <family>_model_v<version>.json
const ArtifactSuffix = "_model_v"

// Backend types understood by the loader.
const (
	BackendLinear = "linear"
	BackendScript = "script"
	BackendRemote = "remote"
)

// ArtifactDescriptor is the on-disk description of one trained model version.
type ArtifactDescriptor struct {
	Family          string             `json:"family"`
	Version         string             `json:"version"`
	Kind            string             `json:"kind"`
	FeatureColumns  []string           `json:"feature_columns"`
	TargetColumn    string             `json:"target_column"`
	Scale           Scale              `json:"scale,omitempty"`
	Metrics         ModelMetrics       `json:"metrics"`
	FeatureDefaults map[string]float64 `json:"feature_defaults,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	Backend         BackendConfig      `json:"backend"`
}

// BackendConfig selects and configures the inference backend.
type BackendConfig struct {
	Type string `json:"type"`

	// linear
	Intercept    float64            `json:"intercept,omitempty"`
	Coefficients map[string]float64 `json:"coefficients,omitempty"`
	Means        map[string]float64 `json:"means,omitempty"`
	Scales       map[string]float64 `json:"scales,omitempty"`
	Classes      []string           `json:"classes,omitempty"`

	// script; Artifact is relative to the descriptor's directory
	Artifact string `json:"artifact,omitempty"`
	Script   string `json:"script,omitempty"`

	// remote
	Endpoint string `json:"endpoint,omitempty"`
}

// Loader populates a registry from descriptor files in a models directory.
type Loader struct {
	dir           string
	interpreter   string
	scriptTimeout time.Duration
	remoteTimeout time.Duration
}

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	ModelsDir     string
	Interpreter   string
	ScriptTimeout time.Duration
	RemoteTimeout time.Duration
}

// NewLoader creates a loader for cfg.ModelsDir.
func NewLoader(cfg LoaderConfig) *Loader {
	return &Loader{
		dir:           cfg.ModelsDir,
		interpreter:   cfg.Interpreter,
		scriptTimeout: cfg.ScriptTimeout,
		remoteTimeout: cfg.RemoteTimeout,
	}
}

// LoadAll registers every descriptor found in the models directory. Files are
// registered oldest version first so the newest version of each family ends
// up active. A file that fails to load is logged and skipped.
func (l *Loader) LoadAll(r *Registry) (int, error) {
	if _, err := os.Stat(l.dir); err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("models_dir", l.dir).Msg("Models directory not found, registry starts empty")
			return 0, nil
		}
		return 0, fmt.Errorf("models directory %s: %w", l.dir, err)
	}

	matches, err := filepath.Glob(filepath.Join(l.dir, "*"+ArtifactSuffix+"*.json"))
	if err != nil {
		return 0, fmt.Errorf("scan models directory: %w", err)
	}

	type entry struct {
		path string
		desc *ArtifactDescriptor
	}
	var entries []entry
	for _, path := range matches {
		desc, err := ReadDescriptor(path)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to read model descriptor")
			continue
		}
		entries = append(entries, entry{path: path, desc: desc})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].desc, entries[j].desc
		if a.Family != b.Family {
			return a.Family < b.Family
		}
		return versionLess(a.Version, b.Version)
	})

	loaded := 0
	for _, e := range entries {
		h, err := l.Handle(e.desc, filepath.Dir(e.path))
		if err != nil {
			log.Error().Err(err).Str("path", e.path).Msg("Failed to build model handle")
			continue
		}
		if err := r.Register(h); err != nil {
			log.Error().Err(err).Str("path", e.path).Msg("Failed to register model")
			continue
		}
		loaded++
	}

	log.Info().Int("loaded", loaded).Int("found", len(matches)).Int("active", r.Len()).Msg("Models loaded")
	return loaded, nil
}

// ReadDescriptor decodes one descriptor file. Family and version missing from
// the document are taken from the file name.
func ReadDescriptor(path string) (*ArtifactDescriptor, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var desc ArtifactDescriptor
	if err := json.NewDecoder(file).Decode(&desc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	family, version, ok := ParseArtifactName(filepath.Base(path))
	if desc.Family == "" {
		if !ok {
			return nil, fmt.Errorf("%s: no family in descriptor or file name", path)
		}
		desc.Family = family
	}
	if desc.Version == "" && ok {
		desc.Version = version
	}
	return &desc, nil
}

// WriteDescriptor stores desc in dir under its canonical file name.
func WriteDescriptor(dir string, desc *ArtifactDescriptor) (string, error) {
	if desc.Family == "" || desc.Version == "" {
		return "", fmt.Errorf("descriptor needs family and version")
	}
	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ArtifactName(desc.Family, desc.Version))
	return path, os.WriteFile(path, data, 0o600)
}

// ArtifactName returns the descriptor file name for a family version.
func ArtifactName(family, version string) string {
	return family + ArtifactSuffix + version + ".json"
}

// ParseArtifactName splits <family>_model_v<version>.json.
func ParseArtifactName(name string) (family, version string, ok bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	idx := strings.LastIndex(stem, ArtifactSuffix)
	if idx <= 0 {
		return "", "", false
	}
	return stem[:idx], stem[idx+len(ArtifactSuffix):], true
}

// Handle builds a ModelHandle with its backend from a descriptor. baseDir
// resolves relative script artifact paths.
func (l *Loader) Handle(desc *ArtifactDescriptor, baseDir string) (*ModelHandle, error) {
	kind, err := ParseKind(desc.Kind)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", desc.Family, err)
	}

	h := &ModelHandle{
		ID:              desc.Family,
		Kind:            kind,
		FeatureColumns:  desc.FeatureColumns,
		TargetColumn:    desc.TargetColumn,
		Version:         desc.Version,
		Metrics:         desc.Metrics,
		Scale:           desc.Scale,
		FeatureDefaults: desc.FeatureDefaults,
	}

	switch strings.ToLower(desc.Backend.Type) {
	case BackendLinear, "":
		h.Predictor, err = linearFromBackend(kind, desc.FeatureColumns, desc.Backend)
	case BackendScript:
		artifact := desc.Backend.Artifact
		if artifact != "" && !filepath.IsAbs(artifact) {
			artifact = filepath.Join(baseDir, artifact)
		}
		h.Predictor, err = NewScriptPredictor(ScriptConfig{
			Interpreter: l.interpreter,
			Script:      desc.Backend.Script,
			Artifact:    artifact,
			Columns:     desc.FeatureColumns,
			Timeout:     l.scriptTimeout,
		})
	case BackendRemote:
		if desc.Backend.Endpoint == "" {
			err = fmt.Errorf("remote backend has no endpoint")
			break
		}
		h.Predictor = NewRemotePredictor(desc.Backend.Endpoint, desc.Family, desc.FeatureColumns, l.remoteTimeout)
	default:
		err = fmt.Errorf("unknown backend %q", desc.Backend.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("model %s version %s: %w", desc.Family, desc.Version, err)
	}
	return h, nil
}

func linearFromBackend(kind Kind, columns []string, b BackendConfig) (*LinearModel, error) {
	coef := make([]float64, len(columns))
	for i, c := range columns {
		coef[i] = b.Coefficients[c]
	}
	var means, scales []float64
	if len(b.Means) > 0 {
		means = make([]float64, len(columns))
		for i, c := range columns {
			means[i] = b.Means[c]
		}
	}
	if len(b.Scales) > 0 {
		scales = make([]float64, len(columns))
		for i, c := range columns {
			s, ok := b.Scales[c]
			if !ok {
				s = 1
			}
			scales[i] = s
		}
	}
	m, err := NewLinearModel(kind, b.Intercept, coef, means, scales)
	if err != nil {
		return nil, err
	}
	if len(b.Classes) == 2 {
		m.Classes = b.Classes
	}
	return m, nil
}

// versionLess orders numeric versions numerically and everything else
// lexically, so "10" sorts after "9" and timestamps sort by time.
func versionLess(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
