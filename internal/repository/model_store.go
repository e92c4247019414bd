package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	applogger "StockCast/pkg/logger"
)

const (
	metadataFile = "metadata.json"
	scalerFile   = "scaler.json"
	weightsFile  = "weights.json"
)

// FSModelStore persists model artifacts as JSON files, one directory per
// ticker and horizon under the base directory.
type FSModelStore struct {
	dir string
	l   *applogger.Logger
}

func NewFSModelStore(dir string) *FSModelStore {
	return &FSModelStore{dir: dir}
}

// SetLogger injects a structured logger.
func (s *FSModelStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *FSModelStore) artifactDir(ticker string, h domrepo.Horizon) string {
	return filepath.Join(s.dir, strings.ToUpper(ticker), fmt.Sprintf("h%d", int(h)))
}

// Save writes the artifact to disk. The metadata file goes last so a
// half-written artifact never looks loadable. The recorded checksum must
// match the weights blob.
func (s *FSModelStore) Save(ctx context.Context, art *models.ModelArtifact) error {
	start := time.Now()
	meta := art.Metadata
	if meta.SchemaVersion != models.SchemaVersion {
		return fmt.Errorf("artifact schema %q, build writes %q: %w",
			meta.SchemaVersion, models.SchemaVersion, models.ErrSchemaVersion)
	}
	if got := models.WeightsChecksum(art.Weights); got != meta.WeightsSHA256 {
		return fmt.Errorf("weights checksum %s does not match metadata %s: %w",
			got, meta.WeightsSHA256, models.ErrDataIntegrity)
	}

	dir := s.artifactDir(meta.Ticker, domrepo.Horizon(meta.Horizon))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("artifact dir: %w", err)
	}
	metaBlob, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, scalerFile), art.Scaler, 0o644); err != nil {
		return fmt.Errorf("write scaler: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, weightsFile), art.Weights, 0o644); err != nil {
		return fmt.Errorf("write weights: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), metaBlob, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if s.l != nil {
		s.l.Info("artifact saved",
			applogger.String("ticker", meta.Ticker),
			applogger.Int("horizon", meta.Horizon),
			applogger.String("dir", dir),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

// Load reads one artifact. A missing artifact surfaces fs.ErrNotExist; an
// unknown schema version is refused before the blobs are read; a checksum
// mismatch fails with models.ErrDataIntegrity.
func (s *FSModelStore) Load(ctx context.Context, ticker string, h domrepo.Horizon) (*models.ModelArtifact, error) {
	dir := s.artifactDir(ticker, h)
	meta, err := s.loadMetadata(dir)
	if err != nil {
		return nil, err
	}
	scaler, err := os.ReadFile(filepath.Join(dir, scalerFile))
	if err != nil {
		return nil, fmt.Errorf("read scaler: %w", err)
	}
	weights, err := os.ReadFile(filepath.Join(dir, weightsFile))
	if err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}
	if got := models.WeightsChecksum(weights); got != meta.WeightsSHA256 {
		return nil, fmt.Errorf("weights checksum %s does not match metadata %s: %w",
			got, meta.WeightsSHA256, models.ErrDataIntegrity)
	}
	return &models.ModelArtifact{Metadata: *meta, Scaler: scaler, Weights: weights}, nil
}

// List returns the metadata of every stored artifact for ticker, in
// ascending horizon order. Missing horizons are skipped silently.
func (s *FSModelStore) List(ctx context.Context, ticker string) ([]models.ModelMetadata, error) {
	out := make([]models.ModelMetadata, 0, 2)
	for _, h := range domrepo.SupportedHorizons() {
		meta, err := s.loadMetadata(s.artifactDir(ticker, h))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *meta)
	}
	return out, nil
}

func (s *FSModelStore) loadMetadata(dir string) (*models.ModelMetadata, error) {
	blob, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var meta models.ModelMetadata
	if err := json.Unmarshal(blob, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", models.ErrDataIntegrity)
	}
	if meta.SchemaVersion != models.SchemaVersion {
		return nil, fmt.Errorf("artifact schema %q, build reads %q: %w",
			meta.SchemaVersion, models.SchemaVersion, models.ErrSchemaVersion)
	}
	return &meta, nil
}
