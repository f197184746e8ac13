package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
)

var syncDir = segment.SyncDir

const (
	// ManifestFile is the name of the manifest inside an index directory.
	// Its presence is what makes a directory an index.
	ManifestFile    = "meta.json"
	manifestVersion = 1
)

// Manifest is the committed description of an index: its schema and the
// ordered list of segments. The segment ordinal used in document addresses
// is the position in Segments.
type Manifest struct {
	Version   int            `json:"version"`
	IndexID   string         `json:"index_id"`
	CreatedAt time.Time      `json:"created_at"`
	Schema    []schema.Field `json:"schema"`
	Segments  []SegmentMeta  `json:"segments"`
}

// SegmentMeta records one published segment.
type SegmentMeta struct {
	ID   string `json:"id"`
	File string `json:"file"`
	Docs uint32 `json:"docs"`
}

func manifestExists(dir string) (bool, error) {
	_, err := os.Stat(filepath.Join(dir, ManifestFile))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("%w: checking manifest: %w", apperrors.ErrIO, err)
	}
}

// ReadManifest loads and sanity-checks the manifest of the index in dir
// without opening any segment.
func ReadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.Newf(apperrors.ErrNotFound, "no index at %s", dir)
		}
		return nil, fmt.Errorf("%w: reading manifest %s: %w", apperrors.ErrIO, path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parsing manifest %s: %w", apperrors.ErrCorruptIndex, path, err)
	}
	if m.Version != manifestVersion {
		return nil, apperrors.Newf(apperrors.ErrCorruptIndex, "manifest %s has unsupported version %d", path, m.Version)
	}
	for i, seg := range m.Segments {
		if seg.File == "" || seg.File != filepath.Base(seg.File) || !strings.HasSuffix(seg.File, segment.FileExt) {
			return nil, apperrors.Newf(apperrors.ErrCorruptIndex, "manifest %s: segment %d has invalid file name %q", path, i, seg.File)
		}
	}
	return &m, nil
}

// writeManifest publishes m with the same tmp+fsync+rename sequence the
// segment writer uses.
func writeManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding manifest: %w", apperrors.ErrIO, err)
	}
	finalPath := filepath.Join(dir, ManifestFile)
	tmpPath := finalPath + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: creating temp manifest: %w", apperrors.ErrIO, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: writing manifest: %w", apperrors.ErrIO, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: syncing manifest: %w", apperrors.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing manifest: %w", apperrors.ErrIO, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming manifest: %w", apperrors.ErrIO, err)
	}
	if err := syncDir(dir); err != nil {
		// The manifest is already visible. Take it back so the caller can
		// remove the segments; if that fails too, they must stay.
		if rmErr := os.Remove(finalPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return &manifestVisibleError{Path: finalPath, Err: multierror.Append(err, rmErr)}
		}
		return err
	}
	return nil
}

// manifestVisibleError reports a commit failure after which meta.json could
// not be withdrawn, so the segments it lists must not be deleted.
type manifestVisibleError struct {
	Path string
	Err  error
}

func (e *manifestVisibleError) Error() string {
	return fmt.Sprintf("manifest %s published but not synced: %v", e.Path, e.Err)
}

func (e *manifestVisibleError) Unwrap() error {
	return e.Err
}
