// Package record persists one JSON file per entity identity.
package record

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dex-cli/internal/model"
)

// Loader reads entity records by identity.
type Loader interface {
	Load(ctx context.Context, dexNo int) (*model.Pokemon, bool, error)
}

// Saver persists entity records.
type Saver interface {
	Save(ctx context.Context, rec *model.Pokemon) error
}

// FileStore keeps records as {dir}/{dex_no}.json. It is meant for a single
// sequential writer.
type FileStore struct {
	dir string
}

// NewFileStore creates the record directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "record: create dir %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the record directory.
func (s *FileStore) Dir() string { return s.dir }

// Path returns the file backing the given identity.
func (s *FileStore) Path(dexNo int) string {
	return filepath.Join(s.dir, strconv.Itoa(dexNo)+".json")
}

// Load returns the stored record, or an empty record and false if none has
// been written yet.
func (s *FileStore) Load(_ context.Context, dexNo int) (*model.Pokemon, bool, error) {
	data, err := os.ReadFile(s.Path(dexNo))
	if errors.Is(err, fs.ErrNotExist) {
		return model.NewPokemon(dexNo), false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "record: read %d", dexNo)
	}

	rec := model.NewPokemon(dexNo)
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, false, eris.Wrapf(err, "record: decode %d", dexNo)
	}
	rec.DexNo = dexNo
	return rec, true, nil
}

// Save normalizes and writes the record, replacing any previous file.
func (s *FileStore) Save(_ context.Context, rec *model.Pokemon) error {
	rec.Normalize()
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrapf(err, "record: encode %d", rec.DexNo)
	}

	tmp, err := os.CreateTemp(s.dir, strconv.Itoa(rec.DexNo)+".json.*")
	if err != nil {
		return eris.Wrapf(err, "record: create temp for %d", rec.DexNo)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(err, "record: write %d", rec.DexNo)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "record: close %d", rec.DexNo)
	}
	if err := os.Rename(tmpName, s.Path(rec.DexNo)); err != nil {
		return eris.Wrapf(err, "record: replace %d", rec.DexNo)
	}
	return nil
}

// List returns the identities that have a record file, ascending.
func (s *FileStore) List() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "record: list %s", s.dir)
	}
	var ids []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		id, err := strconv.Atoi(name[:len(name)-len(".json")])
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
