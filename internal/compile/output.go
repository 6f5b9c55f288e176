package compile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dex-cli/internal/model"
	"github.com/sells-group/dex-cli/internal/record"
)

// Format selects the encoding of the merged-group file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat resolves a --format flag value. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	default:
		return "", eris.Errorf("compile: unknown format %q", s)
	}
}

// WriteGroups writes the merged-group file.
func WriteGroups(path string, groups []model.Group, format Format) error {
	if groups == nil {
		groups = []model.Group{}
	}
	data, err := encode(groups, format)
	if err != nil {
		return eris.Wrap(err, "compile: encode groups")
	}
	return writeAtomic(path, data)
}

// Total loads every present record in 1..maxID into an identity-keyed map.
// Missing records are left out.
func Total(ctx context.Context, loader record.Loader, maxID int) (map[string]*model.Pokemon, error) {
	out := make(map[string]*model.Pokemon, maxID)
	for id := 1; id <= maxID; id++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, found, err := loader.Load(ctx, id)
		if err != nil {
			return nil, eris.Wrapf(err, "compile: total load %d", id)
		}
		if !found {
			continue
		}
		out[strconv.Itoa(id)] = rec
	}
	return out, nil
}

// WriteTotal writes the identity-keyed record map as JSON.
func WriteTotal(path string, total map[string]*model.Pokemon) error {
	data, err := json.MarshalIndent(total, "", "  ")
	if err != nil {
		return eris.Wrap(err, "compile: encode total")
	}
	return writeAtomic(path, data)
}

func encode(v any, format Format) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil || format != FormatYAML {
		return data, err
	}
	// Round-trip through a generic value so the YAML keys match the JSON
	// field names and the tri-state related field keeps its null.
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return yaml.Marshal(generic)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "compile: create dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".compile-*")
	if err != nil {
		return eris.Wrap(err, "compile: create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "compile: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "compile: close %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "compile: rename %s", path)
	}
	return nil
}
