// Package refdata loads reference data seeds from YAML files.
package refdata

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/ttms/core/refdata"
)

// Decode reads a dataset and validates its cross references. Unknown keys
// are rejected.
func Decode(r io.Reader) (refdata.Dataset, error) {
	var ds refdata.Dataset
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ds); err != nil && err != io.EOF {
		return refdata.Dataset{}, fmt.Errorf("decode reference data: %w", err)
	}
	if err := ds.Validate(); err != nil {
		return refdata.Dataset{}, err
	}
	return ds, nil
}

// LoadYAML reads the dataset at path.
func LoadYAML(path string) (refdata.Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return refdata.Dataset{}, err
	}
	ds, err := Decode(bytes.NewReader(raw))
	if err != nil {
		return refdata.Dataset{}, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Seed loads path and writes it through w.
func Seed(ctx context.Context, w refdata.Writer, path string) (refdata.Dataset, error) {
	ds, err := LoadYAML(path)
	if err != nil {
		return refdata.Dataset{}, err
	}
	if err := w.SeedReferenceData(ctx, ds); err != nil {
		return refdata.Dataset{}, fmt.Errorf("seed reference data: %w", err)
	}
	return ds, nil
}
