// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

// Package meta holds the self-describing manifest record every index
// directory carries (§3, §4.G, §6) and the plumbing to read/write it. The
// manifest is deliberately data-only: it names a variant and a relative
// path, not a constructor, so that package query (which knows how to turn
// a manifest into a live façade) does not need to be imported here.
package meta

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bbp-spatial/spatial-index/element"
	"github.com/bbp-spatial/spatial-index/errs"
)

// ManifestFile is the conventional file name inside an index directory.
const ManifestFile = "manifest.json"

// Variant is the closed set of storage kinds a manifest can name (§3).
type Variant string

const (
	VariantInMemory     Variant = "in_memory"
	VariantMemoryMapped Variant = "memory_mapped"
	VariantMultiIndex   Variant = "multi_index"
)

// ExtendedRecord points at an external attribute store for enrichment
// (§3, §4.H).
type ExtendedRecord struct {
	Path       string `json:"path"`
	Population string `json:"population"`
}

// Manifest is the self-describing record an index directory carries.
// JSON is used as the on-disk encoding because the manifest's only job is
// to be a small, human-inspectable, forward-compatible record read once
// at open time — not a hot path worth a binary codec, and no third-party
// serialization library in the retrieval pack is a better fit for a
// record this small and this rarely read.
type Manifest struct {
	ElementType element.Kind    `json:"element_type"`
	Variant     Variant         `json:"variant"`
	Path        string          `json:"path"`
	Extended    *ExtendedRecord `json:"extended,omitempty"`
}

// manifestJSON mirrors Manifest but stores ElementType as its string form,
// since element.Kind's JSON representation should match the manifest's
// documented element_type strings ("morphology", "synapse", "sphere")
// rather than Kind's numeric backing value.
type manifestJSON struct {
	ElementType string          `json:"element_type"`
	Variant     Variant         `json:"variant"`
	Path        string          `json:"path"`
	Extended    *ExtendedRecord `json:"extended,omitempty"`
}

func (m Manifest) MarshalJSON() ([]byte, error) {
	return json.Marshal(manifestJSON{
		ElementType: m.ElementType.String(),
		Variant:     m.Variant,
		Path:        m.Path,
		Extended:    m.Extended,
	})
}

func (m *Manifest) UnmarshalJSON(data []byte) error {
	var raw manifestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind, err := parseElementType(raw.ElementType)
	if err != nil {
		return err
	}
	m.ElementType = kind
	m.Variant = raw.Variant
	m.Path = raw.Path
	m.Extended = raw.Extended
	return nil
}

func parseElementType(s string) (element.Kind, error) {
	switch s {
	case "morphology":
		return element.KindMorphology, nil
	case "synapse":
		return element.KindSynapse, nil
	case "sphere":
		return element.KindSphere, nil
	default:
		return 0, fmt.Errorf("%w: unknown element_type %q", errs.ErrInvalidInput, s)
	}
}

// Populations lists the sub-directories of a multi-population index
// directory (§4.G); each named entry is itself a directory containing its
// own manifest.
type Populations struct {
	Names []string `json:"populations"`
}

// PopulationsFile is the conventional file name for a multi-population
// top-level listing.
const PopulationsFile = "populations.json"

// Read loads the manifest from dir/ManifestFile.
func Read(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: manifest missing in %s", errs.ErrNotFound, dir)
		}
		return nil, fmt.Errorf("%w: read manifest in %s: %v", errs.ErrIO, dir, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parse manifest in %s: %v", errs.ErrInvalidInput, dir, err)
	}
	return &m, nil
}

// Write persists the manifest to dir/ManifestFile.
func Write(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode manifest: %v", errs.ErrInvalidInput, err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("%w: write manifest in %s: %v", errs.ErrIO, dir, err)
	}
	return nil
}

// ReadPopulations loads the multi-population listing from
// dir/PopulationsFile.
func ReadPopulations(dir string) (*Populations, error) {
	data, err := os.ReadFile(filepath.Join(dir, PopulationsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: populations listing missing in %s", errs.ErrNotFound, dir)
		}
		return nil, fmt.Errorf("%w: read populations listing in %s: %v", errs.ErrIO, dir, err)
	}
	var p Populations
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: parse populations listing in %s: %v", errs.ErrInvalidInput, dir, err)
	}
	return &p, nil
}

// WritePopulations persists a multi-population listing.
func WritePopulations(dir string, p *Populations) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode populations listing: %v", errs.ErrInvalidInput, err)
	}
	if err := os.WriteFile(filepath.Join(dir, PopulationsFile), data, 0o644); err != nil {
		return fmt.Errorf("%w: write populations listing in %s: %v", errs.ErrIO, dir, err)
	}
	return nil
}

// IsMultiPopulation reports whether dir looks like a multi-population
// directory (a populations listing present) rather than a single index
// directory (a manifest present).
func IsMultiPopulation(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, PopulationsFile))
	return err == nil
}
