// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package query

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bbp-spatial/spatial-index/errs"
	"github.com/bbp-spatial/spatial-index/internal/arena"
	"github.com/bbp-spatial/spatial-index/meta"
	"github.com/bbp-spatial/spatial-index/multiindex"
	"github.com/bbp-spatial/spatial-index/rtree"
	"github.com/bbp-spatial/spatial-index/source"
)

// resolveBackend constructs the backend named by m, without regard to
// m.Extended (§4.G step 1: "chooses the variant ... and constructs the
// matching façade").
func resolveBackend(dir string, m *meta.Manifest) (backend, error) {
	switch m.Variant {
	case meta.VariantInMemory:
		data, err := os.ReadFile(filepath.Join(dir, m.Path))
		if err != nil {
			return nil, fmt.Errorf("%w: read index blob %s: %v", errs.ErrIO, m.Path, err)
		}
		tree, _, err := rtree.Decode(data)
		if err != nil {
			return nil, err
		}
		return &treeBackend{tree: tree}, nil

	case meta.VariantMemoryMapped:
		a, err := arena.Open(filepath.Join(dir, m.Path))
		if err != nil {
			return nil, err
		}
		tree, err := rtree.OpenMappedBytes(a.Bytes())
		if err != nil {
			a.Close()
			return nil, err
		}
		return &mappedBackend{tree: tree, arena: a}, nil

	case meta.VariantMultiIndex:
		subtreesDir := filepath.Join(dir, m.Path)
		topManifest, err := multiindex.ReadManifest(subtreesDir)
		if err != nil {
			return nil, err
		}
		reader, err := multiindex.Open(subtreesDir, topManifest)
		if err != nil {
			return nil, err
		}
		return &multiBackend{reader: reader}, nil

	default:
		return nil, fmt.Errorf("%w: unknown storage variant %q", errs.ErrUnsupported, m.Variant)
	}
}

// Open is the resolver of §4.G: it reads dir's manifest, picks the
// variant, and constructs the matching façade. A manifest carrying an
// extended record must be opened with OpenEnriched instead, since
// enrichment needs a caller-supplied source.AttributeStore that a
// manifest cannot itself provide.
func Open(dir string) (*Facade, error) {
	m, err := meta.Read(dir)
	if err != nil {
		return nil, err
	}
	if m.Extended != nil {
		return nil, fmt.Errorf("%w: index at %s has an extended record; use OpenEnriched", errs.ErrInvalidField, dir)
	}
	b, err := resolveBackend(dir, m)
	if err != nil {
		return nil, err
	}
	return &Facade{backend: b, kind: m.ElementType}, nil
}

// OpenEnriched behaves like Open, but wraps the façade with attribute
// enrichment backed by store, as directed by the manifest's extended
// record (§4.G, §4.H).
func OpenEnriched(dir string, store source.AttributeStore) (*Enriched, error) {
	m, err := meta.Read(dir)
	if err != nil {
		return nil, err
	}
	if m.Extended == nil {
		return nil, fmt.Errorf("%w: index at %s has no extended record to enrich with", errs.ErrInvalidInput, dir)
	}
	b, err := resolveBackend(dir, m)
	if err != nil {
		return nil, err
	}
	return &Enriched{facade: &Facade{backend: b, kind: m.ElementType}, store: store}, nil
}
