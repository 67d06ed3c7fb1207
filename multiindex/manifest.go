// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package multiindex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bbp-spatial/spatial-index/element"
	"github.com/bbp-spatial/spatial-index/errs"
	"github.com/bbp-spatial/spatial-index/geometry"
)

// ManifestFile is the conventional file name for a multi-index build's
// top index + subtree file listing, inside the directory named by the
// enclosing meta.Manifest's Path (§6 "a subtrees/ sub-directory and a
// top-index file").
const ManifestFile = "topindex.json"

type manifestJSON struct {
	ElementType string            `json:"element_type"`
	SubtreeFile map[string]string `json:"subtree_file"`
	TopIndex    []entryJSON       `json:"top_index"`
}

type entryJSON struct {
	SubtreeID int        `json:"subtree_id"`
	Min       [3]float32 `json:"min"`
	Max       [3]float32 `json:"max"`
}

// WriteManifest persists m's top index and subtree file listing into
// dir/ManifestFile.
func WriteManifest(dir string, m *Manifest) error {
	raw := manifestJSON{
		ElementType: m.ElementKind.String(),
		SubtreeFile: make(map[string]string, len(m.SubtreeFile)),
	}
	for id, name := range m.SubtreeFile {
		raw.SubtreeFile[fmt.Sprintf("%d", id)] = name
	}
	for _, e := range m.TopIndex {
		raw.TopIndex = append(raw.TopIndex, entryJSON{
			SubtreeID: e.SubtreeID,
			Min:       [3]float32{e.Envelope.Min.X, e.Envelope.Min.Y, e.Envelope.Min.Z},
			Max:       [3]float32{e.Envelope.Max.X, e.Envelope.Max.Y, e.Envelope.Max.Z},
		})
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode multi-index manifest: %v", errs.ErrInvalidInput, err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("%w: write multi-index manifest in %s: %v", errs.ErrIO, dir, err)
	}
	return nil
}

// ReadManifest loads a multi-index manifest previously written by
// WriteManifest.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: multi-index manifest missing in %s", errs.ErrNotFound, dir)
		}
		return nil, fmt.Errorf("%w: read multi-index manifest in %s: %v", errs.ErrIO, dir, err)
	}
	var raw manifestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse multi-index manifest in %s: %v", errs.ErrInvalidInput, dir, err)
	}
	kind, err := elementKindFromString(raw.ElementType)
	if err != nil {
		return nil, err
	}
	m := &Manifest{
		ElementKind: kind,
		SubtreeFile: make(map[int]string, len(raw.SubtreeFile)),
	}
	for idStr, name := range raw.SubtreeFile {
		var id int
		if _, err := fmt.Sscanf(idStr, "%d", &id); err != nil {
			return nil, fmt.Errorf("%w: malformed subtree id %q in %s", errs.ErrInvalidInput, idStr, dir)
		}
		m.SubtreeFile[id] = name
	}
	for _, e := range raw.TopIndex {
		m.TopIndex = append(m.TopIndex, Entry{
			SubtreeID: e.SubtreeID,
			Envelope: geometry.Box{
				Min: geometry.Vec3{e.Min[0], e.Min[1], e.Min[2]},
				Max: geometry.Vec3{e.Max[0], e.Max[1], e.Max[2]},
			},
		})
	}
	return m, nil
}

func elementKindFromString(s string) (element.Kind, error) {
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
