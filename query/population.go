// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package query

import (
	"fmt"
	"path/filepath"

	"github.com/bbp-spatial/spatial-index/errs"
	"github.com/bbp-spatial/spatial-index/meta"
)

// PopulationMode is the closed set of §4.H's population_mode values.
type PopulationMode int

const (
	// ModeSingle requires exactly one named population and shapes the
	// result as for a single-population index.
	ModeSingle PopulationMode = iota
	// ModeMulti returns a population -> per-population Result mapping.
	ModeMulti
)

// Populations opens every population of a multi-population directory
// (§4.G). Each population's façade is opened lazily on first query.
type Populations struct {
	dir    string
	names  []string
	opened map[string]*Facade
}

// OpenPopulations opens a multi-population directory's top-level listing
// without yet opening any individual population's façade.
func OpenPopulations(dir string) (*Populations, error) {
	listing, err := meta.ReadPopulations(dir)
	if err != nil {
		return nil, err
	}
	return &Populations{dir: dir, names: listing.Names, opened: make(map[string]*Facade)}, nil
}

// Names lists the populations available under this directory.
func (p *Populations) Names() []string { return p.names }

func (p *Populations) facade(name string) (*Facade, error) {
	if f, ok := p.opened[name]; ok {
		return f, nil
	}
	found := false
	for _, n := range p.names {
		if n == name {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: population %q not present in %s", errs.ErrInvalidInput, name, p.dir)
	}
	f, err := Open(filepath.Join(p.dir, name))
	if err != nil {
		return nil, err
	}
	p.opened[name] = f
	return f, nil
}

// Query runs q against the named populations under the given mode (§4.H).
// In ModeSingle, populations must name exactly one population and the
// return value's Columns/Elements/Count/GroupCounts are populated
// directly. In ModeMulti, results is keyed by population name.
func (p *Populations) Query(q Query, populations []string, mode PopulationMode) (single Result, multi map[string]Result, err error) {
	if mode == ModeSingle {
		if len(populations) != 1 {
			return Result{}, nil, fmt.Errorf("%w: population_mode single requires exactly one population", errs.ErrInvalidInput)
		}
		f, err := p.facade(populations[0])
		if err != nil {
			return Result{}, nil, err
		}
		r, err := f.Query(q)
		return r, nil, err
	}

	names := populations
	if len(names) == 0 {
		names = p.names
	}
	out := make(map[string]Result, len(names))
	for _, name := range names {
		f, err := p.facade(name)
		if err != nil {
			return Result{}, nil, err
		}
		r, err := f.Query(q)
		if err != nil {
			return Result{}, nil, err
		}
		out[name] = r
	}
	return Result{}, out, nil
}

// Close releases every opened population's façade.
func (p *Populations) Close() error {
	var firstErr error
	for _, f := range p.opened {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
