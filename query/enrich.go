// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package query

import (
	"fmt"

	"github.com/bbp-spatial/spatial-index/element"
	"github.com/bbp-spatial/spatial-index/errs"
	"github.com/bbp-spatial/spatial-index/source"
)

// Enriched wraps a Facade with an external source.AttributeStore (§4.H,
// §9 "extended index ... modelled as a decorator"). Built-in fields are
// answered by the underlying Facade directly; any other field is
// collected as hit identifiers and forwarded to the store in one batched
// call.
type Enriched struct {
	facade *Facade
	store  source.AttributeStore
}

// Query evaluates q. The "raw_elements" flavour cannot be combined with
// an enriched field and fails with InvalidField (§4.H); every other
// flavour behaves as Facade.Query, except that non-built-in field names
// are resolved via the attribute store instead of failing.
func (e *Enriched) Query(q Query) (Result, error) {
	if err := validateShape(q); err != nil {
		return Result{}, err
	}

	builtin, external := splitFields(q.Fields)
	if q.Flavour == FlavourRaw && len(external) > 0 {
		return Result{}, fmt.Errorf("%w: raw_elements cannot be combined with enriched fields", errs.ErrInvalidField)
	}
	if len(external) == 0 {
		return e.facade.Query(q)
	}

	idQuery := q
	idQuery.Flavour = FlavourFields
	idQuery.Fields = []string{string(idFieldFor(e.facade.Kind()))}
	base, err := e.facade.Query(idQuery)
	if err != nil {
		return Result{}, err
	}
	ids := toUint64Column(base.Columns[string(idFieldFor(e.facade.Kind()))])

	builtinCols := map[string][]any{}
	if len(builtin) > 0 {
		bq := q
		bq.Fields = builtin
		br, err := e.facade.Query(bq)
		if err != nil {
			return Result{}, err
		}
		builtinCols = br.Columns
	}

	cols := make(map[string][]any, len(q.Fields))
	for _, f := range builtin {
		cols[f] = builtinCols[f]
	}
	for _, f := range external {
		vals, err := e.store.Attribute(f, ids)
		if err != nil {
			return Result{}, &errs.AttributeError{Field: f, IDs: ids, Err: fmt.Errorf("%w: %v", errs.ErrIO, err)}
		}
		if len(vals) != len(ids) {
			return Result{}, fmt.Errorf("%w: attribute store returned %d values for %d ids", errs.ErrInvalidField, len(vals), len(ids))
		}
		cols[f] = vals
	}
	return Result{Columns: cols}, nil
}

// Close releases the underlying façade's resources.
func (e *Enriched) Close() error { return e.facade.Close() }

func splitFields(fields []string) (builtin, external []string) {
	for _, f := range fields {
		if element.IsBuiltinField(f) {
			builtin = append(builtin, f)
		} else {
			external = append(external, f)
		}
	}
	return builtin, external
}

func idFieldFor(kind element.Kind) element.Field {
	switch kind {
	case element.KindMorphology:
		return element.FieldGID
	default:
		return element.FieldID
	}
}

func toUint64Column(col []any) []uint64 {
	out := make([]uint64, len(col))
	for i, v := range col {
		switch n := v.(type) {
		case uint64:
			out[i] = n
		case uint32:
			out[i] = uint64(n)
		}
	}
	return out
}
