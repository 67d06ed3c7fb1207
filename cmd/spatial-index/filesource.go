// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/bbp-spatial/spatial-index/geometry"
	"github.com/bbp-spatial/spatial-index/source"
)

// circuitConfig and edgesFile are out of scope (§1: "parsing
// morphology files, reading attribute tables from the scientific data
// container ... are external collaborators; only their interfaces are
// fixed"). These readers are a thin line-delimited JSON stand-in so the
// CLI has something to drive source.MorphologySource/SynapseSource with;
// a real deployment swaps this file for a SONATA/circuit-config reader
// without touching anything downstream of the interfaces.

type segmentRecord struct {
	SectionID uint32        `json:"section_id"`
	SegmentID uint32        `json:"segment_id"`
	P1        geometry.Vec3 `json:"p1"`
	P2        geometry.Vec3 `json:"p2"`
	Radius    float32       `json:"radius"`
}

type neuronRecord struct {
	GID        uint64          `json:"gid"`
	SomaCentre geometry.Vec3   `json:"soma_centre"`
	SomaRadius float32         `json:"soma_radius"`
	Segments   []segmentRecord `json:"segments"`
}

// morphologyFileSource reads one JSON neuron record per line.
type morphologyFileSource struct {
	scanner *bufio.Scanner
	file    *os.File
}

func openMorphologySource(path string) (*morphologyFileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open circuit config %s: %w", path, err)
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &morphologyFileSource{scanner: sc, file: f}, nil
}

func (s *morphologyFileSource) Next() (source.Neuron, bool, error) {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec neuronRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return source.Neuron{}, false, fmt.Errorf("decode neuron record: %w", err)
		}
		n := source.Neuron{GID: rec.GID, SomaCentre: rec.SomaCentre, SomaRadius: rec.SomaRadius}
		for _, seg := range rec.Segments {
			n.Segments = append(n.Segments, source.Segment{
				SectionID: seg.SectionID,
				SegmentID: seg.SegmentID,
				P1:        seg.P1,
				P2:        seg.P2,
				Radius:    seg.Radius,
			})
		}
		return n, true, nil
	}
	if err := s.scanner.Err(); err != nil {
		return source.Neuron{}, false, err
	}
	return source.Neuron{}, false, nil
}

func (s *morphologyFileSource) Close() error { return s.file.Close() }

type synapseRecord struct {
	ID      uint64        `json:"id"`
	PreGID  uint64        `json:"pre_gid"`
	PostGID uint64        `json:"post_gid"`
	Centre  geometry.Vec3 `json:"centre"`
}

// synapseFileSource reads one JSON synapse record per line, optionally
// filtered to a single population name carried per-record.
type synapseFileSource struct {
	scanner    *bufio.Scanner
	file       *os.File
	population string
}

func openSynapseSource(path, population string) (*synapseFileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open edges file %s: %w", path, err)
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &synapseFileSource{scanner: sc, file: f, population: population}, nil
}

func (s *synapseFileSource) Next() (source.Synapse, bool, error) {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var wrapped struct {
			Population string `json:"population"`
			synapseRecord
		}
		if err := json.Unmarshal(line, &wrapped); err != nil {
			return source.Synapse{}, false, fmt.Errorf("decode synapse record: %w", err)
		}
		if s.population != "" && wrapped.Population != "" && wrapped.Population != s.population {
			continue
		}
		return source.Synapse{
			ID:      wrapped.ID,
			PreGID:  wrapped.PreGID,
			PostGID: wrapped.PostGID,
			Centre:  wrapped.Centre,
		}, true, nil
	}
	if err := s.scanner.Err(); err != nil {
		return source.Synapse{}, false, err
	}
	return source.Synapse{}, false, nil
}

func (s *synapseFileSource) Close() error { return s.file.Close() }

var _ io.Closer = (*morphologyFileSource)(nil)
var _ io.Closer = (*synapseFileSource)(nil)
