// octopus: a Bayesian haplotype-based variant caller.
// Copyright (c) 2020 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/chapmanb/octopus/blob/master/LICENSE.txt>.

package genome

import (
	"fmt"
	"sort"
	"strings"
)

// Haplotype is a contiguous candidate sequence spanning an active
// region. It records the variants it carries relative to the reference
// so that it can be decomposed into alleles and spliced onto
// sub-regions.
type Haplotype struct {
	region Region
	bases  string
	events []Variant
}

// NewReferenceHaplotype creates the haplotype that carries no variants.
func NewReferenceHaplotype(region Region, refSequence []byte) *Haplotype {
	return &Haplotype{
		region: region,
		bases:  string(refSequence),
	}
}

// NewHaplotype applies a set of variants to the reference sequence of a
// region. The variants must lie within the region and not overlap; they
// are sorted by region here, so their input order does not matter.
func NewHaplotype(region Region, refSequence []byte, events []Variant) (*Haplotype, error) {
	if int32(len(refSequence)) != region.Size() {
		return nil, fmt.Errorf("reference sequence length %d does not span %v", len(refSequence), region)
	}
	sorted := make([]Variant, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Region().Compare(sorted[j].Region()) < 0
	})
	var bases strings.Builder
	refPos := region.Begin
	for i, event := range sorted {
		eventRegion := event.Region()
		if !region.Contains(eventRegion) {
			return nil, fmt.Errorf("event %v outside haplotype region %v", event, region)
		}
		if eventRegion.Begin < refPos {
			return nil, fmt.Errorf("overlapping events at %v", eventRegion)
		}
		refBases := string(refSequence[eventRegion.Begin-region.Begin : eventRegion.End-region.Begin])
		if refBases != event.Ref.Bases {
			return nil, fmt.Errorf("event %v reference allele disagrees with reference sequence %s", event, refBases)
		}
		bases.WriteString(string(refSequence[refPos-region.Begin : eventRegion.Begin-region.Begin]))
		bases.WriteString(event.Alt.Bases)
		refPos = eventRegion.End
		sorted[i] = event
	}
	bases.WriteString(string(refSequence[refPos-region.Begin:]))
	return &Haplotype{
		region: region,
		bases:  bases.String(),
		events: sorted,
	}, nil
}

// MappedRegion returns the region the haplotype spans.
func (h *Haplotype) MappedRegion() Region {
	return h.region
}

// Bases returns the haplotype sequence with all events applied.
func (h *Haplotype) Bases() string {
	return h.bases
}

// Events returns the variants the haplotype carries, sorted by region.
func (h *Haplotype) Events() []Variant {
	return h.events
}

// IsReference tells whether the haplotype carries no variants.
func (h *Haplotype) IsReference() bool {
	return len(h.events) == 0
}

// Compare orders haplotypes by region, then by sequence content. Two
// haplotypes comparing equal are interchangeable everywhere in the
// core.
func (h *Haplotype) Compare(other *Haplotype) int {
	if c := h.region.Compare(other.region); c != 0 {
		return c
	}
	switch {
	case h.bases < other.bases:
		return -1
	case h.bases > other.bases:
		return 1
	}
	return 0
}

// offset maps a reference position within the haplotype region to the
// corresponding offset in the haplotype sequence, accounting for length
// changes of all events ending at or before that position.
func (h *Haplotype) offset(refPos int32) int32 {
	offset := refPos - h.region.Begin
	for _, event := range h.events {
		eventRegion := event.Region()
		if eventRegion.End > refPos {
			break
		}
		offset += int32(len(event.Alt.Bases)) - int32(len(event.Ref.Bases))
	}
	return offset
}

// Splice projects the haplotype onto a sub-region, returning the allele
// it implies there. Splice boundaries that cut through an event snap to
// the event's length change, so splicing an event's own region returns
// its alt allele.
func (h *Haplotype) Splice(region Region) (Allele, error) {
	if !h.region.Contains(region) {
		return Allele{}, fmt.Errorf("splice region %v outside haplotype region %v", region, h.region)
	}
	begin := h.offset(region.Begin)
	end := h.offset(region.End)
	return Allele{Region: region, Bases: h.bases[begin:end]}, nil
}

// ContainsAllele tells whether splicing the allele's region out of the
// haplotype reproduces the allele.
func (h *Haplotype) ContainsAllele(a Allele) bool {
	spliced, err := h.Splice(a.Region)
	if err != nil {
		return false
	}
	return spliced.Bases == a.Bases
}

// Alleles decomposes the haplotype into the alt alleles of its events.
func (h *Haplotype) Alleles() []Allele {
	alleles := make([]Allele, len(h.events))
	for i, event := range h.events {
		alleles[i] = event.Alt
	}
	return alleles
}

func (h *Haplotype) String() string {
	return fmt.Sprintf("%v=%s", h.region, h.bases)
}

// EditDistance returns the Levenshtein distance between the sequences
// of two haplotypes.
func EditDistance(h1, h2 *Haplotype) int {
	return editDistance(h1.bases, h2.bases)
}

func editDistance(s1, s2 string) int {
	if s1 == s2 {
		return 0
	}
	previous := make([]int, len(s2)+1)
	current := make([]int, len(s2)+1)
	for j := range previous {
		previous[j] = j
	}
	for i := 0; i < len(s1); i++ {
		current[0] = i + 1
		for j := 0; j < len(s2); j++ {
			cost := 1
			if s1[i] == s2[j] {
				cost = 0
			}
			best := previous[j] + cost
			if del := previous[j+1] + 1; del < best {
				best = del
			}
			if ins := current[j] + 1; ins < best {
				best = ins
			}
			current[j+1] = best
		}
		previous, current = current, previous
	}
	return previous[len(s2)]
}

// SortUnique sorts haplotypes into canonical order and removes content
// duplicates. The returned slice is the canonical haplotype pool of a
// region.
func SortUnique(haplotypes []*Haplotype) []*Haplotype {
	sorted := make([]*Haplotype, len(haplotypes))
	copy(sorted, haplotypes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Compare(sorted[j]) < 0
	})
	unique := sorted[:0]
	for _, h := range sorted {
		if len(unique) == 0 || unique[len(unique)-1].Compare(h) != 0 {
			unique = append(unique, h)
		}
	}
	return unique
}
