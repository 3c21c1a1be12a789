package iocextractor

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"forensiq/pkg/types"
)

// dedupSet merges IOCs observed by the nine concurrent scanners, keyed by
// xxhash of (type, canonical_value) — the same hashing choice the teacher
// uses for its deduplication cache keys
// (pkg/deduplication/deduplication_manager.go), reused here for a
// process-local merge set rather than a persistent cache. It is the
// ordering authority (spec §4.C): insertion order is preserved so the
// first scanner to observe a given indicator determines its position in
// the final list.
type dedupSet struct {
	mu          sync.Mutex
	order       []uint64
	items       map[uint64]*types.IOC
	occurrences map[uint64]int
}

func newDedupSet() *dedupSet {
	return &dedupSet{
		items:       make(map[uint64]*types.IOC),
		occurrences: make(map[uint64]int),
	}
}

func dedupHash(iocType types.IOCType, canonicalValue string) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(string(iocType))
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(canonicalValue)
	return h.Sum64()
}

// merge inserts ioc, or widens an existing entry's [first_seen,last_seen]
// window, keeps the higher single-occurrence confidence's context, and
// counts the occurrence for the multi-occurrence bonus applied in
// results() (spec §4.C: "+min(3*occurrences, 15)").
func (d *dedupSet) merge(ioc types.IOC) {
	key := dedupHash(ioc.Type, ioc.Value)
	d.mu.Lock()
	defer d.mu.Unlock()

	d.occurrences[key]++

	existing, ok := d.items[key]
	if !ok {
		cp := ioc
		d.items[key] = &cp
		d.order = append(d.order, key)
		return
	}

	if ioc.FirstSeen.Before(existing.FirstSeen) {
		existing.FirstSeen = ioc.FirstSeen
	}
	if ioc.LastSeen.After(existing.LastSeen) {
		existing.LastSeen = ioc.LastSeen
	}
	if ioc.Confidence > existing.Confidence {
		existing.Confidence = ioc.Confidence
		existing.Context = ioc.Context
	}
	existing.Tags = mergeTags(existing.Tags, ioc.Tags)
	existing.Malicious = existing.Malicious || ioc.Malicious
}

func mergeTags(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, t := range a {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range b {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// results returns the merged IOCs in insertion order, each boosted by its
// multi-occurrence bonus, clamped, and filtered against threshold.
func (d *dedupSet) results(threshold int) []types.IOC {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]types.IOC, 0, len(d.order))
	for _, key := range d.order {
		ioc := *d.items[key]
		if occ := d.occurrences[key]; occ > 1 {
			bonus := 3 * occ
			if bonus > 15 {
				bonus = 15
			}
			ioc.Confidence += bonus
		}
		ioc.ClampConfidence()
		if ioc.Confidence < threshold {
			continue
		}
		out = append(out, ioc)
	}
	return out
}
