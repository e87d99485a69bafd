package snippet

// List is a ranked list of Snippets, at most one entry per signature.
// Ranking is implicit in ordering: the first item added is rank 1, etc.
type List struct {
	snippets   []*Snippet
	signatures map[string]int
	origins    map[string]struct{}
}

// NewList builds a List from zero or more snippets, in order.
func NewList(snippets ...*Snippet) *List {
	l := &List{signatures: make(map[string]int), origins: make(map[string]struct{})}
	for _, s := range snippets {
		l.Append(s)
	}
	return l
}

// Append adds a snippet with no duplicate detection.
func (l *List) Append(s *Snippet) {
	if l.signatures == nil {
		l.signatures = make(map[string]int)
		l.origins = make(map[string]struct{})
	}
	l.snippets = append(l.snippets, s)
	l.signatures[s.Signature()] = len(l.snippets) - 1
	for _, o := range s.Origins {
		l.origins[o.PID] = struct{}{}
	}
}

// Len returns the number of snippets.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.snippets)
}

// Snippets returns the list's snippets in rank order. Must not be
// mutated by the caller.
func (l *List) Snippets() []*Snippet {
	if l == nil {
		return nil
	}
	return l.snippets
}

// DistinctOrigins returns the count of distinct origin pids across
// every snippet currently in the list.
func (l *List) DistinctOrigins() int {
	if l == nil {
		return 0
	}
	return len(l.origins)
}

// Merge interleaves other into l round-robin, preserving l's rank:
// let k = max(1, distinct origins in l). Every k items emitted from l,
// one item from other is emitted. When an other-item's signature
// already exists in l, its origins are folded into the existing entry
// instead of duplicating it. This merge is non-commutative: k is
// derived from l (the left side) only.
func (l *List) Merge(other *List) {
	if other == nil || other.Len() == 0 {
		return
	}
	if l.signatures == nil {
		l.signatures = make(map[string]int)
		l.origins = make(map[string]struct{})
	}

	k := l.DistinctOrigins()
	if k < 1 {
		k = 1
	}

	selfSnippets := l.snippets
	lenSelf := len(selfSnippets)
	otherSnippets := other.snippets
	lenOther := len(otherSnippets)

	merged := NewList()
	i, j := 0, 0

	for i < lenSelf || j < lenOther {
		if i < lenSelf {
			merged.Append(selfSnippets[i])
			i++
		}
		if (i%k == 0 || i >= lenSelf) && j < lenOther {
			next := otherSnippets[j]
			sig := next.Signature()
			if idx, exists := l.signatures[sig]; exists && idx < lenSelf {
				selfSnippets[idx].AddOrigins(next.Origins)
				for _, o := range next.Origins {
					merged.origins[o.PID] = struct{}{}
				}
			} else if idx, exists := merged.signatures[sig]; exists {
				merged.snippets[idx].AddOrigins(next.Origins)
				for _, o := range next.Origins {
					merged.origins[o.PID] = struct{}{}
				}
			} else {
				merged.Append(next)
			}
			j++
		}
	}

	l.snippets = merged.snippets
	l.signatures = merged.signatures
	l.origins = merged.origins
}

// Trim truncates the list so that at most count items remain.
func (l *List) Trim(count int) {
	if l == nil || len(l.snippets) <= count {
		return
	}
	l.snippets = l.snippets[:count]
}

// RemoveEmpty strips snippets that carry only origins, no title or
// location — the carrier snippets written by Cache.Put to preserve
// peer/fingerprint association.
func (l *List) RemoveEmpty() {
	if l == nil {
		return
	}
	kept := NewList()
	for _, s := range l.snippets {
		if !s.Empty() {
			kept.Append(s)
		}
	}
	l.snippets = kept.snippets
	l.signatures = kept.signatures
	l.origins = kept.origins
}

// AddOrigin adds originID (with status/score) to every snippet in the list.
func (l *List) AddOrigin(originID string, status string, score *float64) {
	if l == nil {
		return
	}
	l.origins[originID] = struct{}{}
	for _, s := range l.snippets {
		s.AddOrigin(originID, status, score)
	}
}

// OriginBin pairs an origin pid with its accumulated reciprocal-rank score.
type OriginBin struct {
	PID   string
	Score float64
}

// OriginBins buckets the list's snippets by origin, for aggregated
// per-source rendering. Scores accumulate 1/rank for each snippet an
// origin contributed, in ascending order.
func (l *List) OriginBins() ([]OriginBin, map[string]*List) {
	items := make(map[string]*List)
	scores := make(map[string]float64)
	if l == nil {
		return nil, items
	}
	index := 1
	for _, s := range l.snippets {
		for _, o := range s.Origins {
			if items[o.PID] == nil {
				items[o.PID] = NewList()
			}
			items[o.PID].Append(s)
			scores[o.PID] += 1.0 / float64(index)
		}
		index++
	}
	bins := make([]OriginBin, 0, len(scores))
	for pid, score := range scores {
		bins = append(bins, OriginBin{PID: pid, Score: score})
	}
	for i := 1; i < len(bins); i++ {
		for j := i; j > 0 && bins[j-1].Score > bins[j].Score; j-- {
			bins[j-1], bins[j] = bins[j], bins[j-1]
		}
	}
	return bins, items
}
