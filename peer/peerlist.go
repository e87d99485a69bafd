package peer

// Entry is a peer, its fan-out status, and its non-negative score
// within one PeerList.
type Entry struct {
	Peer   *Peer
	Status Status
	Score  *float64
}

// statusRank expresses the "forward progress" lattice used by merge:
// TODO never returns once any other status is reached.
var statusRank = map[Status]int{
	StatusTODO:    0,
	StatusDone:    1,
	StatusMe:      1,
	StatusEmpty:   1,
	StatusError:   1,
	StatusTimeout: 1,
}

// List is an ordered set of peers, at most one Entry per pid.
type List struct {
	entries []Entry
	index   map[string]int
}

// NewList builds a List from zero or more entries, in order, applying
// the same merge semantics as MergeOne.
func NewList(entries ...Entry) *List {
	l := &List{index: make(map[string]int)}
	for _, e := range entries {
		l.MergeOne(e.Peer, e.Status, e.Score)
	}
	return l
}

// Append adds a peer with no duplicate detection. Used only for
// building a list the caller already knows is deduplicated (e.g.
// assembling a single response straight from scratch).
func (l *List) Append(p *Peer, status Status, score *float64) {
	if l.index == nil {
		l.index = make(map[string]int)
	}
	l.entries = append(l.entries, Entry{Peer: p, Status: status, Score: score})
	l.index[p.PID] = len(l.entries) - 1
}

// Len returns the number of entries.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// Entries returns the list's entries in order. The returned slice must
// not be mutated by the caller.
func (l *List) Entries() []Entry {
	if l == nil {
		return nil
	}
	return l.entries
}

// Get returns the entry for pid, if present.
func (l *List) Get(pid string) (Entry, bool) {
	if l == nil || l.index == nil {
		return Entry{}, false
	}
	i, ok := l.index[pid]
	if !ok {
		return Entry{}, false
	}
	return l.entries[i], true
}

// MergeOne merges a single (peer, status, score) into the list: the
// entry for peer.PID is created if absent, otherwise its score takes
// the elementwise max and its status only ever advances forward
// (TODO -> anything; never anything -> TODO). The peer descriptor
// itself is replaced only if the incoming one has a strictly later
// Updated timestamp.
func (l *List) MergeOne(p *Peer, status Status, score *float64) {
	if l.index == nil {
		l.index = make(map[string]int)
	}
	i, found := l.index[p.PID]
	if !found {
		l.entries = append(l.entries, Entry{Peer: p, Status: status, Score: score})
		l.index[p.PID] = len(l.entries) - 1
		return
	}

	existing := l.entries[i]
	merged := existing

	if existing.Peer.OlderThan(p) {
		merged.Peer = p
	}
	merged.Score = maxScore(existing.Score, score)
	if statusRank[existing.Status] == 0 && statusRank[status] != 0 {
		merged.Status = status
	}
	l.entries[i] = merged
}

func maxScore(a, b *float64) *float64 {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *a >= *b:
		return a
	default:
		return b
	}
}

// Merge merges every entry of other into l, in other's order.
func (l *List) Merge(other *List) {
	if other == nil {
		return
	}
	for _, e := range other.entries {
		l.MergeOne(e.Peer, e.Status, e.Score)
	}
}

// Score builds a *float64 score literal, for callers that need one inline.
func Score(v float64) *float64 {
	return &v
}
