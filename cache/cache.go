// Package cache provides the persistent two-table store mapping query
// fingerprints to (PeerList, SnippetList) and peer pids to Peer records,
// including the sub-query back-off used to seed multi-term queries from
// their components.
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/snipdex-net/snipdex/peer"
	"github.com/snipdex-net/snipdex/query"
	"github.com/snipdex-net/snipdex/snippet"
)

var (
	peersBucket   = []byte("peers")
	queriesBucket = []byte("queries")
)

// Cache is the persistent, bbolt-backed query/peer store.
type Cache struct {
	db      *bolt.DB
	selfPID string
	logger  *slog.Logger
}

// OpenOrCreate opens the cache file at path, creating and initializing
// its schema if absent, and minting this node's own pid on first run.
func OpenOrCreate(path string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	c := &Cache{db: db, logger: logger}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(peersBucket); err != nil {
			return fmt.Errorf("create peers bucket: %w", err)
		}
		qb, err := tx.CreateBucketIfNotExists(queriesBucket)
		if err != nil {
			return fmt.Errorf("create queries bucket: %w", err)
		}
		if existing := qb.Get([]byte(query.Myself)); existing != nil {
			c.selfPID = string(existing)
			return nil
		}
		c.selfPID = peer.NewSelfID()
		return qb.Put([]byte(query.Myself), []byte(c.selfPID))
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: init schema: %w", err)
	}
	c.logger.Info("cache opened", "path", path, "self_pid", c.selfPID)
	return c, nil
}

// Close releases the underlying database file.
func (c *Cache) Close() error {
	return c.db.Close()
}

// SelfPID returns this node's own persistent identifier.
func (c *Cache) SelfPID() string {
	return c.selfPID
}

// storedSnippet is the on-disk shape of one cached snippet. Declared
// separately only so the cache package is explicit about what it
// persists; it reuses snippet.Snippet's own JSON tags.
type storedSnippet = snippet.Snippet

// Get performs an exact fingerprint lookup: the persisted snippet list,
// with unknown-pid origins dropped and empty carrier snippets stripped,
// and the peer list reconstructed by cross-referencing each surviving
// origin pid against the peers table.
func (c *Cache) Get(fingerprint string) (*peer.List, *snippet.List, error) {
	var raw []storedSnippet
	peers := peer.NewList()

	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(queriesBucket).Get([]byte(fingerprint))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode snippets for %q: %w", fingerprint, err)
		}

		pb := tx.Bucket(peersBucket)
		for i := range raw {
			kept := raw[i].Origins[:0]
			for _, o := range raw[i].Origins {
				pdata := pb.Get([]byte(o.PID))
				if pdata == nil {
					c.logger.Warn("cache: dropping origin for unknown peer", "pid", o.PID)
					continue
				}
				var p peer.Peer
				if err := json.Unmarshal(pdata, &p); err != nil {
					return fmt.Errorf("decode peer %q: %w", o.PID, err)
				}
				peers.MergeOne(&p, peer.Status(o.Status), o.Score)
				kept = append(kept, o)
			}
			raw[i].Origins = kept
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("cache: get %q: %w", fingerprint, err)
	}

	snippets := snippet.NewList()
	for i := range raw {
		snippets.Append(&raw[i])
	}
	snippets.RemoveEmpty()
	return peers, snippets, nil
}

// GetApprox decomposes fingerprint into its constituent terms and
// performs exact lookups against every sub-fingerprint written by
// PutBackoff for a query sharing those terms, merging the resulting
// peer lists with status forced back to TODO. It contributes no
// snippets — the caller already has the exact-fingerprint snippet list
// from Get.
func (c *Cache) GetApprox(fingerprint string) (*peer.List, error) {
	terms := query.Terms(fingerprint)
	result := peer.NewList()
	for _, sub := range subFingerprints(terms) {
		peers, _, err := c.Get(sub)
		if err != nil {
			return nil, err
		}
		for _, e := range peers.Entries() {
			result.MergeOne(e.Peer, peer.StatusTODO, e.Score)
		}
	}
	return result, nil
}

// Put rewrites and persists the (peers, snippets) pair for fingerprint.
// Each snippet's origins are overwritten with the up-to-date
// status/score found in peers; any peer with no snippet of its own is
// carried forward as a synthetic empty snippet, preserving the
// peer-fingerprint association. The write is atomic: both the queries
// row and the peers table upserts happen in a single transaction.
func (c *Cache) Put(fingerprint string, peers *peer.List, snippets *snippet.List) error {
	byPID := make(map[string]peer.Entry, peers.Len())
	for _, e := range peers.Entries() {
		byPID[e.Peer.PID] = e
	}

	seen := make(map[string]bool, len(byPID))
	out := make([]storedSnippet, 0, snippets.Len())
	for _, s := range snippets.Snippets() {
		cp := *s
		cp.Origins = append([]snippet.Origin(nil), s.Origins...)
		for i, o := range cp.Origins {
			if e, ok := byPID[o.PID]; ok {
				cp.Origins[i] = snippet.Origin{PID: o.PID, Status: string(e.Status), Score: e.Score}
				seen[o.PID] = true
			}
		}
		out = append(out, cp)
	}
	for pid, e := range byPID {
		if seen[pid] {
			continue
		}
		out = append(out, storedSnippet{
			Origins: []snippet.Origin{{PID: pid, Status: string(e.Status), Score: e.Score}},
		})
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("cache: encode snippets for %q: %w", fingerprint, err)
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(queriesBucket).Put([]byte(fingerprint), data); err != nil {
			return fmt.Errorf("put query %q: %w", fingerprint, err)
		}
		pb := tx.Bucket(peersBucket)
		for _, e := range byPID {
			pdata, err := json.Marshal(e.Peer)
			if err != nil {
				return fmt.Errorf("encode peer %q: %w", e.Peer.PID, err)
			}
			if err := pb.Put([]byte(e.Peer.PID), pdata); err != nil {
				return fmt.Errorf("put peer %q: %w", e.Peer.PID, err)
			}
		}
		return nil
	})
}

// PeerByPID looks up a single peer record by its pid, for admin/debug
// routes that show one peer's full descriptor.
func (c *Cache) PeerByPID(pid string) (*peer.Peer, bool, error) {
	var p peer.Peer
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(peersBucket).Get([]byte(pid))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &p)
	})
	if err != nil {
		return nil, false, fmt.Errorf("cache: peer by pid %q: %w", pid, err)
	}
	if !found {
		return nil, false, nil
	}
	return &p, true, nil
}

// peersPerPage is the fixed page size of the peer directory.
const peersPerPage = 10

// AllPeersByPage returns one page of the node's known peer directory
// (the peers bucket in pid order), ten peers per page, page 1-indexed.
// Used to answer the mother liveness probe and to hand a registering
// child its fallback peers.
func (c *Cache) AllPeersByPage(page int) (*peer.List, error) {
	if page < 1 {
		page = 1
	}
	skip := (page - 1) * peersPerPage

	result := peer.NewList()
	err := c.db.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket(peersBucket).Cursor()
		i := 0
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			if i < skip {
				i++
				continue
			}
			if result.Len() >= peersPerPage {
				break
			}
			var p peer.Peer
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("decode peer %q: %w", k, err)
			}
			result.Append(&p, peer.StatusDone, nil)
			i++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache: all peers by page: %w", err)
	}
	return result, nil
}

// PutBackoff merges peers, with status forced to TODO, into the cached
// peer list of every proper sub-fingerprint of fingerprint: each
// individual term and every proper prefix/suffix of the full term
// sequence. This lets a later multi-term query reuse peers discovered
// while resolving one of its components.
func (c *Cache) PutBackoff(fingerprint string, peers *peer.List) error {
	terms := query.Terms(fingerprint)
	for _, sub := range subFingerprints(terms) {
		existingPeers, existingSnippets, err := c.Get(sub)
		if err != nil {
			return err
		}
		for _, e := range peers.Entries() {
			existingPeers.MergeOne(e.Peer, peer.StatusTODO, e.Score)
		}
		if err := c.Put(sub, existingPeers, existingSnippets); err != nil {
			return err
		}
	}
	return nil
}

// subFingerprints returns the proper decomposition of a multi-term
// fingerprint used by both PutBackoff and GetApprox: every proper
// prefix, every proper suffix, and every individual term of the
// sequence, excluding the full joined fingerprint itself. A
// single-term fingerprint has no proper decomposition and yields nil.
func subFingerprints(terms []string) []string {
	if len(terms) <= 1 {
		return nil
	}
	seen := make(map[string]bool)
	var subs []string
	add := func(parts []string) {
		key := join(parts)
		if !seen[key] {
			seen[key] = true
			subs = append(subs, key)
		}
	}
	for length := 1; length < len(terms); length++ {
		add(terms[:length])
		add(terms[len(terms)-length:])
	}
	for _, t := range terms {
		add([]string{t})
	}
	return subs
}

func join(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "+" + p
	}
	return out
}
