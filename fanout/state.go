package fanout

import (
	"sync"

	"github.com/snipdex-net/snipdex/peer"
)

// State holds the node's mutable runtime state that the HTTP receiver
// reads on every request and the coordinator alone writes: its own Peer
// descriptor (address fields are adopted when a peer reports a
// different public address), the fallback peer list handed out by the
// mother at registration, the registration-time branding override, and
// the mother's own recorded public host used to gate the PONG probe.
// Concurrent searches only ever read this; writes are serialized
// through the registration/search coordinator.
type State struct {
	mu              sync.RWMutex
	self            *peer.Peer
	fallback        *peer.List
	branding        Branding
	motherPublicHost string
}

// NewState builds a State around self, the node's own Peer record.
func NewState(self *peer.Peer) *State {
	return &State{self: self, fallback: peer.NewList()}
}

// Self returns a shallow copy of the node's own Peer descriptor.
func (s *State) Self() *peer.Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := *s.self
	return &cp
}

// SetSelfAddress updates the node's own public/local address, adopted
// when a peer's response reports a different observed public_ip/port.
func (s *State) SetSelfAddress(publicAddr, localAddr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if publicAddr != "" {
		s.self.PublicAddress = publicAddr
	}
	if localAddr != "" {
		s.self.LocalAddress = localAddr
	}
}

// Fallback returns the current fallback peer list, handed out by the
// mother at registration and merged into every fan-out hop.
func (s *State) Fallback() *peer.List {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fallback
}

// SetFallback replaces the fallback peer list.
func (s *State) SetFallback(l *peer.List) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = l
}

// Branding returns the current UI branding override.
func (s *State) Branding() Branding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.branding
}

// SetBranding replaces the branding override. Treated as immutable
// configuration once registration completes.
func (s *State) SetBranding(b Branding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branding = b
}

// MotherPublicHost returns the mother's recorded public host, used to
// gate the SNIPDEX_QUERY_PONG liveness probe to requests that actually
// come from the mother.
func (s *State) MotherPublicHost() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.motherPublicHost
}

// SetMotherPublicHost records the mother's public host.
func (s *State) SetMotherPublicHost(host string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.motherPublicHost = host
}
