package fanout

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/snipdex-net/snipdex/peer"
)

func TestStateSelfReturnsCopy(t *testing.T) {
	s := NewState(&peer.Peer{PID: "me", PublicAddress: "1.2.3.4:8472"})

	cp := s.Self()
	cp.PublicAddress = "mutated"

	assert.Equal(t, "1.2.3.4:8472", s.Self().PublicAddress)
}

func TestStateSetSelfAddressIgnoresEmptyValues(t *testing.T) {
	s := NewState(&peer.Peer{PID: "me", PublicAddress: "1.1.1.1:1", LocalAddress: "10.0.0.1:1"})

	s.SetSelfAddress("2.2.2.2:2", "")

	self := s.Self()
	assert.Equal(t, "2.2.2.2:2", self.PublicAddress)
	assert.Equal(t, "10.0.0.1:1", self.LocalAddress)
}

func TestStateBrandingAndFallbackRoundTrip(t *testing.T) {
	s := NewState(&peer.Peer{PID: "me"})

	s.SetBranding(Branding{Trademark: "snipdex"})
	assert.Equal(t, "snipdex", s.Branding().Trademark)

	fb := peer.NewList()
	fb.MergeOne(&peer.Peer{PID: "p1"}, peer.StatusTODO, nil)
	s.SetFallback(fb)
	assert.Equal(t, 1, s.Fallback().Len())
}

func TestStateMotherPublicHost(t *testing.T) {
	s := NewState(&peer.Peer{PID: "me"})
	assert.Empty(t, s.MotherPublicHost())
	s.SetMotherPublicHost("198.51.100.7")
	assert.Equal(t, "198.51.100.7", s.MotherPublicHost())
}

func TestStateConcurrentAccess(t *testing.T) {
	s := NewState(&peer.Peer{PID: "me"})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.SetSelfAddress("1.1.1.1:1", "")
		}()
		go func() {
			defer wg.Done()
			_ = s.Self()
		}()
	}
	wg.Wait()
}
