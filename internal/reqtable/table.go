// Package reqtable implements the per-upstream request table and its
// correlation logic: spec §4.5, the hardest subsystem in the proxy. Each
// upstream owns a fixed 256-slot array indexed by the RADIUS identifier
// byte; this package provides slot allocation (sendrq), the writer task
// (retry/expiry/Status-Server scheduling) and the reader task (reply
// matching, validation, and rewrite-then-enqueue).
package reqtable

import (
	"errors"
	"time"

	"github.com/epiphyte/radiucal/internal/peer"
	"github.com/epiphyte/radiucal/internal/radcrypt"
	"github.com/epiphyte/radiucal/internal/radpacket"
)

// Tunables from spec §1/§9 GLOSSARY, conventional radsecproxy defaults.
const (
	RequestRetries     = 3
	RequestExpiry      = 20 * time.Second
	StatusServerPeriod = 25 * time.Second
	statusServerJitterMax = 8 // seconds, mod 8 per spec §4.5
)

// ErrTableFull means every slot in the upstream's table is occupied.
var ErrTableFull = errors.New("reqtable: no free slot")

// Transport is the minimal send/receive contract the writer/reader tasks
// need; satisfied by the datagram and stream adapters in package
// transport. Declared here rather than imported to avoid a dependency
// cycle (transport needs peer to resolve clients/upstreams; reqtable needs
// peer too, but must not need transport's concrete types).
type Transport interface {
	Send(buf []byte) error
	Receive() ([]byte, error)
}

// AllocateSlot is sendrq from spec §4.5, for callers (the ingest pipeline)
// that do not already hold the upstream's lock.
func AllocateSlot(u *peer.Upstream, slot *peer.Slot) error {
	u.Mu.Lock()
	defer u.Mu.Unlock()
	return allocateSlotLocked(u, slot)
}

// allocateSlotLocked implements sendrq assuming u.Mu is already held: scan
// forward from NextID for an empty slot, patch the assigned identifier
// into the outbound buffer, recompute Message-Authenticator if present (now
// keyed by the destination secret), store the slot, advance NextID, and
// signal the writer's condition. Used directly by the writer loop when it
// injects a Status-Server probe, since that happens while already holding
// the lock.
func allocateSlotLocked(u *peer.Upstream, slot *peer.Slot) error {
	idx, ok := findFreeSlotLocked(u)
	if !ok {
		return ErrTableFull
	}

	radpacket.SetIdentifier(slot.Buffer, byte(idx))
	if _, present := radpacket.Find(radpacket.Attrs(slot.Buffer), radpacket.TypeMessageAuthenticator); present {
		radcrypt.SetMessageAuthenticator(slot.Buffer, u.Secret)
	}

	u.Slots[idx] = slot
	u.NextID = byte((idx + 1) % peer.SlotCount)
	u.NewRequest = true
	u.Cond.Signal()
	return nil
}

func findFreeSlotLocked(u *peer.Upstream) (int, bool) {
	start := int(u.NextID)
	for off := 0; off < peer.SlotCount; off++ {
		i := (start + off) % peer.SlotCount
		if u.Slots[i] == nil {
			return i, true
		}
	}
	return 0, false
}

// FindDuplicate scans the table for an entry whose (origin client, orig id)
// matches, used by the ingest pipeline to drop client retransmits before
// allocating a new slot (spec §4.5 "Duplicate suppression on ingest").
func FindDuplicate(u *peer.Upstream, originClient *peer.Client, origID byte) bool {
	u.Mu.Lock()
	defer u.Mu.Unlock()
	for _, s := range u.Slots {
		if s != nil && s.OriginClient == originClient && s.OrigID == origID {
			return true
		}
	}
	return false
}
