package reqtable

import (
	"time"

	"github.com/epiphyte/radiucal/internal/peer"
	"github.com/epiphyte/radiucal/internal/radpacket"
)

// Logger is the minimal logging contract the writer/reader tasks use,
// satisfied by a thin adapter over github.com/epiphyte/goutils in radiucal.go.
type Logger interface {
	Warn(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Debug(string, ...interface{}) {}

// RunWriter is the per-upstream writer task of spec §4.5. It owns the only
// goroutine that transmits on this upstream's connection (ordering
// guarantee from spec §5), retrying and expiring slots and injecting
// Status-Server probes on schedule. It returns when stop is closed.
func RunWriter(u *peer.Upstream, tr Transport, log Logger, stop <-chan struct{}) {
	if log == nil {
		log = nopLogger{}
	}
	for {
		select {
		case <-stop:
			return
		default:
		}

		u.Mu.Lock()
		if !u.NewRequest {
			waitForWorkLocked(u, stop)
		}
		select {
		case <-stop:
			u.Mu.Unlock()
			return
		default:
		}
		u.NewRequest = false
		writeOnceLocked(u, tr, log)
		u.Mu.Unlock()
	}
}

// writeOnceLocked runs one pass of the writer task's scan step (spec §4.5
// step 2-3): free received/exhausted slots, retry due ones, and inject a
// Status-Server probe if scheduled. u.Mu must be held on entry and is left
// held on return; split out from RunWriter so tests can drive a single pass
// without waiting on real wall-clock expiry.
func writeOnceLocked(u *peer.Upstream, tr Transport, log Logger) {
	now := time.Now()

	for i, s := range u.Slots {
		if s == nil {
			continue
		}
		if s.Received {
			u.Slots[i] = nil
			continue
		}
		if now.Before(s.Expiry) {
			continue
		}
		limit := u.RetryLimit(s.IsStatus, RequestRetries)
		if s.Tries >= limit {
			if s.IsStatus {
				log.Warn("upstream status-server probe exhausted retries, marking dead", "upstream", u.Name)
			}
			u.Slots[i] = nil
			continue
		}
		if u.Kind == peer.Stream || s.IsStatus {
			s.Expiry = now.Add(RequestExpiry)
		} else {
			s.Expiry = now.Add(RequestExpiry / RequestRetries)
		}
		s.Tries++
		u.LastSend = now
		if err := tr.Send(s.Buffer); err != nil {
			log.Warn("send failed", "upstream", u.Name, "error", err)
		}
	}

	if u.StatusServerEnabled && now.Sub(u.LastSend) >= StatusServerPeriod {
		probe := newStatusServerProbe()
		if err := allocateSlotLocked(u, probe); err != nil {
			log.Warn("unable to schedule status-server probe", "upstream", u.Name, "error", err)
		}
	}
}

// waitForWorkLocked blocks until NewRequest becomes true, stop is closed,
// or the nearest expiry/Status-Server wakeup deadline passes. u.Mu must be
// held on entry and is held (possibly released/reacquired by Cond.Wait) on
// return.
func waitForWorkLocked(u *peer.Upstream, stop <-chan struct{}) {
	// Closing stop ends the wait by raising NewRequest; RunWriter then
	// observes stop and returns without running a scan.
	watcher := make(chan struct{})
	defer close(watcher)
	go func() {
		select {
		case <-stop:
			u.Mu.Lock()
			u.NewRequest = true
			u.Cond.Broadcast()
			u.Mu.Unlock()
		case <-watcher:
		}
	}()

	deadline, bounded := wakeupDeadlineLocked(u)
	if !bounded {
		for !u.NewRequest {
			u.Cond.Wait()
		}
		return
	}
	timer := time.AfterFunc(time.Until(deadline), func() {
		u.Mu.Lock()
		u.Cond.Broadcast()
		u.Mu.Unlock()
	})
	defer timer.Stop()
	for !u.NewRequest && time.Now().Before(deadline) {
		u.Cond.Wait()
	}
}

// wakeupDeadlineLocked computes the bound for spec §4.5 step 1: the
// nearest expiry among occupied, unreceived slots, or, if Status-Server is
// enabled and it comes sooner, the last send plus STATUS_SERVER_PERIOD plus
// 0-7 seconds of jitter (now, if nothing has been sent yet). With no such
// slot and Status-Server disabled there is nothing to schedule and the
// writer waits unbounded for a new request.
func wakeupDeadlineLocked(u *peer.Upstream) (time.Time, bool) {
	now := time.Now()
	var deadline time.Time
	have := false

	for _, s := range u.Slots {
		if s == nil || s.Received {
			continue
		}
		if !have || s.Expiry.Before(deadline) {
			deadline, have = s.Expiry, true
		}
	}

	if u.StatusServerEnabled {
		var statusDeadline time.Time
		if u.LastSend.IsZero() {
			statusDeadline = now
		} else {
			jitter := time.Duration(statusServerJitterByte()) * time.Second
			statusDeadline = u.LastSend.Add(StatusServerPeriod + jitter)
		}
		if !have || statusDeadline.Before(deadline) {
			deadline, have = statusDeadline, true
		}
	}

	return deadline, have
}

func newStatusServerProbe() *peer.Slot {
	buf := make([]byte, radpacket.HeaderLen+18)
	buf[0] = radpacket.CodeStatusServer
	radpacket.SetLength(buf, uint16(len(buf)))
	copy(buf[4:20], randAuth())
	attrs := radpacket.Attrs(buf)
	attrs[0] = radpacket.TypeMessageAuthenticator
	attrs[1] = 18
	// value (16 bytes) is left zero; recomputed under the destination
	// secret by allocateSlotLocked via radcrypt.SetMessageAuthenticator.
	return &peer.Slot{Buffer: buf, IsStatus: true, Expiry: time.Now()}
}
