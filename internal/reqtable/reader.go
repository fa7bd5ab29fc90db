package reqtable

import (
	"errors"

	"github.com/epiphyte/radiucal/internal/peer"
	"github.com/epiphyte/radiucal/internal/radcrypt"
	"github.com/epiphyte/radiucal/internal/radpacket"
)

// ErrStreamClosed is returned (possibly wrapped) by a stream Transport's
// Receive when the underlying session has ended, by peer close or by any
// other receive error, after which the reader should invoke Reconnect.
// Connect, handshake and verification failures stay inside Reconnect.
// Datagram transports never return it.
var ErrStreamClosed = errors.New("reqtable: stream session closed")

// Reconnector is implemented by stream transports: Reconnect blocks until
// a new session is established per the backoff schedule in spec §4.6, and
// is a no-op contract for datagram transports (which don't implement it).
type Reconnector interface {
	Reconnect() error
}

// RunReader is the per-upstream reader task of spec §4.5/§4.6. It receives
// replies, correlates them against the request table, rewrites the
// password/MPPE material and authenticator under the origin client's
// secret, and hands the result to the origin client's reply queue. It
// checks stop before each receive, so it returns once stop is closed and
// the receive in progress, if any, has completed.
func RunReader(u *peer.Upstream, tr Transport, log Logger, stop <-chan struct{}) {
	if log == nil {
		log = nopLogger{}
	}
	for {
		select {
		case <-stop:
			return
		default:
		}

		buf, err := tr.Receive()
		if err != nil {
			if errors.Is(err, ErrStreamClosed) {
				if rc, ok := tr.(Reconnector); ok {
					if rerr := rc.Reconnect(); rerr != nil {
						log.Warn("reconnect failed", "upstream", u.Name, "error", rerr)
					}
				}
				continue
			}
			// Datagram transport-transient errors are ignored per spec §7.
			log.Debug("receive error", "upstream", u.Name, "error", err)
			continue
		}
		handleReply(u, buf, log)
	}
}

func handleReply(u *peer.Upstream, reply []byte, log Logger) {
	switch radpacket.Code(reply) {
	case radpacket.CodeAccessAccept, radpacket.CodeAccessReject, radpacket.CodeAccessChallenge:
	default:
		return
	}

	id := radpacket.Identifier(reply)

	u.Mu.Lock()
	slot := u.Slots[id]
	if slot == nil || slot.Tries == 0 {
		u.Mu.Unlock()
		return
	}
	if slot.Received {
		u.Mu.Unlock()
		return
	}

	var upstreamReqAuth [16]byte
	copy(upstreamReqAuth[:], slot.Buffer[4:20])

	if _, err := radpacket.ValidateHeader(reply); err != nil {
		u.Mu.Unlock()
		log.Debug("reply failed header validation", "upstream", u.Name, "error", err)
		return
	}
	if err := radpacket.Validate(radpacket.Attrs(reply)); err != nil {
		u.Mu.Unlock()
		log.Debug("reply failed attribute validation", "upstream", u.Name, "error", err)
		return
	}
	if !radcrypt.VerifyReplyAuthenticator(reply, upstreamReqAuth, u.Secret) {
		u.Mu.Unlock()
		log.Debug("reply authenticator mismatch", "upstream", u.Name)
		return
	}
	if !radcrypt.VerifyReplyMessageAuthenticator(reply, upstreamReqAuth, u.Secret) {
		u.Mu.Unlock()
		log.Debug("reply Message-Authenticator mismatch", "upstream", u.Name)
		return
	}

	if slot.IsStatus {
		slot.Received = true
		u.Slots[id] = nil
		u.Mu.Unlock()
		return
	}

	client := slot.OriginClient
	origID := slot.OrigID
	origAuth := slot.OrigAuth
	originAddr := slot.OriginAddr
	clientSecret := []byte(client.Secret)

	var rekeyErr error
	radpacket.WalkVendorSubs(radpacket.Attrs(reply), radpacket.VendorMicrosoft, func(sub radpacket.Attribute) {
		if rekeyErr != nil {
			return
		}
		switch sub.Type {
		case radpacket.VendorTypeMSMPPESendKey, radpacket.VendorTypeMSMPPERecvKey:
			rekeyed, err := radcrypt.ReencryptMPPEKey(sub.Value, u.Secret, upstreamReqAuth, clientSecret, origAuth)
			if err != nil {
				rekeyErr = err
				return
			}
			copy(sub.Value, rekeyed)
		}
	})
	if rekeyErr != nil {
		u.Mu.Unlock()
		log.Warn("aborting reply: MS-MPPE key re-encryption failed", "upstream", u.Name, "error", rekeyErr)
		return
	}

	radpacket.SetIdentifier(reply, origID)
	radpacket.SetAuthenticator(reply, origAuth[:])
	if _, present := radpacket.Find(radpacket.Attrs(reply), radpacket.TypeMessageAuthenticator); present {
		radcrypt.SetMessageAuthenticator(reply, clientSecret)
	}

	slot.Received = true
	u.Slots[id] = nil
	u.Mu.Unlock()

	out := append([]byte(nil), reply...)
	if !client.ReplyQueue.Enqueue(out, originAddr) {
		log.Warn("client reply queue full, dropping reply", "client", client.Name)
	}
}
