package radcrypt

import (
	"crypto/hmac"
	"crypto/md5"

	"github.com/epiphyte/radiucal/internal/radpacket"
)

// ComputeMessageAuthenticator returns the HMAC-MD5 of the whole packet,
// keyed by secret, with the Message-Authenticator attribute's value field
// (if present) treated as all-zero. packet is not mutated.
func ComputeMessageAuthenticator(packet []byte, secret []byte) [16]byte {
	scratch := append([]byte(nil), packet...)
	zeroMessageAuthenticator(scratch)
	mac := hmac.New(md5.New, secret)
	mac.Write(scratch)
	var out [16]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// SetMessageAuthenticator recomputes and writes the Message-Authenticator
// attribute's value in place. It is a no-op if the attribute isn't present.
func SetMessageAuthenticator(packet []byte, secret []byte) {
	val, ok := radpacket.Find(radpacket.Attrs(packet), radpacket.TypeMessageAuthenticator)
	if !ok || len(val) != 16 {
		return
	}
	for i := range val {
		val[i] = 0
	}
	sum := hmac.New(md5.New, secret)
	sum.Write(packet)
	copy(val, sum.Sum(nil))
}

// VerifyMessageAuthenticator validates an inbound packet's
// Message-Authenticator attribute, if present. A packet with no such
// attribute is considered valid (nothing to check).
func VerifyMessageAuthenticator(packet []byte, secret []byte) bool {
	val, ok := radpacket.Find(radpacket.Attrs(packet), radpacket.TypeMessageAuthenticator)
	if !ok || len(val) != 16 {
		return !ok
	}
	original := append([]byte(nil), val...)
	for i := range val {
		val[i] = 0
	}
	mac := hmac.New(md5.New, secret)
	mac.Write(packet)
	sum := mac.Sum(nil)
	copy(val, original)
	return hmac.Equal(sum, original)
}

// VerifyReplyMessageAuthenticator validates a reply's Message-Authenticator
// attribute, if present. Per RFC 3579 §3.2 the HMAC is computed with the
// packet's own authenticator field replaced by the *request* authenticator,
// so this splices requestAuth into packet[4:20], verifies, then restores
// the reply's real authenticator before returning.
func VerifyReplyMessageAuthenticator(reply []byte, requestAuth [16]byte, secret []byte) bool {
	val, ok := radpacket.Find(radpacket.Attrs(reply), radpacket.TypeMessageAuthenticator)
	if !ok || len(val) != 16 {
		return !ok
	}
	savedAuthField := append([]byte(nil), reply[4:20]...)
	copy(reply[4:20], requestAuth[:])
	valid := VerifyMessageAuthenticator(reply, secret)
	copy(reply[4:20], savedAuthField)
	return valid
}

func zeroMessageAuthenticator(packet []byte) {
	val, ok := radpacket.Find(radpacket.Attrs(packet), radpacket.TypeMessageAuthenticator)
	if !ok {
		return
	}
	for i := range val {
		val[i] = 0
	}
}
