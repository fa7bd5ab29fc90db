package radcrypt

import "crypto/rand"

// RandBytes returns n cryptographically random bytes. Go's crypto/rand
// reads the OS CSPRNG on every call, so unlike the C original there is no
// discrete "seed once at startup" step to perform.
func RandBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("radcrypt: system CSPRNG unavailable: " + err.Error())
	}
	return b
}

// RandByte returns a single random byte, used for jittering the
// Status-Server wakeup window.
func RandByte() byte {
	return RandBytes(1)[0]
}
