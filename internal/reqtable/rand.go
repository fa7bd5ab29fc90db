package reqtable

import "github.com/epiphyte/radiucal/internal/radcrypt"

func randAuth() []byte {
	return radcrypt.RandBytes(16)
}

// statusServerJitterByte returns the jitter applied to the Status-Server
// wakeup window: a fresh random byte mod 8, per spec §4.5.
func statusServerJitterByte() int {
	return int(radcrypt.RandByte()) % statusServerJitterMax
}
