package radcrypt

import "errors"

// ErrBadPasswordLength is returned when a User-Password/Tunnel-Password
// value isn't a multiple of 16 bytes in [16,128], per RFC 2865 §5.2.
var ErrBadPasswordLength = errors.New("radcrypt: password attribute length must be a multiple of 16 in [16,128]")

func checkPasswordLen(b []byte) error {
	if len(b) < 16 || len(b) > 128 || len(b)%16 != 0 {
		return ErrBadPasswordLength
	}
	return nil
}

// EncryptUserPassword encrypts a plaintext password under secret/requestAuth
// per RFC 2865 §5.2. plain must already be padded to a multiple of 16 bytes
// in [16,128].
func EncryptUserPassword(plain []byte, secret []byte, requestAuth [16]byte) ([]byte, error) {
	if err := checkPasswordLen(plain); err != nil {
		return nil, err
	}
	return cryptChain(plain, secret, requestAuth[:], false), nil
}

// DecryptUserPassword inverts EncryptUserPassword.
func DecryptUserPassword(cipher []byte, secret []byte, requestAuth [16]byte) ([]byte, error) {
	if err := checkPasswordLen(cipher); err != nil {
		return nil, err
	}
	return cryptChain(cipher, secret, requestAuth[:], true), nil
}

// EncryptTunnelPassword and DecryptTunnelPassword apply the identical
// transform to the Tunnel-Password attribute (RFC 2868 §3.5): the core
// treats the two attributes the same way for re-encryption purposes.
func EncryptTunnelPassword(plain []byte, secret []byte, requestAuth [16]byte) ([]byte, error) {
	return EncryptUserPassword(plain, secret, requestAuth)
}

func DecryptTunnelPassword(cipher []byte, secret []byte, requestAuth [16]byte) ([]byte, error) {
	return DecryptUserPassword(cipher, secret, requestAuth)
}

// ReencryptPassword decrypts a User-Password/Tunnel-Password value under
// the origin secret/authenticator and re-encrypts it under the destination
// secret/authenticator, without changing its length.
func ReencryptPassword(value []byte, origSecret []byte, origAuth [16]byte, destSecret []byte, destAuth [16]byte) ([]byte, error) {
	plain, err := DecryptUserPassword(value, origSecret, origAuth)
	if err != nil {
		return nil, err
	}
	return EncryptUserPassword(plain, destSecret, destAuth)
}
