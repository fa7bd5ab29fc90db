package radcrypt

import "errors"

// ErrBadMPPEValue is returned when an MS-MPPE-{Send,Recv}-Key value doesn't
// carry a 2-byte salt followed by at least 16 bytes of ciphertext.
var ErrBadMPPEValue = errors.New("radcrypt: MS-MPPE key value too short")

const mppeSaltLen = 2

// splitMPPE splits an MS-MPPE-Key attribute value into its salt and
// ciphertext per RFC 2548 §2.4.2/2.4.3.
func splitMPPE(value []byte) (salt, cipher []byte, err error) {
	if len(value) < mppeSaltLen+16 || (len(value)-mppeSaltLen)%16 != 0 {
		return nil, nil, ErrBadMPPEValue
	}
	return value[:mppeSaltLen], value[mppeSaltLen:], nil
}

// decryptMPPE inverts an MS-MPPE-Key ciphertext to plaintext key material
// under the given secret/request-authenticator/salt:
//
//	b_1 = MD5(secret || request_auth || salt)
//	b_i = MD5(secret || c_{i-1})            (i > 1)
func decryptMPPE(cipher, salt, secret []byte, auth [16]byte) []byte {
	seed := append(append([]byte{}, auth[:]...), salt...)
	return cryptChain(cipher, secret, seed, true)
}

func encryptMPPE(plain, salt, secret []byte, auth [16]byte) []byte {
	seed := append(append([]byte{}, auth[:]...), salt...)
	return cryptChain(plain, secret, seed, false)
}

// ReencryptMPPEKey re-encrypts an MS-MPPE-Send-Key/MS-MPPE-Recv-Key value
// from the origin secret/authenticator to the destination secret/
// authenticator, keeping the original salt and the attribute's overall
// length unchanged.
func ReencryptMPPEKey(value []byte, origSecret []byte, origAuth [16]byte, destSecret []byte, destAuth [16]byte) ([]byte, error) {
	salt, cipher, err := splitMPPE(value)
	if err != nil {
		return nil, err
	}
	plain := decryptMPPE(cipher, salt, origSecret, origAuth)
	newCipher := encryptMPPE(plain, salt, destSecret, destAuth)
	out := make([]byte, 0, len(value))
	out = append(out, salt...)
	out = append(out, newCipher...)
	return out, nil
}
