package radcrypt

import "crypto/md5"

// cryptChain implements the RFC 2865 §5.2 User-Password salt-chaining
// construction, which RFC 2548's MS-MPPE-Key attributes and the
// Tunnel-Password attribute (RFC 2868) both reuse verbatim: given 16-byte
// blocks b_1..b_n,
//
//	c_1 = p_1 XOR MD5(secret || seed)
//	c_i = p_i XOR MD5(secret || c_{i-1})   (i > 1)
//
// decrypting solves the same equations for p given c. Both directions
// condition block i on the *ciphertext* block i-1, so the same walk works
// whether input holds plaintext (encrypt) or ciphertext (decrypt): the
// "previous ciphertext block" is either the input block itself (decrypt)
// or the output block we just produced (encrypt).
func cryptChain(input []byte, secret, seed []byte, decrypt bool) []byte {
	out := make([]byte, len(input))
	prev := seed
	for i := 0; i+16 <= len(input); i += 16 {
		h := md5.New()
		h.Write(secret)
		h.Write(prev)
		mask := h.Sum(nil)

		in := input[i : i+16]
		dst := out[i : i+16]
		for j := 0; j < 16; j++ {
			dst[j] = in[j] ^ mask[j]
		}

		if decrypt {
			prev = in
		} else {
			prev = dst
		}
	}
	return out
}
