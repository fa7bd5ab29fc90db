// Package radpacket implements the RADIUS wire format: header field access
// and the TLV attribute codec described in radsecproxy's attribute list
// walker. It works directly on the on-wire []byte buffer rather than a
// structured attribute bag, since the request table patches identifier and
// authenticator bytes in place and must not copy the buffer to do so.
package radpacket

import (
	"encoding/binary"
	"errors"
)

// RADIUS codes used by the core.
const (
	CodeAccessRequest   byte = 1
	CodeAccessAccept    byte = 2
	CodeAccessReject    byte = 3
	CodeAccessChallenge byte = 11
	CodeStatusServer    byte = 12
)

// Attribute types referenced by the core.
const (
	TypeUserName             byte = 1
	TypeUserPassword         byte = 2
	TypeReplyMessage         byte = 18
	TypeVendorSpecific       byte = 26
	TypeTunnelPassword       byte = 69
	TypeMessageAuthenticator byte = 80
)

// VendorMicrosoft is the SMI vendor id for MS-MPPE-{Send,Recv}-Key.
const VendorMicrosoft uint32 = 311

const (
	VendorTypeMSMPPESendKey byte = 16
	VendorTypeMSMPPERecvKey byte = 17
)

const (
	HeaderLen   = 20
	MinPacketLen = 20
	MaxPacketLen = 4096
)

var (
	// ErrTooShort means the buffer is smaller than a RADIUS header.
	ErrTooShort = errors.New("radpacket: packet shorter than header")
	// ErrBadLength means the RADIUS length field is out of bounds.
	ErrBadLength = errors.New("radpacket: length field out of bounds")
	// ErrBadAttribute means a TLV failed validation.
	ErrBadAttribute = errors.New("radpacket: malformed attribute")
)

// Code returns the packet's code byte (offset 0).
func Code(buf []byte) byte { return buf[0] }

// Identifier returns the packet's identifier byte (offset 1).
func Identifier(buf []byte) byte { return buf[1] }

// SetIdentifier patches the identifier byte in place.
func SetIdentifier(buf []byte, id byte) { buf[1] = id }

// Length returns the RADIUS length field (offset 2-3, big-endian).
func Length(buf []byte) uint16 { return binary.BigEndian.Uint16(buf[2:4]) }

// SetLength patches the RADIUS length field in place.
func SetLength(buf []byte, n uint16) { binary.BigEndian.PutUint16(buf[2:4], n) }

// Authenticator returns the 16-byte authenticator field (offset 4-19) as a
// slice aliasing buf; mutating it mutates buf.
func Authenticator(buf []byte) []byte { return buf[4:20] }

// SetAuthenticator overwrites the authenticator field in place.
func SetAuthenticator(buf []byte, auth []byte) { copy(buf[4:20], auth) }

// Attrs returns the attribute region (everything after the 20-byte header).
func Attrs(buf []byte) []byte { return buf[HeaderLen:] }

// ValidateHeader checks the overall buffer size against the RADIUS length
// field, per the datagram/stream receive rules in the transport adapters:
// cnt < 20, RADIUS length < 20, or cnt < RADIUS length are all rejected.
// When cnt > length the caller should truncate to length; ValidateHeader
// itself only reports the declared length, it does not truncate.
func ValidateHeader(buf []byte) (declaredLen int, err error) {
	if len(buf) < MinPacketLen {
		return 0, ErrTooShort
	}
	l := int(Length(buf))
	if l < MinPacketLen || l > MaxPacketLen {
		return 0, ErrBadLength
	}
	if len(buf) < l {
		return 0, ErrTooShort
	}
	return l, nil
}

// Attribute is one TLV found while walking the attribute region. Value
// aliases the source buffer, so in-place re-encryption is visible to the
// caller's original buffer.
type Attribute struct {
	Type  byte
	Value []byte
}

// Validate walks the TLV list in the attribute region (buf after the
// 20-byte header) verifying every TLV has length >= 2 and that none runs
// past the end of the region. A single trailing byte left over after the
// last complete TLV is tolerated (the caller should log a warning, per
// spec); anything else is ErrBadAttribute.
func Validate(attrs []byte) error {
	i := 0
	for i < len(attrs) {
		if len(attrs)-i == 1 {
			// trailing single byte, tolerated
			return nil
		}
		l := int(attrs[i+1])
		if l < 2 {
			return ErrBadAttribute
		}
		if i+l > len(attrs) {
			return ErrBadAttribute
		}
		i += l
	}
	return nil
}

// Walk invokes fn for every well-formed TLV in the attribute region, in
// wire order, stopping early if fn returns false. The caller must have
// already run Validate over the same region.
func Walk(attrs []byte, fn func(Attribute) bool) {
	i := 0
	for i+2 <= len(attrs) {
		l := int(attrs[i+1])
		if l < 2 || i+l > len(attrs) {
			return
		}
		a := Attribute{Type: attrs[i], Value: attrs[i+2 : i+l]}
		if !fn(a) {
			return
		}
		i += l
	}
}

// Find returns the first attribute of the given type in the attribute
// region, aliasing the source buffer.
func Find(attrs []byte, typ byte) ([]byte, bool) {
	var found []byte
	var ok bool
	Walk(attrs, func(a Attribute) bool {
		if a.Type == typ {
			found, ok = a.Value, true
			return false
		}
		return true
	})
	return found, ok
}

// VendorSub is one vendor sub-attribute found inside a type-26
// Vendor-Specific attribute.
type VendorSub struct {
	VendorID uint32
	Type     byte
	Value    []byte
}

// WalkVendorSubs scans every Vendor-Specific (type 26) attribute under the
// given vendor id and invokes fn for each inner sub-attribute, aliasing the
// source buffer so fn may rewrite Value in place (used to re-encrypt
// MS-MPPE-Send-Key/MS-MPPE-Recv-Key without changing attribute lengths).
func WalkVendorSubs(attrs []byte, vendorID uint32, fn func(sub Attribute)) {
	Walk(attrs, func(a Attribute) bool {
		if a.Type != TypeVendorSpecific || len(a.Value) < 4 {
			return true
		}
		vid := binary.BigEndian.Uint32(a.Value[0:4])
		if vid != vendorID {
			return true
		}
		inner := a.Value[4:]
		if Validate(inner) != nil {
			return true
		}
		Walk(inner, func(sub Attribute) bool {
			fn(sub)
			return true
		})
		return true
	})
}

// FindVendorSub scans every Vendor-Specific (type 26) attribute for a sub-
// attribute of subType under the given vendor id. Each Vendor-Specific
// value must carry at least 4 bytes of big-endian vendor id before its
// inner TLVs, which are validated with the same rules as the top-level
// list.
func FindVendorSub(attrs []byte, vendorID uint32, subType byte) ([]byte, bool) {
	var found []byte
	var ok bool
	Walk(attrs, func(a Attribute) bool {
		if a.Type != TypeVendorSpecific || len(a.Value) < 4 {
			return true
		}
		vid := binary.BigEndian.Uint32(a.Value[0:4])
		if vid != vendorID {
			return true
		}
		inner := a.Value[4:]
		if Validate(inner) != nil {
			return true
		}
		Walk(inner, func(sub Attribute) bool {
			if sub.Type == subType {
				found, ok = sub.Value, true
				return false
			}
			return true
		})
		return !ok
	})
	return found, ok
}
