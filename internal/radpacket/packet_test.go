package radpacket

import "testing"

func buildAttrs(tlvs ...[]byte) []byte {
	var out []byte
	for _, t := range tlvs {
		out = append(out, t...)
	}
	return out
}

func tlv(typ byte, value []byte) []byte {
	out := []byte{typ, byte(len(value) + 2)}
	return append(out, value...)
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	attrs := buildAttrs(tlv(TypeUserName, []byte("alice")), tlv(TypeReplyMessage, []byte("hi")))
	if err := Validate(attrs); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestValidateToleratesTrailingByte(t *testing.T) {
	attrs := append(buildAttrs(tlv(TypeUserName, []byte("alice"))), 0x00)
	if err := Validate(attrs); err != nil {
		t.Fatalf("expected trailing byte tolerated, got %v", err)
	}
}

func TestValidateRejectsShortLength(t *testing.T) {
	attrs := []byte{TypeUserName, 1, 'x'}
	if err := Validate(attrs); err != ErrBadAttribute {
		t.Fatalf("expected ErrBadAttribute, got %v", err)
	}
}

func TestValidateRejectsOverrun(t *testing.T) {
	attrs := []byte{TypeUserName, 10, 'x', 'y'}
	if err := Validate(attrs); err != ErrBadAttribute {
		t.Fatalf("expected ErrBadAttribute, got %v", err)
	}
}

func TestFind(t *testing.T) {
	attrs := buildAttrs(tlv(TypeUserName, []byte("bob")), tlv(TypeUserPassword, []byte("secretsecretsecr")))
	v, ok := Find(attrs, TypeUserName)
	if !ok || string(v) != "bob" {
		t.Fatalf("expected bob, got %q ok=%v", v, ok)
	}
	if _, ok := Find(attrs, TypeReplyMessage); ok {
		t.Fatal("should not have found Reply-Message")
	}
}

func TestFindVendorSub(t *testing.T) {
	inner := buildAttrs(tlv(VendorTypeMSMPPESendKey, []byte("0123456789012345")))
	vendorValue := append([]byte{0, 0, 1, 55}, inner...) // vendor id 311 big-endian
	attrs := buildAttrs(tlv(TypeVendorSpecific, vendorValue))
	v, ok := FindVendorSub(attrs, VendorMicrosoft, VendorTypeMSMPPESendKey)
	if !ok || string(v) != "0123456789012345" {
		t.Fatalf("expected key material, got %q ok=%v", v, ok)
	}
	if _, ok := FindVendorSub(attrs, VendorMicrosoft, VendorTypeMSMPPERecvKey); ok {
		t.Fatal("should not have found recv key")
	}
}

func TestHeaderAccessors(t *testing.T) {
	buf := make([]byte, 20)
	buf[0] = CodeAccessRequest
	buf[1] = 7
	SetLength(buf, 20)
	SetAuthenticator(buf, make([]byte, 16))
	if Code(buf) != CodeAccessRequest || Identifier(buf) != 7 || Length(buf) != 20 {
		t.Fatal("header accessors mismatched")
	}
	SetIdentifier(buf, 42)
	if Identifier(buf) != 42 {
		t.Fatal("SetIdentifier did not patch in place")
	}
}

func TestValidateHeaderBounds(t *testing.T) {
	if _, err := ValidateHeader(make([]byte, 10)); err != ErrTooShort {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
	buf := make([]byte, 20)
	SetLength(buf, 10)
	if _, err := ValidateHeader(buf); err != ErrBadLength {
		t.Fatalf("expected ErrBadLength for short declared length, got %v", err)
	}
	buf2 := make([]byte, 20)
	SetLength(buf2, 25)
	if _, err := ValidateHeader(buf2); err != ErrTooShort {
		t.Fatalf("expected ErrTooShort when buffer shorter than declared length, got %v", err)
	}
}
