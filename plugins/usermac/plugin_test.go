package usermac

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/epiphyte/radiucal/internal/proxycore"
	"layeh.com/radius"
	"layeh.com/radius/rfc2865"
)

func TestClean(t *testing.T) {
	if clean("Test.User-01") != "test.user01" {
		t.Error("clean did not lowercase/strip as expected")
	}
}

func buildEvent(t *testing.T, user, mac string) proxycore.Event {
	p := radius.New(radius.CodeAccessRequest, []byte("secret"))
	if err := rfc2865.UserName_AddString(p, user); err != nil {
		t.Fatalf("add username: %v", err)
	}
	if err := rfc2865.CallingStationID_AddString(p, mac); err != nil {
		t.Fatalf("add calling station: %v", err)
	}
	buf, err := p.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return proxycore.Event{Buffer: buf}
}

func TestUserMacAuditsPassAndFail(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib")
	logs := filepath.Join(dir, "logs")
	if err := os.MkdirAll(filepath.Join(lib, "users"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(logs, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(lib, "users", "allowed.aabbccddeeff"), []byte{}, 0644); err != nil {
		t.Fatal(err)
	}

	h := NewHook(lib, logs, true)
	h.checkUserMac(buildEvent(t, "allowed", "aa-bb-cc-dd-ee-ff").Buffer)
	h.checkUserMac(buildEvent(t, "blocked", "11-22-33-44-55-66").Buffer)

	h.mu.Lock()
	good, ok := h.cache["allowed.aabbccddeeff"]
	h.mu.Unlock()
	if !ok || !good {
		t.Error("expected allowed fqdn cached as good")
	}

	h.mu.Lock()
	bad, ok := h.cache["blocked.112233445566"]
	h.mu.Unlock()
	if !ok || bad {
		t.Error("expected blocked fqdn cached as not good")
	}
}

func TestUserMacPreForwardIsObservationalOnly(t *testing.T) {
	dir := t.TempDir()
	h := NewHook(filepath.Join(dir, "lib"), filepath.Join(dir, "logs"), false)
	os.MkdirAll(filepath.Join(dir, "lib", "users"), 0755)
	os.MkdirAll(filepath.Join(dir, "logs"), 0755)
	// PreForward must not panic or block the caller even though the
	// lookup fails; there is no forwarding decision left for it to veto.
	h.PreForward(buildEvent(t, "nobody", "ff-ff-ff-ff-ff-ff"))
	h.PostReply(proxycore.Event{})
}
