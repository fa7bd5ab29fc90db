package plugins

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"layeh.com/radius"
	"layeh.com/radius/rfc2865"
)

func TestDatedFileNamesWithAndWithoutInstance(t *testing.T) {
	dir := t.TempDir()

	f1, t1 := DatedFile(dir, "forward", "")
	if f1 == nil {
		t.Fatal("expected a file with no instance")
	}
	f1.Close()
	wantBase := "radiucal.forward." + t1.Format("2006-01-02")
	if _, err := os.Stat(filepath.Join(dir, wantBase)); err != nil {
		t.Errorf("expected file %s: %v", wantBase, err)
	}

	f2, t2 := DatedFile(dir, "forward", "east1")
	if f2 == nil {
		t.Fatal("expected a file with an instance")
	}
	f2.Close()
	wantBase2 := "radiucal.east1.forward." + t2.Format("2006-01-02")
	if _, err := os.Stat(filepath.Join(dir, wantBase2)); err != nil {
		t.Errorf("expected file %s: %v", wantBase2, err)
	}
}

func TestDatedFileReturnsNilOnUnwritableDir(t *testing.T) {
	f, _ := DatedFile("/nonexistent/dir/that/does/not/exist", "forward", "")
	if f != nil {
		f.Close()
		t.Error("expected nil file for an unwritable directory")
	}
}

func TestFormatLogAppendsTaggedLine(t *testing.T) {
	dir := t.TempDir()
	f, tm := DatedFile(dir, "forward", "")
	defer f.Close()

	FormatLog(f, tm, "forward", "hello world")
	f.Sync()

	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "[FORWARD]") || !strings.Contains(line, "hello world") {
		t.Errorf("unexpected log line: %q", line)
	}
}

func TestKeyValueStringsRendersKnownAttribute(t *testing.T) {
	p := radius.New(radius.CodeAccessRequest, []byte("secret"))
	if err := rfc2865.UserName_AddString(p, "alice"); err != nil {
		t.Fatalf("add username: %v", err)
	}
	buf, err := p.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	lines := KeyValueStrings(buf, "secret")
	var sawType, sawValue bool
	for _, l := range lines {
		if strings.Contains(l, "User-Name") {
			sawType = true
		}
		if strings.Contains(l, "alice") {
			sawValue = true
		}
	}
	if !sawType || !sawValue {
		t.Errorf("expected User-Name/alice in output, got %v", lines)
	}
}

func TestKeyValueStringsFallsBackOnUndecodablePacket(t *testing.T) {
	lines := KeyValueStrings([]byte{0x01, 0x02, 0x03}, "secret")
	if len(lines) != 1 || !strings.Contains(lines[0], "undecodable") {
		t.Errorf("expected a single undecodable-packet line, got %v", lines)
	}
}
