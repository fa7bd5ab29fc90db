package logdump

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/epiphyte/radiucal/internal/proxycore"
)

func waitForContent(t *testing.T, dir string, contains string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		entries, _ := os.ReadDir(dir)
		for _, e := range entries {
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err == nil && strings.Contains(string(data), contains) {
				return string(data)
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q in %s", contains, dir)
	return ""
}

func TestHookPreForwardWritesDatedFile(t *testing.T) {
	dir := t.TempDir()
	h := NewHook(dir, "")

	h.PreForward(proxycore.Event{CorrelationID: "corr-1", Client: "nas1", Upstream: "up1", Buffer: []byte{1, 2, 3}})

	content := waitForContent(t, dir, "corr-1")
	if !strings.Contains(content, "nas1") || !strings.Contains(content, "up1") {
		t.Errorf("expected client/upstream in log line, got %q", content)
	}
}

func TestHookPostReplyWritesReplyTaggedLine(t *testing.T) {
	dir := t.TempDir()
	h := NewHook(dir, "instance1")

	h.PostReply(proxycore.Event{Client: "nas1", Buffer: []byte{1, 2, 3}})

	content := waitForContent(t, dir, "nas1")
	if !strings.Contains(content, "[REPLY]") {
		t.Errorf("expected a REPLY-tagged line, got %q", content)
	}
}
