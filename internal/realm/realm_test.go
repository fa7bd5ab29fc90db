package realm

import "testing"

func mustRule(t *testing.T, name, pattern string) *Rule {
	t.Helper()
	r, err := NewRule(name, pattern, nil, "")
	if err != nil {
		t.Fatalf("NewRule(%q): %v", pattern, err)
	}
	return r
}

func TestDomainSuffixMatch(t *testing.T) {
	r := mustRule(t, "example", "example.com")
	if !r.Matches("alice@example.com") {
		t.Fatal("expected match")
	}
	if !r.Matches("ALICE@EXAMPLE.COM") {
		t.Fatal("expected case-insensitive match")
	}
	if r.Matches("alice@notexample.com") {
		t.Fatal("domain literal must anchor at '@', not match substrings")
	}
	if r.Matches("alice@example.com.evil") {
		t.Fatal("domain literal must anchor at end of string")
	}
}

func TestRegexRule(t *testing.T) {
	r := mustRule(t, "bv", `/@.*\.bv$`)
	if !r.Matches("x@foo.bv") {
		t.Fatal("expected regex match")
	}
	if r.Matches("x@foo.bv.com") {
		t.Fatal("regex is anchored at end")
	}
}

func TestWildcardIsTerminal(t *testing.T) {
	r := mustRule(t, "catchall", "*")
	if !r.Matches("anything at all") {
		t.Fatal("expected '*' to match everything")
	}
}

func TestFirstMatchWins(t *testing.T) {
	specific := mustRule(t, "specific", "example.com")
	catchall := mustRule(t, "catchall", "*")
	m := &Matcher{Rules: []*Rule{specific, catchall}}

	got, ok := m.Match("alice@example.com")
	if !ok || got != specific {
		t.Fatal("expected the specific rule to win before the catchall")
	}

	got, ok = m.Match("bob@other.com")
	if !ok || got != catchall {
		t.Fatal("expected the catchall to match when nothing more specific does")
	}
}

func TestNoMatch(t *testing.T) {
	r := mustRule(t, "example", "example.com")
	m := &Matcher{Rules: []*Rule{r}}
	if _, ok := m.Match("bob@other.com"); ok {
		t.Fatal("expected no match")
	}
}

func TestReplyMessageTooLong(t *testing.T) {
	long := make([]byte, MaxReplyMessageLen+1)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := NewRule("r", "*", nil, string(long)); err == nil {
		t.Fatal("expected error for oversized ReplyMessage")
	}
}
