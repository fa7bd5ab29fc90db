// Package realm implements the first-match User-Name routing table
// described in spec §4.4: an ordered list of rules, each a literal "*",
// a "/regex/", or a domain-suffix literal, matched case-insensitively
// against the whole User-Name.
package realm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/epiphyte/radiucal/internal/peer"
)

// MaxReplyMessageLen is the limit on a rule's synthesized Reply-Message
// (spec §3: "≤ 253 bytes").
const MaxReplyMessageLen = 253

// Rule is one configured realm entry. Upstream is nil for a rule that
// synthesizes an Access-Reject instead of forwarding.
type Rule struct {
	Name         string
	Pattern      string
	regex        *regexp.Regexp
	Upstream     *peer.Upstream
	ReplyMessage string
}

// NewRule compiles pattern per spec §4.4:
//   - "*"            matches everything (terminal rule)
//   - "/pattern/"     (or "/pattern") is a regex matched against the whole
//     User-Name
//   - otherwise       the literal domain D is compiled to "@D$" with "."
//     escaped
func NewRule(name, pattern string, upstream *peer.Upstream, replyMessage string) (*Rule, error) {
	if len(replyMessage) > MaxReplyMessageLen {
		return nil, fmt.Errorf("realm: ReplyMessage exceeds %d bytes", MaxReplyMessageLen)
	}
	re, err := compilePattern(pattern)
	if err != nil {
		return nil, fmt.Errorf("realm: rule %q: %w", name, err)
	}
	return &Rule{Name: name, Pattern: pattern, regex: re, Upstream: upstream, ReplyMessage: replyMessage}, nil
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "*" {
		return regexp.Compile("(?i).*")
	}
	if strings.HasPrefix(pattern, "/") {
		body := strings.TrimPrefix(pattern, "/")
		body = strings.TrimSuffix(body, "/")
		return regexp.Compile("(?i)" + body)
	}
	escaped := strings.ReplaceAll(pattern, ".", `\.`)
	return regexp.Compile("(?i)@" + escaped + "$")
}

// Matches reports whether username matches this rule.
func (r *Rule) Matches(username string) bool {
	return r.regex.MatchString(username)
}

// Matcher holds rules in configuration order; Match returns the first rule
// whose pattern matches, per spec §4.4 ("first-match wins").
type Matcher struct {
	Rules []*Rule
}

// Match walks the rules in order and returns the first match. Subsequent
// rules are never evaluated once one matches.
func (m *Matcher) Match(username string) (*Rule, bool) {
	for _, r := range m.Rules {
		if r.Matches(username) {
			return r, true
		}
	}
	return nil, false
}
