// Package tlsctx resolves named TLS contexts (certificate chain, private
// key, CA trust set, chain depth limit) referenced by Client/Server config
// blocks, with the defaultclient/defaultserver/default fallback chain from
// spec §3/§6.
package tlsctx

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"strings"
)

// Context is one named TLS context.
type Context struct {
	Name     string
	Config   *tls.Config
	MaxDepth int
}

// Registry holds every named TLS context loaded from the config file.
type Registry struct {
	contexts map[string]*Context
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{contexts: make(map[string]*Context)}
}

// Add registers a loaded context by name. TLS blocks must precede their
// referents in the config file (spec §6); the loader is responsible for
// calling Add before any Client/Server block resolves against it.
func (r *Registry) Add(ctx *Context) {
	r.contexts[ctx.Name] = ctx
}

// Resolve looks up name, falling back in order to each of fallbacks. An
// empty name is skipped straight to the fallbacks. Returns an error if
// nothing in the chain is registered.
func (r *Registry) Resolve(name string, fallbacks ...string) (*Context, error) {
	candidates := make([]string, 0, len(fallbacks)+1)
	if name != "" {
		candidates = append(candidates, name)
	}
	candidates = append(candidates, fallbacks...)
	for _, c := range candidates {
		if ctx, ok := r.contexts[c]; ok {
			return ctx, nil
		}
	}
	return nil, fmt.Errorf("tlsctx: no TLS context found for %v", candidates)
}

// Load builds a *Context from certificate/key/CA material, matching the TLS
// block options in spec §6 (CertificateFile, CertificateKeyFile, at least
// one of CACertificateFile/CACertificatePath).
func Load(name string, certPEM, keyPEM []byte, caPEMs [][]byte, maxDepth int) (*Context, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("tlsctx: %s: loading certificate/key: %w", name, err)
	}
	pool := x509.NewCertPool()
	for _, ca := range caPEMs {
		if !pool.AppendCertsFromPEM(ca) {
			return nil, fmt.Errorf("tlsctx: %s: no usable CA certificates found", name)
		}
	}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS12,
	}
	cfg.VerifyPeerCertificate = verifyChainDepth(maxDepth)
	return &Context{Name: name, Config: cfg, MaxDepth: maxDepth}, nil
}

// verifyChainDepth mirrors the original implementation's depth-rejecting
// OpenSSL verify callback (SSL_CTX_set_verify_depth): it runs after Go's
// standard chain verification has already populated verifiedChains, and
// rejects any chain longer than maxDepth. maxDepth <= 0 means unlimited.
func verifyChainDepth(maxDepth int) func([][]byte, [][]*x509.Certificate) error {
	if maxDepth <= 0 {
		return nil
	}
	return func(_ [][]byte, verifiedChains [][]*x509.Certificate) error {
		for _, chain := range verifiedChains {
			if len(chain) > maxDepth {
				return fmt.Errorf("tlsctx: certificate chain length %d exceeds configured max depth %d", len(chain), maxDepth)
			}
		}
		return nil
	}
}

// VerifyPeerCN checks a TLS peer's leaf certificate Common Name against the
// configured host, case-insensitive exact match (spec §4.6/§6: CN-only
// identity check; SubjectAltName is explicitly not consulted — this is an
// extension point, not an oversight, per spec's Open Question (a)).
func VerifyPeerCN(conn *tls.Conn, host string) error {
	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return fmt.Errorf("tlsctx: peer presented no certificate")
	}
	cn := state.PeerCertificates[0].Subject.CommonName
	if !strings.EqualFold(cn, host) {
		return fmt.Errorf("tlsctx: peer certificate CN %q does not match configured host %q", cn, host)
	}
	return nil
}
