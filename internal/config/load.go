package config

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/epiphyte/radiucal/internal/peer"
	"github.com/epiphyte/radiucal/internal/realm"
	"github.com/epiphyte/radiucal/internal/tlsctx"
)

const (
	defaultUDPPort       = 1812
	defaultTLSPort       = 2083
	defaultCertMaxDepth  = 5
)

// Result is everything the runtime needs to start, built from one parsed
// Document. Configuration-fatal problems (spec §7: missing required
// option, unresolved host, unknown TLS context, zero clients/servers/
// realms) are returned as an error here rather than discovered later.
type Result struct {
	ListenUDP      *net.UDPAddr
	ListenTCP      *net.TCPAddr
	LogLevel       int
	LogDestination string
	Plugins        []string
	PluginLib      string
	PluginLogs     string

	Registry *peer.Registry
	Realms   *realm.Matcher
	TLS      *tlsctx.Registry
}

// Load reads and builds the configuration at path.
func Load(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	doc, err := Parse(f)
	if err != nil {
		return nil, err
	}
	return Build(doc)
}

// Build turns a parsed Document into a Result, processing blocks strictly
// in file order so that "TLS blocks must precede their referents" (spec
// §6) is an enforced requirement, not an accident of two-pass loading.
func Build(doc *Document) (*Result, error) {
	res := &Result{
		LogLevel:       1,
		LogDestination: doc.Scalars["LogDestination"],
		PluginLib:      doc.Scalars["PluginLib"],
		PluginLogs:     doc.Scalars["PluginLogs"],
		Registry:       &peer.Registry{},
		Realms:         &realm.Matcher{},
		TLS:            tlsctx.NewRegistry(),
	}
	if res.PluginLib == "" {
		res.PluginLib = "/var/lib/radiucal"
	}
	if res.PluginLogs == "" {
		res.PluginLogs = filepath.Join(res.PluginLib, "log")
	}
	if v, ok := doc.Scalars["LogLevel"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 4 {
			return nil, fmt.Errorf("config: LogLevel must be 1-4, got %q", v)
		}
		res.LogLevel = n
	}
	if v, ok := doc.Scalars["ListenUDP"]; ok {
		addr, err := ParseUDPListenAddr(v)
		if err != nil {
			return nil, fmt.Errorf("config: ListenUDP: %w", err)
		}
		res.ListenUDP = addr
	}
	if v, ok := doc.Scalars["ListenTCP"]; ok {
		addr, err := ParseTCPListenAddr(v)
		if err != nil {
			return nil, fmt.Errorf("config: ListenTCP: %w", err)
		}
		res.ListenTCP = addr
	}
	if v, ok := doc.Scalars["plugins"]; ok {
		res.Plugins = strings.Fields(v)
	}

	serversByName := map[string]*peer.Upstream{}

	for _, blk := range doc.Blocks {
		switch blk.Kind {
		case "TLS":
			ctx, err := buildTLSContext(blk)
			if err != nil {
				return nil, err
			}
			res.TLS.Add(ctx)
		case "Client":
			c, err := buildClient(blk, res.TLS)
			if err != nil {
				return nil, err
			}
			res.Registry.Clients = append(res.Registry.Clients, c)
		case "Server":
			u, err := buildUpstream(blk, res.TLS)
			if err != nil {
				return nil, err
			}
			res.Registry.Upstreams = append(res.Registry.Upstreams, u)
			serversByName[blk.Name] = u
		case "Realm":
			rule, err := buildRealm(blk, serversByName)
			if err != nil {
				return nil, err
			}
			res.Realms.Rules = append(res.Realms.Rules, rule)
		default:
			return nil, fmt.Errorf("config: line %d: unknown block kind %q", blk.Line, blk.Kind)
		}
	}

	if len(res.Registry.Clients) == 0 {
		return nil, fmt.Errorf("config: at least one Client block is required")
	}
	if len(res.Registry.Upstreams) == 0 {
		return nil, fmt.Errorf("config: at least one Server block is required")
	}
	if len(res.Realms.Rules) == 0 {
		return nil, fmt.Errorf("config: at least one Realm block is required")
	}
	return res, nil
}

func buildClient(blk Block, tlsReg *tlsctx.Registry) (*peer.Client, error) {
	typ, ok := blk.Get("type")
	if !ok {
		return nil, fmt.Errorf("config: Client %s: missing required option 'type'", blk.Name)
	}
	kind, err := parseKind(typ)
	if err != nil {
		return nil, fmt.Errorf("config: Client %s: %w", blk.Name, err)
	}
	addrs, err := peer.ResolveHost(blk.Name)
	if err != nil {
		return nil, fmt.Errorf("config: Client %s: %w", blk.Name, err)
	}
	c := &peer.Client{Name: blk.Name, Kind: kind, Host: blk.Name, Addrs: addrs}

	switch kind {
	case peer.Datagram:
		secret, ok := blk.Get("secret")
		if !ok {
			return nil, fmt.Errorf("config: Client %s: missing required option 'secret'", blk.Name)
		}
		c.Secret = secret
	case peer.Stream:
		tlsName, _ := blk.Get("tls")
		ctx, err := tlsReg.Resolve(tlsName, "defaultclient", "default")
		if err != nil {
			return nil, fmt.Errorf("config: Client %s: %w", blk.Name, err)
		}
		c.TLSName = ctx.Name
		c.TLS = ctx.Config
		c.Secret, _ = blk.Get("secret")
	}
	return c, nil
}

func buildUpstream(blk Block, tlsReg *tlsctx.Registry) (*peer.Upstream, error) {
	typ, ok := blk.Get("type")
	if !ok {
		return nil, fmt.Errorf("config: Server %s: missing required option 'type'", blk.Name)
	}
	kind, err := parseKind(typ)
	if err != nil {
		return nil, fmt.Errorf("config: Server %s: %w", blk.Name, err)
	}
	addrs, err := peer.ResolveHost(blk.Name)
	if err != nil {
		return nil, fmt.Errorf("config: Server %s: %w", blk.Name, err)
	}

	u := peer.NewUpstream(blk.Name, kind)
	u.Host = blk.Name
	u.Addrs = addrs

	defaultPort := defaultUDPPort
	if kind == peer.Stream {
		defaultPort = defaultTLSPort
	}
	port := defaultPort
	if v, ok := blk.Get("port"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: Server %s: bad port %q", blk.Name, v)
		}
		port = n
	}
	u.Port = port

	if v, ok := blk.Get("StatusServer"); ok {
		u.StatusServerEnabled = strings.EqualFold(v, "on")
	}

	switch kind {
	case peer.Datagram:
		secret, ok := blk.Get("secret")
		if !ok {
			return nil, fmt.Errorf("config: Server %s: missing required option 'secret'", blk.Name)
		}
		u.Secret = []byte(secret)
	case peer.Stream:
		tlsName, _ := blk.Get("tls")
		ctx, err := tlsReg.Resolve(tlsName, "defaultserver", "default")
		if err != nil {
			return nil, fmt.Errorf("config: Server %s: %w", blk.Name, err)
		}
		u.TLSName = ctx.Name
		u.TLS = ctx.Config
		if secret, ok := blk.Get("secret"); ok {
			u.Secret = []byte(secret)
		}
	}
	return u, nil
}

func buildRealm(blk Block, serversByName map[string]*peer.Upstream) (*realm.Rule, error) {
	var upstream *peer.Upstream
	if name, ok := blk.Get("server"); ok {
		u, known := serversByName[name]
		if !known {
			return nil, fmt.Errorf("config: Realm %s: unknown server %q", blk.Name, name)
		}
		upstream = u
	}
	replyMsg, _ := blk.Get("ReplyMessage")
	return realm.NewRule(blk.Name, blk.Name, upstream, replyMsg)
}

func buildTLSContext(blk Block) (*tlsctx.Context, error) {
	certFile, ok := blk.Get("CertificateFile")
	if !ok {
		return nil, fmt.Errorf("config: TLS %s: missing required option 'CertificateFile'", blk.Name)
	}
	keyFile, ok := blk.Get("CertificateKeyFile")
	if !ok {
		return nil, fmt.Errorf("config: TLS %s: missing required option 'CertificateKeyFile'", blk.Name)
	}
	caFiles := blk.GetAll("CACertificateFile")
	caPaths := blk.GetAll("CACertificatePath")
	if len(caFiles) == 0 && len(caPaths) == 0 {
		return nil, fmt.Errorf("config: TLS %s: at least one of CACertificateFile/CACertificatePath is required", blk.Name)
	}

	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("config: TLS %s: %w", blk.Name, err)
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("config: TLS %s: %w", blk.Name, err)
	}
	if password, ok := blk.Get("CertificateKeyPassword"); ok {
		keyPEM, err = decryptKeyPEM(keyPEM, password)
		if err != nil {
			return nil, fmt.Errorf("config: TLS %s: %w", blk.Name, err)
		}
	}

	var caPEMs [][]byte
	for _, f := range caFiles {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("config: TLS %s: %w", blk.Name, err)
		}
		caPEMs = append(caPEMs, b)
	}
	for _, dir := range caPaths {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("config: TLS %s: %w", blk.Name, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			b, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				return nil, fmt.Errorf("config: TLS %s: %w", blk.Name, err)
			}
			caPEMs = append(caPEMs, b)
		}
	}

	return tlsctx.Load(blk.Name, certPEM, keyPEM, caPEMs, defaultCertMaxDepth)
}

// decryptKeyPEM decrypts a legacy PEM-encrypted private key block. Modern
// certificate tooling favors PKCS#8 (unencrypted PEM, password handled out
// of band); this only exists for the documented CertificateKeyPassword
// option and is not exercised unless a config actually sets it.
func decryptKeyPEM(keyPEM []byte, password string) ([]byte, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in key file")
	}
	if !x509.IsEncryptedPEMBlock(block) { //nolint:staticcheck // legacy format, no replacement for this option
		return keyPEM, nil
	}
	der, err := x509.DecryptPEMBlock(block, []byte(password)) //nolint:staticcheck
	if err != nil {
		return nil, fmt.Errorf("decrypting private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der}), nil
}

func parseKind(typ string) (peer.Kind, error) {
	switch strings.ToLower(typ) {
	case "udp":
		return peer.Datagram, nil
	case "tls":
		return peer.Stream, nil
	default:
		return 0, fmt.Errorf("unknown type %q (expected udp or tls)", typ)
	}
}
