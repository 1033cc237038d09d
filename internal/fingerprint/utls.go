package fingerprint

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// Profile names a TLS ClientHello to imitate.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // stock crypto/tls
	ProfileRandom  Profile = "random" // randomized uTLS hello
)

var helloIDs = map[Profile]utls.ClientHelloID{
	ProfileChrome:  utls.HelloChrome_Auto,
	ProfileFirefox: utls.HelloFirefox_Auto,
	ProfileSafari:  utls.HelloIOS_Auto,
	ProfileRandom:  utls.HelloRandomizedALPN,
}

// Profiles lists every supported profile name, sorted.
func Profiles() []string {
	names := []string{string(ProfileGo)}
	for p := range helloIDs {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}

// ParseProfile resolves a case-insensitive profile name. Empty means chrome.
func ParseProfile(name string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(name)))
	if p == "" {
		return ProfileChrome, nil
	}
	if p == ProfileGo {
		return p, nil
	}
	if _, ok := helloIDs[p]; ok {
		return p, nil
	}
	return "", fmt.Errorf("unknown tls profile %q (want one of %s)", name, strings.Join(Profiles(), ", "))
}

// Options tunes the transport built by Transport.
type Options struct {
	// Proxy selects a proxy per request; nil means no proxy.
	Proxy func(*http.Request) (*url.URL, error)
	// InsecureSkipVerify disables certificate checks. Only for tests.
	InsecureSkipVerify bool
}

// Transport returns a round tripper whose TLS handshake mimics profile p. The
// go profile uses crypto/tls unchanged; the rest dial through utls.UClient.
func Transport(p Profile, opts Options) (http.RoundTripper, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = opts.Proxy

	if p == ProfileGo {
		if opts.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // test only
		}
		return transport, nil
	}

	helloID, ok := helloIDs[p]
	if !ok {
		return nil, fmt.Errorf("fingerprint: unknown profile %q", p)
	}

	dial := transport.DialContext
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		rawConn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		cfg := &utls.Config{
			ServerName:         host,
			InsecureSkipVerify: opts.InsecureSkipVerify, //nolint:gosec // test only
			NextProtos:         []string{"http/1.1"},
		}
		var uConn *utls.UConn
		if spec, ok := http1Spec(helloID); ok {
			uConn = utls.UClient(rawConn, cfg, utls.HelloCustom)
			if err := uConn.ApplyPreset(spec); err != nil {
				_ = rawConn.Close()
				return nil, fmt.Errorf("fingerprint: apply %s preset: %w", p, err)
			}
		} else {
			uConn = utls.UClient(rawConn, cfg, helloID)
		}
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = rawConn.Close()
			return nil, fmt.Errorf("fingerprint: %s handshake with %s: %w", p, host, err)
		}
		return uConn, nil
	}

	return transport, nil
}

// http1Spec expands id into a fresh ClientHelloSpec whose ALPN only offers
// http/1.1. net/http cannot see the negotiated protocol on a uTLS conn, so the
// server must not be allowed to pick h2.
func http1Spec(id utls.ClientHelloID) (*utls.ClientHelloSpec, bool) {
	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		return nil, false
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
	return &spec, true
}
