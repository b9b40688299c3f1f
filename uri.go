package gobolt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
	"strings"

	"github.com/boltstream/gobolt/internal/errorutil"
)

// parsedTarget is what NewDriver derives from a connection URI: whether
// routing applies, the encryption policy, and the routing context carried
// in query parameters (spec §6 "URI schemes").
type parsedTarget struct {
	routed         bool
	address        string // host:port
	tlsConfig      *tls.Config
	routingContext map[string]string
}

func parseTarget(uri string, cfg *Config) (*parsedTarget, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, errorutil.NewConfigurationError("invalid URI %q: %v", uri, err)
	}
	if u.User != nil {
		return nil, errorutil.NewConfigurationError("user info is not allowed in the URI authority; use an AuthToken instead")
	}

	scheme := strings.ToLower(u.Scheme)
	var routed bool
	var encLevel string // "", "s", "ssc"
	switch scheme {
	case "bolt":
		routed, encLevel = false, ""
	case "bolt+s":
		routed, encLevel = false, "s"
	case "bolt+ssc":
		routed, encLevel = false, "ssc"
	case "neo4j":
		routed, encLevel = true, ""
	case "neo4j+s":
		routed, encLevel = true, "s"
	case "neo4j+ssc":
		routed, encLevel = true, "ssc"
	default:
		return nil, errorutil.NewConfigurationError("unsupported URI scheme %q", u.Scheme)
	}

	if encLevel != "" && cfg.TLSConfig != nil {
		return nil, errorutil.NewConfigurationError("TLSConfig was set explicitly together with a %q URI scheme; pick one", scheme)
	}

	var tlsCfg *tls.Config
	switch encLevel {
	case "s":
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		tlsCfg = &tls.Config{RootCAs: pool, ServerName: u.Hostname()}
	case "ssc":
		tlsCfg = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit self-signed opt-in (spec §6 bolt+ssc/neo4j+ssc)
	default:
		tlsCfg = cfg.TLSConfig
	}

	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "7687"
	}
	address := fmt.Sprintf("%s:%s", host, port)

	routingContext, err := parseRoutingContext(u.RawQuery)
	if err != nil {
		return nil, err
	}
	if !routed && len(routingContext) > 0 {
		cfg.Log.Warnf("driver", "", "query parameters are ignored on a %q URI; routing context only applies to neo4j:// schemes", scheme)
		routingContext = nil
	}

	return &parsedTarget{
		routed:         routed,
		address:        address,
		tlsConfig:      tlsCfg,
		routingContext: routingContext,
	}, nil
}

// parseRoutingContext parses URI query parameters into the ROUTE/HELLO
// routing context map, rejecting empty values and duplicate keys
// (spec §6).
func parseRoutingContext(rawQuery string) (map[string]string, error) {
	if rawQuery == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		key, err := url.QueryUnescape(kv[0])
		if err != nil {
			return nil, errorutil.NewConfigurationError("invalid routing context key %q: %v", kv[0], err)
		}
		var value string
		if len(kv) == 2 {
			value, err = url.QueryUnescape(kv[1])
			if err != nil {
				return nil, errorutil.NewConfigurationError("invalid routing context value for key %q: %v", key, err)
			}
		}
		if value == "" {
			return nil, errorutil.NewConfigurationError("routing context parameter %q has an empty value", key)
		}
		if _, dup := out[key]; dup {
			return nil, errorutil.NewConfigurationError("duplicate routing context parameter %q", key)
		}
		out[key] = value
	}
	return out, nil
}
