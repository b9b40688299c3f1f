// Package resolver supplies the DNS-expanding address.Resolver
// (SPEC_FULL §4.3) that the driver uses; Config has no option to replace it.
package resolver

import (
	"context"
	"net"

	"github.com/boltstream/gobolt/internal/address"
)

// DNS returns a Resolver that expands a single configured address into every
// A/AAAA record it resolves to, using r (net.DefaultResolver if nil).
func DNS(r *net.Resolver) address.Resolver {
	if r == nil {
		r = net.DefaultResolver
	}
	return func(a address.Address) ([]address.Address, error) {
		ips, err := r.LookupIPAddr(context.Background(), a.Host)
		if err != nil {
			return nil, err
		}
		out := make([]address.Address, 0, len(ips))
		for _, ip := range ips {
			out = append(out, address.Address{Host: ip.IP.String(), Port: a.Port, Unresolved: a.Unresolved})
		}
		if len(out) == 0 {
			return []address.Address{a}, nil
		}
		return out, nil
	}
}
