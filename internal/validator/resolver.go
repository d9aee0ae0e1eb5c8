package validator

import (
	"context"
	"net"
)

// NetResolver adapts net.Resolver to harvest.Resolver.
type NetResolver struct {
	r *net.Resolver
}

// NewNetResolver wraps r; nil selects net.DefaultResolver.
func NewNetResolver(r *net.Resolver) *NetResolver {
	if r == nil {
		r = net.DefaultResolver
	}
	return &NetResolver{r: r}
}

// LookupMX resolves MX records for domain.
func (n *NetResolver) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	return n.r.LookupMX(ctx, domain)
}
