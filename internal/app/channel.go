package app

import (
	"context"
	"regexp"

	"github.com/pscheid92/crowdroom/internal/domain"
)

// AuthorizeFunc decides whether a connection to a matched channel is accepted.
// match holds the pattern's submatches, match[0] being the full name.
type AuthorizeFunc func(ctx context.Context, match []string) error

type channelRoute struct {
	pattern   *regexp.Regexp
	authorize AuthorizeFunc
}

// ChannelRouter maps channel name patterns to authorization callbacks. Routes
// are tried in registration order; the first matching pattern decides.
type ChannelRouter struct {
	routes []channelRoute
}

func NewChannelRouter() *ChannelRouter {
	return &ChannelRouter{}
}

func (r *ChannelRouter) Handle(pattern *regexp.Regexp, fn AuthorizeFunc) {
	r.routes = append(r.routes, channelRoute{pattern: pattern, authorize: fn})
}

// Authorize returns nil when the connection may open. A name no route matches
// is rejected with domain.ErrMalformedChannel.
func (r *ChannelRouter) Authorize(ctx context.Context, name string) error {
	for _, route := range r.routes {
		if m := route.pattern.FindStringSubmatch(name); m != nil {
			return route.authorize(ctx, m)
		}
	}
	return domain.ErrMalformedChannel
}
