// Package threatfeed defines the external collaborators spec.md §1 places
// outside the risk engine's core: IP geolocation, Tor/VPN classification,
// and threat-intel reputation lookups. The engine only consumes the fields
// these collaborators populate on riskengine.AuthContext (Geolocation,
// IsTorExitNode, IsVPN, ThreatIntelScore) — it never calls out to a feed
// itself. This package supplies the interfaces callers enrich a context
// with, plus a small static reference implementation grounded on the
// teacher's simplified assessNetworkRisk/isHighRiskIP/isTorExitNode
// (internal/services/adaptive_auth_service.go), generalized from
// "simplified" inline checks to pluggable collaborators.
package threatfeed

import (
	"context"
	"net"

	"authrisk/internal/riskengine"
)

// GeoResolver resolves an IP address to the geolocation fields the risk
// engine scores against a user's historical locations.
type GeoResolver interface {
	Resolve(ctx context.Context, ip string, knownCountries []string) (*riskengine.GeoInfo, error)
}

// NetworkClassifier flags an IP as a Tor exit node or a commercial VPN/proxy
// egress, mirroring the teacher's isTorExitNode/VPNDetected checks.
type NetworkClassifier interface {
	IsTorExitNode(ctx context.Context, ip string) (bool, error)
	IsVPN(ctx context.Context, ip string) (bool, error)
}

// ThreatIntelLookup scores an IP's reputation on a [0,1] scale, mirroring
// the teacher's isHighRiskIP, generalized from a boolean to a continuous
// score so the risk engine can weight it like its other factors.
type ThreatIntelLookup interface {
	Score(ctx context.Context, ip string) (float64, error)
}

// Feed bundles the three collaborators behind a single enrichment call.
type Feed struct {
	Geo         GeoResolver
	Network     NetworkClassifier
	ThreatIntel ThreatIntelLookup
}

// New builds a Feed from its three collaborators. Any of them may be nil,
// in which case Enrich leaves the corresponding AuthContext fields at their
// zero value rather than failing the request — enrichment is best-effort,
// never on the blocking request path per spec.md §7.
func New(geo GeoResolver, network NetworkClassifier, intel ThreatIntelLookup) *Feed {
	return &Feed{Geo: geo, Network: network, ThreatIntel: intel}
}

// Enrich populates actx's external-collaborator fields in place from ip,
// given the set of countries the user has previously logged in from. Each
// collaborator is consulted independently; a failing or absent collaborator
// just leaves its field unset so one misbehaving feed never blocks the
// others or the caller.
func (f *Feed) Enrich(ctx context.Context, actx *riskengine.AuthContext, ip string, knownCountries []string) {
	if f == nil || actx == nil {
		return
	}

	if f.Geo != nil {
		if geo, err := f.Geo.Resolve(ctx, ip, knownCountries); err == nil && geo != nil {
			actx.Geolocation = geo
		}
	}

	if f.Network != nil {
		if tor, err := f.Network.IsTorExitNode(ctx, ip); err == nil {
			actx.IsTorExitNode = tor
		}
		if vpn, err := f.Network.IsVPN(ctx, ip); err == nil {
			actx.IsVPN = vpn
		}
	}

	if f.ThreatIntel != nil {
		if score, err := f.ThreatIntel.Score(ctx, ip); err == nil {
			actx.ThreatIntelScore = score
		}
	}
}

// IsPrivateOrLoopback reports whether ip is an RFC1918/loopback address —
// the one check spec.md leaves unambiguous enough to implement directly
// rather than delegate to a collaborator, mirroring the teacher's inline
// ip.IsPrivate()/ip.IsLoopback() guard in assessNetworkRisk.
func IsPrivateOrLoopback(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsPrivate() || parsed.IsLoopback()
}
