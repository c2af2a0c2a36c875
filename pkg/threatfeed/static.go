package threatfeed

import (
	"context"
	"sync"

	"authrisk/internal/riskengine"
)

// StaticFeed is a reference GeoResolver/NetworkClassifier/ThreatIntelLookup
// backed by in-memory sets rather than a real external feed, grounded on the
// teacher's own "simplified" isHighRiskIP/isTorExitNode stubs
// (internal/services/adaptive_auth_service.go) — useful for local
// development and tests, not a production threat-intel integration.
type StaticFeed struct {
	mu sync.RWMutex

	torExitNodes map[string]bool
	vpnRanges    map[string]bool
	highRiskIPs  map[string]float64

	// geoByIP lets tests and local dev pin a resolved location per IP.
	geoByIP map[string]riskengine.GeoInfo
}

// NewStaticFeed builds an empty StaticFeed; populate it with Seed* calls.
func NewStaticFeed() *StaticFeed {
	return &StaticFeed{
		torExitNodes: make(map[string]bool),
		vpnRanges:    make(map[string]bool),
		highRiskIPs:  make(map[string]float64),
		geoByIP:      make(map[string]riskengine.GeoInfo),
	}
}

// SeedTorExitNode marks ip as a known Tor exit node.
func (s *StaticFeed) SeedTorExitNode(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.torExitNodes[ip] = true
}

// SeedVPN marks ip as a known commercial VPN/proxy egress.
func (s *StaticFeed) SeedVPN(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vpnRanges[ip] = true
}

// SeedThreatScore pins ip's threat-intel reputation score.
func (s *StaticFeed) SeedThreatScore(ip string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.highRiskIPs[ip] = score
}

// SeedGeo pins ip's resolved geolocation. Resolve still compares the
// seeded Country against knownCountries to set IsUsualLocation.
func (s *StaticFeed) SeedGeo(ip string, geo riskengine.GeoInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.geoByIP[ip] = geo
}

// Resolve implements GeoResolver. An unseeded IP resolves to an empty
// GeoInfo with IsUsualLocation left false, the conservative default the
// teacher's assessLocationRisk applies to an unknown location.
func (s *StaticFeed) Resolve(_ context.Context, ip string, knownCountries []string) (*riskengine.GeoInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	geo, ok := s.geoByIP[ip]
	if !ok {
		return &riskengine.GeoInfo{}, nil
	}

	for _, country := range knownCountries {
		if country == geo.Country {
			geo.IsUsualLocation = true
			break
		}
	}
	return &geo, nil
}

// IsTorExitNode implements NetworkClassifier.
func (s *StaticFeed) IsTorExitNode(_ context.Context, ip string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.torExitNodes[ip], nil
}

// IsVPN implements NetworkClassifier.
func (s *StaticFeed) IsVPN(_ context.Context, ip string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vpnRanges[ip], nil
}

// Score implements ThreatIntelLookup. An unseeded IP scores 0 — no known
// reputation, not "safe": the risk engine's other factors still apply.
func (s *StaticFeed) Score(_ context.Context, ip string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.highRiskIPs[ip], nil
}
