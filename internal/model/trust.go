package model

// TrustPathHop is one step in a trust path.
type TrustPathHop struct {
	Agent      Address `json:"agent"`
	TrustLevel float32 `json:"trust_level"`
}

// TrustPath is a chain of trust edges from one agent toward a target,
// with the damped product of edge weights as its effective trust.
type TrustPath struct {
	From           Address        `json:"from"`
	To             Address        `json:"to"`
	Hops           []TrustPathHop `json:"hops"`
	EffectiveTrust float32        `json:"effective_trust"`
	Depth          int            `json:"depth"`
}

// DirectTrustPath builds the single-hop path from -> to.
func DirectTrustPath(from, to Address, level float32) TrustPath {
	return TrustPath{
		From:           from,
		To:             to,
		Hops:           []TrustPathHop{{Agent: to, TrustLevel: level}},
		EffectiveTrust: level,
		Depth:          1,
	}
}

// IsTrusted reports whether the path carries positive trust.
func (p *TrustPath) IsTrusted() bool { return p.EffectiveTrust > 0 }

// IsDistrusted reports whether the path carries negative trust.
func (p *TrustPath) IsDistrusted() bool { return p.EffectiveTrust < 0 }

// TrustScore is an entity's trust level seen from a viewer's perspective.
type TrustScore struct {
	Entity    Address    `json:"entity"`
	Viewer    Address    `json:"viewer"`
	Score     float32    `json:"score"`
	PathCount int        `json:"path_count"`
	BestPath  *TrustPath `json:"best_path,omitempty"`
}

// NewTrustScore builds a score clamped to [-1,1].
func NewTrustScore(entity, viewer Address, score float32, pathCount int) TrustScore {
	return TrustScore{
		Entity:    entity,
		Viewer:    viewer,
		Score:     clamp(score, -1, 1),
		PathCount: pathCount,
	}
}

// NeutralTrustScore is the score when no path exists.
func NeutralTrustScore(entity, viewer Address) TrustScore {
	return NewTrustScore(entity, viewer, 0, 0)
}
