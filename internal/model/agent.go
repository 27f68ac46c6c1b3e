package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Trust is one directed trust edge: the owning agent asserts trust in
// Agent at the given level. Levels run from -1 (distrust) to 1 (full
// trust); 0 is neutral.
type Trust struct {
	Agent Address `json:"agent"`
	Trust float32 `json:"trust"`
}

// TrustStore holds an agent's outgoing trust edges. The edges travel
// inside the signed agent record so a replacement publishes them
// atomically.
type TrustStore struct {
	NumTrusts uint64  `json:"num_trusts"`
	Trusts    []Trust `json:"trusts"`
}

// Bias describes a known tendency of an agent within some domain.
type Bias struct {
	Domain      string  `json:"domain"`
	Description string  `json:"description"`
	Severity    float32 `json:"severity"`
}

// AgentProfile summarises an agent's expertise and track record.
type AgentProfile struct {
	// Specializations maps domain names to expertise scores in [0,1].
	Specializations map[string]float32 `json:"specializations,omitempty"`
	KnownBiases     []Bias             `json:"known_biases,omitempty"`
	// AvgConfidence is the running mean confidence of created fragments.
	AvgConfidence float32 `json:"avg_confidence"`
	FragmentCount uint64  `json:"fragment_count"`
	// HistoricalAccuracy is an accuracy score in [0,1].
	HistoricalAccuracy float32 `json:"historical_accuracy"`
}

// UpdateStats folds one more fragment confidence into the running average.
func (p *AgentProfile) UpdateStats(confidence float32) {
	total := float32(p.FragmentCount)*p.AvgConfidence + confidence
	p.FragmentCount++
	p.AvgConfidence = total / float32(p.FragmentCount)
}

// Agent is a participant in the knowledge network. Agents are self-signed:
// the record's signature verifies against its own public key.
type Agent struct {
	UUID        string       `json:"uuid"`
	PublicKey   string       `json:"public_key"`
	Version     uint32       `json:"version"`
	Description string       `json:"description"`
	Trust       TrustStore   `json:"trust"`
	PrimaryHub  string       `json:"primary_hub"`
	Signature   string       `json:"signature"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Profile     AgentProfile `json:"profile"`
}

// NewAgent creates an agent at version 1 with empty trust.
func NewAgent(id, publicKey string) *Agent {
	now := time.Now().UTC()
	return &Agent{
		UUID:      id,
		PublicKey: publicKey,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddTrust appends a trust edge, clamping the level to [-1,1].
func (a *Agent) AddTrust(agent Address, level float32) {
	a.Trust.Trusts = append(a.Trust.Trusts, Trust{Agent: agent, Trust: clamp(level, -1, 1)})
	a.Trust.NumTrusts = uint64(len(a.Trust.Trusts))
}

// TrustFor returns the direct trust level toward addr, 0 when absent.
func (a *Agent) TrustFor(addr Address) float32 {
	for _, t := range a.Trust.Trusts {
		if t.Agent == addr {
			return t.Trust
		}
	}
	return 0
}

// Validate checks the agent invariants.
func (a *Agent) Validate() error {
	if a.UUID == "" {
		return Validation("uuid is required")
	}
	if a.PublicKey == "" {
		return Validation("public_key is required")
	}
	if a.Signature == "" {
		return Validation("signature is required")
	}
	for i, t := range a.Trust.Trusts {
		if t.Trust < -1 || t.Trust > 1 {
			return Validation(fmt.Sprintf("trust[%d].trust must be between -1.0 and 1.0", i))
		}
	}
	return nil
}

// CreateAgentRequest is the signed payload for creating an agent.
type CreateAgentRequest struct {
	UUID        string      `json:"uuid"`
	PublicKey   string      `json:"public_key"`
	Description string      `json:"description"`
	Trust       *TrustStore `json:"trust,omitempty"`
	PrimaryHub  string      `json:"primary_hub"`
	Signature   string      `json:"signature"`
}

// ToAgent materialises the agent described by the request. A missing UUID
// is filled with a fresh one.
func (r *CreateAgentRequest) ToAgent() *Agent {
	id := r.UUID
	if id == "" {
		id = uuid.NewString()
	}
	agent := NewAgent(id, r.PublicKey)
	agent.Description = r.Description
	agent.PrimaryHub = r.PrimaryHub
	agent.Signature = r.Signature
	if r.Trust != nil {
		agent.Trust = *r.Trust
		agent.Trust.NumTrusts = uint64(len(agent.Trust.Trusts))
	}
	return agent
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
