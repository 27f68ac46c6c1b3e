// Package trust explores the directed trust graph embedded in agent
// records: bounded path finding with multiplicative damping, trust
// scoring, and graph export for visualization.
package trust

import (
	"context"

	"github.com/sagenet/sage-hub/internal/model"
	"github.com/sagenet/sage-hub/internal/store"
	"go.uber.org/zap"
)

// Config bounds the graph exploration.
type Config struct {
	// MaxDepth is the maximum number of hops in a path.
	MaxDepth int
	// DampingFactor attenuates cumulative trust per hop after the first.
	DampingFactor float32
	// MinTrustThreshold prunes frontiers whose |cumulative trust| fell
	// below it.
	MinTrustThreshold float32
}

// DefaultConfig returns the standard exploration bounds.
func DefaultConfig() Config {
	return Config{MaxDepth: 5, DampingFactor: 0.8, MinTrustThreshold: 0.01}
}

// Engine finds trust paths by reading agent records from the store. The
// walk is synchronous and self-bounded; only agents are expanded.
type Engine struct {
	store  *store.EntityStore
	cfg    Config
	logger *zap.Logger
}

// NewEngine creates an Engine with the given bounds. Zero-valued config
// fields fall back to the defaults.
func NewEngine(st *store.EntityStore, cfg Config, logger *zap.Logger) *Engine {
	def := DefaultConfig()
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.DampingFactor == 0 {
		cfg.DampingFactor = def.DampingFactor
	}
	if cfg.MinTrustThreshold == 0 {
		cfg.MinTrustThreshold = def.MinTrustThreshold
	}
	return &Engine{store: st, cfg: cfg, logger: logger}
}

// Config returns the exploration bounds.
func (e *Engine) Config() Config { return e.cfg }

// frontier is one BFS state: the agent being expanded, the path that led
// there, and the damped product of edge weights so far.
type frontier struct {
	current    model.Address
	path       []model.TrustPathHop
	cumulative float32
}

// FindBestPath returns the highest-effective-trust path from one agent to
// a target, or nil when no path exists. Self-trust is the synthetic
// depth-1 path with trust 1.0. Ties break by shorter depth, then by
// earliest discovery.
func (e *Engine) FindBestPath(ctx context.Context, from, to model.Address) (*model.TrustPath, error) {
	paths, err := e.FindAllPaths(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, nil
	}

	best := 0
	for i := 1; i < len(paths); i++ {
		if paths[i].EffectiveTrust > paths[best].EffectiveTrust ||
			(paths[i].EffectiveTrust == paths[best].EffectiveTrust && paths[i].Depth < paths[best].Depth) {
			best = i
		}
	}
	return &paths[best], nil
}

// FindAllPaths runs the bounded BFS and returns every completed path in
// discovery order.
func (e *Engine) FindAllPaths(ctx context.Context, from, to model.Address) ([]model.TrustPath, error) {
	if from == to {
		return []model.TrustPath{model.DirectTrustPath(from, to, 1.0)}, nil
	}
	if from.Domain != model.DomainAgent {
		return nil, model.Validation("trust paths must start from an agent")
	}

	var paths []model.TrustPath
	queue := []frontier{{current: from, cumulative: 1.0}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		state := queue[0]
		queue = queue[1:]

		if len(state.path) >= e.cfg.MaxDepth {
			continue
		}
		if abs32(state.cumulative) < e.cfg.MinTrustThreshold {
			continue
		}

		agent, err := e.store.GetAgent(ctx, state.current.Entity)
		if err != nil {
			return nil, err
		}
		if agent == nil {
			// Dangling trust edge; tolerated.
			continue
		}

		for _, edge := range agent.Trust.Trusts {
			trustee := edge.Agent
			if trustee.Entity == from.Entity || hopVisited(state.path, trustee) {
				continue
			}

			damping := e.cfg.DampingFactor
			if len(state.path) == 0 {
				damping = 1.0
			}
			next := state.cumulative * edge.Trust * damping

			newPath := make([]model.TrustPathHop, len(state.path), len(state.path)+1)
			copy(newPath, state.path)
			newPath = append(newPath, model.TrustPathHop{Agent: trustee, TrustLevel: edge.Trust})

			if trustee.Entity == to.Entity {
				paths = append(paths, model.TrustPath{
					From:           from,
					To:             to,
					Hops:           newPath,
					EffectiveTrust: next,
					Depth:          len(newPath),
				})
			} else if trustee.Domain == model.DomainAgent {
				queue = append(queue, frontier{current: trustee, path: newPath, cumulative: next})
			}
		}
	}

	return paths, nil
}

// Score computes an entity's trust score from a viewer's perspective: the
// best path's effective trust, or neutral 0.0 when no path exists.
func (e *Engine) Score(ctx context.Context, entity, viewer model.Address) (model.TrustScore, error) {
	path, err := e.FindBestPath(ctx, viewer, entity)
	if err != nil {
		return model.TrustScore{}, err
	}
	if path == nil {
		return model.NeutralTrustScore(entity, viewer), nil
	}
	score := model.NewTrustScore(entity, viewer, path.EffectiveTrust, 1)
	score.BestPath = path
	return score, nil
}

// DirectTrust returns the direct edge weight from one agent to a target,
// or (0, false) when no direct edge exists.
func (e *Engine) DirectTrust(ctx context.Context, from, to model.Address) (float32, bool, error) {
	if from.Domain != model.DomainAgent {
		return 0, false, nil
	}
	agent, err := e.store.GetAgent(ctx, from.Entity)
	if err != nil {
		return 0, false, err
	}
	if agent == nil {
		return 0, false, nil
	}
	for _, edge := range agent.Trust.Trusts {
		if edge.Agent.Entity == to.Entity {
			return edge.Trust, true, nil
		}
	}
	return 0, false, nil
}

// GraphNode is an agent vertex in an exported trust graph.
type GraphNode struct {
	Address     model.Address `json:"address"`
	Description string        `json:"description"`
	Depth       int           `json:"depth"`
}

// GraphEdge is one observed trust edge.
type GraphEdge struct {
	From       model.Address `json:"from"`
	To         model.Address `json:"to"`
	TrustLevel float32       `json:"trust_level"`
}

// Graph is the exported neighborhood around a center agent. Cycles may
// appear in the edge set.
type Graph struct {
	Nodes map[string]GraphNode `json:"nodes"`
	Edges []GraphEdge          `json:"edges"`
}

// BuildGraph exports all agents reachable within maxDepth of center along
// with every trust edge observed on the way.
func (e *Engine) BuildGraph(ctx context.Context, center model.Address, maxDepth int) (*Graph, error) {
	if maxDepth <= 0 {
		maxDepth = e.cfg.MaxDepth
	}

	graph := &Graph{Nodes: make(map[string]GraphNode)}
	visited := make(map[string]bool)

	type item struct {
		addr  model.Address
		depth int
	}
	queue := []item{{addr: center}}

	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		if it.depth > maxDepth || visited[it.addr.Entity] {
			continue
		}
		visited[it.addr.Entity] = true

		agent, err := e.store.GetAgent(ctx, it.addr.Entity)
		if err != nil {
			return nil, err
		}
		if agent == nil {
			continue
		}

		graph.Nodes[it.addr.Entity] = GraphNode{
			Address:     it.addr,
			Description: agent.Description,
			Depth:       it.depth,
		}

		for _, edge := range agent.Trust.Trusts {
			graph.Edges = append(graph.Edges, GraphEdge{
				From:       it.addr,
				To:         edge.Agent,
				TrustLevel: edge.Trust,
			})
			if !visited[edge.Agent.Entity] && edge.Agent.Domain == model.DomainAgent {
				queue = append(queue, item{addr: edge.Agent, depth: it.depth + 1})
			}
		}
	}

	return graph, nil
}

func hopVisited(path []model.TrustPathHop, addr model.Address) bool {
	for _, hop := range path {
		if hop.Agent == addr {
			return true
		}
	}
	return false
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
