package trust_test

import (
	"context"
	"testing"

	"github.com/sagenet/sage-hub/internal/model"
	"github.com/sagenet/sage-hub/internal/store"
	"github.com/sagenet/sage-hub/internal/trust"
	"go.uber.org/zap"
)

var ctx = context.Background()

func newEngine(t *testing.T) (*trust.Engine, *store.EntityStore) {
	t.Helper()
	st := store.NewEntityStore(store.NewMemoryKV())
	return trust.NewEngine(st, trust.DefaultConfig(), zap.NewNop()), st
}

func putAgent(t *testing.T, st *store.EntityStore, id string, edges ...model.Trust) {
	t.Helper()
	agent := model.NewAgent(id, "key")
	agent.Signature = "sig"
	for _, edge := range edges {
		agent.AddTrust(edge.Agent, edge.Trust)
	}
	if err := st.PutAgent(ctx, agent); err != nil {
		t.Fatal(err)
	}
}

func addr(id string) model.Address {
	return model.AgentAddress("hub:8080", id)
}

func approx(got, want float32) bool {
	diff := got - want
	return diff < 0.001 && diff > -0.001
}

func TestFindBestPath_selfTrust(t *testing.T) {
	engine, st := newEngine(t)
	putAgent(t, st, "alice")

	path, err := engine.FindBestPath(ctx, addr("alice"), addr("alice"))
	if err != nil {
		t.Fatal(err)
	}
	if path == nil {
		t.Fatal("self path should exist")
	}
	if path.EffectiveTrust != 1.0 {
		t.Errorf("effective trust: got %v, want 1.0", path.EffectiveTrust)
	}
	if path.Depth != 1 {
		t.Errorf("depth: got %d, want 1", path.Depth)
	}
}

func TestFindBestPath_direct(t *testing.T) {
	engine, st := newEngine(t)
	putAgent(t, st, "alice", model.Trust{Agent: addr("bob"), Trust: 0.9})
	putAgent(t, st, "bob")

	path, err := engine.FindBestPath(ctx, addr("alice"), addr("bob"))
	if err != nil {
		t.Fatal(err)
	}
	if path == nil {
		t.Fatal("direct path should exist")
	}
	if path.Depth != 1 {
		t.Errorf("depth: got %d, want 1", path.Depth)
	}
	// First hop is undamped.
	if !approx(path.EffectiveTrust, 0.9) {
		t.Errorf("effective trust: got %v, want 0.9", path.EffectiveTrust)
	}
}

func TestFindBestPath_triangle(t *testing.T) {
	engine, st := newEngine(t)
	putAgent(t, st, "alice", model.Trust{Agent: addr("bob"), Trust: 0.9})
	putAgent(t, st, "bob", model.Trust{Agent: addr("carol"), Trust: 0.8})
	putAgent(t, st, "carol")

	path, err := engine.FindBestPath(ctx, addr("alice"), addr("carol"))
	if err != nil {
		t.Fatal(err)
	}
	if path == nil {
		t.Fatal("transitive path should exist")
	}
	if path.Depth != 2 {
		t.Errorf("depth: got %d, want 2", path.Depth)
	}
	// 0.9 * 0.8 * 0.8 damping
	if !approx(path.EffectiveTrust, 0.576) {
		t.Errorf("effective trust: got %v, want 0.576", path.EffectiveTrust)
	}
}

func TestFindBestPath_prefersStrongerRoute(t *testing.T) {
	engine, st := newEngine(t)
	// Two routes to dave: via bob (0.9 * 0.9 * 0.8 = 0.648) and a weak
	// direct edge (0.2).
	putAgent(t, st, "alice",
		model.Trust{Agent: addr("bob"), Trust: 0.9},
		model.Trust{Agent: addr("dave"), Trust: 0.2},
	)
	putAgent(t, st, "bob", model.Trust{Agent: addr("dave"), Trust: 0.9})
	putAgent(t, st, "dave")

	path, err := engine.FindBestPath(ctx, addr("alice"), addr("dave"))
	if err != nil {
		t.Fatal(err)
	}
	if path == nil {
		t.Fatal("path should exist")
	}
	if path.Depth != 2 {
		t.Errorf("should take the indirect stronger route, got depth %d", path.Depth)
	}
	if !approx(path.EffectiveTrust, 0.648) {
		t.Errorf("effective trust: got %v, want 0.648", path.EffectiveTrust)
	}
}

func TestFindBestPath_noPath(t *testing.T) {
	engine, st := newEngine(t)
	putAgent(t, st, "alice")
	putAgent(t, st, "bob")

	path, err := engine.FindBestPath(ctx, addr("alice"), addr("bob"))
	if err != nil {
		t.Fatal(err)
	}
	if path != nil {
		t.Errorf("no edges, no path; got %+v", path)
	}
}

func TestFindBestPath_nonAgentSource(t *testing.T) {
	engine, _ := newEngine(t)
	from := model.FragmentAddress("hub:8080", "f1")

	if _, err := engine.FindAllPaths(ctx, from, addr("bob")); model.KindOf(err) != model.KindValidation {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestFindBestPath_cyclesAreSkipped(t *testing.T) {
	engine, st := newEngine(t)
	putAgent(t, st, "alice", model.Trust{Agent: addr("bob"), Trust: 0.9})
	putAgent(t, st, "bob",
		model.Trust{Agent: addr("alice"), Trust: 0.9},
		model.Trust{Agent: addr("carol"), Trust: 0.8},
	)
	putAgent(t, st, "carol")

	path, err := engine.FindBestPath(ctx, addr("alice"), addr("carol"))
	if err != nil {
		t.Fatal(err)
	}
	if path == nil {
		t.Fatal("path should exist despite the cycle")
	}
	if path.Depth != 2 {
		t.Errorf("depth: got %d, want 2", path.Depth)
	}
}

func TestFindBestPath_respectsMaxDepth(t *testing.T) {
	st := store.NewEntityStore(store.NewMemoryKV())
	engine := trust.NewEngine(st, trust.Config{MaxDepth: 2, DampingFactor: 0.8, MinTrustThreshold: 0.01}, zap.NewNop())

	// Chain alice -> b1 -> b2 -> target needs 3 hops; max is 2.
	putAgent(t, st, "alice", model.Trust{Agent: addr("b1"), Trust: 0.9})
	putAgent(t, st, "b1", model.Trust{Agent: addr("b2"), Trust: 0.9})
	putAgent(t, st, "b2", model.Trust{Agent: addr("target"), Trust: 0.9})
	putAgent(t, st, "target")

	path, err := engine.FindBestPath(ctx, addr("alice"), addr("target"))
	if err != nil {
		t.Fatal(err)
	}
	if path != nil {
		t.Errorf("path beyond max depth should not be found, got depth %d", path.Depth)
	}
}

func TestFindBestPath_thresholdPrunes(t *testing.T) {
	st := store.NewEntityStore(store.NewMemoryKV())
	engine := trust.NewEngine(st, trust.Config{MaxDepth: 5, DampingFactor: 0.8, MinTrustThreshold: 0.5}, zap.NewNop())

	// alice -> bob at 0.4 is below the 0.5 threshold, so bob is never
	// expanded toward carol.
	putAgent(t, st, "alice", model.Trust{Agent: addr("bob"), Trust: 0.4})
	putAgent(t, st, "bob", model.Trust{Agent: addr("carol"), Trust: 0.9})
	putAgent(t, st, "carol")

	path, err := engine.FindBestPath(ctx, addr("alice"), addr("carol"))
	if err != nil {
		t.Fatal(err)
	}
	if path != nil {
		t.Errorf("pruned frontier should yield no path, got %+v", path)
	}
}

func TestFindBestPath_negativeTrust(t *testing.T) {
	engine, st := newEngine(t)
	putAgent(t, st, "alice", model.Trust{Agent: addr("mallory"), Trust: -0.5})
	putAgent(t, st, "mallory")

	path, err := engine.FindBestPath(ctx, addr("alice"), addr("mallory"))
	if err != nil {
		t.Fatal(err)
	}
	if path == nil {
		t.Fatal("distrust path should still be found")
	}
	if !path.IsDistrusted() {
		t.Errorf("effective trust: got %v, want negative", path.EffectiveTrust)
	}
}

func TestScore(t *testing.T) {
	engine, st := newEngine(t)
	putAgent(t, st, "alice", model.Trust{Agent: addr("bob"), Trust: 0.9})
	putAgent(t, st, "bob")

	score, err := engine.Score(ctx, addr("bob"), addr("alice"))
	if err != nil {
		t.Fatal(err)
	}
	if !approx(score.Score, 0.9) {
		t.Errorf("score: got %v, want 0.9", score.Score)
	}
	if score.PathCount != 1 {
		t.Errorf("path_count: got %d, want 1", score.PathCount)
	}
	if score.BestPath == nil {
		t.Error("best path should be attached")
	}
}

func TestScore_neutral(t *testing.T) {
	engine, st := newEngine(t)
	putAgent(t, st, "alice")
	putAgent(t, st, "bob")

	score, err := engine.Score(ctx, addr("bob"), addr("alice"))
	if err != nil {
		t.Fatal(err)
	}
	if score.Score != 0 || score.PathCount != 0 || score.BestPath != nil {
		t.Errorf("neutral score expected, got %+v", score)
	}
}

func TestDirectTrust(t *testing.T) {
	engine, st := newEngine(t)
	putAgent(t, st, "alice", model.Trust{Agent: addr("bob"), Trust: 0.7})
	putAgent(t, st, "bob")

	level, ok, err := engine.DirectTrust(ctx, addr("alice"), addr("bob"))
	if err != nil {
		t.Fatal(err)
	}
	if !ok || !approx(level, 0.7) {
		t.Errorf("got (%v, %v)", level, ok)
	}

	_, ok, err = engine.DirectTrust(ctx, addr("bob"), addr("alice"))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("no direct edge should report false")
	}
}

func TestBuildGraph(t *testing.T) {
	engine, st := newEngine(t)
	putAgent(t, st, "alice", model.Trust{Agent: addr("bob"), Trust: 0.9})
	putAgent(t, st, "bob", model.Trust{Agent: addr("alice"), Trust: 0.5})

	graph, err := engine.BuildGraph(ctx, addr("alice"), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(graph.Nodes) != 2 {
		t.Errorf("nodes: got %d, want 2", len(graph.Nodes))
	}
	// Both edges of the cycle appear in the export.
	if len(graph.Edges) != 2 {
		t.Errorf("edges: got %d, want 2", len(graph.Edges))
	}
}

func TestFindBestPath_danglingEdge(t *testing.T) {
	engine, st := newEngine(t)
	// alice trusts an agent that was deleted; the walk tolerates it.
	putAgent(t, st, "alice", model.Trust{Agent: addr("ghost"), Trust: 0.9})

	path, err := engine.FindBestPath(ctx, addr("alice"), addr("someone-else"))
	if err != nil {
		t.Fatal(err)
	}
	if path != nil {
		t.Errorf("got %+v, want no path", path)
	}
}
