package compiler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hesched/core/listsched"
	"hesched/core/opgraph"
	"hesched/core/placement"
	"hesched/core/segments"
	"hesched/loader"
)

var latencies = opgraph.LatencyTable{
	opgraph.Add: 1, opgraph.Sub: 1, opgraph.Mul: 4, opgraph.Boot: 20,
}

const chain = "1 MUL k1 k2\n2 MUL c1 k3\n3 ADD c2 k4\n4 MUL c3 k5\n"

func parse(t *testing.T, src string, mode opgraph.Mode) *opgraph.Graph {
	t.Helper()
	g, err := loader.ParseGraph(strings.NewReader(src), mode, latencies)
	require.NoError(t, err)
	return g
}

func synthetic(t *testing.T, seed int64, mode opgraph.Mode) *opgraph.Graph {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, loader.WriteSynthetic(&buf, 60, 0.4, seed))
	return parse(t, buf.String(), mode)
}

func TestCompileChain(t *testing.T) {
	g := parse(t, chain, opgraph.Complete)
	p, err := NewProgram(g, 1)
	require.NoError(t, err)
	require.Len(t, p.Segments, 2)

	res, err := Compile(p, Options{Cores: 1, Policies: placement.DefaultPolicies})
	require.NoError(t, err)
	assert.Len(t, res.Candidates, len(placement.DefaultPolicies))
	assert.Equal(t, "segments", res.Policy)
	assert.Equal(t, []int{1, 2}, res.Picks)
	assert.Equal(t, 2, res.Schedule.Bootstraps)
	for _, s := range p.Segments {
		assert.True(t, segments.Satisfied(g, s))
	}
	require.NoError(t, listsched.Verify(g, res.Schedule))
}

func TestSweepKeepsBest(t *testing.T) {
	for _, mode := range []opgraph.Mode{opgraph.Complete, opgraph.Selective} {
		for seed := int64(1); seed <= 3; seed++ {
			g := synthetic(t, seed, mode)
			p, err := NewProgram(g, 2)
			require.NoError(t, err)

			best, candidates, err := Sweep(p, placement.DefaultPolicies, 0, nil)
			require.NoError(t, err)
			require.Len(t, candidates, len(placement.DefaultPolicies))

			b := candidates[best]
			for i, c := range candidates {
				assert.LessOrEqual(t, b.Schedule.Latency, c.Schedule.Latency)
				if c.Schedule.Latency == b.Schedule.Latency {
					assert.LessOrEqual(t, b.Placement.Bootstraps, c.Placement.Bootstraps)
					if c.Placement.Bootstraps == b.Placement.Bootstraps {
						assert.LessOrEqual(t, best, i)
					}
				}
			}
			assert.Equal(t, b.Placement.Marking, g.Marking())
		}
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	run := func() *listsched.Schedule {
		g := synthetic(t, 9, opgraph.Selective)
		p, err := NewProgram(g, 2)
		require.NoError(t, err)
		res, err := Compile(p, Options{Cores: 3, Policies: placement.DefaultPolicies})
		require.NoError(t, err)
		return res.Schedule
	}
	a, b := run(), run()
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, a, b)
}

func TestSkipPlacementUsesLoadedMarking(t *testing.T) {
	g := parse(t, chain, opgraph.Complete)
	require.NoError(t, loader.ParseBootstraps(strings.NewReader("2\n"), g))
	p := LoadedProgram(g, nil)

	res, err := Compile(p, Options{SkipPlacement: true})
	require.NoError(t, err)
	assert.Equal(t, "none", res.Policy)
	assert.Equal(t, 1, res.Schedule.Bootstraps)
	assert.Equal(t, 4+4+20+1+4, res.Schedule.Latency)
}

// diamond has a direct edge 1->3 and a longer path 1->2->3 with the same
// endpoints; at one level only the direct chain survives elimination.
const diamond = "1 MUL k1 k2\n2 ADD c1 k1\n3 MUL c1 c2\n"

func TestPartialEdgeMarkingCoversEliminatedChains(t *testing.T) {
	g := parse(t, diamond, opgraph.Selective)
	p, err := NewProgram(g, 1)
	require.NoError(t, err)
	require.Equal(t, []segments.Segment{{1, 3}}, p.Segments)
	require.Contains(t, p.Chains, segments.Segment{1, 2, 3})

	require.NoError(t, loader.ParseBootstraps(strings.NewReader("1 3\n"), g))
	require.True(t, g.PartiallyMarked())
	require.False(t, segments.Satisfied(g, segments.Segment{1, 2, 3}))

	res, err := Compile(p, Options{Policies: placement.DefaultPolicies})
	require.NoError(t, err)
	assert.True(t, segments.Satisfied(g, segments.Segment{1, 3}))
	assert.True(t, segments.Satisfied(g, segments.Segment{1, 2, 3}))
	assert.Empty(t, p.Uncovered())
	require.NoError(t, listsched.Verify(g, res.Schedule))
}

func TestUncoveredSegmentFails(t *testing.T) {
	g := parse(t, diamond, opgraph.Selective)
	p, err := NewProgram(g, 1)
	require.NoError(t, err)
	require.NoError(t, loader.ParseBootstraps(strings.NewReader("1 3\n"), g))

	_, err = Compile(p, Options{SkipPlacement: true})
	require.ErrorIs(t, err, ErrUncovered)

	res, err := Compile(p, Options{SkipPlacement: true, AllowUncovered: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Schedule.Bootstraps)

	g = parse(t, chain, opgraph.Complete)
	p, err = NewProgram(g, 1)
	require.NoError(t, err)
	_, err = Compile(p, Options{SkipPlacement: true})
	require.ErrorIs(t, err, ErrUncovered)
}

func TestCompileErrors(t *testing.T) {
	g := parse(t, chain, opgraph.Selective)
	p := LoadedProgram(g, []segments.Segment{{4}})
	_, err := Compile(p, Options{Policies: placement.DefaultPolicies})
	require.ErrorIs(t, err, placement.ErrUncoverable)

	g = parse(t, chain, opgraph.Complete)
	p, err = NewProgram(g, 1)
	require.NoError(t, err)
	_, err = Compile(p, Options{Cores: 1, MaxCycles: 5, Policies: placement.DefaultPolicies})
	require.ErrorIs(t, err, listsched.ErrInfeasible)

	_, err = NewProgram(g, 0)
	require.ErrorIs(t, err, segments.ErrLevels)

	_, _, err = Sweep(p, nil, 0, nil)
	require.Error(t, err)
}
