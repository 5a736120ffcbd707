package placement

import (
	"bytes"
	"strings"
	"testing"

	"hesched/core/opgraph"
	"hesched/core/segments"
	"hesched/loader"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var latencies = opgraph.LatencyTable{
	opgraph.Add: 1, opgraph.Sub: 1, opgraph.Mul: 3, opgraph.Boot: 12,
}

const chain = "1:MUL(k1,k2)\n2:MUL(c1,k3)\n3:ADD(c2,k4)\n4:MUL(c3,k5)\n"

func parse(t *testing.T, src string, mode opgraph.Mode) *opgraph.Graph {
	t.Helper()
	g, err := loader.ParseGraph(strings.NewReader(src), mode, latencies)
	require.NoError(t, err)
	return g
}

func synthetic(t *testing.T, n int, seed int64, mode opgraph.Mode) *opgraph.Graph {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, loader.WriteSynthetic(&buf, n, 0.4, seed))
	return parse(t, buf.String(), mode)
}

func TestChainExample(t *testing.T) {
	for _, mode := range []opgraph.Mode{opgraph.Complete, opgraph.Selective} {
		t.Run(mode.String(), func(t *testing.T) {
			g := parse(t, chain, mode)
			segs, _, err := segments.Build(g, 1)
			require.NoError(t, err)
			require.Len(t, segs, 2)

			res, err := New(g, segs, nil).Run(DefaultPolicies[0])
			require.NoError(t, err)
			assert.Equal(t, []int{1, 2}, res.Picks)
			assert.True(t, g.Op(2).IsBootstrapped())
			assert.Equal(t, 2, res.Bootstraps)
			for _, s := range segs {
				assert.True(t, segments.Satisfied(g, s))
			}
		})
	}
}

func TestPrefersOperationOnMoreSegments(t *testing.T) {
	g := parse(t, "1 MUL k1 k2\n2 MUL c1 k3\n3 MUL c2 k4\n", opgraph.Complete)
	segs := []segments.Segment{{1, 2}, {2, 3}}
	res, err := New(g, segs, nil).Run(Policy{Name: "count", Segments: 1})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, res.Picks)
}

func TestUrgencyFavoursLatePositions(t *testing.T) {
	g := parse(t, "1 MUL k1 k2\n2 ADD c1 k3\n3 ADD c2 k4\n", opgraph.Complete)
	segs := []segments.Segment{{1, 2, 3}}
	res, err := New(g, segs, nil).Run(Policy{Name: "late", Segments: 1, Urgency: 1})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, res.Picks)
}

func TestUncoverable(t *testing.T) {
	g := parse(t, chain, opgraph.Selective)
	_, err := New(g, []segments.Segment{{4}}, nil).Run(DefaultPolicies[0])
	require.ErrorIs(t, err, ErrUncoverable)
}

func TestCoverageOnSyntheticCircuits(t *testing.T) {
	for _, mode := range []opgraph.Mode{opgraph.Complete, opgraph.Selective} {
		for seed := int64(1); seed <= 4; seed++ {
			g := synthetic(t, 40, seed, mode)
			segs, _, err := segments.Build(g, 2)
			require.NoError(t, err)
			sel := New(g, segs, nil)
			results, err := sel.RunAll(DefaultPolicies)
			require.NoError(t, err)
			require.Len(t, results, len(DefaultPolicies))
			assert.Zero(t, g.BootstrapCount(), "RunAll restores the starting marking")

			for _, res := range results {
				require.NoError(t, g.ApplyMarking(res.Marking))
				for i, s := range segs {
					assert.True(t, segments.Satisfied(g, s), "%s seed %d policy %s segment %d", mode, seed, res.Policy.Name, i)
				}
				assert.Equal(t, len(res.Picks), res.Bootstraps)
			}
		}
	}
}

func TestRunIsDeterministic(t *testing.T) {
	run := func() []int {
		g := synthetic(t, 60, 11, opgraph.Selective)
		segs, _, err := segments.Build(g, 2)
		require.NoError(t, err)
		res, err := New(g, segs, nil).Run(DefaultPolicies[1])
		require.NoError(t, err)
		return res.Picks
	}
	assert.Equal(t, run(), run())
}

func TestPolicyValidate(t *testing.T) {
	require.Error(t, Policy{Name: "zero"}.Validate())
	for _, p := range DefaultPolicies {
		require.NoError(t, p.Validate())
	}
}
