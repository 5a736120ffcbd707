package listsched

import (
	"bytes"
	"strings"
	"testing"

	"hesched/core/opgraph"
	"hesched/core/placement"
	"hesched/core/segments"
	"hesched/loader"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var unit = opgraph.LatencyTable{
	opgraph.Add: 1, opgraph.Sub: 1, opgraph.Mul: 1, opgraph.Boot: 5,
}

const chain = "1 ADD k1 k2\n2 ADD c1 k3\n3 ADD c2 k4\n"

func parse(t *testing.T, src string, mode opgraph.Mode, lat opgraph.LatencyTable) *opgraph.Graph {
	t.Helper()
	g, err := loader.ParseGraph(strings.NewReader(src), mode, lat)
	require.NoError(t, err)
	return g
}

func TestLinearChain(t *testing.T) {
	for _, cores := range []int{0, 1} {
		g := parse(t, chain, opgraph.Complete, unit)
		s, err := Run(g, Options{Cores: cores})
		require.NoError(t, err)
		require.NoError(t, Verify(g, s))

		assert.Equal(t, 3, s.Latency, "cores=%d", cores)
		for i, e := range s.Entries {
			assert.Equal(t, i, e.Start)
			assert.Equal(t, 1, e.Core)
		}
		assert.Equal(t, 1, s.UsedCores())
	}
}

func TestBootstrapDelaysConsumer(t *testing.T) {
	g := parse(t, chain, opgraph.Complete, unit)
	require.NoError(t, g.MarkBootstrap(1))
	s, err := Run(g, Options{Cores: 1})
	require.NoError(t, err)
	require.NoError(t, Verify(g, s))

	e := s.Entry(1)
	assert.Equal(t, 1, e.BootStart)
	assert.Equal(t, 5, e.BootLatency)
	assert.Equal(t, 6, s.Entry(2).Start)
	assert.Equal(t, 8, s.Latency)
	assert.Equal(t, []Operand{{ID: 1, Bootstrapped: true}, {ID: 3, Const: true}}, s.Entry(2).Operands)

	streams := s.Streams()
	require.Len(t, streams, 1)
	var kinds []string
	for _, in := range streams[0] {
		kinds = append(kinds, in.Kind)
	}
	assert.Equal(t, []string{"ADD", "BOOT", "ADD", "ADD"}, kinds)
	assert.Equal(t, "ADD r2 b1 k3 @6", streams[0][2].String())
}

func TestSelectiveEdgeKeepsRawConsumer(t *testing.T) {
	src := "1 ADD k1 k2\n2 ADD c1 k3\n3 ADD c1 k4\n"
	g := parse(t, src, opgraph.Selective, unit)
	require.NoError(t, g.MarkEdge(1, 3))
	s, err := Run(g, Options{})
	require.NoError(t, err)
	require.NoError(t, Verify(g, s))

	assert.Equal(t, 1, s.Entry(2).Start)
	assert.Equal(t, 6, s.Entry(3).Start)
	assert.Equal(t, 1, s.Entry(1).RawConsumers)
	assert.Equal(t, 1, s.Entry(1).BootConsumers)
}

func TestCoreContention(t *testing.T) {
	lat := opgraph.LatencyTable{opgraph.Add: 1, opgraph.Sub: 1, opgraph.Mul: 3, opgraph.Boot: 5}
	src := "1 MUL k1 k2\n2 MUL k3 k4\n"

	g := parse(t, src, opgraph.Complete, lat)
	s, err := Run(g, Options{Cores: 1})
	require.NoError(t, err)
	require.NoError(t, Verify(g, s))
	assert.Equal(t, 6, s.Latency)

	s, err = Run(g, Options{Cores: 2})
	require.NoError(t, err)
	require.NoError(t, Verify(g, s))
	assert.Equal(t, 3, s.Latency)
	assert.Equal(t, 2, s.UsedCores())
}

func TestInfeasible(t *testing.T) {
	g := parse(t, chain, opgraph.Complete, unit)
	_, err := Run(g, Options{Cores: 1, MaxCycles: 2})
	require.ErrorIs(t, err, ErrInfeasible)
}

func TestRejectsZeroLatency(t *testing.T) {
	lat := opgraph.LatencyTable{opgraph.Add: 0, opgraph.Sub: 1, opgraph.Mul: 1, opgraph.Boot: 1}
	g := parse(t, chain, opgraph.Complete, lat)
	_, err := Run(g, Options{})
	require.Error(t, err)

	g = parse(t, chain, opgraph.Complete, unit)
	_, err = Run(g, Options{Cores: -1})
	require.Error(t, err)
}

func placed(t *testing.T, n int, seed int64, mode opgraph.Mode) *opgraph.Graph {
	t.Helper()
	lat := opgraph.LatencyTable{opgraph.Add: 1, opgraph.Sub: 1, opgraph.Mul: 4, opgraph.Boot: 20}
	var buf bytes.Buffer
	require.NoError(t, loader.WriteSynthetic(&buf, n, 0.4, seed))
	g := parse(t, buf.String(), mode, lat)
	segs, _, err := segments.Build(g, 2)
	require.NoError(t, err)
	_, err = placement.New(g, segs, nil).Run(placement.DefaultPolicies[0])
	require.NoError(t, err)
	return g
}

func TestFeasibleOnSyntheticCircuits(t *testing.T) {
	for _, mode := range []opgraph.Mode{opgraph.Complete, opgraph.Selective} {
		for seed := int64(1); seed <= 3; seed++ {
			for _, cores := range []int{0, 1, 2, 4} {
				g := placed(t, 50, seed, mode)
				s, err := Run(g, Options{Cores: cores})
				require.NoError(t, err)
				require.NoError(t, Verify(g, s), "%s seed %d cores %d", mode, seed, cores)
				assert.Equal(t, g.BootstrapCount(), s.Bootstraps)
			}
		}
	}
}

func TestMoreCoresNeverSlower(t *testing.T) {
	g := placed(t, 50, 7, opgraph.Selective)
	one, err := Run(g, Options{Cores: 1})
	require.NoError(t, err)
	all, err := Run(g, Options{})
	require.NoError(t, err)
	assert.LessOrEqual(t, all.Latency, one.Latency)
}

func TestRunIsDeterministic(t *testing.T) {
	run := func() *Schedule {
		g := placed(t, 60, 5, opgraph.Complete)
		s, err := Run(g, Options{Cores: 3})
		require.NoError(t, err)
		return s
	}
	a, b := run(), run()
	assert.Equal(t, a, b)
	_, err := uuid.Parse(a.ID)
	require.NoError(t, err)
}

func TestVerifyCatchesOverlap(t *testing.T) {
	src := "1 ADD k1 k2\n2 ADD k3 k4\n"
	g := parse(t, src, opgraph.Complete, unit)
	s, err := Run(g, Options{Cores: 2})
	require.NoError(t, err)
	require.NoError(t, Verify(g, s))

	s.Entries[1].Core = s.Entries[0].Core
	s.Entries[1].Start = s.Entries[0].Start
	require.Error(t, Verify(g, s))
}

func TestPriorityOrder(t *testing.T) {
	src := "1 MUL k1 k2\n2 ADD k3 k4\n3 ADD c1 c2\n"
	lat := opgraph.LatencyTable{opgraph.Add: 1, opgraph.Sub: 1, opgraph.Mul: 3, opgraph.Boot: 5}
	g := parse(t, src, opgraph.Complete, lat)
	_, err := Run(g, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 2}, PriorityOrder(g))
}
