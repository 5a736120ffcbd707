package segments_test

import (
	"strings"
	"testing"

	"hesched/core/opgraph"
	"hesched/core/segments"
	"hesched/loader"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string, mode opgraph.Mode) *opgraph.Graph {
	t.Helper()
	g, err := loader.ParseGraph(strings.NewReader(src), mode, opgraph.LatencyTable{
		opgraph.Add: 1, opgraph.Sub: 1, opgraph.Mul: 1, opgraph.Boot: 5,
	})
	require.NoError(t, err)
	return g
}

const chain = "1:MUL(k1,k2)\n2:MUL(c1,k3)\n3:ADD(c2,k4)\n4:MUL(c3,k5)\n"

func TestGenerateAdditionsDoNotResetCount(t *testing.T) {
	g := parse(t, chain, opgraph.Selective)
	raw, err := segments.Generate(g, 1)
	require.NoError(t, err)
	assert.Equal(t, []segments.Segment{{1, 2}, {2, 3, 4}}, raw)

	raw, err = segments.Generate(g, 2)
	require.NoError(t, err)
	assert.Equal(t, []segments.Segment{{1, 2, 3, 4}}, raw)

	raw, err = segments.Generate(g, 3)
	require.NoError(t, err)
	assert.Empty(t, raw, "program ends before overflowing")
}

func TestGenerateRejectsZeroLevels(t *testing.T) {
	g := parse(t, chain, opgraph.Complete)
	_, err := segments.Generate(g, 0)
	require.ErrorIs(t, err, segments.ErrLevels)
}

func TestBuildCompleteTruncates(t *testing.T) {
	g := parse(t, chain, opgraph.Complete)
	segs, _, err := segments.Build(g, 1)
	require.NoError(t, err)
	assert.Equal(t, []segments.Segment{{1}, {2, 3}}, segs)
}

func TestRedundantSupersetRemoved(t *testing.T) {
	g := parse(t, "1:MUL(k1,k2)\n2:ADD(c1,k1)\n3:MUL(c1,c2)\n", opgraph.Selective)
	raw, err := segments.Generate(g, 1)
	require.NoError(t, err)
	segments.Sort(raw)
	assert.Equal(t, []segments.Segment{{1, 3}, {1, 2, 3}}, raw)

	segs, st, err := segments.RemoveRedundant(raw)
	require.NoError(t, err)
	assert.Equal(t, []segments.Segment{{1, 3}}, segs)
	assert.Equal(t, 1, st.Redundant)
	assert.Equal(t, 0, st.Duplicates)
}

func TestTruncationCreatesDuplicates(t *testing.T) {
	g := parse(t, "1:MUL(k1,k2)\n2:MUL(c1,k1)\n3:MUL(c1,k2)\n", opgraph.Complete)
	segs, st, err := segments.Build(g, 1)
	require.NoError(t, err)
	assert.Equal(t, []segments.Segment{{1}}, segs)
	assert.Equal(t, 1, st.Duplicates)
	assert.Equal(t, 1, st.Final)
}

func TestRemoveRedundantIdempotent(t *testing.T) {
	src := `
1 MUL k1 k2
2 ADD c1 k1
3 MUL c1 c2
4 SUB c2 k3
5 MUL c3 c4
6 ADD c5 c3
7 MUL c6 k2
`
	g := parse(t, src, opgraph.Selective)
	raw, err := segments.Generate(g, 2)
	require.NoError(t, err)
	segments.Sort(raw)
	once, _, err := segments.RemoveRedundant(raw)
	require.NoError(t, err)
	twice, st, err := segments.RemoveRedundant(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
	assert.Zero(t, st.Duplicates+st.Redundant)
}

func TestRemoveRedundantRequiresContiguity(t *testing.T) {
	_, _, err := segments.RemoveRedundant([]segments.Segment{{1, 3}, {2, 3}, {1, 3}})
	require.ErrorIs(t, err, segments.ErrNotContiguous)
}

func TestSatisfiedByMode(t *testing.T) {
	g := parse(t, chain, opgraph.Selective)
	seg := segments.Segment{2, 3, 4}
	assert.False(t, segments.Satisfied(g, seg))
	require.NoError(t, g.MarkEdge(3, 4))
	assert.True(t, segments.Satisfied(g, seg))
	assert.False(t, segments.Satisfied(g, segments.Segment{1, 2}))

	c := parse(t, chain, opgraph.Complete)
	require.NoError(t, c.MarkBootstrap(3))
	assert.True(t, segments.Satisfied(c, segments.Segment{2, 3}))
	assert.False(t, segments.Satisfied(c, segments.Segment{1}))
}

func TestAlive(t *testing.T) {
	g := parse(t, chain, opgraph.Selective)
	segs := []segments.Segment{{1, 2}, {2, 3, 4}}
	members := segments.Members(g, segs)
	assert.True(t, segments.Alive(g, segs[0], members))
	assert.False(t, segments.Alive(g, segs[1], members), "parent 1 lies on a segment and is not bootstrapped")

	require.NoError(t, g.MarkEdge(1, 2))
	assert.False(t, segments.Alive(g, segs[0], members), "satisfied segments are not alive")
	assert.True(t, segments.Alive(g, segs[1], members))
	assert.Equal(t, []int{1}, segments.Unsatisfied(g, segs))
}
