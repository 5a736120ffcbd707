// Package loader reads circuit descriptions, latency tables, bootstrap
// markings and precomputed segments from their line-oriented text formats.
//
// A circuit has one operation per line, either "1 MUL k1 k2" or "1:MUL(k1,k2)".
// Operand c<id> reads the result of operation id, k<id> is a plaintext constant.
// Blank lines and text after '#' are ignored.
package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"hesched/core/opgraph"
	"hesched/core/segments"
)

type line struct {
	no     int
	fields []string
}

func scan(r io.Reader) ([]line, error) {
	var out []line
	sc := bufio.NewScanner(r)
	no := 0
	for sc.Scan() {
		no++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		text = strings.NewReplacer("(", " ", ")", " ", ",", " ", ":", " ").Replace(text)
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		out = append(out, line{no: no, fields: fields})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return out, nil
}

func parseRef(tok string, prefix byte) (int, bool) {
	if len(tok) < 2 || (tok[0] != prefix && tok[0] != prefix-'a'+'A') {
		return 0, false
	}
	n, err := strconv.Atoi(tok[1:])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// ParseGraph builds a graph from a circuit description. Operation ids must be
// consecutive starting at 1. The graph is validated before it is returned.
func ParseGraph(r io.Reader, mode opgraph.Mode, latencies opgraph.LatencyTable) (*opgraph.Graph, error) {
	lines, err := scan(r)
	if err != nil {
		return nil, err
	}
	g := opgraph.New(mode, latencies)
	parents := make([][]int, 0, len(lines))
	for _, ln := range lines {
		if len(ln.fields) < 2 {
			return nil, fmt.Errorf("line %d: expected \"<id> <kind> <operands>\"", ln.no)
		}
		id, err := strconv.Atoi(ln.fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad operation id %q", ln.no, ln.fields[0])
		}
		if id != g.Len()+1 {
			return nil, fmt.Errorf("line %d: operation id %d, want %d", ln.no, id, g.Len()+1)
		}
		kind, err := opgraph.ParseKind(ln.fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", ln.no, err)
		}
		var consts, ps []int
		for _, tok := range ln.fields[2:] {
			if k, ok := parseRef(tok, 'k'); ok {
				consts = append(consts, k)
				continue
			}
			if c, ok := parseRef(tok, 'c'); ok {
				ps = append(ps, c)
				continue
			}
			return nil, fmt.Errorf("line %d: bad operand %q", ln.no, tok)
		}
		g.AddOperation(kind, consts...)
		parents = append(parents, ps)
	}
	for i, ps := range parents {
		for _, p := range ps {
			if err := g.Link(p, i+1); err != nil {
				return nil, fmt.Errorf("operation %d: %w", i+1, err)
			}
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// LoadGraph reads a circuit description from path.
func LoadGraph(path string, mode opgraph.Mode, latencies opgraph.LatencyTable) (*opgraph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open circuit: %w", err)
	}
	defer f.Close()
	return ParseGraph(f, mode, latencies)
}

// ParseLatencies reads "<KIND> <cycles>" lines.
func ParseLatencies(r io.Reader) (opgraph.LatencyTable, error) {
	lines, err := scan(r)
	if err != nil {
		return nil, err
	}
	t := opgraph.LatencyTable{}
	for _, ln := range lines {
		if len(ln.fields) != 2 {
			return nil, fmt.Errorf("line %d: expected \"<kind> <cycles>\"", ln.no)
		}
		kind, err := opgraph.ParseKind(ln.fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", ln.no, err)
		}
		n, err := strconv.Atoi(ln.fields[1])
		if err != nil || n < 1 {
			return nil, fmt.Errorf("line %d: latency must be a positive integer, got %q", ln.no, ln.fields[1])
		}
		t[kind] = n
	}
	return t, nil
}

// ParseBootstraps applies a stored marking to g. A line holding one id
// bootstraps that operation under the graph mode; "parent child" marks one edge.
func ParseBootstraps(r io.Reader, g *opgraph.Graph) error {
	lines, err := scan(r)
	if err != nil {
		return err
	}
	for _, ln := range lines {
		ids, err := atois(ln)
		if err != nil {
			return err
		}
		switch len(ids) {
		case 1:
			err = g.MarkBootstrap(ids[0])
		case 2:
			err = g.MarkEdge(ids[0], ids[1])
		default:
			err = fmt.Errorf("expected one id or a parent/child pair")
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", ln.no, err)
		}
	}
	return nil
}

// ParseSegments reads one chain of operation ids per line.
func ParseSegments(r io.Reader, g *opgraph.Graph) ([]segments.Segment, error) {
	lines, err := scan(r)
	if err != nil {
		return nil, err
	}
	out := make([]segments.Segment, 0, len(lines))
	for _, ln := range lines {
		ids, err := atois(ln)
		if err != nil {
			return nil, err
		}
		for i, id := range ids {
			if _, err := g.Lookup(id); err != nil {
				return nil, fmt.Errorf("line %d: %w", ln.no, err)
			}
			if i > 0 && !g.Op(ids[i-1]).HasChild(id) {
				return nil, fmt.Errorf("line %d: %d does not consume %d", ln.no, id, ids[i-1])
			}
		}
		out = append(out, segments.Segment(ids))
	}
	return out, nil
}

func atois(ln line) ([]int, error) {
	ids := make([]int, len(ln.fields))
	for i, f := range ln.fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad id %q", ln.no, f)
		}
		ids[i] = n
	}
	return ids, nil
}

// Open is a small helper returning a reader for path, used by the CLI for the
// optional inputs.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}
