package loader

import (
	"fmt"
	"io"
	"math/rand"
)

// WriteSynthetic writes a random circuit of n operations. mulRatio is the
// share of multiplications; every operation reads one or two earlier results
// or constants. The same seed always produces the same circuit.
func WriteSynthetic(w io.Writer, n int, mulRatio float64, seed int64) error {
	rng := rand.New(rand.NewSource(seed))
	consts := 0
	nextConst := func() string {
		consts++
		return fmt.Sprintf("k%d", consts)
	}
	for id := 1; id <= n; id++ {
		kind := "ADD"
		switch r := rng.Float64(); {
		case r < mulRatio:
			kind = "MUL"
		case r < mulRatio+(1-mulRatio)/3:
			kind = "SUB"
		}
		var operands []string
		if id == 1 {
			operands = []string{nextConst(), nextConst()}
		} else {
			// keep the graph connected by reading a recent result
			lo := id - 4
			if lo < 1 {
				lo = 1
			}
			operands = append(operands, fmt.Sprintf("c%d", lo+rng.Intn(id-lo)))
			if rng.Intn(2) == 0 {
				operands = append(operands, fmt.Sprintf("c%d", 1+rng.Intn(id-1)))
			} else {
				operands = append(operands, nextConst())
			}
		}
		if _, err := fmt.Fprintf(w, "%d %s", id, kind); err != nil {
			return err
		}
		for _, o := range operands {
			if _, err := fmt.Fprintf(w, " %s", o); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
