package opgraph

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the arithmetic type of an operation.
type Kind int

const (
	Add Kind = iota + 1
	Sub
	Mul
	// Boot never appears in an input graph; it names the latency of a bootstrap.
	Boot
)

// Kinds lists every kind in a fixed order.
var Kinds = []Kind{Add, Sub, Mul, Boot}

func (k Kind) String() string {
	switch k {
	case Add:
		return "ADD"
	case Sub:
		return "SUB"
	case Mul:
		return "MUL"
	case Boot:
		return "BOOT"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind accepts ADD, SUB, MUL and BOOT in any letter case.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ADD":
		return Add, nil
	case "SUB":
		return Sub, nil
	case "MUL":
		return Mul, nil
	case "BOOT":
		return Boot, nil
	}
	return 0, fmt.Errorf("unknown operation kind %q", s)
}

// Mode selects how a bootstrap marking is interpreted.
type Mode int

const (
	// Complete bootstraps an operation's result for every consumer.
	Complete Mode = iota
	// Selective bootstraps the result only along marked parent->child edges.
	Selective
)

func (m Mode) String() string {
	if m == Selective {
		return "selective"
	}
	return "complete"
}

// ParseMode accepts "complete" and "selective".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "complete":
		return Complete, nil
	case "selective":
		return Selective, nil
	}
	return 0, fmt.Errorf("unknown bootstrap mode %q", s)
}

// Operation is a node of the circuit DAG. Parents and Children hold operation ids.
type Operation struct {
	ID        int
	Kind      Kind
	Parents   []int
	Constants []int
	Children  []int

	// Bootstrapped is the complete-mode marking.
	Bootstrapped bool
	// BootChildren is the selective-mode marking: children that read the bootstrapped copy.
	BootChildren []int

	Earliest  int
	Latest    int
	Start     int
	BootStart int
	Core      int
	Rank      int

	Unsatisfied int
	Urgency     float64
	Segments    []int
}

// Inputs is the total operand count, ciphertext and constant.
func (op *Operation) Inputs() int {
	return len(op.Parents) + len(op.Constants)
}

// IsBootstrapped reports whether any consumer receives a bootstrapped copy.
func (op *Operation) IsBootstrapped() bool {
	return op.Bootstrapped || len(op.BootChildren) > 0
}

// SendsBootstrapped reports whether child reads the bootstrapped copy of op.
func (op *Operation) SendsBootstrapped(child int) bool {
	if op.Bootstrapped {
		return true
	}
	return containsSorted(op.BootChildren, child)
}

// HasChild reports whether id is a consumer of op.
func (op *Operation) HasChild(id int) bool {
	return containsSorted(op.Children, id)
}

func (op *Operation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:%s(", op.ID, op.Kind)
	first := true
	for _, p := range op.Parents {
		if !first {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "c%d", p)
		first = false
	}
	for _, k := range op.Constants {
		if !first {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "k%d", k)
		first = false
	}
	b.WriteByte(')')
	return b.String()
}

func containsSorted(s []int, v int) bool {
	i := sort.SearchInts(s, v)
	return i < len(s) && s[i] == v
}

// insertSorted adds v to the ascending slice s unless present.
func insertSorted(s []int, v int) []int {
	i := sort.SearchInts(s, v)
	if i < len(s) && s[i] == v {
		return s
	}
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
