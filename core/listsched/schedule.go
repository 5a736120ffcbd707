package listsched

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"hesched/core/opgraph"
)

// Operand is one input of a scheduled operation.
type Operand struct {
	ID int `json:"id"`
	// Const marks a plaintext constant; otherwise ID is an operation result.
	Const bool `json:"const,omitempty"`
	// Bootstrapped marks a read of the bootstrapped copy of ID.
	Bootstrapped bool `json:"bootstrapped,omitempty"`
}

func (o Operand) String() string {
	switch {
	case o.Const:
		return fmt.Sprintf("k%d", o.ID)
	case o.Bootstrapped:
		return fmt.Sprintf("b%d", o.ID)
	}
	return fmt.Sprintf("c%d", o.ID)
}

// Entry is the placement of one operation and its bootstrap, if any.
type Entry struct {
	Op       int       `json:"op"`
	Kind     string    `json:"kind"`
	Start    int       `json:"start"`
	Latency  int       `json:"latency"`
	Core     int       `json:"core"`
	Operands []Operand `json:"operands"`
	// BootStart is -1 when the operation is not bootstrapped.
	BootStart   int `json:"boot_start"`
	BootLatency int `json:"boot_latency,omitempty"`
	BootCore    int `json:"boot_core,omitempty"`
	// Consumer counts let an executor free a register after its last read.
	RawConsumers  int `json:"raw_consumers"`
	BootConsumers int `json:"boot_consumers"`
}

// End is the cycle at which the operation result, bootstrapped if marked, is available.
func (e Entry) End() int {
	if e.BootStart >= 0 {
		return e.BootStart + e.BootLatency
	}
	return e.Start + e.Latency
}

// Instruction is one item of a per-core stream.
type Instruction struct {
	Kind     string    `json:"kind"`
	Result   int       `json:"result"`
	Operands []Operand `json:"operands"`
	Core     int       `json:"core"`
	Start    int       `json:"start"`
	Latency  int       `json:"latency"`
}

func (in Instruction) String() string {
	ops := make([]string, len(in.Operands))
	for i, o := range in.Operands {
		ops[i] = o.String()
	}
	res := fmt.Sprintf("r%d", in.Result)
	if in.Kind == opgraph.Boot.String() {
		res = fmt.Sprintf("b%d", in.Result)
	}
	return fmt.Sprintf("%s %s %s @%d", in.Kind, res, strings.Join(ops, " "), in.Start)
}

// Schedule is the output of one scheduling run.
type Schedule struct {
	ID         string  `json:"id"`
	Mode       string  `json:"mode"`
	Cores      int     `json:"cores"`
	Latency    int     `json:"latency"`
	Bootstraps int     `json:"bootstraps"`
	Entries    []Entry `json:"entries"`
}

// Entry returns the placement of operation id.
func (s *Schedule) Entry(id int) Entry {
	return s.Entries[id-1]
}

// Streams returns the instruction stream of every core, index 0 being core 1.
// Instructions on a core are ordered by start cycle.
func (s *Schedule) Streams() [][]Instruction {
	streams := make([][]Instruction, s.Cores)
	for _, e := range s.Entries {
		streams[e.Core-1] = append(streams[e.Core-1], Instruction{
			Kind:     e.Kind,
			Result:   e.Op,
			Operands: e.Operands,
			Core:     e.Core,
			Start:    e.Start,
			Latency:  e.Latency,
		})
		if e.BootStart >= 0 {
			streams[e.BootCore-1] = append(streams[e.BootCore-1], Instruction{
				Kind:     opgraph.Boot.String(),
				Result:   e.Op,
				Operands: []Operand{{ID: e.Op}},
				Core:     e.BootCore,
				Start:    e.BootStart,
				Latency:  e.BootLatency,
			})
		}
	}
	for _, st := range streams {
		sort.SliceStable(st, func(i, j int) bool {
			if st[i].Start != st[j].Start {
				return st[i].Start < st[j].Start
			}
			return st[i].Result < st[j].Result
		})
	}
	return streams
}

// UsedCores is the number of cores that received at least one instruction.
func (s *Schedule) UsedCores() int {
	n := 0
	for _, st := range s.Streams() {
		if len(st) > 0 {
			n++
		}
	}
	return n
}

// fingerprint derives a name-based UUID from the placement, so identical runs
// carry identical ids.
func (s *Schedule) fingerprint() string {
	h := sha1.New()
	buf := make([]byte, 8)
	put := func(v int) {
		binary.LittleEndian.PutUint64(buf, uint64(int64(v)))
		h.Write(buf)
	}
	put(s.Cores)
	put(s.Latency)
	h.Write([]byte(s.Mode))
	for _, e := range s.Entries {
		put(e.Op)
		put(e.Start)
		put(e.Core)
		put(e.BootStart)
		put(e.BootCore)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, h.Sum(nil)).String()
}
