// Package emit writes compiler results in the formats read by the execution
// engine and by the loader.
package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"hesched/core/listsched"
	"hesched/core/opgraph"
	"hesched/core/segments"
)

// WriteJSON writes s as indented JSON.
func WriteJSON(w io.Writer, s *listsched.Schedule) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode schedule: %w", err)
	}
	return nil
}

// WriteStreams writes one block per core. Cores that run nothing are skipped.
func WriteStreams(w io.Writer, s *listsched.Schedule) error {
	for i, st := range s.Streams() {
		if len(st) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "core %d:\n", i+1); err != nil {
			return err
		}
		for _, in := range st {
			if _, err := fmt.Fprintf(w, "  %s\n", in); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteBootstraps writes the marking of g in the loader's bootstrap format:
// one id per line in complete mode, one "parent child" pair per line in
// selective mode.
func WriteBootstraps(w io.Writer, g *opgraph.Graph) error {
	for _, m := range g.Marking() {
		if g.Mode == opgraph.Complete {
			if _, err := fmt.Fprintln(w, m.Op); err != nil {
				return err
			}
			continue
		}
		for _, c := range m.Children {
			if _, err := fmt.Fprintln(w, m.Op, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteSegments writes one segment per line.
func WriteSegments(w io.Writer, segs []segments.Segment) error {
	for _, s := range segs {
		ids := make([]string, len(s))
		for i, id := range s {
			ids[i] = fmt.Sprint(id)
		}
		if _, err := fmt.Fprintln(w, strings.Join(ids, " ")); err != nil {
			return err
		}
	}
	return nil
}
