package main

import (
	"fmt"
	"io"
	"strings"
)

// Reporter prints a battle as text: fleet dumps before the first step, one
// line per step, and fleet dumps again at the end.
type Reporter struct {
	w      io.Writer
	battle *Battle
	last   Event
}

// NewReporter writes the report of b to w
func NewReporter(w io.Writer, b *Battle) *Reporter {
	return &Reporter{w: w, battle: b}
}

// Event is an EventSink
func (r *Reporter) Event(ev Event) error {
	r.last = ev
	if ev.Op == "start" {
		if _, err := fmt.Fprintf(r.w, "=== %s (%s) ===\n%s\n", r.battle.Scenario.Name, r.battle.ID, ev.Desc); err != nil {
			return err
		}
		return r.dumpFleets()
	}
	_, err := fmt.Fprintf(r.w, "[%3d] %s\n", ev.Step, ev.Desc)
	return err
}

// Finish writes the closing fleet dumps and the final digest
func (r *Reporter) Finish(status string) error {
	if _, err := fmt.Fprintf(r.w, "--- %s after %d steps ---\n", status, r.battle.StepCount()); err != nil {
		return err
	}
	if err := r.dumpFleets(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(r.w, "digest %s\n", r.last.Digest)
	return err
}

func (r *Reporter) dumpFleets() error {
	var sb strings.Builder
	for _, f := range r.battle.Fleets() {
		sb.WriteString(f.String())
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(r.w, sb.String())
	return err
}
