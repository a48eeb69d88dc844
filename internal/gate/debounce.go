package gate

import "context"

// Candidate is a refactor awaiting a gate decision, tagged with the edit
// sequence number that produced it so a later edit can supersede it.
type Candidate struct {
	Seq          uint64
	PreEdit      View
	PostRefactor View
	Result       chan<- Decision
}

// Decision is delivered back to the caller once a Candidate has been
// gated, or discarded without ever reaching the compiler.
type Decision struct {
	Outcome Outcome
	Err     error
	// Superseded is true when a newer Candidate arrived before this one
	// reached the compiler; Outcome and Err are zero in that case.
	Superseded bool
}

// Debouncer implements §4.4's "compiler invocations are serialized per
// project and debounced: only the latest pending refactor per editor edit
// is gated; superseded refactors are dropped" via a single-slot channel,
// mirroring the compilation thread's single-slot design in §5 where newer
// candidates overwrite older ones before the slot is read.
type Debouncer struct {
	gate *Gate
	slot chan Candidate
	done chan struct{}
}

// NewDebouncer starts the background loop that drains slot and runs the
// gate on whatever candidate is current when a slot read happens. Call Stop
// to shut it down.
func NewDebouncer(g *Gate) *Debouncer {
	d := &Debouncer{
		gate: g,
		slot: make(chan Candidate, 1),
		done: make(chan struct{}),
	}
	go d.loop()
	return d
}

// Submit posts a candidate into the single slot. If a candidate is already
// waiting there, it is superseded and its Result channel receives a
// Superseded decision before being replaced.
func (d *Debouncer) Submit(ctx context.Context, c Candidate) {
	select {
	case old := <-d.slot:
		if old.Result != nil {
			old.Result <- Decision{Superseded: true}
		}
	default:
	}
	select {
	case d.slot <- c:
	case <-ctx.Done():
	case <-d.done:
	}
}

func (d *Debouncer) loop() {
	for {
		select {
		case c := <-d.slot:
			outcome, err := d.gate.Check(context.Background(), c.PreEdit, c.PostRefactor)
			if c.Result != nil {
				c.Result <- Decision{Outcome: outcome, Err: err}
			}
		case <-d.done:
			return
		}
	}
}

// Stop terminates the debounce loop. Any candidate still in the slot is
// left undelivered.
func (d *Debouncer) Stop() {
	close(d.done)
}
