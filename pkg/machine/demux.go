// Package machine decodes Packer's machine-readable output stream. See doc.go for the format.
package machine

// Demux groups messages by build target. Packer runs builders in parallel and
// their records interleave line by line, so anything that cares about one
// builder's sequence must read it through the demultiplexer.
//
// Arrival order is preserved both overall and within each target's own
// sub-sequence. The empty target name is a valid key holding the records that
// are global to the run.
type Demux struct {
	order    []string
	byTarget map[string][]Message
	all      []Message
}

// NewDemux returns an empty demultiplexer.
func NewDemux() *Demux {
	return &Demux{byTarget: make(map[string][]Message)}
}

// Add files one message under its target.
func (d *Demux) Add(msg Message) {
	if _, seen := d.byTarget[msg.Target]; !seen {
		d.order = append(d.order, msg.Target)
	}
	d.byTarget[msg.Target] = append(d.byTarget[msg.Target], msg)
	d.all = append(d.all, msg)
}

// Target returns the messages filed under one target, in arrival order.
func (d *Demux) Target(name string) []Message {
	return d.byTarget[name]
}

// Targets returns the target names in first-seen order.
func (d *Demux) Targets() []string {
	return d.order
}

// All returns every message in overall arrival order.
func (d *Demux) All() []Message {
	return d.all
}

// Len returns the number of messages filed so far.
func (d *Demux) Len() int {
	return len(d.all)
}
