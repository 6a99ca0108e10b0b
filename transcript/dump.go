package transcript

import (
	"fmt"
	"io"

	json "github.com/nikkolasg/hexjson"

	"github.com/credra/credra/auction"
)

// Dump is the serializable image of a transcript. It carries the events
// verbatim, including their recorded indices and times, so a re-audit sees
// exactly what the dump claims happened rather than a normalized copy.
type Dump struct {
	Timings     PhaseTimings      `json:"timings"`
	Commitments []CommitmentEvent `json:"commitments"`
	Reveals     []RevealEvent     `json:"reveals"`
	Broadcasts  []BroadcastEvent  `json:"broadcasts"`
	Outcome     *auction.Outcome  `json:"outcome,omitempty"`
}

// Snapshot copies the transcript into its serializable form.
func (t *Transcript) Snapshot() Dump {
	return Dump{
		Timings:     t.Timings(),
		Commitments: t.Commitments(),
		Reveals:     t.Reveals(),
		Broadcasts:  t.Broadcasts(),
		Outcome:     t.Outcome(),
	}
}

// FromDump rebuilds a transcript from its serialized form. Events are taken
// as-is; tampered indices or times surface as audit mismatches instead of
// being silently repaired.
func FromDump(d Dump) *Transcript {
	t := New(d.Timings)
	t.commitments = append(t.commitments, d.Commitments...)
	t.reveals = append(t.reveals, d.Reveals...)
	t.broadcasts = append(t.broadcasts, d.Broadcasts...)
	t.outcome = d.Outcome
	return t
}

// ToJSON writes the transcript as JSON with byte payloads hex-encoded.
func (t *Transcript) ToJSON(w io.Writer) error {
	d := t.Snapshot()
	return json.NewEncoder(w).Encode(&d)
}

// FromJSON reads a transcript dumped with ToJSON.
func FromJSON(r io.Reader) (*Transcript, error) {
	d := new(Dump)
	if err := json.NewDecoder(r).Decode(d); err != nil {
		return nil, fmt.Errorf("reading transcript dump (%w)", err)
	}
	return FromDump(*d), nil
}
