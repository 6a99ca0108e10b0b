package transcript

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/credra/credra/auction"
	"github.com/credra/credra/commitment"
)

// ErrAuditMismatch is the category every audit violation wraps.
var ErrAuditMismatch = errors.New("audit mismatch")

// MismatchError is one audit violation. Index points into the event list the
// violation was found in; Participant is empty for violations not tied to a
// bidder.
type MismatchError struct {
	Index       int
	Participant string
	Reason      string
}

func (e *MismatchError) Error() string {
	if e.Participant == "" {
		return fmt.Sprintf("audit mismatch at entry %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("audit mismatch at entry %d (%s): %s", e.Index, e.Participant, e.Reason)
}

func (e *MismatchError) Unwrap() error {
	return ErrAuditMismatch
}

// Audit re-checks a sealed transcript the way an outside observer of the
// broadcast channel would: commit ordering and deadlines, reveal timing
// against the deadlines and each bidder's own commitment, every opening
// re-verified under the scheme, membership of the resolution record's valid
// set, and the timing of channel announcements. It returns nil for a clean
// transcript and otherwise an aggregate of every MismatchError found.
func Audit(tr *Transcript, scheme commitment.Scheme) error {
	var result *multierror.Error
	flag := func(index int, participant, reason string) {
		result = multierror.Append(result, &MismatchError{Index: index, Participant: participant, Reason: reason})
	}

	timings := tr.Timings()
	commits := tr.Commitments()
	reveals := tr.Reveals()
	broadcasts := tr.Broadcasts()
	outcome := tr.Outcome()

	byParticipant := make(map[auction.ParticipantID]CommitmentEvent, len(commits))
	for i, ce := range commits {
		tag := ce.Participant.Tag()
		if ce.Index != uint64(i) {
			flag(i, tag, "commit index does not match its position")
		}
		if i > 0 && ce.Time < commits[i-1].Time {
			flag(i, tag, "commitment out of order")
		}
		if ce.Time > timings.CommitDeadline {
			flag(i, tag, "commitment after the commit deadline")
		}
		if _, ok := byParticipant[ce.Participant]; ok {
			flag(i, tag, "participant committed twice")
			continue
		}
		byParticipant[ce.Participant] = ce
	}

	verified := make([]bool, len(reveals))
	values := make(map[auction.ParticipantID]float64, len(reveals))
	for i, re := range reveals {
		tag := re.Participant.Tag()
		if i > 0 && re.Time < reveals[i-1].Time {
			flag(i, tag, "reveal out of order")
		}
		if re.Time < timings.CommitDeadline {
			flag(i, tag, "reveal before the commit phase ended")
		}
		if re.Time > timings.RevealDeadline {
			flag(i, tag, "reveal after the reveal deadline")
		}
		ce, ok := byParticipant[re.Participant]
		if !ok {
			flag(i, tag, "reveal without a prior commitment")
			continue
		}
		if re.Time < ce.Time {
			flag(i, tag, "reveal precedes its commitment")
		}
		verifies := scheme.Verify(&ce.Commitment, &re.Opening)
		if re.Success && !verifies {
			flag(i, tag, "reveal marked successful but the opening does not verify")
		}
		if !re.Success && verifies {
			flag(i, tag, "verifying opening recorded as failed")
		}
		if re.Success && verifies {
			verified[i] = true
			values[re.Participant] = re.Opening.Value
		}
	}

	for i, be := range broadcasts {
		tag := ""
		if be.Participant != nil {
			tag = be.Participant.Tag()
		}
		if i > 0 && be.Time < broadcasts[i-1].Time {
			flag(i, tag, "broadcast out of order")
		}
		switch be.Kind {
		case CommitmentPublished:
			if be.Time > timings.CommitDeadline {
				flag(i, tag, "commitment published after the commit deadline")
			}
		case RevealPublished:
			if be.Time > timings.RevealDeadline {
				flag(i, tag, "reveal published after the reveal deadline")
			}
		case PhaseTransition:
			switch be.Phase {
			case PhaseRevealing:
				if be.Time < timings.CommitDeadline {
					flag(i, tag, "transition to the reveal phase before the commit deadline")
				}
			case PhaseResolved:
				if be.Time < timings.RevealDeadline {
					flag(i, tag, "transition to resolution before the reveal deadline")
				}
			}
		case TimeoutNotice:
			switch be.Phase {
			case PhaseCommitting:
				if be.Time < timings.CommitDeadline {
					flag(i, tag, "commit timeout announced early")
				}
			case PhaseRevealing:
				if be.Time < timings.RevealDeadline {
					flag(i, tag, "reveal timeout announced early")
				}
			default:
				flag(i, tag, "timeout without a phase")
			}
		}
	}

	if outcome == nil {
		flag(0, "", "missing resolution record")
		return result.ErrorOrNil()
	}

	listed := make(map[auction.ParticipantID]float64, len(outcome.ValidBids))
	for _, vb := range outcome.ValidBids {
		listed[vb.Participant] = vb.Value
	}
	for i, re := range reveals {
		if !verified[i] {
			continue
		}
		tag := re.Participant.Tag()
		listedValue, ok := listed[re.Participant]
		if re.Opening.Value >= outcome.Reserve {
			if !ok {
				flag(i, tag, "verified bid at or above the reserve missing from the valid set")
			} else if listedValue != re.Opening.Value {
				flag(i, tag, "valid set lists a different value than the reveal")
			}
			continue
		}
		if ok {
			flag(i, tag, "bid below the reserve listed in the valid set")
		}
	}
	for i, vb := range outcome.ValidBids {
		if _, ok := values[vb.Participant]; !ok {
			flag(i, vb.Participant.Tag(), "valid set entry has no verified reveal")
		}
	}

	return result.ErrorOrNil()
}
