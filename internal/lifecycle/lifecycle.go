// Package lifecycle holds the status rules for deceased patient records and
// the records that hang off them. Everything here is pure: callers load the
// current state, ask for a Transition, and perform the writes and side
// effects inside their own unit of work.
package lifecycle

import (
	"fmt"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
)

// Event is something that happened to a dependent record.
type Event string

const (
	EventPostmortemScheduled Event = "postmortem_scheduled"
	EventPostmortemCompleted Event = "postmortem_completed"
	EventReleaseRequested    Event = "release_requested"
	EventReleaseApproved     Event = "release_approved"
	EventReleaseRejected     Event = "release_rejected"
	EventMarkedUnclaimed     Event = "marked_unclaimed"
)

// SideEffect is a secondary write the caller must perform in the same
// transaction as the status change.
type SideEffect string

const (
	ReleaseStorage   SideEffect = "release_storage"
	OpenFollowUpTask SideEffect = "open_follow_up_task"
)

type Transition struct {
	From        model.PatientStatus
	To          model.PatientStatus
	Event       Event
	Changed     bool
	SideEffects []SideEffect
}

// Has reports whether the transition requires effect.
func (t Transition) Has(effect SideEffect) bool {
	for _, e := range t.SideEffects {
		if e == effect {
			return true
		}
	}
	return false
}

// rank orders the main line. Unclaimed sits off the line and has no rank.
var rank = map[model.PatientStatus]int{
	model.PatientStatusRegistered:       1,
	model.PatientStatusPendingAutopsy:   2,
	model.PatientStatusAutopsyCompleted: 3,
	model.PatientStatusPendingRelease:   4,
	model.PatientStatusReleased:         5,
}

func noop(current model.PatientStatus, event Event) Transition {
	return Transition{From: current, To: current, Event: event}
}

func move(current, next model.PatientStatus, event Event, effects ...SideEffect) Transition {
	return Transition{
		From:        current,
		To:          next,
		Event:       event,
		Changed:     current != next,
		SideEffects: effects,
	}
}

// advance moves forward to target unless the patient is already at or past
// it. Unclaimed patients keep their status for examination events.
func advance(current, target model.PatientStatus, event Event) Transition {
	r, onLine := rank[current]
	if !onLine || r >= rank[target] {
		return noop(current, event)
	}
	return move(current, target, event)
}

// Apply computes the effect of event on a patient currently in status current.
func Apply(current model.PatientStatus, event Event) (Transition, error) {
	if !current.Valid() {
		return Transition{}, errors.InvalidTransition(fmt.Sprintf("unknown patient status %q", current))
	}

	switch event {
	case EventPostmortemScheduled:
		return advance(current, model.PatientStatusPendingAutopsy, event), nil

	case EventPostmortemCompleted:
		return advance(current, model.PatientStatusAutopsyCompleted, event), nil

	case EventReleaseRequested:
		if current == model.PatientStatusReleased {
			return Transition{}, errors.InvalidTransition("patient has already been released")
		}
		return move(current, model.PatientStatusPendingRelease, event), nil

	case EventReleaseApproved:
		if current == model.PatientStatusReleased {
			return Transition{}, errors.InvalidTransition("patient has already been released")
		}
		return move(current, model.PatientStatusReleased, event, ReleaseStorage), nil

	case EventReleaseRejected:
		return noop(current, event), nil

	case EventMarkedUnclaimed:
		switch current {
		case model.PatientStatusReleased:
			return Transition{}, errors.InvalidTransition("released patients cannot be marked unclaimed")
		case model.PatientStatusUnclaimed:
			return noop(current, event), nil
		}
		return move(current, model.PatientStatusUnclaimed, event, OpenFollowUpTask), nil
	}

	return Transition{}, errors.InvalidTransition(fmt.Sprintf("unknown lifecycle event %q", event))
}

// SetStatus validates a status written directly by staff. Forward moves along
// the main line are allowed, as is marking a non-released patient unclaimed,
// which carries the same follow-up task as EventMarkedUnclaimed. An unclaimed
// patient only leaves through pending_release, since the main-line status it
// came from is not kept. Released is only reachable through release approval
// so that storage is freed in the same transaction.
func SetStatus(current, target model.PatientStatus) (Transition, error) {
	const event Event = "status_set"

	if !target.Valid() {
		return Transition{}, errors.BadRequest(fmt.Sprintf("unknown patient status %q", target), nil)
	}
	if current == target {
		return noop(current, event), nil
	}
	if current == model.PatientStatusReleased {
		return Transition{}, errors.InvalidTransition("released patients cannot change status")
	}
	if target == model.PatientStatusReleased {
		return Transition{}, errors.InvalidTransition("patients are released through release approval")
	}
	if target == model.PatientStatusUnclaimed {
		return move(current, target, EventMarkedUnclaimed, OpenFollowUpTask), nil
	}
	if current == model.PatientStatusUnclaimed {
		if target != model.PatientStatusPendingRelease {
			return Transition{}, errors.InvalidTransition(
				fmt.Sprintf("unclaimed patients can only move to %s", model.PatientStatusPendingRelease))
		}
		return move(current, target, event), nil
	}
	if rank[target] < rank[current] {
		return Transition{}, errors.InvalidTransition(
			fmt.Sprintf("patient status cannot move back from %s to %s", current, target))
	}
	return move(current, target, event), nil
}

var postmortemMoves = map[model.PostmortemStatus][]model.PostmortemStatus{
	model.PostmortemStatusScheduled:  {model.PostmortemStatusInProgress, model.PostmortemStatusCompleted, model.PostmortemStatusCancelled},
	model.PostmortemStatusInProgress: {model.PostmortemStatusCompleted, model.PostmortemStatusCancelled},
	model.PostmortemStatusCancelled:  {model.PostmortemStatusScheduled},
	model.PostmortemStatusCompleted:  nil,
}

// CheckPostmortem validates a postmortem record status change. Writing the
// current status again is allowed.
func CheckPostmortem(from, to model.PostmortemStatus) error {
	allowed, known := postmortemMoves[from]
	if !known {
		return errors.InvalidTransition(fmt.Sprintf("unknown postmortem status %q", from))
	}
	if _, ok := postmortemMoves[to]; !ok {
		return errors.BadRequest(fmt.Sprintf("unknown postmortem status %q", to), nil)
	}
	if from == to {
		return nil
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return errors.InvalidTransition(fmt.Sprintf("postmortem cannot move from %s to %s", from, to))
}

// CheckApproval validates a release request approval status change. An
// approved request is final.
func CheckApproval(from, to model.ApprovalStatus) error {
	if from == to {
		return nil
	}
	if from == model.ApprovalStatusApproved {
		return errors.InvalidTransition("an approved release cannot be revoked")
	}
	return nil
}
