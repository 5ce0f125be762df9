package app

import (
	"context"

	"aula-live-service/internal/domain"
)

// Event names pushed to room members.
const (
	EventParticipantsUpdated = "participants-updated"
	EventDynamicChange       = "dynamic-change"
	EventWordCloudUpdate     = "wordcloud-update"
	EventVoteUpdate          = "vote-update"
	EventSlideUpdate         = "slide-update"
	EventInitializeIdeas     = "initialize-ideas"
)

// Engine is the live session synchronization core: presence, activity state,
// contribution aggregation and answer scoring. Every interaction with room
// members goes through the broker; every durable read/write goes through the
// store.
type Engine struct {
	store     Store
	broker    *Broker
	questions QuestionSource
}

func NewEngine(store Store, broker *Broker, questions QuestionSource) *Engine {
	return &Engine{store: store, broker: broker, questions: questions}
}

// Broker exposes the room hub for transport wiring.
func (e *Engine) Broker() *Broker { return e.broker }

// Store exposes the record store for the thin endpoint layer.
func (e *Engine) Store() Store { return e.store }

// JoinRoom registers out as a member of the room behind pin. The joiner
// receives the current roster, activity type and full contribution set; the
// rest of the room receives the updated roster. A join that fails for any
// reason (unknown PIN, store error, unreachable joiner) leaves the broker
// untouched and is reported only to the caller.
func (e *Engine) JoinRoom(ctx context.Context, pin string, participantID int64, out Outbox) error {
	session, err := e.store.SessionByPIN(ctx, pin)
	if err != nil {
		return err
	}

	roster, err := e.store.ParticipantsBySession(ctx, session.ID)
	if err != nil {
		return err
	}
	ideas, err := e.store.ContributionsBySession(ctx, session.ID)
	if err != nil {
		return err
	}

	// Register only once the state reads succeeded, and roll the
	// registration back if the joiner cannot be reached: a failed join must
	// never leave a member behind for later broadcasts to trip over.
	e.broker.Join(pin, participantID, out)

	if err := out.Send(EventParticipantsUpdated, roster); err != nil {
		e.broker.Leave(pin, out)
		return err
	}
	if err := out.Send(EventDynamicChange, session.Activity); err != nil {
		e.broker.Leave(pin, out)
		return err
	}
	if err := out.Send(EventInitializeIdeas, ideas); err != nil {
		e.broker.Leave(pin, out)
		return err
	}
	e.broker.BroadcastExcept(pin, EventParticipantsUpdated, roster, out)
	return nil
}

// LeaveRoom handles both explicit leave-room events and transport disconnects:
// drop the outbox from the room, delete the participant record, and push the
// updated roster to whoever remains. Every step is idempotent.
func (e *Engine) LeaveRoom(ctx context.Context, pin string, participantID int64, out Outbox) error {
	e.broker.Leave(pin, out)

	if participantID > 0 {
		if err := e.store.DeleteParticipant(ctx, participantID); err != nil {
			return err
		}
	}

	session, err := e.store.SessionByPIN(ctx, pin)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil
		}
		return err
	}
	roster, err := e.store.ParticipantsBySession(ctx, session.ID)
	if err != nil {
		return err
	}
	e.broker.Broadcast(pin, EventParticipantsUpdated, roster)
	return nil
}
