package app

import (
	"context"
	"encoding/json"

	"aula-live-service/internal/domain"
)

// SwitchActivity changes the room's active dynamic and notifies every member.
// Transitions are presenter-initiated only; any known type is reachable from
// any other.
func (e *Engine) SwitchActivity(ctx context.Context, pin, rawType string) (domain.ActivityType, error) {
	activity, err := domain.ParseActivityType(rawType)
	if err != nil {
		return "", err
	}
	session, err := e.store.SessionByPIN(ctx, pin)
	if err != nil {
		return "", err
	}

	session.Activity = activity
	if err := e.store.UpdateSession(ctx, &session); err != nil {
		return "", err
	}

	e.broker.Broadcast(pin, EventDynamicChange, activity)
	return activity, nil
}

// Activity returns the room's current type and slide payload.
func (e *Engine) Activity(ctx context.Context, pin string) (domain.Session, error) {
	return e.store.SessionByPIN(ctx, pin)
}

// slideUpdatePayload is what room members receive on a slide change.
type slideUpdatePayload struct {
	Content json.RawMessage     `json:"content"`
	Type    domain.ActivityType `json:"type"`
}

// UpdateSlide persists the presenter's current display payload and, when
// rawType is non-empty, the activity type in the same call, then rebroadcasts
// both to the room.
func (e *Engine) UpdateSlide(ctx context.Context, pin string, content json.RawMessage, rawType string) error {
	session, err := e.store.SessionByPIN(ctx, pin)
	if err != nil {
		return err
	}

	session.CurrentSlide = content
	if rawType != "" {
		activity, err := domain.ParseActivityType(rawType)
		if err != nil {
			return err
		}
		session.Activity = activity
	}
	if err := e.store.UpdateSession(ctx, &session); err != nil {
		return err
	}

	e.broker.Broadcast(pin, EventSlideUpdate, slideUpdatePayload{Content: content, Type: session.Activity})
	return nil
}

// SlideContent returns the current display payload for a late joiner.
func (e *Engine) SlideContent(ctx context.Context, pin string) (json.RawMessage, error) {
	session, err := e.store.SessionByPIN(ctx, pin)
	if err != nil {
		return nil, err
	}
	return session.CurrentSlide, nil
}

// PushActivityData rebroadcasts presenter-supplied data to the room under the
// event name of the active dynamic (e.g. update-ranking). The data itself is
// opaque to the engine and is not persisted.
func (e *Engine) PushActivityData(ctx context.Context, pin string, data json.RawMessage) error {
	session, err := e.store.SessionByPIN(ctx, pin)
	if err != nil {
		return err
	}
	e.broker.Broadcast(pin, session.Activity.UpdateEvent(), data)
	return nil
}
