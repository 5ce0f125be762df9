package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"aula-live-service/internal/app"
	"aula-live-service/internal/domain"
	"aula-live-service/internal/infra/memory"
)

// recordingOutbox captures everything sent to one fake channel.
type recordingOutbox struct {
	mu     sync.Mutex
	events []recordedEvent
	fail   bool
}

type recordedEvent struct {
	event   string
	payload any
}

func (o *recordingOutbox) Send(event string, payload any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail {
		return errors.New("send failed")
	}
	o.events = append(o.events, recordedEvent{event: event, payload: payload})
	return nil
}

func (o *recordingOutbox) count(event string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, e := range o.events {
		if e.event == event {
			n++
		}
	}
	return n
}

func (o *recordingOutbox) last(event string) (any, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.events) - 1; i >= 0; i-- {
		if o.events[i].event == event {
			return o.events[i].payload, true
		}
	}
	return nil, false
}

func newTestEngine(t *testing.T) (*app.Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	cache := memory.NewQuestionCache(app.NewStoreQuestionLoader(store), 5*time.Minute)
	return app.NewEngine(store, app.NewBroker(), cache), store
}

func createSession(t *testing.T, store *memory.Store, pin string, activity domain.ActivityType) domain.Session {
	t.Helper()
	session := domain.Session{PIN: pin, Activity: activity, HostUserID: 1}
	if err := store.CreateSession(context.Background(), &session); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

func joinParticipant(t *testing.T, engine *app.Engine, store *memory.Store, session domain.Session, name string) (domain.Participant, *recordingOutbox) {
	t.Helper()
	ctx := context.Background()
	p := domain.Participant{SessionID: session.ID, Name: name}
	if err := store.CreateParticipant(ctx, &p); err != nil {
		t.Fatalf("create participant: %v", err)
	}
	out := &recordingOutbox{}
	if err := engine.JoinRoom(ctx, session.PIN, p.ID, out); err != nil {
		t.Fatalf("join room: %v", err)
	}
	return p, out
}

func TestJoinUnknownRoomLeavesBrokerUntouched(t *testing.T) {
	engine, _ := newTestEngine(t)
	out := &recordingOutbox{}

	err := engine.JoinRoom(context.Background(), "000000", 1, out)
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
	if got := engine.Broker().MemberCount("000000"); got != 0 {
		t.Fatalf("expected empty room, got %d members", got)
	}
	if len(out.events) != 0 {
		t.Fatalf("expected no events for failed join, got %v", out.events)
	}

	// a later leave for the never-joined channel is a no-op
	if err := engine.LeaveRoom(context.Background(), "000000", 0, out); err != nil {
		t.Fatalf("leave after failed join: %v", err)
	}
}

// rosterFailStore fails roster reads to simulate a store outage mid-join.
type rosterFailStore struct {
	app.Store
	rosterErr error
}

func (s *rosterFailStore) ParticipantsBySession(ctx context.Context, sessionID int64) ([]domain.Participant, error) {
	if s.rosterErr != nil {
		return nil, s.rosterErr
	}
	return s.Store.ParticipantsBySession(ctx, sessionID)
}

func TestJoinStoreErrorLeavesBrokerUntouched(t *testing.T) {
	store := memory.NewStore()
	failing := &rosterFailStore{Store: store, rosterErr: errors.New("store down")}
	cache := memory.NewQuestionCache(app.NewStoreQuestionLoader(failing), 5*time.Minute)
	engine := app.NewEngine(failing, app.NewBroker(), cache)
	session := createSession(t, store, "123456", domain.ActivityIdle)

	out := &recordingOutbox{}
	if err := engine.JoinRoom(context.Background(), session.PIN, 1, out); err == nil {
		t.Fatal("expected join to fail")
	}
	if got := engine.Broker().MemberCount(session.PIN); got != 0 {
		t.Fatalf("expected no members after failed join, got %d", got)
	}
}

func TestJoinUnreachableJoinerIsRolledBack(t *testing.T) {
	engine, store := newTestEngine(t)
	session := createSession(t, store, "123456", domain.ActivityIdle)

	out := &recordingOutbox{fail: true}
	if err := engine.JoinRoom(context.Background(), session.PIN, 1, out); err == nil {
		t.Fatal("expected join to fail for an unreachable joiner")
	}
	if got := engine.Broker().MemberCount(session.PIN); got != 0 {
		t.Fatalf("expected registration rolled back, got %d members", got)
	}
}

func TestJoinSendsRoomStateToJoiner(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	session := createSession(t, store, "123456", domain.ActivityWordCloud)

	sid := session.ID
	word := domain.Contribution{SessionID: &sid, Kind: domain.KindWordCloud, Text: "hola", Votes: 2}
	if err := store.CreateContribution(ctx, &word); err != nil {
		t.Fatalf("create contribution: %v", err)
	}

	_, out := joinParticipant(t, engine, store, session, "Alice")

	if out.count(app.EventParticipantsUpdated) != 1 {
		t.Fatalf("expected one roster event, got %d", out.count(app.EventParticipantsUpdated))
	}
	if payload, ok := out.last(app.EventDynamicChange); !ok || payload.(domain.ActivityType) != domain.ActivityWordCloud {
		t.Fatalf("expected dynamic-change with wordcloud, got %v", payload)
	}
	ideas, ok := out.last(app.EventInitializeIdeas)
	if !ok {
		t.Fatalf("expected initialize-ideas event")
	}
	if set := ideas.([]domain.Contribution); len(set) != 1 || set[0].Text != "hola" {
		t.Fatalf("expected the existing contribution set, got %v", set)
	}
}

func TestJoinBroadcastsRosterToOthers(t *testing.T) {
	engine, store := newTestEngine(t)
	session := createSession(t, store, "123456", domain.ActivityIdle)

	_, first := joinParticipant(t, engine, store, session, "Alice")
	firstRosterEvents := first.count(app.EventParticipantsUpdated)

	_, _ = joinParticipant(t, engine, store, session, "Bob")

	if got := first.count(app.EventParticipantsUpdated); got != firstRosterEvents+1 {
		t.Fatalf("expected one roster rebroadcast to Alice, got %d new", got-firstRosterEvents)
	}
	roster, _ := first.last(app.EventParticipantsUpdated)
	if got := len(roster.([]domain.Participant)); got != 2 {
		t.Fatalf("expected roster of 2, got %d", got)
	}
}

func TestDisconnectRemovesExactlyOneParticipant(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	session := createSession(t, store, "123456", domain.ActivityIdle)
	other := createSession(t, store, "654321", domain.ActivityIdle)

	alice, aliceOut := joinParticipant(t, engine, store, session, "Alice")
	_, bobOut := joinParticipant(t, engine, store, session, "Bob")
	_, carolOut := joinParticipant(t, engine, store, other, "Carol")

	bobRosterBefore := bobOut.count(app.EventParticipantsUpdated)
	carolRosterBefore := carolOut.count(app.EventParticipantsUpdated)

	if err := engine.LeaveRoom(ctx, session.PIN, alice.ID, aliceOut); err != nil {
		t.Fatalf("leave: %v", err)
	}

	roster, err := store.ParticipantsBySession(ctx, session.ID)
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if len(roster) != 1 || roster[0].Name != "Bob" {
		t.Fatalf("expected only Bob left, got %v", roster)
	}
	if got := bobOut.count(app.EventParticipantsUpdated) - bobRosterBefore; got != 1 {
		t.Fatalf("expected exactly one roster rebroadcast to Bob, got %d", got)
	}
	if got := carolOut.count(app.EventParticipantsUpdated) - carolRosterBefore; got != 0 {
		t.Fatalf("expected no roster events in the other room, got %d", got)
	}

	// leaving twice is fine
	if err := engine.LeaveRoom(ctx, session.PIN, alice.ID, aliceOut); err != nil {
		t.Fatalf("second leave: %v", err)
	}
}

func TestSwitchActivityIsImmediatelyVisible(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	session := createSession(t, store, "123456", domain.ActivityIdle)
	_, out := joinParticipant(t, engine, store, session, "Alice")

	if _, err := engine.SwitchActivity(ctx, session.PIN, "ranking"); err != nil {
		t.Fatalf("switch: %v", err)
	}

	current, err := engine.Activity(ctx, session.PIN)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if current.Activity != domain.ActivityRanking {
		t.Fatalf("stale read: got %s", current.Activity)
	}
	if payload, _ := out.last(app.EventDynamicChange); payload.(domain.ActivityType) != domain.ActivityRanking {
		t.Fatalf("expected dynamic-change broadcast, got %v", payload)
	}
}

func TestSwitchActivityUnknownRoomAndType(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	createSession(t, store, "123456", domain.ActivityIdle)

	if _, err := engine.SwitchActivity(ctx, "999999", "ranking"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := engine.SwitchActivity(ctx, "123456", "karaoke"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateSlidePersistsAndBroadcasts(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	session := createSession(t, store, "123456", domain.ActivityIdle)
	_, out := joinParticipant(t, engine, store, session, "Alice")

	content := []byte(`{"slide":3}`)
	if err := engine.UpdateSlide(ctx, session.PIN, content, "ranking"); err != nil {
		t.Fatalf("update slide: %v", err)
	}

	if out.count(app.EventSlideUpdate) != 1 {
		t.Fatalf("expected one slide-update broadcast")
	}
	stored, err := engine.SlideContent(ctx, session.PIN)
	if err != nil {
		t.Fatalf("slide content: %v", err)
	}
	if string(stored) != `{"slide":3}` {
		t.Fatalf("expected slide persisted, got %s", stored)
	}
	current, _ := engine.Activity(ctx, session.PIN)
	if current.Activity != domain.ActivityRanking {
		t.Fatalf("expected type updated alongside slide, got %s", current.Activity)
	}
}

func TestPushActivityDataUsesActivityEventName(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	session := createSession(t, store, "123456", domain.ActivityRanking)
	_, out := joinParticipant(t, engine, store, session, "Alice")

	if err := engine.PushActivityData(ctx, session.PIN, []byte(`{"order":[1,2]}`)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if out.count("update-ranking") != 1 {
		t.Fatalf("expected update-ranking event, got %v", out.events)
	}
}
