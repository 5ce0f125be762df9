package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"aula-live-service/internal/domain"
)

// Store is an in-memory implementation of app.Store, used by tests and by the
// server when no postgres URL is configured. One mutex guards everything, so
// the upsert and increment primitives are trivially atomic.
type Store struct {
	mu            sync.Mutex
	nextID        int64
	sessions      map[int64]domain.Session
	participants  map[int64]domain.Participant
	contributions map[int64]domain.Contribution
}

func NewStore() *Store {
	return &Store{
		sessions:      make(map[int64]domain.Session),
		participants:  make(map[int64]domain.Participant),
		contributions: make(map[int64]domain.Contribution),
	}
}

func (s *Store) nextIDLocked() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) CreateSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions {
		if existing.PIN == session.PIN {
			return domain.Validationf("pin %s already in use", session.PIN)
		}
	}
	session.ID = s.nextIDLocked()
	s.sessions[session.ID] = *session
	return nil
}

func (s *Store) SessionByPIN(_ context.Context, pin string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.PIN == pin {
			return session, nil
		}
	}
	return domain.Session{}, domain.ErrSessionNotFound
}

func (s *Store) UpdateSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return domain.ErrSessionNotFound
	}
	s.sessions[session.ID] = *session
	return nil
}

func (s *Store) CreateParticipant(_ context.Context, p *domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextIDLocked()
	s.participants[p.ID] = *p
	return nil
}

func (s *Store) ParticipantsBySession(_ context.Context, sessionID int64) ([]domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster := make([]domain.Participant, 0)
	for _, p := range s.participants {
		if p.SessionID == sessionID {
			roster = append(roster, p)
		}
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].ID < roster[j].ID })
	return roster, nil
}

func (s *Store) DeleteParticipant(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.participants, id)
	return nil
}

func (s *Store) CreateContribution(_ context.Context, c *domain.Contribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.nextIDLocked()
	s.contributions[c.ID] = *c
	return nil
}

func (s *Store) ContributionsBySession(_ context.Context, sessionID int64, kinds ...domain.ContributionKind) ([]domain.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matches := make([]domain.Contribution, 0)
	for _, c := range s.contributions {
		if c.SessionID == nil || *c.SessionID != sessionID {
			continue
		}
		if len(kinds) > 0 && !kindOf(c.Kind, kinds) {
			continue
		}
		matches = append(matches, c)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, nil
}

func (s *Store) OptionsByParent(_ context.Context, parentID int64) ([]domain.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	options := make([]domain.Contribution, 0)
	for _, c := range s.contributions {
		if c.Kind == domain.KindOption && c.ParentID != nil && *c.ParentID == parentID {
			options = append(options, c)
		}
	}
	sort.Slice(options, func(i, j int) bool { return options[i].ID < options[j].ID })
	return options, nil
}

func (s *Store) AssignOrphans(_ context.Context, sessionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.contributions {
		if c.SessionID == nil {
			sid := sessionID
			c.SessionID = &sid
			s.contributions[id] = c
		}
	}
	return nil
}

func (s *Store) AssignContributions(_ context.Context, sessionID int64, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		c, ok := s.contributions[id]
		if !ok {
			continue
		}
		sid := sessionID
		c.SessionID = &sid
		s.contributions[id] = c
	}
	return nil
}

func (s *Store) UpsertWordEntry(_ context.Context, sessionID int64, text string) (domain.Contribution, error) {
	normalized := normalize(text)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.contributions {
		if c.Kind != domain.KindWordCloud || c.SessionID == nil || *c.SessionID != sessionID {
			continue
		}
		if normalize(c.Text) == normalized {
			c.Votes++
			s.contributions[id] = c
			return c, nil
		}
	}

	sid := sessionID
	entry := domain.Contribution{
		ID:        s.nextIDLocked(),
		SessionID: &sid,
		Kind:      domain.KindWordCloud,
		Text:      strings.TrimSpace(text),
		Votes:     1,
	}
	s.contributions[entry.ID] = entry
	return entry, nil
}

func (s *Store) IncrementVotes(_ context.Context, id, sessionID int64, kind domain.ContributionKind) (domain.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contributions[id]
	if !ok || c.Kind != kind || c.SessionID == nil || *c.SessionID != sessionID {
		return domain.Contribution{}, domain.ErrContributionNotFound
	}
	c.Votes++
	s.contributions[id] = c
	return c, nil
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func kindOf(k domain.ContributionKind, kinds []domain.ContributionKind) bool {
	for _, kind := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
