package http

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"

	"aula-live-service/internal/app"
	"aula-live-service/internal/domain"
	"aula-live-service/internal/genai"
)

// APIHandler serves the thin request/response endpoints around the engine:
// session creation/lookup, participant registration, and content generation.
type APIHandler struct {
	engine   *app.Engine
	ingestor *genai.Ingestor
}

// NewAPIHandler wires the REST surface. ingestor may be nil when no
// generation service is configured; the generate endpoints then report 503.
func NewAPIHandler(engine *app.Engine, ingestor *genai.Ingestor) *APIHandler {
	return &APIHandler{engine: engine, ingestor: ingestor}
}

// Register mounts all routes on mux.
func (a *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions/create-session", a.createSession)
	mux.HandleFunc("POST /api/sessions/join-session", a.joinSession)
	mux.HandleFunc("GET /api/sessions/participants/{pin}", a.participants)
	mux.HandleFunc("GET /api/sessions/{pin}", a.session)
	mux.HandleFunc("PUT /api/sessions/{pin}/update-slide", a.updateSlide)
	mux.HandleFunc("POST /api/submit-word", a.submitWord)
	mux.HandleFunc("POST /api/assign-ideas-to-session", a.assignIdeas)
	mux.HandleFunc("POST /api/generate-questions", a.generateRankingIdeas)
	mux.HandleFunc("POST /api/generate-wordcloud", a.generateWordCloud)
	mux.HandleFunc("POST /api/generate-ideas", a.generateSubtopics)
	mux.HandleFunc("POST /api/generate-closed-questions", a.generateQuestions(domain.KindSingleQuestion))
	mux.HandleFunc("POST /api/generate-multiple-correct-questions", a.generateQuestions(domain.KindMultiQuestion))
}

func (a *APIHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type       string `json:"type"`
		HostUserID int64  `json:"host_user_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	activity := domain.ActivityIdle
	if body.Type != "" {
		parsed, err := domain.ParseActivityType(body.Type)
		if err != nil {
			writeError(w, err)
			return
		}
		activity = parsed
	}

	store := a.engine.Store()
	session := domain.Session{Activity: activity, HostUserID: body.HostUserID}
	// 6-digit PIN; retry only on the rare collision with a live session. Any
	// other failure surfaces immediately instead of hammering a down store.
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		session.PIN = fmt.Sprintf("%06d", 100000+rand.Intn(900000))
		err = store.CreateSession(r.Context(), &session)
		if err == nil || !domain.IsValidation(err) {
			break
		}
	}
	if err != nil {
		writeError(w, err)
		return
	}

	// attach previously generated content that is not yet bound to a session
	if err := store.AssignOrphans(r.Context(), session.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": session})
}

func (a *APIHandler) joinSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PIN  string `json:"pin"`
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.PIN == "" || body.Name == "" {
		writeError(w, domain.Validationf("pin and name are required"))
		return
	}

	store := a.engine.Store()
	session, err := store.SessionByPIN(r.Context(), body.PIN)
	if err != nil {
		writeError(w, err)
		return
	}
	participant := domain.Participant{SessionID: session.ID, Name: body.Name}
	if err := store.CreateParticipant(r.Context(), &participant); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"participant": participant})
}

func (a *APIHandler) participants(w http.ResponseWriter, r *http.Request) {
	store := a.engine.Store()
	session, err := store.SessionByPIN(r.Context(), r.PathValue("pin"))
	if err != nil {
		writeError(w, err)
		return
	}
	roster, err := store.ParticipantsBySession(r.Context(), session.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"participants": roster})
}

func (a *APIHandler) session(w http.ResponseWriter, r *http.Request) {
	session, err := a.engine.Activity(r.Context(), r.PathValue("pin"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"type":                session.Activity,
		"currentSlideContent": session.CurrentSlide,
	})
}

func (a *APIHandler) updateSlide(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CurrentSlideContent json.RawMessage `json:"currentSlideContent"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := a.engine.UpdateSlide(r.Context(), r.PathValue("pin"), body.CurrentSlideContent, ""); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "slide updated"})
}

func (a *APIHandler) submitWord(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PIN  string `json:"pin"`
		Text string `json:"text"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := a.engine.SubmitText(r.Context(), body.PIN, body.Text); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (a *APIHandler) assignIdeas(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PIN   string `json:"pin"`
		Ideas []struct {
			ID int64 `json:"id"`
		} `json:"ideas"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.PIN == "" || len(body.Ideas) == 0 {
		writeError(w, domain.Validationf("pin and ideas are required"))
		return
	}

	store := a.engine.Store()
	session, err := store.SessionByPIN(r.Context(), body.PIN)
	if err != nil {
		writeError(w, err)
		return
	}
	ids := make([]int64, 0, len(body.Ideas))
	for _, idea := range body.Ideas {
		ids = append(ids, idea.ID)
	}
	if err := store.AssignContributions(r.Context(), session.ID, ids); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ideas assigned"})
}

func (a *APIHandler) generateQuestions(kind domain.ContributionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.ingestor == nil {
			http.Error(w, "generation service not configured", http.StatusServiceUnavailable)
			return
		}
		var body struct {
			Subtopic  string `json:"subtopic"`
			SessionID *int64 `json:"sessionId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}
		questions, err := a.ingestor.GenerateQuestions(r.Context(), body.Subtopic, kind, body.SessionID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
	}
}

func (a *APIHandler) generateRankingIdeas(w http.ResponseWriter, r *http.Request) {
	a.generateIdeas(w, r, domain.KindRanking, "questions")
}

func (a *APIHandler) generateWordCloud(w http.ResponseWriter, r *http.Request) {
	a.generateIdeas(w, r, domain.KindWordCloud, "words")
}

func (a *APIHandler) generateIdeas(w http.ResponseWriter, r *http.Request, kind domain.ContributionKind, field string) {
	if a.ingestor == nil {
		http.Error(w, "generation service not configured", http.StatusServiceUnavailable)
		return
	}
	var body struct {
		Subtopic string `json:"subtopic"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	ideas, err := a.ingestor.GenerateIdeas(r.Context(), body.Subtopic, kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{field: ideas})
}

func (a *APIHandler) generateSubtopics(w http.ResponseWriter, r *http.Request) {
	if a.ingestor == nil {
		http.Error(w, "generation service not configured", http.StatusServiceUnavailable)
		return
	}
	var body struct {
		Topic string `json:"topic"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	subtopics, err := a.ingestor.GenerateSubtopics(r.Context(), body.Topic)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subtopics": subtopics})
}

func decodeBody(r *http.Request, into any) error {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return domain.Validationf("malformed request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case domain.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
