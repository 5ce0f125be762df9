package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"

	"aula-live-service/internal/app"
	"aula-live-service/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler upgrades connections and dispatches room events to the engine.
type WSHandler struct {
	engine   *app.Engine
	upgrader websocket.Upgrader
}

func NewWSHandler(engine *app.Engine) *WSHandler {
	return &WSHandler{
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// inboundMessage is the client frame. A non-zero ID requests exactly one ack
// reply carrying the same ID; fire-and-forget events omit it.
type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	ID    int64           `json:"id,omitempty"`
}

type outboundMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
	ID    int64  `json:"id,omitempty"`
}

type ackPayload struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Result any    `json:"result,omitempty"`
}

// conn is one websocket connection. Send queues onto the writer goroutine, so
// it is safe to call from broadcast paths; a full buffer fails that delivery
// only. The mutex serializes enqueue against close: a broadcast that raced a
// disconnect fails that one delivery instead of hitting a closed channel.
type conn struct {
	ws *websocket.Conn

	mu     sync.Mutex
	send   chan outboundMessage
	closed bool

	// bound by join-room, read only from the reader goroutine
	room          string
	participantID int64
}

func (c *conn) Send(event string, payload any) error {
	return c.enqueue(outboundMessage{Event: event, Data: payload})
}

func (c *conn) enqueue(msg outboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection closed")
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return fmt.Errorf("send buffer full")
	}
}

// close stops the writer goroutine. Idempotent; after close every enqueue
// fails with an error instead of panicking on the closed channel.
func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ServeWS runs one connection: a writer goroutine drains the send queue while
// the reader handles each inbound event to completion before the next.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	c := &conn{ws: ws, send: make(chan outboundMessage, 32)}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := ws.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := ws.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r.Context(), c, inbound)
	}

	// implicit leave on transport disconnect; the broker must drop this
	// outbox before the channel closes so in-flight broadcasts miss it
	if c.room != "" {
		if err := h.engine.LeaveRoom(context.Background(), c.room, c.participantID, c); err != nil {
			log.Printf("disconnect cleanup for room %s: %v", c.room, err)
		}
	}

	c.close()
	<-writerDone
}

// dispatch handles one event and, when the client asked for an ack, sends
// exactly one reply, success or error, never zero, never two.
func (h *WSHandler) dispatch(ctx context.Context, c *conn, inbound inboundMessage) {
	result, err := h.handleEvent(ctx, c, inbound)

	if inbound.ID == 0 {
		if err != nil {
			log.Printf("event %s: %v", inbound.Event, err)
		}
		return
	}

	ack := ackPayload{Status: "success", Result: result}
	if err != nil {
		ack = ackPayload{Status: "error", Error: clientMessage(err)}
	}
	if sendErr := c.sendAck(inbound, ack); sendErr != nil {
		log.Printf("ack for %s: %v", inbound.Event, sendErr)
	}
}

func (c *conn) sendAck(inbound inboundMessage, ack ackPayload) error {
	return c.enqueue(outboundMessage{Event: inbound.Event, Data: ack, ID: inbound.ID})
}

// clientMessage maps the error taxonomy to reply text. Internal errors are
// logged server-side and surfaced generically.
func clientMessage(err error) string {
	if domain.IsNotFound(err) || domain.IsValidation(err) {
		return err.Error()
	}
	log.Printf("internal error: %v", err)
	return "internal server error"
}

func (h *WSHandler) handleEvent(ctx context.Context, c *conn, inbound inboundMessage) (any, error) {
	switch inbound.Event {
	case "join-room":
		var data struct {
			PIN           string `json:"pin"`
			ParticipantID int64  `json:"participantId"`
		}
		if err := decode(inbound.Data, &data); err != nil {
			return nil, err
		}
		if err := h.engine.JoinRoom(ctx, data.PIN, data.ParticipantID, c); err != nil {
			return nil, err
		}
		c.room = data.PIN
		c.participantID = data.ParticipantID
		return nil, nil

	case "leave-room":
		var data struct {
			PIN           string `json:"pin"`
			ParticipantID int64  `json:"participantId"`
		}
		if err := decode(inbound.Data, &data); err != nil {
			return nil, err
		}
		err := h.engine.LeaveRoom(ctx, data.PIN, data.ParticipantID, c)
		if c.room == data.PIN {
			c.room = ""
			c.participantID = 0
		}
		return nil, err

	case "change-dynamic":
		var data struct {
			PIN         string `json:"pin"`
			DynamicType string `json:"dynamicType"`
		}
		if err := decode(inbound.Data, &data); err != nil {
			return nil, err
		}
		activity, err := h.engine.SwitchActivity(ctx, data.PIN, data.DynamicType)
		if err != nil {
			return nil, err
		}
		return activity, nil

	case "update-dynamic-data":
		var data struct {
			PIN  string          `json:"pin"`
			Data json.RawMessage `json:"data"`
		}
		if err := decode(inbound.Data, &data); err != nil {
			return nil, err
		}
		return nil, h.engine.PushActivityData(ctx, data.PIN, data.Data)

	case "slide-update":
		var data struct {
			PIN                 string          `json:"pin"`
			CurrentSlideContent json.RawMessage `json:"currentSlideContent"`
			Type                string          `json:"type"`
		}
		if err := decode(inbound.Data, &data); err != nil {
			return nil, err
		}
		return nil, h.engine.UpdateSlide(ctx, data.PIN, data.CurrentSlideContent, data.Type)

	case "request-slide-content":
		var data struct {
			PIN string `json:"pin"`
		}
		if err := decode(inbound.Data, &data); err != nil {
			return nil, err
		}
		content, err := h.engine.SlideContent(ctx, data.PIN)
		if err != nil {
			return nil, err
		}
		return map[string]json.RawMessage{"currentSlideContent": content}, nil

	case "send-idea":
		var data struct {
			PIN           string `json:"pin"`
			Idea          string `json:"idea"`
			ParticipantID int64  `json:"participantId"`
		}
		if err := decode(inbound.Data, &data); err != nil {
			return nil, err
		}
		return nil, h.engine.SubmitText(ctx, data.PIN, data.Idea)

	case "cast-vote":
		var data struct {
			PIN    string `json:"pin"`
			IdeaID int64  `json:"ideaId"`
		}
		if err := decode(inbound.Data, &data); err != nil {
			return nil, err
		}
		return nil, h.engine.CastVote(ctx, data.PIN, data.IdeaID, domain.KindRanking)

	case "cast-vote-wordcloud":
		var data struct {
			PIN    string `json:"pin"`
			WordID int64  `json:"wordId"`
		}
		if err := decode(inbound.Data, &data); err != nil {
			return nil, err
		}
		return nil, h.engine.CastVote(ctx, data.PIN, data.WordID, domain.KindWordCloud)

	case "request-questions":
		var data struct {
			PIN  string `json:"pin"`
			Type string `json:"type"`
		}
		if err := decode(inbound.Data, &data); err != nil {
			return nil, err
		}
		kind, err := domain.ParseContributionKind(data.Type)
		if err != nil {
			return nil, err
		}
		questions, err := h.engine.Questions(ctx, data.PIN, kind)
		if err != nil {
			return nil, err
		}
		return map[string]any{"questions": questions}, nil

	case "request-ideas":
		var data struct {
			PIN  string `json:"pin"`
			Type string `json:"type"`
		}
		if err := decode(inbound.Data, &data); err != nil {
			return nil, err
		}
		kind, err := domain.ParseContributionKind(data.Type)
		if err != nil {
			return nil, err
		}
		ideas, err := h.engine.Ideas(ctx, data.PIN, kind)
		if err != nil {
			return nil, err
		}
		return map[string]any{"ideas": ideas}, nil

	case "request-ranking-data":
		var data struct {
			PIN string `json:"pin"`
		}
		if err := decode(inbound.Data, &data); err != nil {
			return nil, err
		}
		return h.engine.Ranking(ctx, data.PIN)

	case "submit-answers":
		var data struct {
			PIN           string           `json:"pin"`
			ParticipantID int64            `json:"participantId"`
			Answers       map[string]int64 `json:"answers"`
		}
		if err := decode(inbound.Data, &data); err != nil {
			return nil, err
		}
		answers, err := answerMap(data.Answers)
		if err != nil {
			return nil, err
		}
		return h.engine.ScoreSingle(ctx, data.PIN, data.ParticipantID, answers)

	case "submit-answers-multiple":
		var data struct {
			PIN           string             `json:"pin"`
			ParticipantID int64              `json:"participantId"`
			Answers       map[string][]int64 `json:"answers"`
		}
		if err := decode(inbound.Data, &data); err != nil {
			return nil, err
		}
		answers, err := answerMap(data.Answers)
		if err != nil {
			return nil, err
		}
		return h.engine.ScoreMulti(ctx, data.PIN, data.ParticipantID, answers)

	default:
		return nil, domain.Validationf("unsupported event %q", inbound.Event)
	}
}

func decode(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return domain.Validationf("missing event data")
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return domain.Validationf("malformed event data: %v", err)
	}
	return nil
}

// answerMap converts JSON object keys to numeric question IDs. Answer maps
// arrive keyed by string because JSON objects cannot carry numeric keys.
func answerMap[V any](raw map[string]V) (map[int64]V, error) {
	answers := make(map[int64]V, len(raw))
	for key, value := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, domain.Validationf("question id %q is not numeric", key)
		}
		answers[id] = value
	}
	if len(answers) == 0 {
		return nil, domain.Validationf("empty answer set")
	}
	return answers, nil
}
