package http

import (
	"encoding/json"
	"net/http"
	"time"

	"daily-challenge-service/internal/app"
	"daily-challenge-service/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsSendBuffer   = 16
)

// WSHandler plays one challenge over a websocket: the client sends commands and receives the
// same results the REST routes return.
type WSHandler struct {
	service  *app.ChallengeService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ChallengeService, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the challenge use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	challengeID := r.URL.Query().Get("challengeId")
	user := r.URL.Query().Get("userId")
	if user == "" {
		user = userID(r)
	}
	if challengeID == "" || user == "" {
		http.Error(w, "missing challengeId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	log := h.log.With(zap.String("challenge_id", challengeID), zap.String("user_id", user))
	ctx := r.Context()

	writer := newWSWriter(conn, wsWriteTimeout, log)
	defer writer.close()

	reply := func(typ string, payload any, err error) bool {
		if err != nil {
			kind := domain.KindOf(err)
			message := err.Error()
			if kind == domain.KindInternal {
				log.Error("ws command failed", zap.String("type", typ), zap.Error(err))
				message = "internal error"
			}
			return writer.enqueue(outboundMessage{Type: "error", Payload: errorPayload{Code: kind.String(), Message: message}})
		}
		return writer.enqueue(outboundMessage{Type: typ, Payload: payload})
	}

	status, err := h.service.Status(ctx, challengeID, user)
	if !reply("status", status, err) {
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var ok bool
		switch inbound.Type {
		case "start":
			view, err := h.service.Start(ctx, challengeID, user)
			ok = reply("started", view, err)
		case "status":
			view, err := h.service.Status(ctx, challengeID, user)
			ok = reply("status", view, err)
		case "question":
			next, err := h.service.NextQuestion(ctx, challengeID, user)
			if err == nil && next.Completion != nil {
				ok = reply("completed", next.Completion, nil)
			} else {
				ok = reply("question", next.Question, err)
			}
		case "answer":
			var answer domain.Answer
			if err := json.Unmarshal(inbound.Payload, &answer); err != nil {
				ok = reply("", nil, domain.ErrInvalidAnswer)
				break
			}
			result, err := h.service.SubmitAnswer(ctx, challengeID, user, answer)
			ok = reply("answerResult", result, err)
		case "forfeit":
			view, err := h.service.Forfeit(ctx, challengeID, user)
			ok = reply("completed", view, err)
		default:
			ok = writer.enqueue(outboundMessage{Type: "error", Payload: errorPayload{Code: domain.KindInvalidArgument.String(), Message: "unsupported message type"}})
		}
		if !ok {
			return
		}
	}
}

// wsWriter owns all writes to a connection; gorilla connections do not support concurrent writers.
type wsWriter struct {
	conn    *websocket.Conn
	timeout time.Duration
	log     *zap.Logger
	send    chan outboundMessage
	done    chan struct{}
}

func newWSWriter(conn *websocket.Conn, timeout time.Duration, log *zap.Logger) *wsWriter {
	w := &wsWriter{
		conn:    conn,
		timeout: timeout,
		log:     log,
		send:    make(chan outboundMessage, wsSendBuffer),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *wsWriter) run() {
	defer close(w.done)
	for msg := range w.send {
		_ = w.conn.SetWriteDeadline(time.Now().Add(w.timeout))
		if err := w.conn.WriteJSON(msg); err != nil {
			w.log.Warn("ws write error", zap.Error(err))
			// unblock the read loop
			_ = w.conn.Close()
			return
		}
	}
}

// enqueue reports false once the writer has stopped.
func (w *wsWriter) enqueue(msg outboundMessage) bool {
	select {
	case <-w.done:
		return false
	default:
	}
	select {
	case w.send <- msg:
		return true
	case <-w.done:
		return false
	}
}

func (w *wsWriter) close() {
	close(w.send)
	<-w.done
}
