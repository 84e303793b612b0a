package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"pandit-quiz-service/internal/app"
	"pandit-quiz-service/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, log logrus.FieldLogger) *WSHandler {
	if log == nil {
		log = logrus.StandardLogger()
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

type answerPayload struct {
	Answer string `json:"answer"`
}

type hintPayload struct {
	Hint string `json:"hint"`
}

type ignoredPayload struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and runs one quiz session over the connection.
// The session is discarded when the connection closes.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	category, err := domain.ParseCategory(query.Get("category"))
	if err != nil {
		http.Error(w, "missing or unknown category", http.StatusBadRequest)
		return
	}
	user := domain.User{
		UID:         query.Get("userId"),
		IsAnonymous: query.Get("anonymous") == "true",
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	view, err := h.service.Start(ctx, user, string(category))
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	sessionID := view.ID
	log := h.log.WithFields(logrus.Fields{"session_id": sessionID, "user_id": user.UID})
	defer h.service.Abandon(context.WithoutCancel(ctx), sessionID)

	updates, cancel, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer: gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("ws write error")
				// unblocks the reader
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		finishedSent := false
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				msgs := []outboundMessage[any]{{Type: "state", Payload: update}}
				if update.Summary != nil && !finishedSent {
					finishedSent = true
					msgs = append(msgs, outboundMessage[any]{Type: "finished", Payload: update.Summary})
				}
				for _, msg := range msgs {
					select {
					case send <- msg:
					case <-closeSignals:
						return
					}
				}
			case <-closeSignals:
				return
			}
		}
	}()

readLoop:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if msg, ok := h.dispatch(ctx, sessionID, inbound); ok {
			if !enqueue(send, writerDone, msg) {
				log.Debug("ws writer gone, dropping connection")
				break readLoop
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
	log.Debug("ws connection closed")
}

// enqueue hands msg to the writer. It reports false once the writer has exited.
func enqueue(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

// dispatch runs one inbound action. State changes reach the client through the subscription;
// the returned message is the direct reply, if any.
func (h *WSHandler) dispatch(ctx context.Context, sessionID string, inbound inboundMessage) (outboundMessage[any], bool) {
	var err error
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid answer payload"), true
		}
		var outcome app.AnswerOutcome
		outcome, err = h.service.SubmitAnswer(ctx, sessionID, payload.Answer)
		if err == nil {
			return outboundMessage[any]{Type: "answerResult", Payload: outcome}, true
		}
	case "hint":
		var hint string
		hint, err = h.service.RequestHint(ctx, sessionID)
		if err == nil {
			return outboundMessage[any]{Type: "hint", Payload: hintPayload{Hint: hint}}, true
		}
	case "next":
		_, err = h.service.Advance(ctx, sessionID)
	case "finish":
		_, err = h.service.Finish(ctx, sessionID)
	default:
		return errorMessage("unsupported message type"), true
	}

	switch {
	case err == nil:
		return outboundMessage[any]{}, false
	case errors.Is(err, domain.ErrInvalidTransition):
		return outboundMessage[any]{Type: "ignored", Payload: ignoredPayload{Action: inbound.Type, Reason: err.Error()}}, true
	default:
		return errorMessage(err.Error()), true
	}
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}
