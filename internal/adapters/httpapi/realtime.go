package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/skyporter/luggage-api/internal/app/apperr"
	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/ports/out/events"
)

// KeepAlive is how often an idle SSE stream gets a comment line.
var KeepAlive = 15 * time.Second

// streamEvents serves GET /realtime as text/event-stream.
//
// Non-admins always receive their own conversation; contractId adds a contract topic the
// caller can see.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, err := s.caller(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, apperr.CodeInternal, "streaming unsupported", nil)
		return
	}

	q := r.URL.Query()
	var topics []string
	if conv := q.Get("conversationId"); conv != "" || caller.Role != domain.RoleAdmin {
		id, err := s.Chat.Conversation(ctx, caller, domain.ConversationID(conv))
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		topics = append(topics, events.ConversationTopic(string(id)))
	}
	if cid := q.Get("contractId"); cid != "" {
		c, err := s.Contracts.Get(ctx, caller, domain.ContractID(cid))
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		topics = append(topics, events.ContractTopic(string(c.ID)))
	}
	if len(topics) == 0 {
		writeAppError(w, r, apperr.Validation("conversationId", "conversationId or contractId is required"))
		return
	}

	sub := s.Hub.Subscribe(ctx, topics...)
	defer sub.Close()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	log := hlog.FromRequest(r)
	log.Debug().Strs("topics", topics).Msg("realtime stream opened")

	tick := time.NewTicker(KeepAlive)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case e, open := <-sub.Events():
			if !open {
				return
			}
			if err := writeEvent(w, e); err != nil {
				log.Debug().Err(err).Msg("realtime stream closed")
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
	return err
}
