package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/frahmantamala/attendance-management/internal/auth"
	"github.com/frahmantamala/attendance-management/internal/transport"
	"github.com/olahol/melody"
)

const filterKey = "filter"

// socketMessage is the JSON frame sent to websocket clients.
type socketMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// SocketHandler serves the live feed over websockets. One hub subscription
// is shared by all sessions; each session's filter is applied on fan-out.
type SocketHandler struct {
	*transport.BaseHandler
	hub     *Hub
	checker auth.PermissionChecker
	melody  *melody.Melody
}

func NewSocketHandler(base *transport.BaseHandler, hub *Hub, checker auth.PermissionChecker) *SocketHandler {
	h := &SocketHandler{
		BaseHandler: base,
		hub:         hub,
		checker:     checker,
		melody:      melody.New(),
	}

	h.melody.HandleConnect(func(s *melody.Session) {
		f, _ := s.Get(filterKey)
		if !h.hub.Available() {
			h.send(s, socketMessage{Event: "unavailable", Data: map[string]string{"message": ErrFeedUnavailable.Message}})
			s.Close()
			return
		}
		h.send(s, socketMessage{Event: "connected", Data: map[string]interface{}{"filter": f}})
	})
	h.melody.HandleError(func(s *melody.Session, err error) {
		h.Logger.Debug("Socket: session error", "error", err)
	})
	// Clients only listen; inbound messages are ignored.
	h.melody.HandleMessage(func(*melody.Session, []byte) {})

	return h
}

func (h *SocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	filter, appErr := resolveFilter(r, h.checker)
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}
	if err := h.melody.HandleRequestWithKeys(w, r, map[string]interface{}{filterKey: filter}); err != nil {
		h.RequestLogger(r).Warn("Socket: upgrade failed", "error", err)
	}
}

// Run pumps hub events into the websocket sessions until ctx is done.
func (h *SocketHandler) Run(ctx context.Context) {
	for {
		sub, err := h.hub.Subscribe(Filter{})
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
				continue
			}
		}
		h.pump(ctx, sub)
		sub.Close()
		if ctx.Err() != nil {
			return
		}
	}
}

func (h *SocketHandler) pump(ctx context.Context, sub *Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			msg, _ := json.Marshal(socketMessage{Event: "unavailable", Data: map[string]string{"message": ErrFeedUnavailable.Message}})
			h.melody.Broadcast(msg)
			return
		case ev := <-sub.Events():
			msg, err := json.Marshal(socketMessage{Event: "attendance", Data: ev})
			if err != nil {
				h.Logger.Error("Socket: failed to encode event", "event_id", ev.ID, "error", err)
				continue
			}
			err = h.melody.BroadcastFilter(msg, func(s *melody.Session) bool {
				v, ok := s.Get(filterKey)
				if !ok {
					return false
				}
				f, ok := v.(Filter)
				return ok && f.Match(ev)
			})
			if err != nil {
				h.Logger.Warn("Socket: broadcast failed", "event_id", ev.ID, "error", err)
			}
		}
	}
}

func (h *SocketHandler) send(s *melody.Session, msg socketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := s.Write(data); err != nil {
		h.Logger.Debug("Socket: write failed", "error", err)
	}
}

func (h *SocketHandler) Close() error {
	return h.melody.Close()
}

func (h *SocketHandler) Sessions() int {
	return h.melody.Len()
}
