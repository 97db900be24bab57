package realtimesvc

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/user"
)

// bearerProtocol is the websocket subprotocol carrying the token: `Sec-WebSocket-Protocol: bearer, <token>`.
const bearerProtocol = "bearer"

type (
	// Authenticator resolves a bearer token into the identity of the caller.
	Authenticator func(ctx context.Context, token string) (user.Caller, error)

	// RoomResolver returns the rooms a caller joins.
	RoomResolver func(ctx context.Context, caller user.Caller) ([]string, error)
)

// Handler authenticates websocket requests, upgrades them and joins the connections to their rooms.
// Requests without a valid token are rejected with 401 before any upgrade.
type Handler struct {
	hub        *Hub
	auth       Authenticator
	rooms      RoomResolver
	upgrader   websocket.Upgrader
	sendBuffer int
	logger     core.Logger
}

func NewHandler(hub *Hub, auth Authenticator, rooms RoomResolver, conf *core.Config, logger core.Logger) *Handler {
	sendBuffer := conf.Realtime.SendBuffer
	if sendBuffer < 1 {
		sendBuffer = 64
	}
	return &Handler{
		hub:   hub,
		auth:  auth,
		rooms: rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{bearerProtocol},
			CheckOrigin:     checkOrigin(conf.Realtime.AllowedOrigins),
		},
		sendBuffer: sendBuffer,
		logger:     logger,
	}
}

// checkOrigin allows every origin when `allowed` is empty.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if len(allowed) == 0 || origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) || strings.EqualFold(a, u.Host) {
				return true
			}
		}
		return false
	}
}

// bearerToken extracts the credential from the Authorization header, the `token` query param
// or the websocket subprotocols, in that order.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if parts := strings.SplitN(h, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	protocols := websocket.Subprotocols(r)
	for i, p := range protocols {
		if p == bearerProtocol && i+1 < len(protocols) {
			return protocols[i+1]
		}
	}
	return ""
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, core.ErrUnauthenticated.Error(), http.StatusUnauthorized)
		return
	}
	caller, err := h.auth(r.Context(), token)
	if err != nil {
		http.Error(w, core.ErrUnauthenticated.Error(), http.StatusUnauthorized)
		return
	}
	rooms, err := h.rooms(r.Context(), caller)
	if err != nil {
		h.logger.Error("resolving realtime rooms: "+err.Error(), err, caller)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied
		h.logger.Debug("websocket upgrade failed: "+err.Error(), caller)
		return
	}

	c := &Client{
		hub:    h.hub,
		conn:   conn,
		send:   make(chan []byte, h.sendBuffer),
		caller: caller,
		rooms:  rooms,
	}
	if !h.hub.join(c) {
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}
