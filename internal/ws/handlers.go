package ws

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/darkden-lab/ozone/internal/auth"
)

// Handler upgrades HTTP connections to websocket and spawns the read/write
// pumps for the new client.
type Handler struct {
	hub      *Hub
	auth     auth.Authenticator
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, a auth.Authenticator, allowedOrigins []string) *Handler {
	return &Handler{
		hub:  hub,
		auth: a,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     OriginChecker(allowedOrigins),
		},
	}
}

// RegisterRoutes wires the event stream endpoint.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/_ozone/events", h.ServeWS).Methods(http.MethodGet)
}

// ServeWS authenticates the caller and upgrades the connection. Browsers
// cannot set headers on websocket requests, so a JWT may also be passed in
// the `token` query parameter.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	if token := r.URL.Query().Get("token"); token != "" && r.Header.Get("Authorization") == "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	id, err := h.auth.Authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader already wrote the error response.
		return
	}

	client := NewClient(h.hub, conn, id.Name)
	for _, topic := range r.URL.Query()["topic"] {
		client.apply(controlMessage{Action: "subscribe", Topic: topic})
	}
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
