package web

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// the page is served from the same origin; other origins are rejected
	CheckOrigin: sameOrigin,
}

type wsIncoming struct {
	Text string `json:"text"`
}

type wsResponse struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser clients
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// handleWS runs turns over a websocket. Frames are processed one at a time,
// so a turn always completes before the next message is read. The session
// comes from the cookie only; a session opened by the socket itself ends
// when the socket closes.
func (ws *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s, created := ws.store.GetOrCreate(cookieID(r))
	if created {
		defer ws.store.Reset(s.ID)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxTurnBody)

	if err := conn.WriteJSON(wsResponse{Type: "connected", SessionID: s.ID}); err != nil {
		log.Printf("Failed to send connected message: %v", err)
		return
	}

	for {
		var in wsIncoming
		if err := conn.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[session %s] websocket read: %v", s.ID, err)
			}
			return
		}

		ws.store.Get(s.ID) // keeps an open socket's session from going idle
		out := s.HandleTurn(r.Context(), in.Text)
		if err := conn.WriteJSON(wsResponse{Type: string(out.Kind), Text: out.Message}); err != nil {
			log.Printf("[session %s] websocket write: %v", s.ID, err)
			return
		}
	}
}
