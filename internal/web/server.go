package web

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"topic-chatter/internal/assistant"
	"topic-chatter/internal/llm"
)

const sessionCookie = "session_id"

// maxTurnBody bounds a single turn request (JSON or form).
const maxTurnBody = 64 << 10

// Server is the browser front end: an HTML chat page, a small JSON API and a
// websocket endpoint, all backed by the same session store.
type Server struct {
	store     *Store
	server    *http.Server
	addr      string
	startTime time.Time
	page      *template.Template
}

type turnRequest struct {
	Text string `json:"text"`
}

type turnResponse struct {
	Outcome string        `json:"outcome"`
	Message string        `json:"message"`
	History []llm.Message `json:"history"`
}

func NewServer(store *Store, addr string) *Server {
	return &Server{
		store:     store,
		addr:      addr,
		startTime: time.Now(),
		page:      template.Must(template.New("chat").Parse(pageTemplate)),
	}
}

func (ws *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", ws.handleStatus)
	mux.HandleFunc("/api/turn", ws.handleTurn)
	mux.HandleFunc("/api/history", ws.handleHistory)
	mux.HandleFunc("/api/reset", ws.handleReset)
	mux.HandleFunc("/ws", ws.handleWS)
	mux.HandleFunc("/", ws.handleRoot)
	return mux
}

// Start blocks until the server stops. Completion calls are not bounded by a
// write timeout.
func (ws *Server) Start() error {
	ws.server = &http.Server{
		Addr:              ws.addr,
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("🌐 Starting chat web server on %s (profile %s)", ws.addr, ws.store.Profile().Name)
	return ws.server.ListenAndServe()
}

func (ws *Server) Stop() error {
	if ws.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ws.server.Shutdown(ctx)
}

// session resolves the caller's session from the cookie and (re)issues the
// cookie when a new session was created.
func (ws *Server) session(w http.ResponseWriter, r *http.Request) *assistant.Session {
	s, created := ws.store.GetOrCreate(cookieID(r))
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    s.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		log.Printf("🆕 New chat session %s", s.ID)
	}
	return s
}

// existing resolves the caller's session without creating one. Read-only
// requests use it so that visitors who never send a message hold no state.
func (ws *Server) existing(r *http.Request) (*assistant.Session, bool) {
	id := cookieID(r)
	if id == "" {
		return nil, false
	}
	return ws.store.Get(id)
}

func cookieID(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func (ws *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		var history []llm.Message
		if s, ok := ws.existing(r); ok {
			history = s.Visible()
		}
		ws.renderPage(w, history)
	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, maxTurnBody)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form", bodyErrorStatus(err))
			return
		}
		if r.PostForm.Has("message") {
			ws.session(w, r).HandleTurn(r.Context(), r.PostForm.Get("message"))
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (ws *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req turnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTurnBody)).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON request: "+err.Error(), bodyErrorStatus(err))
		return
	}

	s := ws.session(w, r)
	out := s.HandleTurn(r.Context(), req.Text)
	writeJSON(w, turnResponse{
		Outcome: string(out.Kind),
		Message: out.Message,
		History: s.Visible(),
	})
}

func (ws *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, history := "", []llm.Message{}
	if s, ok := ws.existing(r); ok {
		id, history = s.ID, s.Visible()
	}
	writeJSON(w, map[string]interface{}{
		"session_id": id,
		"history":    history,
	})
}

func (ws *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if id := cookieID(r); id != "" && ws.store.Reset(id) {
		log.Printf("🧹 Chat session %s discarded", id)
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, map[string]interface{}{"success": true})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (ws *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]interface{}{
		"status":          "healthy",
		"service":         "topic-chatter",
		"profile":         ws.store.Profile().Name,
		"active_sessions": ws.store.Len(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"uptime":          time.Since(ws.startTime).String(),
	})
}

type pageData struct {
	Topic   string
	History []llm.Message
}

func (ws *Server) renderPage(w http.ResponseWriter, history []llm.Message) {
	data := pageData{Topic: ws.store.Profile().Description, History: history}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ws.page.Execute(w, data); err != nil {
		log.Printf("Error rendering template: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func bodyErrorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
