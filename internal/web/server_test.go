package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"topic-chatter/internal/llm"
	"topic-chatter/internal/topic"
)

type fakeLLM struct {
	mu    sync.Mutex
	resp  llm.Response
	err   error
	calls int
}

func (f *fakeLLM) Generate(ctx context.Context, msgs []llm.Message) (llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.resp, f.err
}

func (f *fakeLLM) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestServer(t *testing.T) (*Server, *fakeLLM) {
	t.Helper()
	profile, err := topic.Profile("boots")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	f := &fakeLLM{resp: llm.Response{Content: "Priporočam FG kopačke."}}
	return NewServer(NewStore(profile, f, nil, 30*time.Minute), ":0"), f
}

func postTurn(t *testing.T, h http.Handler, text string, cookies []*http.Cookie) (*httptest.ResponseRecorder, turnResponse) {
	t.Helper()
	body, _ := json.Marshal(turnRequest{Text: text})
	req := httptest.NewRequest(http.MethodPost, "/api/turn", bytes.NewReader(body))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("turn returned %d: %s", rr.Code, rr.Body.String())
	}
	var resp turnResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rr, resp
}

func TestTurnAPIRefusesAndAnswers(t *testing.T) {
	ws, f := newTestServer(t)
	h := ws.Handler()

	rr, resp := postTurn(t, h, "Kakšno bo vreme?", nil)
	if resp.Outcome != "refused" || !strings.Contains(resp.Message, "Oprostite") {
		t.Fatalf("unexpected refusal: %+v", resp)
	}
	if f.Calls() != 0 {
		t.Fatalf("completion called for off-topic input")
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != sessionCookie {
		t.Fatalf("session cookie not issued: %+v", cookies)
	}

	_, resp = postTurn(t, h, "Katere Nike kopačke za umetno travo?", cookies)
	if resp.Outcome != "answered" || resp.Message != "Priporočam FG kopačke." {
		t.Fatalf("unexpected answer: %+v", resp)
	}
	if len(resp.History) != 4 {
		t.Fatalf("want 4 visible messages in the same session, got %d", len(resp.History))
	}
	for _, m := range resp.History {
		if m.Role == llm.RoleSystem {
			t.Fatalf("system message exposed: %+v", m)
		}
	}
	if ws.store.Len() != 1 {
		t.Fatalf("cookie not reused, %d sessions", ws.store.Len())
	}
}

func TestTurnAPIFailure(t *testing.T) {
	ws, f := newTestServer(t)
	f.err = context.DeadlineExceeded
	_, resp := postTurn(t, ws.Handler(), "nike", nil)
	if resp.Outcome != "failed" || !strings.Contains(resp.Message, "context deadline exceeded") {
		t.Fatalf("unexpected failure outcome: %+v", resp)
	}
}

func TestTurnAPIRejectsBadJSON(t *testing.T) {
	ws, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/turn", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rr.Code)
	}
	if ws.store.Len() != 0 {
		t.Fatalf("session created for a rejected request")
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	ws, _ := newTestServer(t)
	h := ws.Handler()
	postTurn(t, h, "nike", nil)
	_, resp := postTurn(t, h, "adidas", nil)
	if len(resp.History) != 2 {
		t.Fatalf("second browser saw another session's history: %+v", resp.History)
	}
	if ws.store.Len() != 2 {
		t.Fatalf("want 2 sessions, got %d", ws.store.Len())
	}
}

func TestResetDiscardsSession(t *testing.T) {
	ws, _ := newTestServer(t)
	h := ws.Handler()
	rr, _ := postTurn(t, h, "nike", nil)
	cookies := rr.Result().Cookies()

	req := httptest.NewRequest(http.MethodPost, "/api/reset", nil)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(cookies[0])
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset returned %d", rec.Code)
	}
	if ws.store.Len() != 0 {
		t.Fatalf("session not discarded")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var hist struct {
		SessionID string        `json:"session_id"`
		History   []llm.Message `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hist.History) != 0 || hist.SessionID == cookies[0].Value {
		t.Fatalf("old session resurrected: %+v", hist)
	}
}

func TestFormPostAndPageRender(t *testing.T) {
	ws, _ := newTestServer(t)
	h := ws.Handler()

	form := url.Values{"message": {"<b>nike</b>"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("want redirect, got %d", rr.Code)
	}
	cookies := rr.Result().Cookies()

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	page := rr.Body.String()
	if !strings.Contains(page, "Pametni chatbot") || !strings.Contains(page, "Priporočam FG kopačke.") {
		t.Fatalf("transcript not rendered: %s", page)
	}
	if strings.Contains(page, "<b>nike</b>") {
		t.Fatalf("user input not escaped")
	}
	if strings.Contains(page, "Ti si prijazen pomočnik") {
		t.Fatalf("system directive rendered")
	}
}

func TestStatusAndNotFound(t *testing.T) {
	ws, _ := newTestServer(t)
	h := ws.Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	var status map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status["status"] != "healthy" || status["profile"] != "boots" {
		t.Fatalf("unexpected status: %v", status)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rr.Code)
	}
}

func TestWebSocketTurns(t *testing.T) {
	ws, f := newTestServer(t)
	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var msg wsResponse
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "connected" || msg.SessionID == "" {
		t.Fatalf("unexpected hello: %+v (%v)", msg, err)
	}

	if err := conn.WriteJSON(wsIncoming{Text: "vreme"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "refused" {
		t.Fatalf("want refused, got %+v (%v)", msg, err)
	}

	if err := conn.WriteJSON(wsIncoming{Text: "PUMA kopačke"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "answered" || msg.Text != "Priporočam FG kopačke." {
		t.Fatalf("want answered, got %+v (%v)", msg, err)
	}
	if f.Calls() != 1 {
		t.Fatalf("want 1 completion call, got %d", f.Calls())
	}
}

func TestReadOnlyRequestsHoldNoSession(t *testing.T) {
	ws, _ := newTestServer(t)
	h := ws.Handler()

	for i := 0; i < 50; i++ {
		for _, path := range []string{"/", "/api/history"} {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
			if rr.Code != http.StatusOK {
				t.Fatalf("GET %s returned %d", path, rr.Code)
			}
			if len(rr.Result().Cookies()) != 0 {
				t.Fatalf("GET %s issued a session cookie", path)
			}
		}
	}
	if ws.store.Len() != 0 {
		t.Fatalf("cookieless reads created %d sessions", ws.store.Len())
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rr.Body.String(), "Pametni chatbot") {
		t.Fatalf("empty page not rendered: %s", rr.Body.String())
	}
}

func TestTurnAPIRejectsOversizedBody(t *testing.T) {
	ws, f := newTestServer(t)
	body, _ := json.Marshal(turnRequest{Text: "nike " + strings.Repeat("a", maxTurnBody)})
	req := httptest.NewRequest(http.MethodPost, "/api/turn", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("want 413, got %d", rr.Code)
	}
	if f.Calls() != 0 || ws.store.Len() != 0 {
		t.Fatalf("oversized request reached the assistant")
	}
}

func dialWS(t *testing.T, srv *httptest.Server, query string, header http.Header) (*websocket.Conn, wsResponse) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	var hello wsResponse
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != "connected" {
		t.Fatalf("unexpected hello: %+v (%v)", hello, err)
	}
	return conn, hello
}

func waitForSessions(t *testing.T, st *Store, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for st.Len() != want {
		if time.Now().After(deadline) {
			t.Fatalf("want %d sessions, got %d", want, st.Len())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketSessionEndsWithSocket(t *testing.T) {
	ws, _ := newTestServer(t)
	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()

	conn, _ := dialWS(t, srv, "", nil)
	if ws.store.Len() != 1 {
		t.Fatalf("want 1 session while connected, got %d", ws.store.Len())
	}
	conn.Close()
	waitForSessions(t, ws.store, 0)
}

func TestWebSocketUsesCookieSessionOnly(t *testing.T) {
	ws, _ := newTestServer(t)
	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()

	rr, _ := postTurn(t, ws.Handler(), "nike", nil)
	cookie := rr.Result().Cookies()[0]

	conn, hello := dialWS(t, srv, "?session_id="+cookie.Value, nil)
	if hello.SessionID == cookie.Value {
		t.Fatalf("query parameter attached the socket to an existing session")
	}
	conn.Close()
	waitForSessions(t, ws.store, 1)

	header := http.Header{}
	header.Add("Cookie", cookie.String())
	conn, hello = dialWS(t, srv, "", header)
	if hello.SessionID != cookie.Value {
		t.Fatalf("cookie session not used: %+v", hello)
	}
	conn.Close()
	time.Sleep(50 * time.Millisecond)
	if _, ok := ws.store.Get(cookie.Value); !ok {
		t.Fatalf("closing the socket discarded the page's session")
	}
}
