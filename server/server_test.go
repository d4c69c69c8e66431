package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/hetarolabs/samantha/ai"
	"github.com/hetarolabs/samantha/internal/profile"
	"github.com/hetarolabs/samantha/server/middleware"
	"github.com/hetarolabs/samantha/session"
)

const testSecret = "test-secret"

// scriptedCompletion echoes a fixed text reply and records the messages it
// was given.
type scriptedCompletion struct {
	mu           sync.Mutex
	reply        string
	lastMessages []ai.ChatMessage
}

func (s *scriptedCompletion) Generate(_ context.Context, messages []ai.ChatMessage, _ []ai.Tool) ([]ai.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastMessages = messages
	return []ai.Candidate{{FinishReason: ai.FinishReasonStop, Response: ai.TextPayload(s.reply)}}, nil
}

func (s *scriptedCompletion) GenerateStream(context.Context, []ai.ChatMessage, []ai.Tool) (<-chan []ai.Candidate, <-chan error) {
	candidates := make(chan []ai.Candidate)
	errCh := make(chan error, 1)
	close(candidates)
	close(errCh)
	return candidates, errCh
}

func (s *scriptedCompletion) SetSystemInstruction(string) {}

func (s *scriptedCompletion) lastMessage() ai.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMessages[len(s.lastMessages)-1]
}

func newTestServer(t *testing.T, completion *scriptedCompletion) (*Server, *session.Manager) {
	t.Helper()
	sessions := session.NewManager(session.Config{}, nil, nil)
	prof := &profile.Profile{
		Mode:      "dev",
		JWTSecret: testSecret,
	}
	s := NewServer(prof, sessions, func() ai.ChatCompletion { return completion })
	return s, sessions
}

func signToken(t *testing.T, userID string) string {
	t.Helper()
	claims := &middleware.UserClaims{
		UserID:    userID,
		FirstName: "Ada",
		LastName:  "Lovelace",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func doRequest(s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, path, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	s.Handler().ServeHTTP(recorder, request)
	return recorder
}

func TestHandleChat(t *testing.T) {
	completion := &scriptedCompletion{reply: "I am fine."}
	s, sessions := newTestServer(t, completion)
	token := signToken(t, "alice")

	recorder := doRequest(s, http.MethodPost, "/api/v1/chat", token, `{"message":"Hello, how are you?"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"response":"I am fine.","finishReason":"STOP"}`, recorder.Body.String())

	// the turn is persisted into the session store
	record := sessions.Get(context.Background(), "alice")
	require.Len(t, record.History, 1)
	require.Equal(t, "Hello, how are you?", record.History[0].Request.Text)
}

func TestHandleChatWithDocumentReference(t *testing.T) {
	completion := &scriptedCompletion{reply: "A lovely photo."}
	s, _ := newTestServer(t, completion)
	token := signToken(t, "alice")

	recorder := doRequest(s, http.MethodPost, "/api/v1/documents", token,
		`{"mimeType":"image/png","url":"https://example.com/cat.png"}`)
	require.Equal(t, http.StatusCreated, recorder.Code)
	require.JSONEq(t, `{"id":"0"}`, recorder.Body.String())

	recorder = doRequest(s, http.MethodPost, "/api/v1/chat", token,
		`{"message":"What do you see?","documentId":"0"}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	require.Equal(t, "[image#0]\n What do you see?", completion.lastMessage().Text)
}

func TestHandleChatValidation(t *testing.T) {
	s, _ := newTestServer(t, &scriptedCompletion{reply: "ok"})
	token := signToken(t, "alice")

	recorder := doRequest(s, http.MethodPost, "/api/v1/chat", token, `{"message":""}`)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandleDeleteSession(t *testing.T) {
	s, _ := newTestServer(t, &scriptedCompletion{reply: "hello"})
	token := signToken(t, "alice")

	recorder := doRequest(s, http.MethodDelete, "/api/v1/session", token, "")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"deleted":false}`, recorder.Body.String())

	doRequest(s, http.MethodPost, "/api/v1/chat", token, `{"message":"hi"}`)

	recorder = doRequest(s, http.MethodDelete, "/api/v1/session", token, "")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"deleted":true}`, recorder.Body.String())
}

func TestAuthRequired(t *testing.T) {
	s, _ := newTestServer(t, &scriptedCompletion{reply: "hello"})

	t.Run("MissingToken", func(t *testing.T) {
		recorder := doRequest(s, http.MethodPost, "/api/v1/chat", "", `{"message":"hi"}`)
		require.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("ForgedToken", func(t *testing.T) {
		claims := &middleware.UserClaims{UserID: "mallory"}
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("wrong-secret"))
		require.NoError(t, err)

		recorder := doRequest(s, http.MethodPost, "/api/v1/chat", forged, `{"message":"hi"}`)
		require.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, &scriptedCompletion{reply: "hello"})
	recorder := doRequest(s, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, recorder.Code)
}
