// Package server exposes the chat service over HTTP: a JWT-authenticated,
// per-user rate-limited API for chat turns, document uploads, and context
// clearing.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hetarolabs/samantha/agent"
	"github.com/hetarolabs/samantha/ai"
	"github.com/hetarolabs/samantha/internal/profile"
	"github.com/hetarolabs/samantha/memory"
	"github.com/hetarolabs/samantha/server/middleware"
	"github.com/hetarolabs/samantha/session"
	"github.com/hetarolabs/samantha/tools"
)

// CompletionFactory builds a fresh chat completion model. Each request gets
// its own instance because the system instruction is per-user state.
type CompletionFactory func() ai.ChatCompletion

// Server is the HTTP front of the chat service.
type Server struct {
	Profile  *profile.Profile
	Sessions *session.Manager

	echoServer    *echo.Echo
	newCompletion CompletionFactory
	limiter       *middleware.RateLimiter
}

// NewServer wires the routes and middleware.
func NewServer(prof *profile.Profile, sessions *session.Manager, newCompletion CompletionFactory) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(requestLogger())

	s := &Server{
		Profile:       prof,
		Sessions:      sessions,
		echoServer:    e,
		newCompletion: newCompletion,
		limiter:       middleware.NewRateLimiter(time.Second/10, 20),
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	api := e.Group("/api/v1",
		middleware.JWTAuth(prof.JWTSecret),
		middleware.RateLimit(s.limiter),
	)
	api.POST("/chat", s.handleChat)
	api.POST("/documents", s.handleAddDocument)
	api.DELETE("/session", s.handleDeleteSession)

	return s
}

// Handler exposes the routing tree.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server listening", "addr", addr)
	if err := s.echoServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains the HTTP server and the session store's pending writes.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echoServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "failed to shut down http server")
	}
	return s.Sessions.Close()
}

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			slog.Info("request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration", time.Since(start),
			)
			return err
		}
	}
}

// chatAgent builds the per-request agent: memory seeded from the session
// store, persistence wired through the memory listener, and the built-in
// tools bound.
func (s *Server) chatAgent(ctx context.Context, claims *middleware.UserClaims) *agent.ChatAgent {
	userID := claims.UserID
	record := s.Sessions.Get(ctx, userID)

	mem := memory.New(record.History)
	mem.OnAddMessage(func(event memory.AddMessageEvent) {
		s.Sessions.AddMessage(context.Background(), userID, event.Conversation)
	})

	boundTools := []ai.Tool{
		tools.NewWeatherTool(s.Profile.OpenWeatherAPIKey),
		tools.NewCryptoPriceTool(s.Profile.CoinMarketCapAPIKey),
		tools.NewImageDescribeTool(s.Sessions, s.newCompletion()),
	}

	return agent.New(agent.Params{
		SystemInstruction: BuildSystemInstruction(claims.FirstName, claims.LastName, time.Now()),
		Completion:        s.newCompletion(),
		Tools:             boundTools,
		Memory:            mem,
		MaxToolHops:       s.Profile.MaxToolHops,
	})
}

type chatRequest struct {
	Message string `json:"message"`
	// DocumentID references a previously uploaded document inline.
	DocumentID string `json:"documentId,omitempty"`
}

type chatResponse struct {
	Response     string          `json:"response"`
	FinishReason ai.FinishReason `json:"finishReason"`
}

type errorResponse struct {
	Code    agent.ErrorCode `json:"code"`
	Message string          `json:"message"`
}

func (s *Server) handleChat(c echo.Context) error {
	claims, _ := middleware.UserFromContext(c)

	request := &chatRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if request.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	message := request.Message
	if request.DocumentID != "" {
		message = fmt.Sprintf("[image#%s]\n %s", request.DocumentID, request.Message)
	}

	ctx := c.Request().Context()
	result, err := s.chatAgent(ctx, claims).Chat(ctx, message)
	if err != nil {
		var agentErr *agent.Error
		if errors.As(err, &agentErr) {
			slog.Error("chat turn failed", "user", claims.UserID, "code", agentErr.Code, "error", err)
			return c.JSON(http.StatusBadGateway, &errorResponse{
				Code:    agentErr.Code,
				Message: agentErr.Message,
			})
		}
		slog.Error("chat turn failed", "user", claims.UserID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "chat failed")
	}

	return c.JSON(http.StatusOK, &chatResponse{
		Response:     result.Response.Text,
		FinishReason: result.FinishReason,
	})
}

type addDocumentRequest struct {
	MIMEType string         `json:"mimeType"`
	URL      string         `json:"url"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type addDocumentResponse struct {
	ID string `json:"id"`
}

func (s *Server) handleAddDocument(c echo.Context) error {
	claims, _ := middleware.UserFromContext(c)

	request := &addDocumentRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if request.MIMEType == "" || request.URL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "mimeType and url are required")
	}

	id := s.Sessions.AddDocument(c.Request().Context(), claims.UserID, session.Document{
		MIMEType: request.MIMEType,
		URL:      request.URL,
		Metadata: request.Metadata,
	})

	return c.JSON(http.StatusCreated, &addDocumentResponse{ID: id})
}

type deleteSessionResponse struct {
	Deleted bool `json:"deleted"`
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	claims, _ := middleware.UserFromContext(c)

	deleted := s.Sessions.Delete(c.Request().Context(), claims.UserID)
	return c.JSON(http.StatusOK, &deleteSessionResponse{Deleted: deleted})
}
