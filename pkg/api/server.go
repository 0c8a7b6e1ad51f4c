// Package api exposes the OAuth flows over HTTP: the browser-facing
// start/callback pair per provider, a JSON exchange variant, connection
// status, disconnect and a demonstration publish endpoint.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/crosspost-labs/crosspost/pkg/config"
	"github.com/crosspost-labs/crosspost/pkg/connect"
	"github.com/crosspost-labs/crosspost/pkg/platform"
	"github.com/crosspost-labs/crosspost/pkg/session"
	"github.com/crosspost-labs/crosspost/pkg/upload"
)

type Server struct {
	cfg      *config.Config
	registry *connect.Registry
	sessions *SessionManager
	uploads  upload.Store
}

func NewServer(cfg *config.Config, registry *connect.Registry, store session.Store) *Server {
	return &Server{
		cfg:      cfg,
		registry: registry,
		sessions: NewSessionManager(store, []byte(cfg.SessionSecret), cfg.SessionTTL, cfg.SecureCookies),
		uploads:  upload.NewMemoryStore(cfg.MaxUploadBytes, nil),
	}
}

func ErrorLogMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if err != nil {
			slog.Error("request failed", "error", err, "path", c.Path(), "remote_addr", c.RealIP())
		}
		return err
	}
}

func (s *Server) MountRoutes(e *echo.Echo) {
	e.Use(
		middleware.Recover(),
		middleware.Logger(),
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     s.cfg.AllowedOrigins,
			AllowCredentials: true,
		}),
		ErrorLogMiddleware,
		s.sessions.Middleware,
	)

	e.GET("/healthz", s.Healthz)
	e.GET("/auth/:provider", s.StartAuth)
	e.GET("/auth/:provider/callback", s.AuthCallback)
	e.POST("/auth/:provider/exchange", s.ExchangeAuth)
	e.GET("/:provider/status", s.ConnectionStatus)
	e.DELETE("/:provider/disconnect", s.Disconnect)
	e.POST("/api/:provider/post", s.PublishPost)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func statusFor(code connect.Code) int {
	switch code {
	case connect.CodeInvalidRequest, connect.CodeStateMismatch:
		return http.StatusBadRequest
	case connect.CodeUserDenied:
		return http.StatusForbidden
	case connect.CodeNotConnected:
		return http.StatusUnauthorized
	default:
		// provider_rejected, network_error, refresh_failed: the
		// upstream provider is the failing party.
		return http.StatusBadGateway
	}
}

func flowErrorJSON(c echo.Context, err error) error {
	var flowErr *connect.Error
	if !errors.As(err, &flowErr) {
		flowErr = &connect.Error{Code: connect.CodeNetworkError, Description: err.Error()}
	}
	return c.JSON(statusFor(flowErr.Code), errorResponse{
		Error:   string(flowErr.Code),
		Message: flowErr.Description,
	})
}

func (s *Server) orchestrator(c echo.Context) (*connect.Orchestrator, error) {
	provider, ok := session.ParseProvider(c.Param("provider"))
	if !ok {
		return nil, c.JSON(http.StatusNotFound, errorResponse{
			Error:   string(connect.CodeInvalidRequest),
			Message: "unknown provider " + c.Param("provider"),
		})
	}
	o, ok := s.registry.Get(provider)
	if !ok {
		return nil, c.JSON(http.StatusNotFound, errorResponse{
			Error:   string(connect.CodeInvalidRequest),
			Message: string(provider) + " is not configured",
		})
	}
	return o, nil
}

func (s *Server) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// StartAuth opens a flow and hands the browser to the provider. SPAs
// that open the consent screen themselves ask for JSON instead.
func (s *Server) StartAuth(c echo.Context) error {
	o, err := s.orchestrator(c)
	if o == nil {
		return err
	}

	authURL, state, err := o.Start(c.Request().Context(), CurrentSession(c))
	if err != nil {
		return flowErrorJSON(c, err)
	}

	if c.QueryParam("mode") == "json" {
		return c.JSON(http.StatusOK, map[string]string{
			"authUrl": authURL,
			"state":   state,
		})
	}
	return c.Redirect(http.StatusFound, authURL)
}

func callbackFromQuery(c echo.Context) connect.Callback {
	return connect.Callback{
		State:            c.QueryParam("state"),
		Code:             c.QueryParam("code"),
		OAuthToken:       c.QueryParam("oauth_token"),
		OAuthVerifier:    c.QueryParam("oauth_verifier"),
		Denied:           c.QueryParam("denied") != "",
		ErrorCode:        c.QueryParam("error"),
		ErrorDescription: c.QueryParam("error_description"),
	}
}

// AuthCallback is the redirect target registered with every provider.
// The outcome travels back to the frontend as query parameters on the
// per-provider landing page.
func (s *Server) AuthCallback(c echo.Context) error {
	o, err := s.orchestrator(c)
	if o == nil {
		return err
	}

	provider := string(o.Provider())
	landing := s.cfg.FrontendURL + "/" + provider + "-callback"

	cred, err := o.Callback(c.Request().Context(), CurrentSession(c), callbackFromQuery(c))
	if err != nil {
		var flowErr *connect.Error
		if !errors.As(err, &flowErr) {
			flowErr = &connect.Error{Code: connect.CodeNetworkError, Description: err.Error()}
		}
		slog.Warn("authorization failed", "provider", provider, "error", err)

		params := url.Values{}
		params.Set("error", string(flowErr.Code))
		params.Set("message", flowErr.Description)
		return c.Redirect(http.StatusFound, landing+"?"+params.Encode())
	}

	params := url.Values{}
	params.Set("success", "true")
	if cred.Username != "" {
		params.Set("username", cred.Username)
	}
	if cred.UserID != "" {
		params.Set("user_id", cred.UserID)
	}
	return c.Redirect(http.StatusFound, landing+"?"+params.Encode())
}

type exchangeRequest struct {
	State         string `json:"state"`
	Code          string `json:"code"`
	OAuthToken    string `json:"oauthToken"`
	OAuthVerifier string `json:"oauthVerifier"`
}

type exchangeResponse struct {
	Success     bool   `json:"success"`
	Provider    string `json:"provider"`
	AccessToken string `json:"accessToken,omitempty"`
	UserID      string `json:"userId,omitempty"`
	Username    string `json:"username,omitempty"`
}

// ExchangeAuth is the JSON twin of AuthCallback for frontends that
// capture the provider redirect themselves and post the evidence here.
func (s *Server) ExchangeAuth(c echo.Context) error {
	o, err := s.orchestrator(c)
	if o == nil {
		return err
	}

	var req exchangeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error:   string(connect.CodeInvalidRequest),
			Message: "malformed request body",
		})
	}

	cred, err := o.Callback(c.Request().Context(), CurrentSession(c), connect.Callback{
		State:         req.State,
		Code:          req.Code,
		OAuthToken:    req.OAuthToken,
		OAuthVerifier: req.OAuthVerifier,
	})
	if err != nil {
		return flowErrorJSON(c, err)
	}

	return c.JSON(http.StatusOK, exchangeResponse{
		Success:     true,
		Provider:    string(o.Provider()),
		AccessToken: cred.AccessToken,
		UserID:      cred.UserID,
		Username:    cred.Username,
	})
}

func (s *Server) ConnectionStatus(c echo.Context) error {
	o, err := s.orchestrator(c)
	if o == nil {
		return err
	}

	live := c.QueryParam("live") == "true"
	status := o.Status(c.Request().Context(), CurrentSession(c), live)
	return c.JSON(http.StatusOK, status)
}

func (s *Server) Disconnect(c echo.Context) error {
	o, err := s.orchestrator(c)
	if o == nil {
		return err
	}

	o.Disconnect(c.Request().Context(), CurrentSession(c))
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// PublishPost accepts multipart text plus optional media and sends it
// through the provider's platform client.
func (s *Server) PublishPost(c echo.Context) error {
	o, err := s.orchestrator(c)
	if o == nil {
		return err
	}

	post := &platform.Post{Text: c.FormValue("text")}

	if file, err := c.FormFile("media"); err == nil {
		src, err := file.Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{
				Error:   string(connect.CodeInvalidRequest),
				Message: "unable to read media upload",
			})
		}
		defer src.Close()

		media, err := s.uploads.Put(c.Request().Context(), src, file.Filename, file.Header.Get("Content-Type"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{
				Error:   string(connect.CodeInvalidRequest),
				Message: err.Error(),
			})
		}
		post.Media = media
	}

	if post.Text == "" && post.Media == nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error:   string(connect.CodeInvalidRequest),
			Message: "post needs text or media",
		})
	}

	result, err := o.Publish(c.Request().Context(), CurrentSession(c), post)
	if err != nil {
		return flowErrorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"post":    result,
	})
}
