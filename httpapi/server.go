package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	gocmd "github.com/goliatone/go-command"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/usufslc/aggie-auth/command"
	"github.com/usufslc/aggie-auth/core"
	"github.com/usufslc/aggie-auth/query"
)

const (
	timestampLayout     = time.RFC3339Nano
	maxRequestBodyBytes = 1 << 20
)

var redirectFlagPattern = regexp.MustCompile(`^(true|false)$`)

type requesterContextKey struct{}

type requester struct {
	bearer     string
	credential core.APICredential
}

type Server struct {
	logger core.Logger

	requestVerification *command.RequestVerificationCommand
	bootstrap           *command.BootstrapSelfVerificationCommand
	acknowledge         *command.AcknowledgeBootstrapCommand
	confirm             *command.ConfirmVerificationCommand
	deleteVerification  *command.DeleteVerificationCommand
	updateAPICredential *command.UpdateAPICredentialCommand
	deleteAPICredential *command.DeleteAPICredentialCommand

	getAPICredential *query.GetAPICredentialQuery
	authorize        *query.AuthorizeQuery
}

type Option func(*Server)

func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		if s != nil && logger != nil {
			s.logger = logger
		}
	}
}

func NewServer(broker core.CredentialBroker, opts ...Option) (*Server, error) {
	if broker == nil {
		return nil, fmt.Errorf("httpapi: credential broker is required")
	}
	server := &Server{
		logger:              glog.Nop(),
		requestVerification: command.NewRequestVerificationCommand(broker),
		bootstrap:           command.NewBootstrapSelfVerificationCommand(broker),
		acknowledge:         command.NewAcknowledgeBootstrapCommand(broker),
		confirm:             command.NewConfirmVerificationCommand(broker),
		deleteVerification:  command.NewDeleteVerificationCommand(broker),
		updateAPICredential: command.NewUpdateAPICredentialCommand(broker),
		deleteAPICredential: command.NewDeleteAPICredentialCommand(broker),
		getAPICredential:    query.NewGetAPICredentialQuery(broker),
		authorize:           query.NewAuthorizeQuery(broker),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(server)
		}
	}
	server.logger = glog.Ensure(server.logger)
	return server, nil
}

// Routes builds the chi router for every broker endpoint.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.logRequests)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Post("/token", s.handleBootstrap)
	r.Get("/token/verify/{apiToken}", s.handleAcknowledge)
	r.Get("/authaggie", s.handleConfirm)

	r.Group(func(r chi.Router) {
		r.Use(s.requireBearer)
		r.Post("/authaggie", s.handleRequestVerification)
		r.Delete("/aggieauth/{token}", s.handleDeleteVerification)
		r.Get("/token", s.handleGetAPICredential)
		r.Put("/token", s.handleUpdateAPICredential)
		r.Delete("/token", s.handleDeleteAPICredential)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

type anumberRequest struct {
	Anumber string `json:"anumber"`
}

func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	var body anumberRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := execute[core.IssuedVerification](r.Context(), s.bootstrap.Execute, command.BootstrapSelfVerificationMessage{
		IdentityHandle: body.Anumber,
	}); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, true)
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	apiToken := chi.URLParam(r, "apiToken")
	echoed, err := execute[string](r.Context(), s.acknowledge.Execute, command.AcknowledgeBootstrapMessage{APIToken: apiToken})
	if err != nil || echoed == "" {
		echoed = apiToken
	}
	writeText(w, http.StatusOK, echoed)
}

func (s *Server) handleRequestVerification(w http.ResponseWriter, r *http.Request) {
	var body anumberRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	issued, err := execute[core.IssuedVerification](r.Context(), s.requestVerification.Execute, command.RequestVerificationMessage{
		Bearer:         bearerFromContext(r.Context()),
		Requester:      credentialFromContext(r.Context()),
		IdentityHandle: body.Anumber,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issuedBody{
		Token:    issued.Token,
		ExpireAt: issued.ExpiresAt.UTC().Format(timestampLayout),
	})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	wantsRedirect := params.Get("wantsRedirect")
	if wantsRedirect == "" {
		wantsRedirect = "false"
	}
	if !redirectFlagPattern.MatchString(wantsRedirect) {
		s.writeError(w, r, core.ValidationError("wantsRedirect must be true or false"))
		return
	}
	confirmation, err := execute[core.Confirmation](r.Context(), s.confirm.Execute, command.ConfirmVerificationMessage{
		Token: params.Get("aggieToken"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	redirect := wantsRedirect == "true"
	w.Header().Set("Location", callbackLocation(
		confirmation.APICredential.CallbackURI,
		confirmation.Verification.Token,
		redirect,
	))
	writeJSON(w, http.StatusFound, confirmationBody{
		Token:    confirmation.Verification.Token,
		Anumber:  confirmation.Verification.IdentityHandle,
		Redirect: redirect,
	})
}

func (s *Server) handleDeleteVerification(w http.ResponseWriter, r *http.Request) {
	err := s.deleteVerification.Execute(r.Context(), command.DeleteVerificationMessage{
		Bearer:    bearerFromContext(r.Context()),
		Requester: credentialFromContext(r.Context()),
		Token:     chi.URLParam(r, "token"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, true)
}

func (s *Server) handleGetAPICredential(w http.ResponseWriter, r *http.Request) {
	credential, err := s.getAPICredential.Query(r.Context(), query.GetAPICredentialMessage{
		Bearer:    bearerFromContext(r.Context()),
		Requester: credentialFromContext(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAPICredentialBody(credential))
}

type updateAPICredentialRequest struct {
	Callback           string `json:"callback"`
	Description        string `json:"description"`
	WantsProduction    bool   `json:"wants_production"`
	TokenExpirationSec int    `json:"token_expiration_sec"`
}

func (s *Server) handleUpdateAPICredential(w http.ResponseWriter, r *http.Request) {
	var body updateAPICredentialRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := execute[core.APICredential](r.Context(), s.updateAPICredential.Execute, command.UpdateAPICredentialMessage{
		Bearer:    bearerFromContext(r.Context()),
		Requester: credentialFromContext(r.Context()),
		Input: core.UpdateAPICredentialInput{
			CallbackURI:       body.Callback,
			Description:       body.Description,
			WantsElevated:     body.WantsProduction,
			ExpirationSeconds: body.TokenExpirationSec,
		},
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAPICredentialBody(updated))
}

func (s *Server) handleDeleteAPICredential(w http.ResponseWriter, r *http.Request) {
	err := s.deleteAPICredential.Execute(r.Context(), command.DeleteAPICredentialMessage{
		Bearer:    bearerFromContext(r.Context()),
		Requester: credentialFromContext(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, true)
}

// requireBearer rejects requests whose bearer token is malformed or unknown
// before any handler runs. Handlers reuse the credential it resolved.
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer := extractBearer(r)
		credential, err := s.authorize.Query(r.Context(), query.AuthorizeMessage{Bearer: bearer})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), requesterContextKey{}, requester{bearer: bearer, credential: credential})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"request_id", chimiddleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(startedAt).Milliseconds(),
		)
	})
}

// execute runs a command and returns the result it stored in the context.
func execute[R any, M any](ctx context.Context, run func(context.Context, M) error, msg M) (R, error) {
	var zero R
	collector := gocmd.NewResult[R]()
	if err := run(gocmd.ContextWithResult(ctx, collector), msg); err != nil {
		return zero, err
	}
	out, ok := collector.Load()
	if !ok {
		return zero, nil
	}
	return out, nil
}

// extractBearer reads the Authorization header, falling back to the
// access_token query parameter.
func extractBearer(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > len("bearer ") && strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

func bearerFromContext(ctx context.Context) string {
	req, _ := ctx.Value(requesterContextKey{}).(requester)
	return req.bearer
}

func credentialFromContext(ctx context.Context) *core.APICredential {
	req, ok := ctx.Value(requesterContextKey{}).(requester)
	if !ok {
		return nil
	}
	return &req.credential
}

func decodeJSON(r *http.Request, target any) error {
	if r.Body == nil {
		return core.ValidationError("request body is required")
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return core.ValidationError("request body is required")
		}
		return core.ValidationError("request body is not valid json")
	}
	return nil
}

// callbackLocation appends token and redirect to the callback, keeping any
// query the callback already carries.
func callbackLocation(callback string, token string, redirect bool) string {
	params := "token=" + url.QueryEscape(token) + "&redirect=" + fmt.Sprint(redirect)
	separator := "?"
	if strings.Contains(callback, "?") {
		separator = "&"
		if strings.HasSuffix(callback, "?") || strings.HasSuffix(callback, "&") {
			separator = ""
		}
	}
	return callback + separator + params
}
