package httpapi

import (
	"encoding/json"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	goerrors "github.com/goliatone/go-errors"
	"github.com/usufslc/aggie-auth/core"
)

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

type issuedBody struct {
	Token    string `json:"token"`
	ExpireAt string `json:"expire_at"`
}

type confirmationBody struct {
	Token    string `json:"token"`
	Anumber  string `json:"anumber"`
	Redirect bool   `json:"redirect"`
}

type apiCredentialBody struct {
	Token              string `json:"token"`
	IsDev              bool   `json:"is_dev"`
	WantsProduction    bool   `json:"wants_production"`
	RestrictedIdentity string `json:"restricted_identity,omitempty"`
	Callback           string `json:"callback"`
	TokenExpirationSec int    `json:"token_expiration_sec"`
	Description        string `json:"description"`
	CreatedAt          string `json:"created_at,omitempty"`
	UpdatedAt          string `json:"updated_at,omitempty"`
}

func newAPICredentialBody(credential core.APICredential) apiCredentialBody {
	body := apiCredentialBody{
		Token:              credential.Token,
		IsDev:              credential.IsDev,
		WantsProduction:    credential.WantsElevated,
		RestrictedIdentity: credential.RestrictedIdentity,
		Callback:           credential.CallbackURI,
		TokenExpirationSec: credential.ExpirationSeconds,
		Description:        credential.Description,
	}
	if !credential.CreatedAt.IsZero() {
		body.CreatedAt = credential.CreatedAt.UTC().Format(timestampLayout)
	}
	if !credential.UpdatedAt.IsZero() {
		body.UpdatedAt = credential.UpdatedAt.UTC().Format(timestampLayout)
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(text))
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	mapped := core.MapError(err)
	if mapped == nil {
		mapped = core.MapError(goerrors.New("unexpected error", goerrors.CategoryInternal))
	}
	if challenge, ok := mapped.Metadata[core.MetadataWWWAuthenticate].(string); ok && challenge != "" {
		w.Header().Set("WWW-Authenticate", challenge)
	}
	status := mapped.Code
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}
	message := mapped.Message
	if mapped.Category == goerrors.CategoryInternal {
		message = "An unexpected error occurred"
	}
	requestID := chimiddleware.GetReqID(r.Context())
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error_code", mapped.TextCode,
			"error", err.Error(),
		)
	}
	writeJSON(w, status, errorBody{
		Error:     message,
		Code:      mapped.TextCode,
		RequestID: requestID,
	})
}
