package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/nrana15/clio/internal/common"
	"github.com/nrana15/clio/internal/server/models"
	"github.com/nrana15/clio/internal/server/services"
)

const maxBody = 1 << 16

type otpStartRequest struct {
	PhoneNumber string `json:"phone_number,omitempty"`
	Email       string `json:"email,omitempty"`
}

func (r otpStartRequest) identifier() services.Identifier {
	return services.Identifier{PhoneNumber: r.PhoneNumber, Email: r.Email}
}

type otpStartResponse struct {
	Message          string `json:"message"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
	OtpCode          string `json:"otp_code,omitempty"`
}

type otpVerifyRequest struct {
	otpStartRequest
	OtpCode string `json:"otp_code"`
}

type userResponse struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Email       string `json:"email,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	IsVerified  bool   `json:"is_verified"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:          u.ID,
		PhoneNumber: u.PhoneNumber,
		Email:       u.Email,
		FullName:    u.FullName,
		IsVerified:  u.IsVerified,
	}
}

type tokensResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

func newTokensResponse(p *services.TokenPair) tokensResponse {
	return tokensResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresIn:    p.ExpiresIn,
	}
}

type otpVerifyResponse struct {
	User   userResponse   `json:"user"`
	Tokens tokensResponse `json:"tokens"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Handler builds the router with every route and middleware attached.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware, s.accessLogMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	a := r.PathPrefix("/auth").Subrouter()
	a.HandleFunc("/otp/start", s.handleOtpStart).Methods(http.MethodPost)
	a.HandleFunc("/otp/verify", s.handleOtpVerify).Methods(http.MethodPost)
	a.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	a.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	u := r.PathPrefix("/users").Subrouter()
	u.Use(s.accessTokenMiddleware)
	u.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOtpStart(w http.ResponseWriter, r *http.Request) {
	var req otpStartRequest
	if !decode(w, r, &req) {
		return
	}

	issued, err := s.identity.StartOtp(r.Context(), req.identifier())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, otpStartResponse{
		Message:          "OTP sent successfully",
		ExpiresInSeconds: issued.ExpiresIn,
		OtpCode:          issued.Code,
	})
}

func (s *Server) handleOtpVerify(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyRequest
	if !decode(w, r, &req) {
		return
	}

	user, pair, err := s.identity.VerifyOtp(r.Context(), req.identifier(), req.OtpCode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, otpVerifyResponse{
		User:   newUserResponse(user),
		Tokens: newTokensResponse(pair),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := s.identity.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokensResponse(pair))
}

// handleLogout always answers 200. The client drops its tokens whatever
// happens here.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength != 0 {
		_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req)
	}

	if err := s.identity.Logout(r.Context(), bearerToken(r), req.RefreshToken); err != nil {
		s.logger.Debug(r.Context(), "logout without a valid token", "error", err)
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.identity.Me(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get(common.AuthorizationHeaderName)
	if len(h) < len(common.BearerPrefix) || !strings.EqualFold(h[:len(common.BearerPrefix)], common.BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(h[len(common.BearerPrefix):])
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "malformed request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var statusByError = []struct {
	err    error
	status int
}{
	{services.ErrInvalidIdentifier, http.StatusUnprocessableEntity},
	{services.ErrRateLimited, http.StatusTooManyRequests},
	{services.ErrAttemptsExceeded, http.StatusTooManyRequests},
	{services.ErrOtpExpired, http.StatusGone},
	{services.ErrNoChallenge, http.StatusUnauthorized},
	{services.ErrInvalidCode, http.StatusUnauthorized},
	{services.ErrUnauthorized, http.StatusUnauthorized},
	{services.ErrUserNotFound, http.StatusNotFound},
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var rl *services.RateLimitError
	if errors.As(err, &rl) {
		w.Header().Set("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds()+0.999)))
	}

	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			writeJSON(w, m.status, errorResponse{Detail: m.err.Error()})
			return
		}
	}

	s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "internal error"})
}
