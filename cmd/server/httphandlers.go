package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"example.com/chirp/internal/auth"
	"example.com/chirp/internal/middleware"
	"example.com/chirp/internal/models"
	"example.com/chirp/internal/response"
	"example.com/chirp/internal/store"
	"example.com/chirp/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

const (
	msgEmailExists    = "Email Id already exists. Please Login."
	msgBadCredentials = "Email Id or Password is wrong."
	msgInvalidData    = "Invalid Data Provided."
	msgNoUser         = "No User Found."
	msgNoData         = "Data does not Exists."
	msgNoFollowTarget = "No Such User to Follow."
	msgSelfFollow     = "You cannot follow yourself."
	msgTryAgain       = "Something went wrong. Please Try Again."
)

// loginData is returned by a successful login; the token is also sent in the
// auth-token response header.
type loginData struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// --- Helpers ---

// decodeBody reads a JSON request body into dst, answering 400 (or 413 when the
// body exceeds the configured limit) on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, module string, dst any) bool {
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "Request Body Too Large.")
			return false
		}
		logg.Debug(module, "Failed to read request body: "+err.Error())
		response.Error(w, http.StatusBadRequest, msgInvalidData)
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		logg.Debug(module, "Invalid request body: "+err.Error())
		response.Error(w, http.StatusBadRequest, msgInvalidData)
		return false
	}
	return true
}

func currentUser(w http.ResponseWriter, r *http.Request, module string) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		logg.Info(module, "Request without authenticated user")
		response.Error(w, http.StatusUnauthorized, response.MsgAccessDenied)
		return "", false
	}
	return userID, true
}

// internalError logs err and answers 500 without exposing the cause.
func internalError(w http.ResponseWriter, module, msg string, err error) {
	logg.Error(module, msg, err)
	response.Error(w, http.StatusInternalServerError, response.MsgInternal)
}

// parsePage maps a missing, malformed or non-positive pageNo to 1. Numbers
// too large for an int are treated as the last servable page.
func parsePage(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(s, "-") {
			return store.MaxPage
		}
		return 1
	}
	return store.NormalizePage(n)
}

// publish emits ev without failing the request; the client may already be gone
// when the write happens, so the request's cancellation is dropped.
func (s *Server) publish(r *http.Request, module string, ev models.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	defer cancel()
	ev.OccurredAt = s.now()
	if err := s.events.Publish(ctx, ev); err != nil {
		logg.Error(module, "Failed to publish "+string(ev.Type)+" event", err)
	}
}

// --- User handlers ---

// registerHandler creates a user.
// Expects JSON body: {"name": "...", "email": "...", "password": "..."}
func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.RegisterRequest
	if !decodeBody(w, r, "http/users", &req) {
		return
	}
	if verr := validation.Struct(req); verr != nil {
		response.Error(w, http.StatusBadRequest, verr.Message)
		return
	}

	hash, err := auth.HashPassword(req.Password, s.cfg.BcryptCost)
	if err != nil {
		internalError(w, "http/users", "Failed to hash password", err)
		return
	}

	userID, err := s.store.CreateUser(r.Context(), models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: hash,
	})
	if errors.Is(err, store.ErrEmailExists) {
		response.Error(w, http.StatusBadRequest, msgEmailExists)
		return
	}
	if err != nil {
		internalError(w, "http/users", "Failed to create user", err)
		return
	}

	logg.Info("http/users", "User registered with user_id="+userID)
	response.OK(w, "User Registered.")
}

// loginHandler exchanges credentials for a session token.
// Expects JSON body: {"email": "...", "password": "..."}
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.LoginRequest
	if !decodeBody(w, r, "http/login", &req) {
		return
	}
	if verr := validation.Struct(req); verr != nil {
		response.Error(w, http.StatusBadRequest, "Invalid Data Provided : "+verr.Message)
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusBadRequest, msgBadCredentials)
		return
	}
	if err != nil {
		internalError(w, "http/login", "Failed to load user", err)
		return
	}
	if !auth.CheckPassword(user.Password, req.Password) {
		response.Error(w, http.StatusBadRequest, msgBadCredentials)
		return
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		internalError(w, "http/login", "Failed to issue token", err)
		return
	}

	w.Header().Set(middleware.TokenHeader, token)
	response.JSON(w, http.StatusOK, loginData{Message: "User Logged In", Token: token})
}

// getUserHandler returns the caller's profile without the password hash.
func (s *Server) getUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, "http/users")
	if !ok {
		return
	}
	user, err := s.store.GetUserByID(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusNotFound, msgNoUser)
		return
	}
	if err != nil {
		internalError(w, "http/users", "Failed to load user", err)
		return
	}
	response.JSON(w, http.StatusOK, user)
}

// updateUserHandler changes any of name, email and password. Empty fields keep
// their current value.
func (s *Server) updateUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, "http/users")
	if !ok {
		return
	}
	var req validation.UpdateUserRequest
	if !decodeBody(w, r, "http/users", &req) {
		return
	}
	if verr := validation.Struct(req); verr != nil {
		response.Error(w, http.StatusBadRequest, verr.Message)
		return
	}

	upd := models.UserUpdate{Name: req.Name, Email: req.Email}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password, s.cfg.BcryptCost)
		if err != nil {
			internalError(w, "http/users", "Failed to hash password", err)
			return
		}
		upd.Password = hash
	}

	err := s.store.UpdateUser(r.Context(), userID, upd)
	switch {
	case errors.Is(err, store.ErrEmailExists):
		response.Error(w, http.StatusBadRequest, msgEmailExists)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, msgNoData)
	case err != nil:
		internalError(w, "http/users", "Failed to update user", err)
	default:
		response.OK(w, "User Data Updated.")
	}
}

// followHandler makes the caller follow the user with the email in the path.
func (s *Server) followHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, "http/follow")
	if !ok {
		return
	}
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || email == "" {
		response.Error(w, http.StatusNotFound, msgNoFollowTarget)
		return
	}

	target, err := s.store.GetUserByEmail(r.Context(), email)
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusNotFound, msgNoFollowTarget)
		return
	}
	if err != nil {
		internalError(w, "http/follow", "Failed to load follow target", err)
		return
	}
	if target.ID == userID {
		response.Error(w, http.StatusBadRequest, msgSelfFollow)
		return
	}

	// Published first so the worker can finish a follow interrupted between
	// its two writes.
	s.publish(r, "http/follow", models.Event{
		Type:     models.EventUserFollowed,
		ActorID:  userID,
		TargetID: target.ID,
	})

	err = s.store.Follow(r.Context(), userID, target.ID)
	switch {
	case errors.Is(err, store.ErrSelfFollow):
		response.Error(w, http.StatusBadRequest, msgSelfFollow)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, msgNoFollowTarget)
	case err != nil:
		internalError(w, "http/follow", "Failed to create follow relationship", err)
	default:
		logg.Info("http/follow", "Follow created by user_id="+userID+" for user_id="+target.ID)
		response.OK(w, "You Started following "+target.Name)
	}
}

// deleteUserHandler removes the caller's account. Tweets are kept.
func (s *Server) deleteUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, "http/users")
	if !ok {
		return
	}
	err := s.store.DeleteUser(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusNotFound, msgNoData)
		return
	}
	if err != nil {
		internalError(w, "http/users", "Failed to delete user", err)
		return
	}
	response.OK(w, "User deleted.")
}
