package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MediSynth-io/authkit/internal/auth"
	"github.com/MediSynth-io/authkit/internal/models"
	"github.com/MediSynth-io/authkit/internal/store"
)

const maxBodyBytes = 1 << 20

type AuthResponse struct {
	Message string            `json:"message"`
	Token   string            `json:"token"`
	User    models.PublicUser `json:"user"`
}

type UserResponse struct {
	User models.PublicUser `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// decodeBody reads a JSON object into v. An empty body leaves v untouched so
// the caller's required-field checks report it.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return badRequest("Invalid request body")
}

func (api *Api) RegisterHandler(w http.ResponseWriter, r *http.Request) error {
	var req auth.RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		return err
	}
	req.Normalize()

	if !req.HasAllFields() {
		return badRequest("All fields are required")
	}
	if err := req.Validate(); err != nil {
		return &APIError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
	}

	ctx := r.Context()
	_, err := api.users.GetUserByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return badRequest("User already exists")
	case !errors.Is(err, store.ErrUserNotFound):
		return fmt.Errorf("lookup user: %w", err)
	}

	hash, err := auth.HashPassword(req.Password, api.Config.JWT.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user, err := api.users.CreateUser(ctx, req.Email, hash, req.Name)
	if errors.Is(err, store.ErrEmailTaken) {
		return badRequest("User already exists")
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	token, err := api.tokens.GenerateToken(auth.Claims{UserID: user.ID, Email: user.Email})
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	api.log.Infow("user registered", "user_id", user.ID)
	return api.respond(w, http.StatusCreated, AuthResponse{
		Message: "User registered successfully",
		Token:   token,
		User:    user.Public(),
	})
}

func (api *Api) LoginHandler(w http.ResponseWriter, r *http.Request) error {
	var req auth.LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		return err
	}
	req.Normalize()

	if !req.HasAllFields() {
		return badRequest("Email and password are required")
	}

	// Unknown email and wrong password get the same answer.
	user, err := api.users.GetUserByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrUserNotFound) {
		auth.CheckPassword(api.dummyHash, req.Password)
		return unauthorized("Invalid credentials")
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}

	if !auth.CheckPassword(user.Password, req.Password) {
		return unauthorized("Invalid credentials")
	}

	token, err := api.tokens.GenerateToken(auth.Claims{UserID: user.ID, Email: user.Email})
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	return api.respond(w, http.StatusOK, AuthResponse{
		Message: "Login successful",
		Token:   token,
		User:    user.Public(),
	})
}

func (api *Api) MeHandler(w http.ResponseWriter, r *http.Request) error {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return unauthorized("Access token required")
	}

	user, err := api.users.GetUserByID(r.Context(), claims.UserID)
	if errors.Is(err, store.ErrUserNotFound) {
		return notFound("User not found")
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}

	return api.respond(w, http.StatusOK, UserResponse{User: user.Public()})
}

// LogoutHandler only acknowledges; the client discards its token.
func (api *Api) LogoutHandler(w http.ResponseWriter, r *http.Request) error {
	return api.respond(w, http.StatusOK, MessageResponse{Message: "Logout successful"})
}

// RefreshHandler reissues a token for the same claims with a fresh expiry.
func (api *Api) RefreshHandler(w http.ResponseWriter, r *http.Request) error {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return unauthorized("Access token required")
	}

	token, err := api.tokens.GenerateToken(claims.Claims)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	return api.respond(w, http.StatusOK, TokenResponse{Token: token})
}
