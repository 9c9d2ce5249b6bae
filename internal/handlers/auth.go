package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/htverse/apiserver/internal/errors"
	"github.com/htverse/apiserver/internal/services"
	"github.com/htverse/apiserver/types"
)

const defaultTokenTTL = 24 * time.Hour

// AuthHandler provides JWT authentication endpoints.
type AuthHandler struct {
	userService *services.UserService
	secret      []byte
	tokenTTL    time.Duration
}

// NewAuthHandler constructs an AuthHandler. A non-positive ttl selects the
// default token lifetime.
func NewAuthHandler(userService *services.UserService, jwtSecret string, ttl time.Duration) *AuthHandler {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &AuthHandler{
		userService: userService,
		secret:      []byte(jwtSecret),
		tokenTTL:    ttl,
	}
}

// AuthRouter registers auth routes on the given router. Signup and login
// pass through limit when it is non-nil.
func AuthRouter(r chi.Router, handler *AuthHandler, limit func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		if limit != nil {
			r.Use(limit)
		}
		r.Post("/register", handler.Register)
		r.Post("/login", handler.Login)
	})
	r.With(handler.RequireAuth).Get("/me", handler.Me)
}

// RequireAuth enforces JWT authentication and loads the caller into the
// request context. Preflight requests pass through untouched.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, err := bearerToken(r)
		if err != nil {
			writeFailure(w, http.StatusUnauthorized, "Not authorized to access this route")
			return
		}
		subject, err := parseTokenSubject(tokenString, h.secret)
		if err != nil {
			writeFailure(w, http.StatusUnauthorized, "Not authorized to access this route")
			return
		}

		user, err := h.userService.GetByID(r.Context(), subject)
		if err != nil {
			if apperrors.KindOf(err) == apperrors.KindNotFound {
				writeFailure(w, http.StatusUnauthorized, "No user found with this token")
				return
			}
			writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), contextUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Register creates a new participant account and returns a JWT.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.userService.Register(r.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		College:  req.College,
		Phone:    req.Phone,
		Skills:   req.Skills,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.respondWithToken(w, r, http.StatusCreated, "User registered successfully", user)
}

// Login verifies credentials and returns a JWT.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.respondWithToken(w, r, http.StatusOK, "Login successful", user)
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Not authorized to access this route")
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{
		Success: true,
		User: ProfileResponse{
			AuthUser:   newAuthUser(user),
			IsVerified: user.IsVerified,
			CreatedAt:  user.CreatedAt,
		},
	})
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, message string, user types.User) {
	token, err := issueToken(user.ID, h.secret, h.tokenTTL)
	if err != nil {
		writeError(w, r, apperrors.Internal("Failed to create token", err))
		return
	}
	writeJSON(w, status, AuthResponse{
		Success: true,
		Message: message,
		Token:   token,
		User:    newAuthUser(user),
	})
}

type RegisterRequest struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	College  string     `json:"college"`
	Phone    string     `json:"phone"`
	Skills   stringList `json:"skills"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthUser is the user payload returned with a token.
type AuthUser struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Email   string     `json:"email"`
	Role    types.Role `json:"role"`
	College string     `json:"college"`
	Phone   string     `json:"phone"`
	Skills  []string   `json:"skills"`
}

func newAuthUser(u types.User) AuthUser {
	skills := u.Skills
	if skills == nil {
		skills = []string{}
	}
	return AuthUser{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Role:    u.Role,
		College: u.College,
		Phone:   u.Phone,
		Skills:  skills,
	}
}

// ProfileResponse is the user payload of the /me endpoint.
type ProfileResponse struct {
	AuthUser
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
}

type AuthResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Token   string   `json:"token"`
	User    AuthUser `json:"user"`
}

type MeResponse struct {
	Success bool            `json:"success"`
	User    ProfileResponse `json:"user"`
}

func issueToken(userID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseTokenSubject(tokenString string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
