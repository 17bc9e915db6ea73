package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/dietafit/backend/internal/auth"
	"github.com/dietafit/backend/internal/middleware"
	"github.com/dietafit/backend/internal/telemetry/metrics"
	"github.com/dietafit/backend/internal/telemetry/tracing"
	"github.com/dietafit/backend/pkg"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=users_test

type userDirectory interface {
	Register(ctx context.Context, name, email, password string) (*User, error)
	Get(ctx context.Context, id string) (*User, error)
	Update(ctx context.Context, user *User) error
	ValidateCredentials(ctx context.Context, email, password string) (*User, error)
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	SetProfile(ctx context.Context, userID string, profile Profile) (*Profile, error)
}

type sessionService interface {
	Login(ctx context.Context, userID string, createdAt time.Time) (string, error)
	Logout(ctx context.Context, token string) error
}

type Handler struct {
	directory userDirectory
	sessions  sessionService
	metrics   *metrics.Manager
}

func NewHandler(
	directory userDirectory,
	sessions sessionService,
	metrics *metrics.Manager,
) *Handler {
	return &Handler{
		directory: directory,
		sessions:  sessions,
		metrics:   metrics,
	}
}

func (handler *Handler) SetupAuthRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	loginAllowedPerMin int,
	metricsManager *metrics.Manager,
) {
	authSubrouter := mainRouter.PathPrefix("/a").Subrouter()
	authSubrouter.
		HandleFunc("/register", handler.HandleRegister).
		Methods("POST", "OPTIONS").Name("register")
	authSubrouter.
		HandleFunc("/login", handler.HandleLogin).
		Methods("POST", "OPTIONS").Name("login")
	authSubrouter.
		HandleFunc("/logout", handler.HandleLogout).
		Methods("GET", "OPTIONS").Name("logout")

	// rate limit the auth endpoints to prevent abuse
	authSubrouter.Use(middleware.RateLimit(rateLimiter, "auth", loginAllowedPerMin, metricsManager))
	authSubrouter.Use(middleware.Cors())
}

func (handler *Handler) SetupAccountRoutes(mainRouter *mux.Router) {
	mainRouter.HandleFunc("/users/me", handler.HandleMe).
		Methods("GET", "OPTIONS").Name("me")
	mainRouter.HandleFunc("/users/me", handler.HandleUpdateMe).
		Methods("PUT", "OPTIONS").Name("update-me")
	mainRouter.HandleFunc("/users/me/profile", handler.HandleGetProfile).
		Methods("GET", "OPTIONS").Name("get-profile")
	mainRouter.HandleFunc("/users/me/profile", handler.HandleSetProfile).
		Methods("PUT", "POST", "OPTIONS").Name("set-profile")
	mainRouter.HandleFunc("/users/me/profile/summary", handler.HandleProfileSummary).
		Methods("GET", "OPTIONS").Name("profile-summary")
}

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func readCredentials(r *http.Request) (credentialsRequest, error) {
	var creds credentialsRequest
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			return credentialsRequest{}, fmt.Errorf("unmarshal json params: %w", err)
		}
		return creds, nil
	}

	if err := r.ParseForm(); err != nil {
		return credentialsRequest{}, fmt.Errorf("parse form error: %w", err)
	}
	return credentialsRequest{
		Name:     r.Form.Get("name"),
		Email:    r.Form.Get("email"),
		Password: r.Form.Get("password"),
	}, nil
}

func (handler *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "usersHandler.register")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	creds, err := readCredentials(r)
	if err != nil {
		log.Errorf("register failed: %s", err)
		http.Error(w, "register failed", http.StatusBadRequest)
		return
	}

	if creds.Name == "" {
		http.Error(w, "error, name empty", http.StatusBadRequest)
		return
	}
	if creds.Email == "" || !strings.Contains(creds.Email, "@") {
		http.Error(w, "error, email invalid", http.StatusBadRequest)
		return
	}
	if len(creds.Password) < 8 {
		http.Error(w, "error, password too short", http.StatusBadRequest)
		return
	}

	user, err := handler.directory.Register(ctx, creds.Name, creds.Email, creds.Password)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			http.Error(w, "error, email already in use", http.StatusConflict)
			return
		}
		log.Errorf("register user failed: %s", err)
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterRegisteredUsers.Inc()

	token, err := handler.sessions.Login(ctx, user.ID, time.Now())
	if err != nil {
		log.Errorf("register: create session for %s failed: %s", user.ID, err)
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}

	userJson, err := json.Marshal(user.View())
	if err != nil {
		log.Errorf("register: marshal user error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.Tracef("new user registered: %s", user.ID)
	resJson := fmt.Sprintf(`{"user": %s, "token": "%s"}`, userJson, token)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, []byte(resJson), http.StatusCreated)
}

func (handler *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "usersHandler.login")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	creds, err := readCredentials(r)
	if err != nil {
		log.Errorf("login failed: %s", err)
		http.Error(w, "login failed", http.StatusBadRequest)
		return
	}

	if creds.Email == "" {
		http.Error(w, "error, email empty", http.StatusBadRequest)
		return
	}
	if creds.Password == "" {
		http.Error(w, "error, password empty", http.StatusBadRequest)
		return
	}

	user, err := handler.directory.ValidateCredentials(ctx, creds.Email, creds.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			log.Tracef("failed login attempt for: %s", creds.Email)
			http.Error(w, "error, wrong credentials", http.StatusBadRequest)
			return
		}
		log.Errorf("login failed: %s", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	token, err := handler.sessions.Login(ctx, user.ID, time.Now())
	if err != nil {
		log.Errorf("login failed, generate token error: %s", err)
		http.Error(w, "generate token error", http.StatusInternalServerError)
		return
	}

	log.Tracef("new login success: %s", user.ID)
	pkg.WriteJSONResponseOK(w, fmt.Sprintf(`{"token": "%s"}`, token))
}

func (handler *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "usersHandler.logout")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "GET, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	authToken := r.Header.Get("X-DIETAFIT-TOKEN")
	if authToken == "" {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	if err := handler.sessions.Logout(ctx, authToken); err != nil {
		log.Tracef("[failed logout] => %s: %s", r.URL.Path, err)
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	log.Printf("logout for [%s] success", authToken)
	pkg.WriteTextResponseOK(w, "logged-out")
}

func (handler *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "usersHandler.me")
	defer span.End()

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	user, err := handler.directory.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		log.Errorf("get user %s: %s", userID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	userJson, err := json.Marshal(user.View())
	if err != nil {
		log.Errorf("marshal user error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, userJson)
}

func (handler *Handler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "usersHandler.updateMe")
	defer span.End()

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	var updateReq struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateReq); err != nil {
		log.Errorf("update user, unmarshal json params: %s", err)
		http.Error(w, "update failed", http.StatusBadRequest)
		return
	}
	if updateReq.Name == "" {
		http.Error(w, "error, name empty", http.StatusBadRequest)
		return
	}

	user, err := handler.directory.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		log.Errorf("get user %s: %s", userID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	user.Name = updateReq.Name
	if updateReq.Password != "" {
		if len(updateReq.Password) < 8 {
			http.Error(w, "error, password too short", http.StatusBadRequest)
			return
		}
		passwordHash, err := pkg.HashPassword(updateReq.Password)
		if err != nil {
			log.Errorf("hash new password for %s: %s", userID, err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		user.PasswordHash = passwordHash
	}

	if err := handler.directory.Update(ctx, user); err != nil {
		log.Errorf("update user %s: %s", userID, err)
		http.Error(w, "update failed", http.StatusInternalServerError)
		return
	}

	userJson, err := json.Marshal(user.View())
	if err != nil {
		log.Errorf("marshal user error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, userJson)
}

func (handler *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "usersHandler.getProfile")
	defer span.End()

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	profile, err := handler.directory.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			http.Error(w, "profile not set", http.StatusNotFound)
			return
		}
		log.Errorf("get profile of %s: %s", userID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	profileJson, err := json.Marshal(profile)
	if err != nil {
		log.Errorf("marshal profile error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, profileJson)
}

func (handler *Handler) HandleSetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "usersHandler.setProfile")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "PUT, POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var profile Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		log.Errorf("set profile, unmarshal json params: %s", err)
		http.Error(w, "set profile failed", http.StatusBadRequest)
		return
	}

	if err := profile.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}

	saved, err := handler.directory.SetProfile(ctx, userID, profile)
	if err != nil {
		log.Errorf("set profile of %s: %s", userID, err)
		http.Error(w, "set profile failed", http.StatusInternalServerError)
		return
	}

	savedJson, err := json.Marshal(saved)
	if err != nil {
		log.Errorf("marshal profile error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, savedJson)
}

// ProfileSummary is derived, never stored.
type ProfileSummary struct {
	BMI           float64 `json:"bmi"`
	BMIClass      string  `json:"bmiClass"`
	BMR           float64 `json:"bmr"`
	DailyCalories float64 `json:"dailyCalories"`
}

func (handler *Handler) HandleProfileSummary(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "usersHandler.profileSummary")
	defer span.End()

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	profile, err := handler.directory.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			http.Error(w, "profile not set", http.StatusNotFound)
			return
		}
		log.Errorf("get profile of %s: %s", userID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	bmi := profile.BMI(profile.WeightKG)
	summary := ProfileSummary{
		BMI:           bmi,
		BMIClass:      BMIClass(bmi),
		BMR:           profile.BMR(),
		DailyCalories: profile.DailyCalories(),
	}

	summaryJson, err := json.Marshal(summary)
	if err != nil {
		log.Errorf("marshal profile summary error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, summaryJson)
}
