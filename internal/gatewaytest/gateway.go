// Package gatewaytest provides an in-process REST gateway implementing
// the portal's backend contract for tests: real token minting and
// verification, form-encoded login, multipart application submission
// and the backend's error body shapes, over in-memory stores.
package gatewaytest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/recruitport/recruitport-go/internal/model"
)

const tokenTTL = 30 * time.Minute

type storedUser struct {
	model.User
	hash string
}

// Gateway is an http.Handler implementing the REST contract. Wrap it
// in an httptest.Server and point the client at the server URL.
type Gateway struct {
	secret string
	router chi.Router

	mu            sync.Mutex
	users         map[string]*storedUser // keyed by email
	jobs          []*model.Job
	apps          []*model.Application
	resumes       map[string][]byte // keyed by resume file ID
	notifications []*model.Notification
	forced401     bool
}

// New creates an empty Gateway.
func New() *Gateway {
	g := &Gateway{
		secret:  "gatewaytest-secret",
		users:   make(map[string]*storedUser),
		resumes: make(map[string][]byte),
	}

	r := chi.NewRouter()
	r.Post("/auth/login", g.handleLogin)
	r.Post("/auth/register", g.handleRegister)

	r.Group(func(r chi.Router) {
		r.Use(g.requireAuth)
		r.Get("/users/me", g.handleMe)
		r.Get("/jobs", g.handleListJobs)
		r.Post("/jobs", g.handleCreateJob)
		r.Delete("/jobs/{id}", g.handleDeleteJob)
		r.Post("/applications", g.handleSubmitApplication)
		r.Get("/applications/me", g.handleMyApplications)
		r.Get("/applications", g.handleJobApplications)
		r.Patch("/applications/{id}", g.handleSetApplicationStatus)
		r.Get("/applications/{id}/resume", g.handleResume)
		r.Get("/notifications", g.handleListNotifications)
		r.Patch("/notifications/{id}/read", g.handleMarkRead)
		r.Post("/notifications/admin/broadcast", g.handleBroadcast)
	})
	g.router = r
	return g
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.router.ServeHTTP(w, r)
}

// ForceUnauthorized makes every authenticated route answer 401, to
// simulate an expired session server side.
func (g *Gateway) ForceUnauthorized(v bool) {
	g.mu.Lock()
	g.forced401 = v
	g.mu.Unlock()
}

// SeedUser registers a user directly, bypassing the register endpoint.
func (g *Gateway) SeedUser(email, password string, role model.Role) model.User {
	hash, err := hashPassword(password)
	if err != nil {
		panic(err)
	}
	u := model.User{ID: uuid.NewString(), Email: email, Role: role, IsActive: true}

	g.mu.Lock()
	g.users[email] = &storedUser{User: u, hash: hash}
	g.mu.Unlock()
	return u
}

// SeedJob inserts a job posting directly.
func (g *Gateway) SeedJob(recruiterID, title, location string) model.Job {
	job := model.Job{
		ID:          uuid.NewString(),
		RecruiterID: recruiterID,
		Title:       title,
		Description: title,
		Location:    location,
		Status:      model.JobActive,
		CreatedAt:   time.Now().UTC(),
	}
	g.mu.Lock()
	g.jobs = append(g.jobs, &job)
	g.mu.Unlock()
	return job
}

// SeedNotification inserts a notification for a user directly.
func (g *Gateway) SeedNotification(userID, message string, kind model.NotificationKind, read bool) model.Notification {
	n := model.Notification{
		ID:         uuid.NewString(),
		UserID:     userID,
		Message:    message,
		Kind:       kind,
		ReadStatus: read,
		CreatedAt:  time.Now().UTC(),
	}
	g.mu.Lock()
	g.notifications = append(g.notifications, &n)
	g.mu.Unlock()
	return n
}

// Notification returns the server-side copy of a notification.
func (g *Gateway) Notification(id string) (model.Notification, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, n := range g.notifications {
		if n.ID == id {
			return *n, true
		}
	}
	return model.Notification{}, false
}

// MintToken signs a credential for u, valid for ttl. Tests use it to
// craft expired or about-to-expire credentials.
func (g *Gateway) MintToken(u model.User, ttl time.Duration) string {
	token, err := mintToken(u, g.secret, ttl)
	if err != nil {
		panic(err)
	}
	return token
}

type ctxKey string

const userKey ctxKey = "user"

func (g *Gateway) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		forced := g.forced401
		g.mu.Unlock()
		if forced {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		authHeader := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || token == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		claims, err := verifyToken(token, g.secret)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		g.mu.Lock()
		su, ok := g.users[claims.Subject]
		g.mu.Unlock()
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		ctx := context.WithValue(r.Context(), userKey, su.User)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(r *http.Request) model.User {
	u, _ := r.Context().Value(userKey).(model.User)
	return u
}

func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid form body")
		return
	}
	email := r.PostFormValue("username")
	password := r.PostFormValue("password")

	g.mu.Lock()
	su, ok := g.users[email]
	g.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	match, err := verifyPassword(password, su.hash)
	if err != nil || !match {
		writeDetail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := mintToken(su.User, g.secret, tokenTTL)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "token mint failed")
		return
	}
	writeJSON(w, http.StatusOK, model.AuthResponse{AccessToken: token, TokenType: "bearer"})
}

func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Field-level validation errors use the backend's structured shape.
	if req.Email == "" {
		writeValidation(w, "email", "field required")
		return
	}
	if req.Password == "" {
		writeValidation(w, "password", "field required")
		return
	}
	if !req.Role.Valid() {
		writeValidation(w, "role", "value is not a valid enumeration member")
		return
	}

	g.mu.Lock()
	_, exists := g.users[req.Email]
	g.mu.Unlock()
	if exists {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}

	u := g.SeedUser(req.Email, req.Password, req.Role)
	writeJSON(w, http.StatusCreated, u)
}

func (g *Gateway) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

func (g *Gateway) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("q"))
	limit := intQuery(r, "limit", 10)
	offset := intQuery(r, "offset", 0)

	g.mu.Lock()
	defer g.mu.Unlock()

	matched := make([]model.Job, 0)
	for _, job := range g.jobs {
		if q != "" &&
			!strings.Contains(strings.ToLower(job.Title), q) &&
			!strings.Contains(strings.ToLower(job.Location), q) {
			continue
		}
		matched = append(matched, *job)
	}

	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	writeJSON(w, http.StatusOK, matched[offset:end])
}

func (g *Gateway) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	if u.Role != model.RoleRecruiter {
		writeDetail(w, http.StatusForbidden, "Recruiter role required")
		return
	}

	var req model.JobCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		writeValidation(w, "title", "field required")
		return
	}

	job := model.Job{
		ID:          uuid.NewString(),
		RecruiterID: u.ID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		SalaryRange: req.SalaryRange,
		Status:      model.JobActive,
		CreatedAt:   time.Now().UTC(),
	}
	g.mu.Lock()
	g.jobs = append(g.jobs, &job)
	g.mu.Unlock()
	writeJSON(w, http.StatusCreated, job)
}

func (g *Gateway) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	if u.Role != model.RoleRecruiter {
		writeDetail(w, http.StatusForbidden, "Recruiter role required")
		return
	}
	id := chi.URLParam(r, "id")

	g.mu.Lock()
	defer g.mu.Unlock()
	for i, job := range g.jobs {
		if job.ID == id {
			g.jobs = slices.Delete(g.jobs, i, i+1)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Job not found")
}

func (g *Gateway) handleSubmitApplication(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	if u.Role != model.RoleCandidate {
		writeDetail(w, http.StatusForbidden, "Candidate role required")
		return
	}

	if err := r.ParseMultipartForm(16 << 20); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	jobID := r.FormValue("job_id")
	if jobID == "" {
		writeValidation(w, "job_id", "field required")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeValidation(w, "file", "field required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "unreadable file")
		return
	}

	app := model.Application{
		ID:           uuid.NewString(),
		JobID:        jobID,
		CandidateID:  u.ID,
		Status:       model.AppPending,
		ResumeFileID: uuid.NewString(),
		AppliedAt:    time.Now().UTC(),
	}
	g.mu.Lock()
	g.apps = append(g.apps, &app)
	g.resumes[app.ResumeFileID] = data
	g.mu.Unlock()
	writeJSON(w, http.StatusCreated, app)
}

func (g *Gateway) handleMyApplications(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]model.Application, 0)
	for _, app := range g.apps {
		if app.CandidateID == u.ID {
			out = append(out, *app)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (g *Gateway) handleJobApplications(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]model.Application, 0)
	for _, app := range g.apps {
		if jobID == "" || app.JobID == jobID {
			out = append(out, *app)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (g *Gateway) handleSetApplicationStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Status model.ApplicationStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		writeValidation(w, "status", "value is not a valid enumeration member")
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, app := range g.apps {
		if app.ID == id {
			app.Status = req.Status
			writeJSON(w, http.StatusOK, *app)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Application not found")
}

func (g *Gateway) handleResume(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, app := range g.apps {
		if app.ID == id {
			data, ok := g.resumes[app.ResumeFileID]
			if !ok {
				break
			}
			w.Header().Set("Content-Type", "application/pdf")
			w.WriteHeader(http.StatusOK)
			w.Write(data)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Resume not found")
}

func (g *Gateway) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]model.Notification, 0)
	for _, n := range g.notifications {
		if n.UserID == u.ID {
			out = append(out, *n)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (g *Gateway) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, n := range g.notifications {
		if n.ID == id {
			n.ReadStatus = true
			writeJSON(w, http.StatusOK, *n)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Notification not found")
}

func (g *Gateway) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	if u.Role != model.RoleAdmin {
		writeDetail(w, http.StatusForbidden, "Admin role required")
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeValidation(w, "message", "field required")
		return
	}

	g.mu.Lock()
	count := 0
	for _, su := range g.users {
		g.notifications = append(g.notifications, &model.Notification{
			ID:        uuid.NewString(),
			UserID:    su.ID,
			Message:   req.Message,
			Kind:      model.NotifySystem,
			CreatedAt: time.Now().UTC(),
		})
		count++
	}
	g.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]int{"delivered": count})
}

func intQuery(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDetail mirrors the backend's plain-string error body.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeValidation mirrors the backend's structured 422 body.
func writeValidation(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]any{
			{"loc": []any{"body", field}, "msg": msg, "type": "value_error"},
		},
	})
}
