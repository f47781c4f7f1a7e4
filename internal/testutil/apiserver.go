package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"taskdash/backend"
)

// Seeded accounts available on every APIServer.
const (
	UserName      = "alice"
	AdminName     = "admin"
	TestPassword  = "password1"
	UserFullName  = "Alice Example"
	AdminFullName = "Ada Admin"
)

// RecordedRequest is one request seen by the fake API.
type RecordedRequest struct {
	Method    string
	Path      string
	Auth      string
	RequestID string
	Body      string
}

type apiUser struct {
	password string
	profile  backend.Profile
	roles    []string
}

// APIServer is an in-memory task API speaking the same JSON as the real service.
type APIServer struct {
	*httptest.Server

	mu       sync.Mutex
	tasks    []backend.Task
	users    map[string]*apiUser
	tokens   map[string]string // token -> username
	requests []RecordedRequest
	delay    time.Duration
	override func(w http.ResponseWriter, r *http.Request) bool
	now      func() time.Time
}

// NewAPIServer starts a fake API with the alice (USER) and admin (ADMIN)
// accounts. The server is closed when the test ends.
func NewAPIServer(t *testing.T) *APIServer {
	t.Helper()

	s := &APIServer{
		users:  make(map[string]*apiUser),
		tokens: make(map[string]string),
		now:    time.Now,
	}
	s.AddUser(UserName, TestPassword, UserFullName, "USER")
	s.AddUser(AdminName, TestPassword, AdminFullName, "USER", "ADMIN")
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// AddUser registers an account.
func (s *APIServer) AddUser(username, password, name string, roles ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = &apiUser{
		password: password,
		profile:  backend.Profile{Name: name, Email: username + "@example.com", Username: username},
		roles:    roles,
	}
}

// IssueToken returns a valid credential for username without a login round-trip.
func (s *APIServer) IssueToken(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := "tok-" + uuid.NewString()
	s.tokens[token] = username
	return token
}

// RevokeAll invalidates every issued credential.
func (s *APIServer) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]string)
}

// SetDelay makes every response wait d first.
func (s *APIServer) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// SetOverride installs a hook that runs before routing. Returning true means
// the hook wrote the response.
func (s *APIServer) SetOverride(fn func(w http.ResponseWriter, r *http.Request) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = fn
}

// Seed stores tasks as-is, assigning ids to those without one.
func (s *APIServer) Seed(tasks ...backend.Task) []backend.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]backend.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			t.ID = NewObjectID(s.now())
		}
		s.tasks = append(s.tasks, t)
		out = append(out, t)
	}
	return out
}

// Tasks returns a copy of the stored tasks.
func (s *APIServer) Tasks() []backend.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.Task(nil), s.tasks...)
}

// Requests returns a copy of the request log.
func (s *APIServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// CountRequests returns how many requests matched method and path.
func (s *APIServer) CountRequests(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// NewObjectID returns a 24-hex-character id whose first 8 characters encode
// t as epoch seconds.
func NewObjectID(t time.Time) string {
	tail := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%08x%s", uint32(t.Unix()), tail[:16])
}

func (s *APIServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method:    r.Method,
		Path:      r.URL.Path,
		Auth:      r.Header.Get("Authorization"),
		RequestID: r.Header.Get("X-Request-ID"),
		Body:      string(body),
	})
	delay := s.delay
	override := s.override
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if override != nil && override(w, r) {
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/auth/login":
		s.login(w, body)
	case r.Method == http.MethodPost && r.URL.Path == "/auth/signup":
		s.signup(w, body)
	case strings.HasPrefix(r.URL.Path, "/api/tasks"):
		user, ok := s.authenticate(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		s.tasksRoute(w, r, user, body)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	}
}

func (s *APIServer) authenticate(r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.tokens[token]
	return user, ok
}

func (s *APIServer) authResult(username string) backend.AuthResult {
	u := s.users[username]
	token := "tok-" + uuid.NewString()
	s.tokens[token] = username
	profile := u.profile
	return backend.AuthResult{Token: token, Roles: append([]string(nil), u.roles...), User: &profile}
}

func (s *APIServer) login(w http.ResponseWriter, body []byte) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.Unmarshal(body, &req)

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[req.Username]
	if !ok || u.password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, s.authResult(req.Username))
}

func (s *APIServer) signup(w http.ResponseWriter, body []byte) {
	var req backend.SignupRequest
	_ = json.Unmarshal(body, &req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Username == "" || len(req.Password) < 8 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Username and a password of at least 8 characters are required"})
		return
	}
	if _, exists := s.users[req.Username]; exists {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Username already taken"})
		return
	}
	s.users[req.Username] = &apiUser{
		password: req.Password,
		profile:  backend.Profile{Name: req.Name, Email: req.Email, Username: req.Username},
		roles:    []string{"USER"},
	}
	writeJSON(w, http.StatusOK, s.authResult(req.Username))
}

func (s *APIServer) tasksRoute(w http.ResponseWriter, r *http.Request, username string, body []byte) {
	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/tasks"), "/")

	s.mu.Lock()
	defer s.mu.Unlock()
	admin := hasRole(s.users[username], "ADMIN")

	switch {
	case r.Method == http.MethodGet && id == "":
		visible := []backend.Task{}
		for _, t := range s.tasks {
			if admin || t.Owner == username || t.Assignee == username {
				visible = append(visible, t)
			}
		}
		writeJSON(w, http.StatusOK, visible)

	case r.Method == http.MethodPost && id == "":
		task, msg := s.decodeTask(body, nil)
		if msg != "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
			return
		}
		task.ID = NewObjectID(s.now())
		task.Owner = username
		s.tasks = append(s.tasks, task)
		writeJSON(w, http.StatusOK, task)

	case r.Method == http.MethodPut && id != "":
		idx := s.indexOf(id)
		if idx < 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Task not found"})
			return
		}
		task, msg := s.decodeTask(body, &s.tasks[idx])
		if msg != "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
			return
		}
		task.ID = id
		task.Owner = s.tasks[idx].Owner
		s.tasks[idx] = task
		writeJSON(w, http.StatusOK, task)

	case r.Method == http.MethodDelete && id != "":
		idx := s.indexOf(id)
		if idx < 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Task not found"})
			return
		}
		s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
		w.WriteHeader(http.StatusNoContent)

	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
	}
}

func (s *APIServer) indexOf(id string) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// decodeTask applies the service's normalisation and policy checks.
func (s *APIServer) decodeTask(body []byte, existing *backend.Task) (backend.Task, string) {
	var task backend.Task
	if err := json.Unmarshal(body, &task); err != nil {
		return task, "Malformed task"
	}
	task.Title = strings.TrimSpace(task.Title)
	task.Assignee = strings.TrimSpace(task.Assignee)
	task.Status = backend.ParseStatus(string(task.Status))
	task.Priority = backend.ParsePriority(string(task.Priority))
	task.CreatedAt = nil

	if task.Title == "" {
		return task, "Title is required"
	}
	if !task.Status.Valid() {
		return task, "Invalid status"
	}
	if !task.Priority.Valid() {
		return task, "Invalid priority"
	}
	if existing != nil && !existing.Status.CanTransition(task.Status) {
		return task, fmt.Sprintf("Invalid status transition %s -> %s", existing.Status, task.Status)
	}
	if task.DueDate != nil {
		now := s.now()
		startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if task.DueDate.Before(startOfToday) {
			return task, "Due date cannot be in the past"
		}
	}
	return task, ""
}

func hasRole(u *apiUser, role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.roles {
		if r == role {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
