package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"taskify/internal/models"

	"github.com/gofrs/uuid"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

// APIError carries a non-2xx response. Is lets callers match it against
// the sentinels above.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return target == ErrUnauthorized
	case http.StatusNotFound:
		return target == ErrNotFound
	case http.StatusBadRequest:
		return target == ErrInvalidInput
	case http.StatusConflict:
		return target == ErrConflict
	}
	return false
}

// TaskForm is the create/edit request body.
type TaskForm struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Category     string   `json:"category,omitempty"`
	Status       string   `json:"status,omitempty"`
	Priority     string   `json:"priority,omitempty"`
	DueDate      string   `json:"dueDate,omitempty"`
	ReminderDate string   `json:"reminderDate,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// FormFromTask prefills a form for editing an existing task.
func FormFromTask(t models.Task) TaskForm {
	form := TaskForm{
		Title:       t.Title,
		Description: t.Description,
		Category:    t.Category,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Tags:        append([]string(nil), t.Tags...),
	}
	if t.DueDate != nil {
		form.DueDate = t.DueDate.Format(time.RFC3339Nano)
	}
	if t.ReminderDate != nil {
		form.ReminderDate = t.ReminderDate.Format(time.RFC3339Nano)
	}
	return form
}

// TaskAPI is the remote task resource as seen by the controller.
type TaskAPI interface {
	List(ctx context.Context) ([]models.Task, error)
	Create(ctx context.Context, form TaskForm) (models.Task, error)
	Update(ctx context.Context, id uuid.UUID, form TaskForm) (models.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Toggle(ctx context.Context, id uuid.UUID) (models.Task, error)
}

type APIClient struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
}

// NewAPIClient talks to the service at baseURL (e.g. http://localhost:8080/api).
// A nil httpClient gets a client with a 15s timeout.
func NewAPIClient(baseURL string, session *Session, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if session == nil {
		session = &Session{}
	}
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		session:    session,
	}
}

func (c *APIClient) Session() *Session {
	return c.session
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session.Authenticated() {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		msg := eb.Message
		if msg == "" {
			msg = eb.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type authResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	Username     string `json:"username"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *APIClient) authenticate(ctx context.Context, path, username, password string) error {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, path, credentials{Username: username, Password: password}, &resp); err != nil {
		return err
	}
	*c.session = Session{Token: resp.Token, RefreshToken: resp.RefreshToken, Username: resp.Username}
	return nil
}

func (c *APIClient) Register(ctx context.Context, username, password string) error {
	return c.authenticate(ctx, "/auth/register", username, password)
}

func (c *APIClient) Login(ctx context.Context, username, password string) error {
	return c.authenticate(ctx, "/auth/login", username, password)
}

// Logout revokes the refresh token server side and always clears the
// local session, even when the revoke call fails.
func (c *APIClient) Logout(ctx context.Context) error {
	defer c.session.Clear()
	if c.session.RefreshToken == "" {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/auth/logout", map[string]string{"refreshToken": c.session.RefreshToken}, nil)
}

func (c *APIClient) List(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.do(ctx, http.MethodGet, "/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

func (c *APIClient) Create(ctx context.Context, form TaskForm) (models.Task, error) {
	var task models.Task
	err := c.do(ctx, http.MethodPost, "/tasks", form, &task)
	return task, err
}

func (c *APIClient) Update(ctx context.Context, id uuid.UUID, form TaskForm) (models.Task, error) {
	var task models.Task
	err := c.do(ctx, http.MethodPut, "/tasks/"+id.String(), form, &task)
	return task, err
}

func (c *APIClient) Delete(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+id.String(), nil, nil)
}

func (c *APIClient) Toggle(ctx context.Context, id uuid.UUID) (models.Task, error) {
	var task models.Task
	err := c.do(ctx, http.MethodPatch, "/tasks/"+id.String()+"/toggle", nil, &task)
	return task, err
}
