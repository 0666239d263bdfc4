package routes

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"funcaptchaclient/core"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusSuppressed = "suppressed"
	StatusSolved     = "solved"
	StatusError      = "error"
)

type Request struct {
	TaskID string `json:"task_id"`
	Token  string `json:"token"`
	Index  *int   `json:"index"`
}

// Starter opens a session for a composite token; core.StartChallenge in
// production.
type Starter func(ctx context.Context, token string) (*core.Session, error)

type Task struct {
	mu sync.Mutex

	ID          string
	Status      string
	ErrorReason string
	GameType    string
	Session     *core.Session
	CreatedAt   time.Time
	ProcessTime float64
}

type Handler struct {
	Start   Starter
	Timeout time.Duration
	TTL     time.Duration

	tasks sync.Map
}

func NewHandler(start Starter, timeout, ttl time.Duration) *Handler {
	return &Handler{Start: start, Timeout: timeout, TTL: ttl}
}

func (h *Handler) Register(e *echo.Echo) {
	e.POST("/createTask", h.CreateTaskRoute)
	e.POST("/getTask", h.GetTaskRoute)
	e.POST("/submitTask", h.SubmitTaskRoute)
	e.GET("/preview/:id", h.PreviewRoute)
}

func (h *Handler) CreateTaskRoute(c echo.Context) error {
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, echo.MIMEApplicationJSON) {
		return c.JSON(http.StatusUnsupportedMediaType, map[string]interface{}{
			"success": false,
			"error":   "Unsupported Content-Type",
			"details": fmt.Sprintf("Expected 'Content-Type: application/json' but got '%s'", contentType),
		})
	}

	var req Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"success": false, "error": "invalid request"})
	}

	token, err := core.ParseToken(req.Token)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"success": false, "error": "invalid token"})
	}
	if token.Suppressed() {
		return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "status": StatusSuppressed})
	}

	task := &Task{
		ID:        strings.ReplaceAll(uuid.New().String(), "-", ""),
		Status:    StatusProcessing,
		CreatedAt: time.Now(),
	}
	h.tasks.Store(task.ID, task)

	go h.run(task, req.Token)

	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "task_id": task.ID})
}

func (h *Handler) run(task *Task, token string) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Recovered from panic in task %s: %v", task.ID, r)
			task.mu.Lock()
			task.Status = StatusError
			task.ErrorReason = "unexpected error"
			task.mu.Unlock()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), h.Timeout)
	defer cancel()

	start := time.Now()
	session, err := h.Start(ctx, token)
	duration := time.Since(start)

	task.mu.Lock()
	task.ProcessTime = duration.Seconds()
	if err != nil {
		task.Status = StatusError
		task.ErrorReason = errorReason(err)
	} else {
		task.Status = StatusReady
		task.Session = session
		if concise := session.ConciseChallenge(); concise != nil {
			task.GameType = concise.GameType
		}
	}
	logTask(task, "start", err, duration)
	task.mu.Unlock()
}

func (h *Handler) load(id string) (*Task, bool) {
	val, exists := h.tasks.Load(id)
	if !exists {
		return nil, false
	}
	return val.(*Task), true
}

func (h *Handler) GetTaskRoute(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"success": false, "error": "invalid request"})
	}

	task, exists := h.load(req.TaskID)
	if !exists {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"success": false, "error": "invalid task_id"})
	}

	task.mu.Lock()
	defer task.mu.Unlock()

	switch task.Status {
	case StatusReady:
		fc := task.Session.Funcaptcha()
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success":      true,
			"status":       task.Status,
			"game_type":    task.GameType,
			"image":        fc.Image,
			"instructions": fc.Instructions,
			"time":         math.Round(task.ProcessTime*100) / 100,
		})

	case StatusError:
		h.tasks.Delete(req.TaskID)
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": false,
			"status":  task.Status,
			"error":   task.ErrorReason,
		})

	case StatusProcessing:
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": false,
			"status":  task.Status,
		})

	default:
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "unknown task status",
		})
	}
}

func (h *Handler) SubmitTaskRoute(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil || req.Index == nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"success": false, "error": "invalid request"})
	}

	task, exists := h.load(req.TaskID)
	if !exists {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"success": false, "error": "invalid task_id"})
	}

	task.mu.Lock()
	defer task.mu.Unlock()

	if task.Status != StatusReady {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"success": false,
			"status":  task.Status,
			"error":   "task is not ready for an answer",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	start := time.Now()
	err := task.Session.SubmitAnswer(ctx, *req.Index)

	// a session answers once, whatever the outcome
	h.tasks.Delete(req.TaskID)

	if err != nil {
		task.Status = StatusError
		task.ErrorReason = errorReason(err)
		logTask(task, "submit", err, time.Since(start))
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": false,
			"status":  task.Status,
			"error":   task.ErrorReason,
		})
	}

	task.Status = StatusSolved
	logTask(task, "submit", nil, time.Since(start))
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "status": task.Status})
}

const previewPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Challenge %s</title></head>
<body>
<p>%s</p>
<img src="%s" alt="challenge">
</body>
</html>
`

func (h *Handler) PreviewRoute(c echo.Context) error {
	task, exists := h.load(c.Param("id"))
	if !exists {
		return c.String(http.StatusNotFound, "unknown task")
	}

	task.mu.Lock()
	defer task.mu.Unlock()

	if task.Status != StatusReady {
		return c.String(http.StatusConflict, "task is "+task.Status)
	}

	fc := task.Session.Funcaptcha()
	page := fmt.Sprintf(previewPage,
		html.EscapeString(task.ID),
		html.EscapeString(fc.Instructions),
		html.EscapeString(fc.Image))

	return c.HTML(http.StatusOK, page)
}

// Sweep drops tasks older than the TTL and returns how many went.
func (h *Handler) Sweep(now time.Time) int {
	removed := 0
	h.tasks.Range(func(key, value interface{}) bool {
		task := value.(*Task)
		if now.Sub(task.CreatedAt) > h.TTL {
			h.tasks.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

func (h *Handler) StartSweeper(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if removed := h.Sweep(now); removed > 0 {
					log.Debugf("swept %d expired tasks", removed)
				}
			}
		}
	}()
}

func errorReason(err error) string {
	var status *core.RemoteStatusError
	var transport *core.TransportError
	var submitErr *core.SubmitError
	var incorrect *core.IncorrectGuessError

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout reached - proxy / funcaptcha network issue"
	case errors.Is(err, core.ErrNoImage):
		return "challenge has no media"
	case errors.Is(err, core.ErrSessionConsumed):
		return "task already answered"
	case errors.As(err, &incorrect):
		return "incorrect guess"
	case errors.As(err, &submitErr):
		return "funcaptcha error - " + submitErr.Message
	case errors.As(err, &status):
		return fmt.Sprintf("bad response code %d from %s", status.Status, status.Endpoint)
	case errors.As(err, &transport):
		return "proxy error"
	default:
		return "internal error"
	}
}

func logTask(task *Task, step string, err error, duration time.Duration) {
	entry := log.WithFields(log.Fields{
		"task":   task.ID,
		"step":   step,
		"status": task.Status,
		"game":   task.GameType,
		"time":   fmt.Sprintf("%.2fs", duration.Seconds()),
	})
	if err != nil {
		entry.WithError(err).Warn("funcaptcha task failed")
		return
	}
	entry.Info("funcaptcha task done")
}
