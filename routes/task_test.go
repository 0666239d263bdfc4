package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"funcaptchaclient/core"

	fhttp "github.com/bogdanfinn/fhttp"
	"github.com/labstack/echo/v4"
)

type stubDoer struct {
	routes map[string]string
}

func (d stubDoer) Do(req *fhttp.Request) (*fhttp.Response, error) {
	body, ok := d.routes[req.Method+" "+req.URL.String()]
	if !ok {
		return nil, fmt.Errorf("unexpected request %s %s", req.Method, req.URL)
	}
	return &fhttp.Response{
		StatusCode: 200,
		Header:     fhttp.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}, nil
}

type stubEncrypter struct{}

func (stubEncrypter) Encrypt(plaintext, key string) (string, error) {
	return plaintext, nil
}

const challengeBody = `{
	"challengeID": "CID",
	"game_data": {
		"gameType": 4,
		"instruction_string": "pick",
		"customGUI": {"_challenge_imgs": ["https://x/1.png"]}
	},
	"string_table": {"4.instructions-pick": "Pick <b>one</b> & go"}
}`

func stubStarter(answer string) Starter {
	doer := stubDoer{routes: map[string]string{
		"POST " + core.APIURL + "/fc/a/":    "",
		"POST " + core.APIURL + "/fc/gfct/": challengeBody,
		"GET https://x/1.png":              "\xff\xd8",
		"POST " + core.APIURL + "/fc/ca/":   answer,
	}}
	return func(ctx context.Context, token string) (*core.Session, error) {
		return core.StartChallenge(ctx, token, core.WithClient(doer), core.WithEncrypter(stubEncrypter{}))
	}
}

func newTestServer(start Starter) (*echo.Echo, *Handler) {
	e := echo.New()
	h := NewHandler(start, 5*time.Second, time.Minute)
	h.Register(e)
	return e, h
}

func call(t *testing.T, e *echo.Echo, method, target, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s %s: bad json %q", method, target, rec.Body.String())
	}
	return rec.Code, out
}

func createTask(t *testing.T, e *echo.Echo, token string) string {
	t.Helper()
	code, out := call(t, e, http.MethodPost, "/createTask", fmt.Sprintf(`{"token":%q}`, token))
	if code != http.StatusOK || out["success"] != true {
		t.Fatalf("createTask = %d %v", code, out)
	}
	id, _ := out["task_id"].(string)
	if len(id) != 32 {
		t.Fatalf("task_id = %q", id)
	}
	return id
}

func waitTask(t *testing.T, e *echo.Echo, id string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_, out := call(t, e, http.MethodPost, "/getTask", fmt.Sprintf(`{"task_id":%q}`, id))
		if out["status"] != StatusProcessing {
			return out
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s never left processing", id)
	return nil
}

func TestCreateAndSolveTask(t *testing.T) {
	e, _ := newTestServer(stubStarter(`{"response":"answered","solved":true}`))

	id := createTask(t, e, "TKN|r=A|sid=SID")
	out := waitTask(t, e, id)
	if out["status"] != StatusReady {
		t.Fatalf("getTask = %v", out)
	}
	if out["image"] != "data:image/png;base64,/9g=" {
		t.Errorf("image = %v", out["image"])
	}
	if out["instructions"] != "Pick one & go" {
		t.Errorf("instructions = %v", out["instructions"])
	}
	if out["game_type"] != core.GameTypeImage {
		t.Errorf("game_type = %v", out["game_type"])
	}

	_, out = call(t, e, http.MethodPost, "/submitTask", fmt.Sprintf(`{"task_id":%q,"index":2}`, id))
	if out["success"] != true || out["status"] != StatusSolved {
		t.Fatalf("submitTask = %v", out)
	}

	code, out := call(t, e, http.MethodPost, "/submitTask", fmt.Sprintf(`{"task_id":%q,"index":2}`, id))
	if code != http.StatusBadRequest || out["error"] != "invalid task_id" {
		t.Errorf("second submit = %d %v", code, out)
	}
}

func TestSubmitTaskIncorrect(t *testing.T) {
	e, _ := newTestServer(stubStarter(`{"response":"not answered","solved":false,"incorrect_guess":"1"}`))

	id := createTask(t, e, "TKN|r=A")
	waitTask(t, e, id)

	_, out := call(t, e, http.MethodPost, "/submitTask", fmt.Sprintf(`{"task_id":%q,"index":0}`, id))
	if out["success"] != false || out["error"] != "incorrect guess" {
		t.Errorf("submitTask = %v", out)
	}
}

func TestCreateTaskSuppressed(t *testing.T) {
	started := false
	e, _ := newTestServer(func(ctx context.Context, token string) (*core.Session, error) {
		started = true
		return nil, errors.New("should not start")
	})

	code, out := call(t, e, http.MethodPost, "/createTask", `{"token":"TKN|r=A|sup=1"}`)
	if code != http.StatusOK || out["status"] != StatusSuppressed {
		t.Errorf("createTask = %d %v", code, out)
	}
	if _, ok := out["task_id"]; ok {
		t.Error("suppressed token should not create a task")
	}
	if started {
		t.Error("suppressed token should not start a session")
	}
}

func TestCreateTaskRejectsBadInput(t *testing.T) {
	e, _ := newTestServer(stubStarter(""))

	code, out := call(t, e, http.MethodPost, "/createTask", `{"token":"nopipes"}`)
	if code != http.StatusBadRequest || out["error"] != "invalid token" {
		t.Errorf("malformed token = %d %v", code, out)
	}

	req := httptest.NewRequest(http.MethodPost, "/createTask", strings.NewReader(`token=x`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("form body = %d", rec.Code)
	}
}

func TestTaskErrorReported(t *testing.T) {
	e, _ := newTestServer(func(ctx context.Context, token string) (*core.Session, error) {
		return nil, &core.RemoteStatusError{Endpoint: "https://x/fc/gfct/", Status: 403}
	})

	id := createTask(t, e, "TKN|r=A")
	out := waitTask(t, e, id)
	if out["status"] != StatusError || out["error"] != "bad response code 403 from https://x/fc/gfct/" {
		t.Fatalf("getTask = %v", out)
	}

	// errors are reported once
	code, _ := call(t, e, http.MethodPost, "/getTask", fmt.Sprintf(`{"task_id":%q}`, id))
	if code != http.StatusBadRequest {
		t.Errorf("second getTask = %d", code)
	}
}

func TestSubmitTaskNeedsIndex(t *testing.T) {
	e, _ := newTestServer(stubStarter(""))

	code, _ := call(t, e, http.MethodPost, "/submitTask", `{"task_id":"abc"}`)
	if code != http.StatusBadRequest {
		t.Errorf("missing index = %d", code)
	}
}

func TestPreviewEscapes(t *testing.T) {
	e, _ := newTestServer(stubStarter(""))

	id := createTask(t, e, "TKN|r=A")
	waitTask(t, e, id)

	req := httptest.NewRequest(http.MethodGet, "/preview/"+id, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("preview = %d", rec.Code)
	}
	page := rec.Body.String()
	if !strings.Contains(page, "<p>Pick one &amp; go</p>") {
		t.Errorf("instructions not escaped: %s", page)
	}
	if !strings.Contains(page, `src="data:image/png;base64,/9g="`) {
		t.Errorf("image missing: %s", page)
	}

	req = httptest.NewRequest(http.MethodGet, "/preview/missing", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown preview = %d", rec.Code)
	}
}

func TestSweep(t *testing.T) {
	_, h := newTestServer(stubStarter(""))

	now := time.Now()
	h.tasks.Store("old", &Task{ID: "old", Status: StatusReady, CreatedAt: now.Add(-2 * time.Minute)})
	h.tasks.Store("new", &Task{ID: "new", Status: StatusProcessing, CreatedAt: now})

	if removed := h.Sweep(now); removed != 1 {
		t.Errorf("removed = %d", removed)
	}
	if _, ok := h.load("old"); ok {
		t.Error("expired task survived")
	}
	if _, ok := h.load("new"); !ok {
		t.Error("fresh task was swept")
	}
}

func TestErrorReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, "timeout reached - proxy / funcaptcha network issue"},
		{&core.TransportError{Endpoint: "u", Err: context.DeadlineExceeded}, "timeout reached - proxy / funcaptcha network issue"},
		{&core.TransportError{Endpoint: "u", Err: errors.New("refused")}, "proxy error"},
		{core.ErrNoImage, "challenge has no media"},
		{core.ErrSessionConsumed, "task already answered"},
		{&core.SubmitError{Message: "DENIED"}, "funcaptcha error - DENIED"},
		{&core.IncorrectGuessError{Hint: "1"}, "incorrect guess"},
		{errors.New("boom"), "internal error"},
	}
	for _, c := range cases {
		if got := errorReason(c.err); got != c.want {
			t.Errorf("errorReason(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}
