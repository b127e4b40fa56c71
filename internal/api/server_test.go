package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/abhisek/trainer/internal/bootstrap"
	"github.com/abhisek/trainer/internal/module"
	"github.com/abhisek/trainer/internal/module/arith"
	"github.com/abhisek/trainer/internal/store"
)

func TestMain(m *testing.M) {
	// The LLM client stack pulls in opencensus, whose view worker starts in
	// an init func and never stops.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

type fixture struct {
	srv   *Server
	st    *store.Store
	cfgID int
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := module.NewRegistry()
	require.NoError(t, reg.Register(arith.Name, func(id int) (module.Module, error) {
		return arith.NewWithRand(id, rand.New(rand.NewPCG(1, 2))), nil
	}))
	res, err := bootstrap.Run(ctx, st, reg, zap.NewNop())
	require.NoError(t, err)

	mod := res.Modules.ByName(arith.Name)
	cfg, err := st.Configs().GetByName(ctx, mod.ID(), module.DefaultConfigName)
	require.NoError(t, err)

	return &fixture{
		srv:   New(st, res.Modules, Options{Log: zap.NewNop()}),
		st:    st,
		cfgID: cfg.ID,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (f *fixture) createSession(t *testing.T, body map[string]any) sessionView {
	t.Helper()
	var s sessionView
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/sessions", body, &s))
	return s
}

// solve computes the answer to an arithmetic question.
func solve(t *testing.T, question string) string {
	t.Helper()
	a, op, b, err := arith.ParseQuestion(question)
	require.NoError(t, err)
	if op == '+' {
		return strconv.Itoa(a + b)
	}
	return strconv.Itoa(a - b)
}

func TestHealth(t *testing.T) {
	f := setup(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestListModules(t *testing.T) {
	f := setup(t)
	var mods []moduleView
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/modules", nil, &mods))
	require.Len(t, mods, 1)
	assert.Equal(t, arith.Name, mods[0].Name)
	assert.Len(t, mods[0].Settings, 2)
	assert.NotEmpty(t, mods[0].Skills)
}

func TestConfigs(t *testing.T) {
	f := setup(t)

	var list []configView
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/configs?module=1", nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, module.DefaultConfigName, list[0].Name)

	path := fmt.Sprintf("/configs/%d", f.cfgID)
	var cfg configView
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, path, configUpdate{Values: map[string]string{arith.SettingMax: "12"}}, &cfg))
	var got string
	for _, d := range cfg.Data {
		if d.Name == arith.SettingMax {
			got = d.Value
		}
	}
	assert.Equal(t, "12", got)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, path, configUpdate{Values: map[string]string{arith.SettingMax: "big"}}, nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, path, configUpdate{Values: map[string]string{"Nope": "1"}}, nil))
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/configs/999", nil, nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/configs/abc", nil, nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/configs?module=x", nil, nil))
}

func TestPutConfigIsAllOrNothing(t *testing.T) {
	f := setup(t)
	path := fmt.Sprintf("/configs/%d", f.cfgID)

	var before configView
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, nil, &before))

	bad := configUpdate{Values: map[string]string{arith.SettingMax: "15", arith.SettingNegation: "maybe"}}
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, path, bad, nil))

	var after configView
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, nil, &after))
	assert.Equal(t, before.Data, after.Data)
}

func TestConcurrentFirstOpen(t *testing.T) {
	f := setup(t)
	s := f.createSession(t, map[string]any{"config_ids": []int{f.cfgID}, "target": 3})
	path := fmt.Sprintf("/sessions/%d/tasks", s.ID)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			f.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
	}
	wg.Wait()

	rows, err := f.st.Tasks().ListBySession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSessionLifecycle(t *testing.T) {
	f := setup(t)

	s := f.createSession(t, map[string]any{"config_ids": []int{f.cfgID}, "target": 3})
	assert.Equal(t, "Session 1", s.Name)
	assert.Equal(t, 3, s.Target)
	assert.Equal(t, 2, s.Penalty, "default penalty is kept when omitted")

	var list []sessionView
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/sessions", nil, &list))
	assert.Len(t, list, 1)

	var edited sessionView
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, fmt.Sprintf("/sessions/%d", s.ID),
		map[string]any{"name": "Drill", "config_ids": []int{f.cfgID}, "target": 5, "penalty": 1}, &edited))
	assert.Equal(t, "Drill", edited.Name)
	assert.Equal(t, 5, edited.Target)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, fmt.Sprintf("/sessions/%d", s.ID), nil, nil))
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, fmt.Sprintf("/sessions/%d", s.ID), nil, nil))
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, fmt.Sprintf("/sessions/%d", s.ID), nil, nil))
}

func TestCreateSessionInvalid(t *testing.T) {
	f := setup(t)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/sessions", map[string]any{"config_ids": []int{}}, nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/sessions", map[string]any{"config_ids": []int{f.cfgID}, "target": 1, "penalty": 3}, nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/sessions", map[string]any{"config_ids": []int{404}}, nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/sessions", map[string]any{"bogus": true}, nil))
}

func TestPlayThroughAPI(t *testing.T) {
	f := setup(t)
	s := f.createSession(t, map[string]any{"config_ids": []int{f.cfgID}, "target": 3})

	var tasks []*taskView
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, fmt.Sprintf("/sessions/%d/tasks", s.ID), nil, &tasks))
	require.Len(t, tasks, 1)
	task := tasks[0]
	assert.Equal(t, "awaiting", task.State)
	assert.Empty(t, task.Answer)

	attempts := func(id int) string { return fmt.Sprintf("/sessions/%d/tasks/%d/attempts", s.ID, id) }

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, attempts(task.ID), attemptRequest{Answer: ""}, nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, attempts(task.ID), attemptRequest{Answer: "abc"}, nil))
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, attempts(999), attemptRequest{Answer: "1"}, nil))

	var out outcomeView
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, attempts(task.ID), attemptRequest{Answer: solve(t, task.Question)}, &out))
	assert.True(t, out.Correct)
	assert.Equal(t, 1, out.Points)
	assert.False(t, out.Finished)
	require.NotNil(t, out.NextTask)

	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, attempts(task.ID), attemptRequest{Answer: "1"}, nil))

	for !out.Finished {
		next := out.NextTask
		require.NotNil(t, next)
		out = outcomeView{}
		require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, attempts(next.ID), attemptRequest{Answer: solve(t, next.Question)}, &out))
		assert.True(t, out.Correct)
	}
	assert.Equal(t, 3, out.Points)
	assert.Nil(t, out.NextTask)

	var after []*taskView
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, fmt.Sprintf("/sessions/%d/tasks", s.ID), nil, &after))
	require.Len(t, after, 3)
	assert.Equal(t, "locked", after[0].State)
	assert.Equal(t, solve(t, after[0].Question), after[0].Answer)
	require.NotNil(t, after[0].Correct)
	assert.True(t, *after[0].Correct)

	var sum struct {
		Attempts int     `json:"attempts"`
		Correct  int     `json:"correct"`
		Accuracy float64 `json:"accuracy"`
		Finished bool    `json:"finished"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, fmt.Sprintf("/sessions/%d/summary", s.ID), nil, &sum))
	assert.Equal(t, 3, sum.Attempts)
	assert.Equal(t, 3, sum.Correct)
	assert.InDelta(t, 1.0, sum.Accuracy, 1e-9)
	assert.True(t, sum.Finished)
}

func TestListTasksWhileAnswering(t *testing.T) {
	f := setup(t)
	s := f.createSession(t, map[string]any{"config_ids": []int{f.cfgID}, "target": 20})
	tasksPath := fmt.Sprintf("/sessions/%d/tasks", s.ID)

	var tasks []*taskView
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, tasksPath, nil, &tasks))
	require.Len(t, tasks, 1)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				rec := httptest.NewRecorder()
				f.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tasksPath, nil))
				assert.Equal(t, http.StatusOK, rec.Code)
			}
		}()
	}

	next := tasks[0]
	for range 10 {
		var out outcomeView
		path := fmt.Sprintf("/sessions/%d/tasks/%d/attempts", s.ID, next.ID)
		require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, path, attemptRequest{Answer: solve(t, next.Question)}, &out))
		require.NotNil(t, out.NextTask)
		next = out.NextTask
	}
	close(stop)
	wg.Wait()

	var after []*taskView
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, tasksPath, nil, &after))
	require.Len(t, after, 11)
	for _, v := range after[:10] {
		assert.Equal(t, "locked", v.State)
		assert.NotEmpty(t, v.Answer)
	}
	assert.Equal(t, "awaiting", after[10].State)
}

func TestUnknownSession(t *testing.T) {
	f := setup(t)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/sessions/42/tasks", nil, nil))
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/sessions/42/summary", nil, nil))
}

func TestListenAndServeStops(t *testing.T) {
	f := setup(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	f.srv.opts.Addr = addr
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	http.DefaultClient.CloseIdleConnections()
}
