package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/abhisek/trainer/internal/module"
	"github.com/abhisek/trainer/internal/session"
	"github.com/abhisek/trainer/internal/store"
)

type settingView struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Default string `json:"default"`
}

type moduleView struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Version     string            `json:"version"`
	Settings    []settingView     `json:"settings"`
	Skills      map[string]string `json:"skills"`
}

type dataView struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

type configView struct {
	ID       int        `json:"id"`
	ModuleID int        `json:"module_id"`
	Name     string     `json:"name"`
	Data     []dataView `json:"data,omitempty"`
}

type sessionView struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	ConfigIDs  []int     `json:"config_ids"`
	Penalty    int       `json:"penalty"`
	Target     int       `json:"target"`
	Points     int       `json:"points"`
	Repeatable bool      `json:"repeatable"`
	Reset      bool      `json:"reset"`
	Finished   bool      `json:"finished"`
	CreatedAt  time.Time `json:"created_at"`
}

type taskView struct {
	ID         int      `json:"id"`
	Module     string   `json:"module"`
	Question   string   `json:"question"`
	State      string   `json:"state"`
	Skills     []string `json:"skills,omitempty"`
	UserAnswer string   `json:"user_answer,omitempty"`
	Correct    *bool    `json:"correct,omitempty"`
	// Answer is only revealed once the task is locked.
	Answer string `json:"answer,omitempty"`
}

type outcomeView struct {
	Correct  bool               `json:"correct"`
	Grade    float64            `json:"grade"`
	Scores   map[string]float64 `json:"scores,omitempty"`
	Points   int                `json:"points"`
	Target   int                `json:"target"`
	Finished bool               `json:"finished"`
	NextTask *taskView          `json:"next_task,omitempty"`
}

type attemptRequest struct {
	Answer string `json:"answer"`
}

type configUpdate struct {
	Values map[string]string `json:"values"`
}

func toSessionView(s *store.Session) sessionView {
	return sessionView{
		ID:         s.ID,
		Name:       s.Name,
		ConfigIDs:  s.ConfigIDs,
		Penalty:    s.Penalty,
		Target:     s.Target,
		Points:     s.Points,
		Repeatable: s.Repeatable,
		Reset:      s.Reset,
		Finished:   s.Points >= s.Target,
		CreatedAt:  s.CreatedAt,
	}
}

func toTaskView(t session.TaskInfo) *taskView {
	v := &taskView{
		ID:       t.ID,
		Module:   t.Module,
		Question: t.Question,
		State:    t.State.String(),
		Skills:   t.Skills,
		Answer:   t.Answer,
	}
	if t.Answered {
		v.UserAnswer = t.UserAnswer
		correct := t.Correct
		v.Correct = &correct
	}
	return v
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.st.DB().PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listModules(w http.ResponseWriter, r *http.Request) {
	out := []moduleView{}
	for _, m := range s.mods.All() {
		d := m.Descriptor()
		v := moduleView{ID: m.ID(), Name: d.Name, DisplayName: d.DisplayName, Version: d.Version, Skills: m.Skills()}
		for _, st := range d.Settings {
			v.Settings = append(v.Settings, settingView{Name: st.Name, Type: st.Type, Default: module.FormatValue(st.Default)})
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listConfigs(w http.ResponseWriter, r *http.Request) {
	var (
		configs []store.Config
		err     error
	)
	if q := r.URL.Query().Get("module"); q != "" {
		id, convErr := strconv.Atoi(q)
		if convErr != nil {
			s.respondError(w, r, badRequest("module must be an integer"))
			return
		}
		configs, err = s.st.Configs().ListByModule(r.Context(), id)
	} else {
		configs, err = s.st.Configs().List(r.Context())
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	out := make([]configView, 0, len(configs))
	for _, c := range configs {
		out = append(out, configView{ID: c.ID, ModuleID: c.ModuleID, Name: c.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	v, err := s.configView(r, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) configView(r *http.Request, id int) (*configView, error) {
	cfg, err := module.LoadConfig(r.Context(), s.st.Configs(), id)
	if err != nil {
		return nil, err
	}
	v := &configView{ID: cfg.ID, ModuleID: cfg.ModuleID, Name: cfg.Name}
	for _, d := range cfg.Data {
		v.Data = append(v.Data, dataView{Name: d.Name, Type: d.Type, Value: module.FormatValue(d.Value)})
	}
	return v, nil
}

func (s *Server) putConfig(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req configUpdate
	if err := decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	c, err := s.st.Configs().Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if c == nil {
		s.respondError(w, r, store.ErrNotFound)
		return
	}
	if err := module.SetValues(r.Context(), s.st.Configs(), id, req.Values); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.forgetAll()

	v, err := s.configView(r, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	rows, err := s.st.Sessions().List(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	out := make([]sessionView, 0, len(rows))
	for i := range rows {
		out = append(out, toSessionView(&rows[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	d := session.NewDraft()
	if err := decode(r, &d); err != nil {
		s.respondError(w, r, err)
		return
	}
	sess, err := s.editor.Create(r.Context(), d)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionView(sess))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sess, err := s.st.Sessions().Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if sess == nil {
		s.respondError(w, r, session.ErrSessionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toSessionView(sess))
}

func (s *Server) editSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var d session.Draft
	if err := decode(r, &d); err != nil {
		s.respondError(w, r, err)
		return
	}
	sess, err := s.editor.Edit(r.Context(), id, d)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.forget(id)
	writeJSON(w, http.StatusOK, toSessionView(sess))
}

func (s *Server) removeSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.editor.Remove(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.forget(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	m, err := s.manager(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	tasks := m.Snapshot()
	out := make([]*taskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskView(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	taskID, err := pathID(r, "taskID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req attemptRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	m, err := s.manager(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	out, err := m.Submit(r.Context(), taskID, req.Answer)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	v := outcomeView{
		Correct:  out.Judgment.Correct,
		Grade:    out.Judgment.Grade,
		Scores:   out.Judgment.Scores,
		Points:   out.Points,
		Target:   out.Target,
		Finished: out.Finished,
	}
	if out.Next != nil {
		v.NextTask = toTaskView(*out.Next)
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sum, err := session.BuildSummary(r.Context(), s.st, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
