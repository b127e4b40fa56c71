package session

import (
	"context"
	"fmt"
	"sort"

	"github.com/abhisek/trainer/internal/store"
)

// Summary aggregates a session's history.
type Summary struct {
	SessionID int             `json:"session_id"`
	Name      string          `json:"name"`
	Tasks     int             `json:"tasks"`
	Attempts  int             `json:"attempts"`
	Correct   int             `json:"correct"`
	Accuracy  float64         `json:"accuracy"`
	Points    int             `json:"points"`
	Target    int             `json:"target"`
	Finished  bool            `json:"finished"`
	Modules   []ModuleSummary `json:"modules"`
}

// ModuleSummary is the per-module part of a Summary.
type ModuleSummary struct {
	ModuleID int     `json:"module_id"`
	Name     string  `json:"name"`
	Tasks    int     `json:"tasks"`
	Attempts int     `json:"attempts"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// BuildSummary reads a session's tasks and attempts from st.
func BuildSummary(ctx context.Context, st *store.Store, id int) (*Summary, error) {
	sess, err := st.Sessions().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session %d: %w", id, ErrSessionNotFound)
	}
	tasks, err := st.Tasks().ListBySession(ctx, id)
	if err != nil {
		return nil, err
	}
	attempts, err := st.Tasks().ListSessionAttempts(ctx, id)
	if err != nil {
		return nil, err
	}
	mods, err := st.Modules().List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int]string, len(mods))
	for _, m := range mods {
		names[m.ID] = m.Name
	}

	sum := &Summary{
		SessionID: sess.ID,
		Name:      sess.Name,
		Tasks:     len(tasks),
		Attempts:  len(attempts),
		Points:    sess.Points,
		Target:    sess.Target,
		Finished:  sess.Points >= sess.Target,
	}

	byModule := make(map[int]*ModuleSummary)
	taskModule := make(map[int]int, len(tasks))
	for _, t := range tasks {
		taskModule[t.ID] = t.ModuleID
		ms := byModule[t.ModuleID]
		if ms == nil {
			ms = &ModuleSummary{ModuleID: t.ModuleID, Name: names[t.ModuleID]}
			byModule[t.ModuleID] = ms
		}
		ms.Tasks++
	}
	for _, a := range attempts {
		ms := byModule[taskModule[a.TaskID]]
		if ms == nil {
			continue
		}
		ms.Attempts++
		if a.Judgement {
			ms.Correct++
			sum.Correct++
		}
	}

	sum.Accuracy = ratio(sum.Correct, sum.Attempts)
	for _, ms := range byModule {
		ms.Accuracy = ratio(ms.Correct, ms.Attempts)
		sum.Modules = append(sum.Modules, *ms)
	}
	sort.Slice(sum.Modules, func(i, j int) bool { return sum.Modules[i].ModuleID < sum.Modules[j].ModuleID })
	return sum, nil
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
