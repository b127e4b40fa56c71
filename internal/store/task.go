package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

type taskRepo struct {
	s *Store
}

var (
	taskSelect    = []string{colTaskID, colModuleID, colSessionID, colConfigID, colQuestion, colTimestamp, colSkills}
	attemptSelect = []string{colAttemptID, colTaskID, colRunID, colUserAnswer, colJudgement, colGrade, colTimestamp}
	answerSelect  = []string{colAnswerID, colTaskID, colAnswer, colTimestamp}
)

func (r *taskRepo) Save(ctx context.Context, t *Task) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return r.s.insert(ctx, tableTasks, colTaskID, &t.ID,
		[]string{colModuleID, colSessionID, colConfigID, colQuestion, colTimestamp, colSkills},
		[]any{t.ModuleID, t.SessionID, t.ConfigID, t.Question, t.CreatedAt, strings.Join(t.Skills, ",")},
	)
}

func (r *taskRepo) Get(ctx context.Context, id int) (*Task, error) {
	b := r.s.builder()
	query, args := b.Select(taskSelect...).
		From(b.Table(tableTasks)).
		Where(entsql.EQ(colTaskID, id)).
		Query()

	t, err := scanTask(r.s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

func (r *taskRepo) ListBySession(ctx context.Context, sessionID int) ([]Task, error) {
	b := r.s.builder()
	query, args := b.Select(taskSelect...).
		From(b.Table(tableTasks)).
		Where(entsql.EQ(colSessionID, sessionID)).
		OrderBy(colTimestamp, colTaskID).
		Query()

	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTask(row interface{ Scan(...any) error }) (*Task, error) {
	var (
		t      Task
		skills string
	)
	if err := row.Scan(&t.ID, &t.ModuleID, &t.SessionID, &t.ConfigID, &t.Question, &t.CreatedAt, &skills); err != nil {
		return nil, err
	}
	if skills != "" {
		t.Skills = strings.Split(skills, ",")
	}
	return &t, nil
}

func (r *taskRepo) Remove(ctx context.Context, id int) error {
	err := r.s.withTx(ctx, func(tx *sql.Tx) error {
		return r.s.removeTask(ctx, tx, id)
	})
	if err != nil {
		return fmt.Errorf("remove task %d: %w", id, err)
	}
	return nil
}

func (r *taskRepo) SaveAnswer(ctx context.Context, a *Answer) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return r.s.insert(ctx, tableAnswers, colAnswerID, &a.ID,
		[]string{colTaskID, colAnswer, colTimestamp},
		[]any{a.TaskID, a.Answer, a.CreatedAt},
	)
}

func (r *taskRepo) ListAnswers(ctx context.Context, taskID int) ([]Answer, error) {
	b := r.s.builder()
	query, args := b.Select(answerSelect...).
		From(b.Table(tableAnswers)).
		Where(entsql.EQ(colTaskID, taskID)).
		OrderBy(colTimestamp, colAnswerID).
		Query()

	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var out []Answer
	for rows.Next() {
		var a Answer
		if err := rows.Scan(&a.ID, &a.TaskID, &a.Answer, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *taskRepo) SaveAttempt(ctx context.Context, a *Attempt) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return r.s.insert(ctx, tableAttempts, colAttemptID, &a.ID,
		[]string{colTaskID, colRunID, colUserAnswer, colJudgement, colGrade, colTimestamp},
		[]any{a.TaskID, a.RunID, a.UserAnswer, a.Judgement, a.Grade, a.CreatedAt},
	)
}

func (r *taskRepo) ListAttempts(ctx context.Context, taskID int) ([]Attempt, error) {
	b := r.s.builder()
	query, args := b.Select(attemptSelect...).
		From(b.Table(tableAttempts)).
		Where(entsql.EQ(colTaskID, taskID)).
		OrderBy(colTimestamp, colAttemptID).
		Query()
	return r.queryAttempts(ctx, query, args)
}

func (r *taskRepo) ListSessionAttempts(ctx context.Context, sessionID int) ([]Attempt, error) {
	b := r.s.builder()
	a := b.Table(tableAttempts)
	t := b.Table(tableTasks)

	cols := make([]string, len(attemptSelect))
	for i, c := range attemptSelect {
		cols[i] = a.C(c)
	}
	query, args := b.Select(cols...).
		From(a).
		Join(t).On(a.C(colTaskID), t.C(colTaskID)).
		Where(entsql.EQ(t.C(colSessionID), sessionID)).
		OrderBy(a.C(colTimestamp), a.C(colAttemptID)).
		Query()
	return r.queryAttempts(ctx, query, args)
}

func (r *taskRepo) CountAttemptedTasks(ctx context.Context, sessionID int) (int, error) {
	b := r.s.builder()
	a := b.Table(tableAttempts)
	t := b.Table(tableTasks)

	query, args := b.Select(a.C(colTaskID)).
		Distinct().
		From(a).
		Join(t).On(a.C(colTaskID), t.C(colTaskID)).
		Where(entsql.EQ(t.C(colSessionID), sessionID)).
		Query()

	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("count attempted tasks: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}

func (r *taskRepo) queryAttempts(ctx context.Context, query string, args []any) ([]Attempt, error) {
	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.TaskID, &a.RunID, &a.UserAnswer, &a.Judgement, &a.Grade, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// sessionTaskIDs lists the IDs of every task in a session.
func (s *Store) sessionTaskIDs(ctx context.Context, q querier, sessionID int) ([]int, error) {
	b := s.builder()
	query, args := b.Select(colTaskID).
		From(b.Table(tableTasks)).
		Where(entsql.EQ(colSessionID, sessionID)).
		Query()

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list session tasks: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// removeTask deletes a task and everything hanging off it.
func (s *Store) removeTask(ctx context.Context, q querier, taskID int) error {
	b := s.builder()
	for _, table := range []string{tableTasks, tableAttempts, tableAnswers} {
		query, args := b.Delete(table).Where(entsql.EQ(colTaskID, taskID)).Query()
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	return nil
}
