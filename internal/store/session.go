package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

type sessionRepo struct {
	s *Store
}

var sessionSelect = []string{
	colSessionID, colSessionName, colConfigIDs, colPoints, colReset,
	colPenaltyPoints, colTargetPoints, colRepeatable, colTimestamp,
}

func (r *sessionRepo) NextID(ctx context.Context) (int, error) {
	return r.s.nextID(ctx, r.s.db, tableSessions, colSessionID)
}

func (r *sessionRepo) Save(ctx context.Context, sess *Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	return r.s.insert(ctx, tableSessions, colSessionID, &sess.ID,
		[]string{colSessionName, colConfigIDs, colPoints, colReset, colPenaltyPoints, colTargetPoints, colRepeatable, colTimestamp},
		[]any{sess.Name, joinIDs(sess.ConfigIDs), sess.Points, sess.Reset, sess.Penalty, sess.Target, sess.Repeatable, sess.CreatedAt},
	)
}

func (r *sessionRepo) Get(ctx context.Context, id int) (*Session, error) {
	b := r.s.builder()
	query, args := b.Select(sessionSelect...).
		From(b.Table(tableSessions)).
		Where(entsql.EQ(colSessionID, id)).
		Query()

	sess, err := scanSession(r.s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", id, err)
	}
	return sess, nil
}

func (r *sessionRepo) List(ctx context.Context) ([]Session, error) {
	b := r.s.builder()
	query, args := b.Select(sessionSelect...).
		From(b.Table(tableSessions)).
		OrderBy(colTimestamp, colSessionID).
		Query()

	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

func (r *sessionRepo) Update(ctx context.Context, sess *Session) error {
	query, args := r.s.builder().Update(tableSessions).
		Set(colSessionName, sess.Name).
		Set(colConfigIDs, joinIDs(sess.ConfigIDs)).
		Set(colPoints, sess.Points).
		Set(colReset, sess.Reset).
		Set(colPenaltyPoints, sess.Penalty).
		Set(colTargetPoints, sess.Target).
		Set(colRepeatable, sess.Repeatable).
		Where(entsql.EQ(colSessionID, sess.ID)).
		Query()
	if err := exec(ctx, r.s.db, query, args); err != nil {
		return fmt.Errorf("update session %d: %w", sess.ID, err)
	}
	return nil
}

func (r *sessionRepo) UpdatePoints(ctx context.Context, id, points int) error {
	query, args := r.s.builder().Update(tableSessions).
		Set(colPoints, points).
		Where(entsql.EQ(colSessionID, id)).
		Query()
	if err := exec(ctx, r.s.db, query, args); err != nil {
		return fmt.Errorf("update session %d points: %w", id, err)
	}
	return nil
}

func (r *sessionRepo) Remove(ctx context.Context, id int) error {
	err := r.s.withTx(ctx, func(tx *sql.Tx) error {
		b := r.s.builder()

		query, args := b.Delete(tableSessions).Where(entsql.EQ(colSessionID, id)).Query()
		if err := exec(ctx, tx, query, args); err != nil {
			return err
		}

		taskIDs, err := r.s.sessionTaskIDs(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, taskID := range taskIDs {
			if err := r.s.removeTask(ctx, tx, taskID); err != nil {
				return err
			}
		}

		return r.s.removeSessionSkills(ctx, tx, id)
	})
	if err != nil {
		return fmt.Errorf("remove session %d: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		sess Session
		ids  string
	)
	err := row.Scan(&sess.ID, &sess.Name, &ids, &sess.Points, &sess.Reset,
		&sess.Penalty, &sess.Target, &sess.Repeatable, &sess.CreatedAt)
	if err != nil {
		return nil, err
	}
	sess.ConfigIDs, err = splitIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("session %d config ids: %w", sess.ID, err)
	}
	return &sess, nil
}

// joinIDs encodes config IDs as a comma separated list.
func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func splitIDs(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return []int{}, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
