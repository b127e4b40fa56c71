package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/abhisek/trainer/internal/store"
)

// ErrInvalid is wrapped by every draft validation failure.
var ErrInvalid = errors.New("invalid session")

// Validation failures, checked in this order.
var (
	ErrEmptyName         = fmt.Errorf("%w: name is empty", ErrInvalid)
	ErrNoConfigs         = fmt.Errorf("%w: at least one config is needed", ErrInvalid)
	ErrTargetTooLow      = fmt.Errorf("%w: target must be at least 1", ErrInvalid)
	ErrNegativePenalty   = fmt.Errorf("%w: penalty must not be negative", ErrInvalid)
	ErrPenaltyOverTarget = fmt.Errorf("%w: target must be greater than penalty", ErrInvalid)
	ErrTargetReached     = fmt.Errorf("%w: target must be greater than current points", ErrInvalid)
)

// ErrUnknownConfig is returned when a draft names a config that does not
// exist.
var ErrUnknownConfig = fmt.Errorf("%w: unknown config", ErrInvalid)

// Draft holds the editable fields of a session.
type Draft struct {
	Name       string `json:"name" yaml:"name"`
	ConfigIDs  []int  `json:"config_ids" yaml:"config_ids"`
	Penalty    int    `json:"penalty" yaml:"penalty"`
	Target     int    `json:"target" yaml:"target"`
	Repeatable bool   `json:"repeatable" yaml:"repeatable"`
	Reset      bool   `json:"reset" yaml:"reset"`
}

// NewDraft returns a draft with the default penalty and target.
func NewDraft() Draft {
	return Draft{Penalty: DefaultPenalty, Target: DefaultTarget}
}

// Validate checks d for a session currently holding currentPoints.
func Validate(d Draft, currentPoints int) error {
	switch {
	case strings.TrimSpace(d.Name) == "":
		return ErrEmptyName
	case len(d.ConfigIDs) == 0:
		return ErrNoConfigs
	case d.Target < 1:
		return ErrTargetTooLow
	case d.Penalty < 0:
		return ErrNegativePenalty
	case d.Target <= d.Penalty:
		return ErrPenaltyOverTarget
	case d.Target <= currentPoints:
		return ErrTargetReached
	}
	return nil
}

// Editor creates, edits and removes sessions.
type Editor struct {
	st  *store.Store
	log *zap.Logger
}

// NewEditor returns an Editor over st.
func NewEditor(st *store.Store, log *zap.Logger) *Editor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Editor{st: st, log: log.Named("session-editor")}
}

// DefaultName is the name given to a session created without one.
func DefaultName(id int) string {
	return fmt.Sprintf("Session %d", id)
}

// Create stores a new session. An empty name becomes "Session N". The
// session gets a copy of the default skill set of every module it uses.
func (e *Editor) Create(ctx context.Context, d Draft) (*store.Session, error) {
	id, err := e.st.Sessions().NextID(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(d.Name) == "" {
		d.Name = DefaultName(id)
	}
	if err := Validate(d, 0); err != nil {
		return nil, err
	}
	moduleIDs, err := e.moduleIDs(ctx, d.ConfigIDs)
	if err != nil {
		return nil, err
	}

	sess := &store.Session{
		ID:         id,
		Name:       strings.TrimSpace(d.Name),
		ConfigIDs:  d.ConfigIDs,
		Penalty:    d.Penalty,
		Target:     d.Target,
		Repeatable: d.Repeatable,
		Reset:      d.Reset,
	}
	if err := e.st.Sessions().Save(ctx, sess); err != nil {
		return nil, err
	}
	for _, mid := range moduleIDs {
		if _, err := ensureSkillSet(ctx, e.st, mid, sess.ID); err != nil {
			return nil, err
		}
	}

	e.log.Info("session created", zap.Int("session", sess.ID), zap.String("name", sess.Name))
	return sess, nil
}

// Edit rewrites an existing session's settings. Points are kept.
func (e *Editor) Edit(ctx context.Context, id int, d Draft) (*store.Session, error) {
	sess, err := e.st.Sessions().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session %d: %w", id, ErrSessionNotFound)
	}
	if err := Validate(d, sess.Points); err != nil {
		return nil, err
	}
	moduleIDs, err := e.moduleIDs(ctx, d.ConfigIDs)
	if err != nil {
		return nil, err
	}

	sess.Name = strings.TrimSpace(d.Name)
	sess.ConfigIDs = d.ConfigIDs
	sess.Penalty = d.Penalty
	sess.Target = d.Target
	sess.Repeatable = d.Repeatable
	sess.Reset = d.Reset
	if err := e.st.Sessions().Update(ctx, sess); err != nil {
		return nil, err
	}
	for _, mid := range moduleIDs {
		if _, err := ensureSkillSet(ctx, e.st, mid, sess.ID); err != nil {
			return nil, err
		}
	}

	e.log.Info("session edited", zap.Int("session", sess.ID))
	return sess, nil
}

// Remove deletes a session with its tasks, attempts, answers and skills.
func (e *Editor) Remove(ctx context.Context, id int) error {
	err := e.st.Sessions().Remove(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("session %d: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return err
	}
	e.log.Info("session removed", zap.Int("session", id))
	return nil
}

// moduleIDs resolves the distinct modules of configIDs in first-seen order.
func (e *Editor) moduleIDs(ctx context.Context, configIDs []int) ([]int, error) {
	seen := make(map[int]bool)
	var out []int
	for _, cid := range configIDs {
		mid, err := e.st.Configs().ModuleIDOf(ctx, cid)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("config %d: %w", cid, ErrUnknownConfig)
		}
		if err != nil {
			return nil, err
		}
		if !seen[mid] {
			seen[mid] = true
			out = append(out, mid)
		}
	}
	return out, nil
}
