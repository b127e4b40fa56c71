package module

import (
	"sort"

	"github.com/abhisek/trainer/internal/store"
)

// SkillSet is a module's skills for one session, or its defaults.
type SkillSet struct {
	ID        int
	ModuleID  int
	SessionID int
	Skills    []store.Skill
}

// Skill returns the named skill, or nil.
func (s *SkillSet) Skill(name string) *store.Skill {
	for i := range s.Skills {
		if s.Skills[i].Name == name {
			return &s.Skills[i]
		}
	}
	return nil
}

// Contains reports whether a skill with the same name and description is
// in the set.
func (s *SkillSet) Contains(sk store.Skill) bool {
	own := s.Skill(sk.Name)
	return own != nil && own.Description == sk.Description
}

// ContainsAll reports whether every skill of other is in s.
func (s *SkillSet) ContainsAll(other *SkillSet) bool {
	for _, sk := range other.Skills {
		if !s.Contains(sk) {
			return false
		}
	}
	return true
}

// SkillNames returns the keys of a skill map in sorted order.
func SkillNames(skills map[string]string) []string {
	names := make([]string, 0, len(skills))
	for n := range skills {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
