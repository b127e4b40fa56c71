package arith

import (
	"context"
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/trainer/internal/module"
)

func TestInferSkills(t *testing.T) {
	tests := []struct {
		a, b int
		op   byte
		want []string
	}{
		{15, 27, '+', []string{module.SkillTwoDigit, module.SkillOverflow10}},
		{3, 4, '+', nil},
		{3, -4, '+', []string{module.SkillNegative}},
		{30, 15, '-', []string{module.SkillTwoDigit, module.SkillSubtract, module.SkillUnderflow10}},
		{5, 12, '-', []string{module.SkillTwoDigit, module.SkillSubtract, module.SkillNegative}},
		{9, 3, '-', []string{module.SkillSubtract}},
	}
	for _, tt := range tests {
		got := InferSkills(tt.a, tt.b, tt.op)
		assert.Equal(t, tt.want, got, "%d%c%d", tt.a, tt.op, tt.b)
	}
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name string
		a, b int
		op   byte
		user int
		want map[string]float64
	}{
		{"correct sum", 12, 5, '+', 17,
			map[string]float64{module.PartUnits: 1, module.PartTens: 1, module.PartOperand: 1}},
		{"subtracted instead", 12, 5, '+', 7,
			map[string]float64{module.PartUnits: 1, module.PartTens: 1, module.PartOperand: 0}},
		{"tens digit off", 12, 5, '+', 27,
			map[string]float64{module.PartUnits: 1, module.PartTens: 0, module.PartOperand: 1}},
		{"single digit sum has no tens", 3, 4, '+', 8,
			map[string]float64{module.PartUnits: 0, module.PartOperand: 1}},
		{"operands reversed", 5, 12, '-', 7,
			map[string]float64{module.PartUnits: 1, module.PartTens: 1, module.PartOperand: 1, module.PartSign: 0, module.PartOrdering: 0}},
		{"negative result right", 5, 12, '-', -7,
			map[string]float64{module.PartUnits: 1, module.PartTens: 1, module.PartOperand: 1, module.PartSign: 1, module.PartOrdering: 1}},
		{"added instead", 9, 3, '-', 12,
			map[string]float64{module.PartUnits: 1, module.PartTens: 1, module.PartOperand: 0, module.PartOrdering: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Analyze(tt.a, tt.b, tt.op, tt.user))
		})
	}
}

func TestFloorDivMod(t *testing.T) {
	assert.Equal(t, -1, floorDiv(-7, 10))
	assert.Equal(t, 3, floorMod(-7, 10))
	assert.Equal(t, 1, floorDiv(17, 10))
	assert.Equal(t, 7, floorMod(17, 10))
	assert.Equal(t, -2, floorDiv(-20, 10))
	assert.Equal(t, 0, floorMod(-20, 10))
}

func TestMakeTask(t *testing.T) {
	m := NewWithRand(1, rand.New(rand.NewPCG(1, 2)))
	cfg := module.DefaultConfig(m)

	for range 50 {
		g, err := m.MakeTask(context.Background(), cfg)
		require.NoError(t, err)
		a, op, b, err := ParseQuestion(g.Question)
		require.NoError(t, err)
		assert.True(t, a >= 0 && a <= 50 && b >= 0 && b <= 50)
		want := a + b
		if op == '-' {
			want = a - b
		}
		require.Len(t, g.Answers, 1)
		assert.Equal(t, answerID, g.Answers[0].ID)
		n, err := m.ParseAnswer(g.Answers[0].Text)
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(want), n)
		assert.Equal(t, InferSkills(a, b, op), g.Skills)
	}
}

func TestMakeTaskWithoutNegation(t *testing.T) {
	m := NewWithRand(1, rand.New(rand.NewPCG(3, 4)))
	cfg := module.DefaultConfig(m)
	cfg.Get(SettingNegation).Value = false
	cfg.Get(SettingMax).Value = 0

	g, err := m.MakeTask(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "0+0=", g.Question)
	assert.Equal(t, "0", g.Answers[0].Text)
}

func TestJudge(t *testing.T) {
	m := NewWithRand(1, rand.New(rand.NewPCG(1, 1)))
	cfg := module.DefaultConfig(m)
	task := module.NewTask(m, 1, 1, cfg, module.Generated{
		Question: "5-12=",
		Answers:  []module.Answer{{ID: answerID, Text: "-7"}},
	})

	j, err := m.Judge(context.Background(), task, "-7")
	require.NoError(t, err)
	assert.True(t, j.Correct)
	assert.Equal(t, 1.0, j.Grade)
	assert.Equal(t, 1.0, j.SpecificGrade(module.SkillNegative))

	j, err = m.Judge(context.Background(), task, "7")
	require.NoError(t, err)
	assert.False(t, j.Correct)
	assert.InDelta(t, 10.0/14, j.Grade, 1e-9)
	assert.Equal(t, 0.0, j.Parts[module.PartOrdering])

	_, err = m.Judge(context.Background(), task, "seven")
	assert.ErrorIs(t, err, module.ErrBadAnswer)
}

func TestParseAnswer(t *testing.T) {
	m := NewWithRand(1, rand.New(rand.NewPCG(1, 1)))
	got, err := m.ParseAnswer(" -07 ")
	require.NoError(t, err)
	assert.Equal(t, "-7", got)

	_, err = m.ParseAnswer("1.5")
	assert.ErrorIs(t, err, module.ErrBadAnswer)
}

func TestParseQuestion(t *testing.T) {
	a, op, b, err := ParseQuestion("-3 - -4 =")
	require.NoError(t, err)
	assert.Equal(t, -3, a)
	assert.Equal(t, byte('-'), op)
	assert.Equal(t, -4, b)

	_, _, _, err = ParseQuestion("3*4=")
	assert.Error(t, err)
}
