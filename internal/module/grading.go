package module

import "slices"

// Component names used in Judgment.Parts by arithmetic modules.
const (
	PartUnits    = "units"
	PartTens     = "tens"
	PartSign     = "sign"
	PartOrdering = "ordering"
	PartOperand  = "operand"
)

// Arithmetic skill names.
const (
	SkillTwoDigit    = "twodigit"
	SkillSubtract    = "subtract"
	SkillOverflow10  = "overflow10"
	SkillUnderflow10 = "underflow10"
	SkillNegative    = "negative"
)

// ArithmeticSkills describes the skills of the arithmetic modules.
var ArithmeticSkills = map[string]string{
	SkillTwoDigit:    "Ability to add and subtract two-digit numbers",
	SkillSubtract:    "Ability to also subtract numbers",
	SkillOverflow10:  "Ability to add numbers where digit part overflows",
	SkillUnderflow10: "Ability to subtract numbers where digit part underflows",
	SkillNegative:    "Ability to use negative numbers",
}

// Grade weighs the component scores in j.Parts into a single grade in
// [0, 1]. Digit components weigh more on harder questions; sign, ordering
// and operand mistakes weigh half as much. A component earns its weight
// when its score is above one half. Components absent from Parts do not
// count.
func Grade(j Judgment, skills []string) float64 {
	answerWeight, mistakeWeight := 2.0, 1.0
	switch {
	case slices.Contains(skills, SkillOverflow10) || slices.Contains(skills, SkillUnderflow10):
		answerWeight, mistakeWeight = 6, 3
	case slices.Contains(skills, SkillTwoDigit):
		answerWeight, mistakeWeight = 4, 2
	}

	weights := map[string]float64{
		PartUnits:    answerWeight,
		PartTens:     answerWeight,
		PartSign:     mistakeWeight,
		PartOrdering: mistakeWeight,
		PartOperand:  mistakeWeight,
	}

	var points, total float64
	for part, w := range weights {
		score, ok := j.Parts[part]
		if !ok {
			continue
		}
		total += w
		if score > 0.5 {
			points += w
		}
	}
	if total == 0 {
		if j.Correct {
			return 1
		}
		return 0
	}
	return points / total
}
