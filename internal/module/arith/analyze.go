package arith

import "github.com/abhisek/trainer/internal/module"

// InferSkills lists the skills a question a op b exercises.
func InferSkills(a, b int, op byte) []string {
	var skills []string
	if twoDigit(a) || twoDigit(b) {
		skills = append(skills, module.SkillTwoDigit)
	}

	d1, d2 := floorMod(a, 10), floorMod(b, 10)
	if op == '-' {
		skills = append(skills, module.SkillSubtract)
		if d1 < d2 {
			skills = append(skills, module.SkillUnderflow10)
		}
		if a-b < 0 || a < 0 {
			skills = append(skills, module.SkillNegative)
		}
		return skills
	}

	if d1+d2 >= 10 {
		skills = append(skills, module.SkillOverflow10)
	}
	if a < 0 || b < 0 {
		skills = append(skills, module.SkillNegative)
	}
	return skills
}

// Analyze scores the parts of a user answer to a op b. Parts that do not
// apply to the question are absent from the result.
func Analyze(a, b int, op byte, user int) map[string]float64 {
	sum, diff, reversed := a+b, a-b, b-a
	correct := sum
	if op == '-' {
		correct = diff
	}

	parts := map[string]float64{
		module.PartUnits:   1,
		module.PartTens:    1,
		module.PartOperand: 1,
	}
	if op == '+' && correct >= -9 && correct <= 9 {
		delete(parts, module.PartTens)
	}
	if op == '-' && a <= b {
		parts[module.PartSign] = 1
	}
	if op == '-' {
		parts[module.PartOrdering] = 1
	}

	// A sign mistake always counts, even where sign was not tested.
	if (user > 0) != (correct > 0) {
		parts[module.PartSign] = 0
	}

	switch {
	case user == correct:
		return parts
	case op == '+' && user == diff, op == '-' && user == sum:
		parts[module.PartOperand] = 0
		return parts
	case op == '-' && user == reversed:
		parts[module.PartOrdering] = 0
		return parts
	}

	if floorMod(correct, 10) != floorMod(user, 10) {
		parts[module.PartUnits] = 0
	}
	if _, ok := parts[module.PartTens]; ok && floorDiv(correct, 10) != floorDiv(user, 10) {
		parts[module.PartTens] = 0
	}
	return parts
}

func twoDigit(n int) bool {
	return (n > 10 && n < 99) || (n > -99 && n < -10)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
