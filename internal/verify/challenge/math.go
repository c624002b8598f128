package challenge

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// Normalize canonicalizes an answer for comparison.
func Normalize(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// mathChallenge picks a random template and fills it with operands sized
// for the difficulty. The answer is always a short string ("17", "yes").
func mathChallenge(difficulty Difficulty) (prompt, answer string) {
	templates := []func(Difficulty) (string, string){
		arithmeticChallenge,
		sequenceChallenge,
		comparisonChallenge,
		logicChallenge,
		wordProblemChallenge,
	}

	return templates[rand.Intn(len(templates))](difficulty)
}

// operandMax returns the upper bound for generated operands.
func operandMax(difficulty Difficulty) int {
	switch difficulty {
	case DifficultyEasy:
		return 10
	case DifficultyHard:
		return 50
	default:
		return 20
	}
}

func arithmeticChallenge(difficulty Difficulty) (string, string) {
	limit := operandMax(difficulty)
	a := rand.Intn(limit) + 1
	b := rand.Intn(limit) + 1

	switch rand.Intn(3) {
	case 0:
		return fmt.Sprintf("What is %d + %d?", a, b), strconv.Itoa(a + b)
	case 1:
		// Keep subtraction results non-negative
		if b > a {
			a, b = b, a
		}
		return fmt.Sprintf("What is %d - %d?", a, b), strconv.Itoa(a - b)
	default:
		a = rand.Intn(9) + 2
		b = rand.Intn(9) + 2
		return fmt.Sprintf("What is %d × %d?", a, b), strconv.Itoa(a * b)
	}
}

func sequenceChallenge(difficulty Difficulty) (string, string) {
	start := rand.Intn(operandMax(difficulty)) + 1
	step := rand.Intn(5) + 1
	if difficulty == DifficultyHard {
		step = rand.Intn(9) + 2
	}

	terms := make([]string, 4)
	for i := range terms {
		terms[i] = strconv.Itoa(start + i*step)
	}

	return fmt.Sprintf("What number comes next: %s, ...?", strings.Join(terms, ", ")),
		strconv.Itoa(start + 4*step)
}

func comparisonChallenge(difficulty Difficulty) (string, string) {
	limit := operandMax(difficulty)
	a := rand.Intn(limit) + 1
	b := rand.Intn(limit) + 1
	for b == a {
		b = rand.Intn(limit) + 1
	}

	larger := a
	if b > a {
		larger = b
	}

	return fmt.Sprintf("Which number is larger: %d or %d?", a, b), strconv.Itoa(larger)
}

func logicChallenge(Difficulty) (string, string) {
	statements := []struct {
		prompt string
		answer string
	}{
		{"If all birds have wings and a robin is a bird, does a robin have wings? (yes/no)", "yes"},
		{"If today is Monday, is tomorrow Wednesday? (yes/no)", "no"},
		{"Is the number 14 even? (yes/no)", "yes"},
		{"Is the number 9 larger than 12? (yes/no)", "no"},
		{"If a box holds 6 eggs and none are removed, does it still hold 6 eggs? (yes/no)", "yes"},
	}

	picked := statements[rand.Intn(len(statements))]

	return picked.prompt, picked.answer
}

func wordProblemChallenge(difficulty Difficulty) (string, string) {
	limit := operandMax(difficulty)
	have := rand.Intn(limit) + 1
	more := rand.Intn(limit) + 1

	names := []string{"Sam", "Alex", "Riley", "Jordan", "Casey"}
	items := []string{"apples", "books", "coins", "stickers", "marbles"}
	name := names[rand.Intn(len(names))]
	item := items[rand.Intn(len(items))]

	if rand.Intn(2) == 0 {
		return fmt.Sprintf("%s has %d %s and buys %d more. How many %s does %s have now?",
			name, have, item, more, item, name), strconv.Itoa(have + more)
	}

	total := have + more

	return fmt.Sprintf("%s has %d %s and gives away %d. How many %s are left?",
		name, total, item, more, item), strconv.Itoa(have)
}
