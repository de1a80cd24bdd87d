// Package dice implements the `[count]d<sides>` notation used by /roll.
package dice

import (
	"errors"
	"math/rand"
	"regexp"
	"strconv"
	"sync"
	"time"
)

const (
	minCount = 1
	maxCount = 100
	minSides = 2
	maxSides = 1000
)

// Errors returned by Roll. Their text is shown to users verbatim.
var (
	ErrNotation = errors.New("invalid dice notation, expected something like 2d6 or d20")
	ErrCount    = errors.New("dice count must be between 1 and 100")
	ErrSides    = errors.New("dice must have between 2 and 1000 sides")
)

var notationRE = regexp.MustCompile(`^([0-9]*)[dD]([0-9]+)$`)

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Result holds the outcome of a roll. Rolls lists the individual dice in
// draw order; Total is their sum.
type Result struct {
	Notation string
	Count    int
	Sides    int
	Rolls    []int
	Total    int
}

// Roll parses notation and draws the dice. The count defaults to 1 when
// omitted ("d20" means "1d20").
func Roll(notation string) (Result, error) {
	m := notationRE.FindStringSubmatch(notation)
	if m == nil {
		return Result{}, ErrNotation
	}

	count := 1
	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < minCount || n > maxCount {
			return Result{}, ErrCount
		}
		count = n
	}

	sides, err := strconv.Atoi(m[2])
	if err != nil || sides < minSides || sides > maxSides {
		return Result{}, ErrSides
	}

	rolls := make([]int, count)
	total := 0
	rngMu.Lock()
	for i := range rolls {
		rolls[i] = rng.Intn(sides) + 1
		total += rolls[i]
	}
	rngMu.Unlock()

	return Result{
		Notation: notation,
		Count:    count,
		Sides:    sides,
		Rolls:    rolls,
		Total:    total,
	}, nil
}

// Flip returns "Heads" or "Tails" with equal probability.
func Flip() string {
	rngMu.Lock()
	v := rng.Intn(2)
	rngMu.Unlock()
	if v == 0 {
		return "Heads"
	}
	return "Tails"
}

// Pick returns a uniformly random element of choices.
func Pick(choices []string) string {
	rngMu.Lock()
	defer rngMu.Unlock()
	return choices[rng.Intn(len(choices))]
}
