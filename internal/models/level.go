package models

import "fmt"

// Level is a proficiency label on the fixed A1..C2 scale
type Level string

const (
	LevelNotCertified Level = "Not Certified"
	LevelA1           Level = "A1"
	LevelA2           Level = "A2"
	LevelB1           Level = "B1"
	LevelB2           Level = "B2"
	LevelC1           Level = "C1"
	LevelC2           Level = "C2"
)

// LevelOrder lists all certifiable levels from lowest to highest
var LevelOrder = []Level{LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2}

// Index returns the position of the level in LevelOrder, or -1 if the
// level is not certifiable (including LevelNotCertified)
func (l Level) Index() int {
	for i, lv := range LevelOrder {
		if lv == l {
			return i
		}
	}
	return -1
}

// Valid reports whether l is one of the six certifiable levels
func (l Level) Valid() bool {
	return l.Index() >= 0
}

// Step returns the assessment step that covers this level (0 if none)
func (l Level) Step() Step {
	idx := l.Index()
	if idx < 0 {
		return 0
	}
	return Step(idx/2 + 1)
}

// ParseLevel converts a string into a certifiable Level
func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}

// Step is one of the three sequential assessment tiers
type Step int

const (
	Step1 Step = 1
	Step2 Step = 2
	Step3 Step = 3

	// MaxStep is the terminal step; nothing unlocks past it
	MaxStep = Step3
)

// Valid reports whether s is 1, 2 or 3
func (s Step) Valid() bool {
	return s >= Step1 && s <= MaxStep
}

// Levels returns the two levels examined by the step
func (s Step) Levels() []Level {
	if !s.Valid() {
		return nil
	}
	i := (int(s) - 1) * 2
	return []Level{LevelOrder[i], LevelOrder[i+1]}
}

// Lower returns the lower label of the step's level pair
func (s Step) Lower() Level {
	if !s.Valid() {
		return LevelNotCertified
	}
	return s.Levels()[0]
}

// Upper returns the upper label of the step's level pair
func (s Step) Upper() Level {
	if !s.Valid() {
		return LevelNotCertified
	}
	return s.Levels()[1]
}
