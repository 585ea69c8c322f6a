// Package scoring maps a step and percentage score to a certification outcome.
package scoring

import "github.com/terra-clan/assessment-engine/internal/models"

// Band thresholds, half-open: a score equal to a threshold belongs to the
// higher band.
const (
	LowerThreshold  = 25.0
	UpperThreshold  = 50.0
	UnlockThreshold = 75.0
)

// Result is the outcome of evaluating a score
type Result struct {
	LevelAchieved   models.Level `json:"level_achieved"`
	UnlocksNextStep bool         `json:"unlocks_next_step"`
	Failed          bool         `json:"failed"`
}

// Evaluate returns the level, unlock decision and failure flag for a score
// obtained at the given step. Only step 1 can fail; steps 2 and 3 fall back
// to the level carried over from the step below.
func Evaluate(step models.Step, score float64) Result {
	switch step {
	case models.Step1:
		switch {
		case score < LowerThreshold:
			return Result{LevelAchieved: models.LevelNotCertified, Failed: true}
		case score < UpperThreshold:
			return Result{LevelAchieved: models.LevelA1}
		case score < UnlockThreshold:
			return Result{LevelAchieved: models.LevelA2}
		default:
			return Result{LevelAchieved: models.LevelA2, UnlocksNextStep: true}
		}

	case models.Step2:
		switch {
		case score < LowerThreshold:
			return Result{LevelAchieved: CarriedOver(step)}
		case score < UpperThreshold:
			return Result{LevelAchieved: models.LevelB1}
		case score < UnlockThreshold:
			return Result{LevelAchieved: models.LevelB2}
		default:
			return Result{LevelAchieved: models.LevelB2, UnlocksNextStep: true}
		}

	case models.Step3:
		// Terminal step: no top band, nothing to unlock
		switch {
		case score < LowerThreshold:
			return Result{LevelAchieved: CarriedOver(step)}
		case score < UpperThreshold:
			return Result{LevelAchieved: models.LevelC1}
		default:
			return Result{LevelAchieved: models.LevelC2}
		}
	}

	return Result{LevelAchieved: models.LevelNotCertified}
}

// CarriedOver returns the level a candidate keeps when scoring in the bottom
// band of the step. Reaching step N requires the top band of step N-1, whose
// label is the upper level of that step.
func CarriedOver(step models.Step) models.Level {
	if step <= models.Step1 || !step.Valid() {
		return models.LevelNotCertified
	}
	return (step - 1).Upper()
}

// Percentage converts a match count into a percentage of the exam size
func Percentage(matches, examSize int) float64 {
	if examSize <= 0 {
		return 0
	}
	return float64(matches) / float64(examSize) * 100
}
