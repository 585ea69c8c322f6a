package assessment

import (
	"strings"

	"github.com/google/uuid"

	"github.com/terra-clan/assessment-engine/internal/models"
)

// Grade counts the questions answered correctly. Each question counts at most
// once; a question submitted with conflicting answers earns nothing. The
// result does not depend on the order of answers.
func Grade(answers []models.Answer, correct map[string]string) int {
	submitted := make(map[string]string, len(answers))
	conflicting := make(map[string]bool)

	for _, a := range answers {
		prev, seen := submitted[a.QuestionID]
		if seen && prev != a.Answer {
			conflicting[a.QuestionID] = true
			continue
		}
		submitted[a.QuestionID] = a.Answer
	}

	matches := 0
	for id, answer := range submitted {
		if conflicting[id] {
			continue
		}
		if want, ok := correct[id]; ok && answer == want {
			matches++
		}
	}
	return matches
}

// normalizeAnswers rewrites question IDs to their canonical UUID form so
// that differently cased copies of one ID are graded as the same question
func normalizeAnswers(answers []models.Answer) []models.Answer {
	normalized := make([]models.Answer, len(answers))
	for i, a := range answers {
		normalized[i] = models.Answer{QuestionID: canonicalQuestionID(a.QuestionID), Answer: a.Answer}
	}
	return normalized
}

func canonicalQuestionID(id string) string {
	id = strings.TrimSpace(id)
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return id
}
