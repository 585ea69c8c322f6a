package models

import "time"

// Question is a multiple-choice item in the question bank
type Question struct {
	ID            string    `json:"id" yaml:"id"`
	Competency    string    `json:"competency" yaml:"competency"`
	Level         Level     `json:"level" yaml:"level"`
	Text          string    `json:"question_text" yaml:"question_text"`
	Options       []string  `json:"options" yaml:"options"`
	CorrectAnswer string    `json:"correct_answer" yaml:"correct_answer"`
	CreatedAt     time.Time `json:"created_at" yaml:"-"`
}

// QuestionPublic is the candidate-facing projection of a Question.
// It never carries the correct answer.
type QuestionPublic struct {
	ID         string   `json:"id"`
	Competency string   `json:"competency"`
	Level      Level    `json:"level"`
	Text       string   `json:"question_text"`
	Options    []string `json:"options"`
}

// Public strips correctness data from the question
func (q *Question) Public() QuestionPublic {
	return QuestionPublic{
		ID:         q.ID,
		Competency: q.Competency,
		Level:      q.Level,
		Text:       q.Text,
		Options:    q.Options,
	}
}
