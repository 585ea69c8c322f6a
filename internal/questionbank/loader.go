// Package questionbank loads question and candidate seed data from YAML files.
package questionbank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/terra-clan/assessment-engine/internal/models"
	"github.com/terra-clan/assessment-engine/internal/storage"
)

// Loader collects validated seed data from one or more files
type Loader struct {
	mu         sync.RWMutex
	questions  []*models.Question
	candidates []*models.Candidate
	texts      map[string]bool
}

// NewLoader creates a new loader
func NewLoader() *Loader {
	return &Loader{
		texts: make(map[string]bool),
	}
}

// LoadFromDir loads all YAML files in a directory. Invalid files are
// skipped with a warning.
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading question bank from directory", "dir", dir)

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", pattern, err)
		}
		files = append(files, matches...)
	}

	loaded := 0
	for _, file := range files {
		if err := l.LoadFromFile(file); err != nil {
			slog.Warn("failed to load question file", "file", file, "error", err)
			continue
		}
		loaded++
	}

	slog.Info("question files loaded", "count", loaded, "total_files", len(files))
	return nil
}

// LoadFromFile loads a single YAML seed file
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return l.Load(data)
}

// Load parses and validates seed data. Either all entries are accepted or none.
func (l *Loader) Load(data []byte) error {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	questions := make([]*models.Question, 0, len(f.Questions))
	for i, q := range f.Questions {
		question, err := q.toModel()
		if err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
		questions = append(questions, question)
	}

	candidates := make([]*models.Candidate, 0, len(f.Candidates))
	for i, c := range f.Candidates {
		candidate, err := c.toModel()
		if err != nil {
			return fmt.Errorf("candidate %d: %w", i+1, err)
		}
		candidates = append(candidates, candidate)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, q := range questions {
		key := string(q.Level) + "|" + q.Text
		if l.texts[key] {
			slog.Debug("duplicate question skipped", "level", q.Level, "text", q.Text)
			continue
		}
		l.texts[key] = true
		l.questions = append(l.questions, q)
	}
	l.candidates = append(l.candidates, candidates...)

	return nil
}

// Questions returns all loaded questions
func (l *Loader) Questions() []*models.Question {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*models.Question(nil), l.questions...)
}

// Candidates returns all loaded candidates
func (l *Loader) Candidates() []*models.Candidate {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*models.Candidate(nil), l.candidates...)
}

// CountByLevel returns the number of loaded questions per level
func (l *Loader) CountByLevel() map[models.Level]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	counts := make(map[models.Level]int)
	for _, q := range l.questions {
		counts[q.Level]++
	}
	return counts
}

// Shortfall reports, per step, how many questions are missing to fill an
// exam of examSize
func Shortfall(counts map[models.Level]int, examSize int) map[models.Step]int {
	missing := make(map[models.Step]int)
	for step := models.Step1; step <= models.MaxStep; step++ {
		have := 0
		for _, level := range step.Levels() {
			have += counts[level]
		}
		if have < examSize {
			missing[step] = examSize - have
		}
	}
	return missing
}

// Target is where seed data is written
type Target interface {
	InsertQuestions(ctx context.Context, questions []*models.Question) error
	CreateCandidate(ctx context.Context, c *models.Candidate) error
}

// Summary reports what Seed wrote
type Summary struct {
	Questions         int
	Candidates        int
	SkippedCandidates int
}

// Seed writes loaded data to the target. Candidates whose email is already
// taken are skipped.
func (l *Loader) Seed(ctx context.Context, target Target) (Summary, error) {
	var summary Summary

	questions := l.Questions()
	if len(questions) > 0 {
		if err := target.InsertQuestions(ctx, questions); err != nil {
			return summary, fmt.Errorf("failed to insert questions: %w", err)
		}
		summary.Questions = len(questions)
	}

	for _, c := range l.Candidates() {
		if err := target.CreateCandidate(ctx, c); err != nil {
			if errors.Is(err, storage.ErrDuplicateEmail) {
				summary.SkippedCandidates++
				continue
			}
			return summary, fmt.Errorf("failed to create candidate %s: %w", c.Email, err)
		}
		summary.Candidates++
	}

	slog.Info("seed complete",
		"questions", summary.Questions,
		"candidates", summary.Candidates,
		"skipped_candidates", summary.SkippedCandidates,
	)
	return summary, nil
}

// --- YAML file structs ---

// questionNamespace scopes ids derived from question level and text
var questionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/terra-clan/assessment-engine/questions"))

type seedFile struct {
	Questions  []questionFile  `yaml:"questions"`
	Candidates []candidateFile `yaml:"candidates"`
}

type questionFile struct {
	ID            string   `yaml:"id"`
	Competency    string   `yaml:"competency"`
	Level         string   `yaml:"level"`
	Text          string   `yaml:"question_text"`
	Options       []string `yaml:"options"`
	CorrectAnswer string   `yaml:"correct_answer"`
}

func (q questionFile) toModel() (*models.Question, error) {
	level, err := models.ParseLevel(q.Level)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("question_text is required")
	}
	if q.Competency == "" {
		return nil, fmt.Errorf("competency is required")
	}
	if len(q.Options) < 2 {
		return nil, fmt.Errorf("at least two options are required")
	}

	found := false
	seen := make(map[string]bool, len(q.Options))
	for _, opt := range q.Options {
		if seen[opt] {
			return nil, fmt.Errorf("duplicate option %q", opt)
		}
		seen[opt] = true
		if opt == q.CorrectAnswer {
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("correct_answer %q is not one of the options", q.CorrectAnswer)
	}

	// Without an explicit id the same level and text always map to the same
	// question, so seeding a file twice updates rather than duplicates
	id := uuid.NewSHA1(questionNamespace, []byte(string(level)+"|"+q.Text)).String()
	if q.ID != "" {
		u, err := uuid.Parse(q.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", q.ID, err)
		}
		id = u.String()
	}

	return &models.Question{
		ID:            id,
		Competency:    q.Competency,
		Level:         level,
		Text:          q.Text,
		Options:       q.Options,
		CorrectAnswer: q.CorrectAnswer,
	}, nil
}

type candidateFile struct {
	Name       string `yaml:"name"`
	Email      string `yaml:"email"`
	Role       string `yaml:"role"`
	IsVerified bool   `yaml:"is_verified"`
}

func (c candidateFile) toModel() (*models.Candidate, error) {
	if !strings.Contains(c.Email, "@") {
		return nil, fmt.Errorf("invalid email %q", c.Email)
	}

	role, err := models.ParseRole(c.Role)
	if err != nil {
		return nil, err
	}

	return &models.Candidate{
		Name:       c.Name,
		Email:      strings.ToLower(c.Email),
		Role:       role,
		IsVerified: c.IsVerified,
		Status:     models.CandidateActive,
	}, nil
}
