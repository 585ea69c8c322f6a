package storage

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/assessment-engine/internal/models"
)

// MemoryRepository implements Repository in process memory. All checks that
// Postgres performs with constraints are done here under a single mutex.
type MemoryRepository struct {
	mu         sync.RWMutex
	candidates map[string]*models.Candidate
	questions  map[string]*models.Question
	sessions   map[string]*models.Session
	rnd        *rand.Rand

	// completion commit order per session id
	completionSeq map[string]uint64
	seq           uint64
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		candidates:    make(map[string]*models.Candidate),
		questions:     make(map[string]*models.Question),
		sessions:      make(map[string]*models.Session),
		completionSeq: make(map[string]uint64),
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Ping always succeeds
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (r *MemoryRepository) Close() error {
	return nil
}

// --- Candidates ---

func (r *MemoryRepository) FindCandidateByID(ctx context.Context, id string) (*models.Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.candidates[id]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (r *MemoryRepository) FindCandidateByEmail(ctx context.Context, email string) (*models.Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.candidates {
		if strings.EqualFold(c.Email, email) {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.candidates {
		if strings.EqualFold(existing.Email, c.Email) {
			return ErrDuplicateEmail
		}
	}

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = models.CandidateActive
	}
	if c.Role == "" {
		c.Role = models.RoleStudent
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	copied := *c
	r.candidates[c.ID] = &copied
	return nil
}

func (r *MemoryRepository) SaveCandidate(ctx context.Context, c *models.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.candidates[c.ID]
	if !ok {
		return fmt.Errorf("candidate not found: %s", c.ID)
	}

	copied := *c
	if existing.Status == models.CandidateLocked {
		copied.Status = models.CandidateLocked
		copied.LockedAt = existing.LockedAt
	}
	r.candidates[c.ID] = &copied
	return nil
}

// --- Questions ---

func (r *MemoryRepository) SampleByLevels(ctx context.Context, levels []models.Level, count int) ([]models.QuestionPublic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := make(map[models.Level]bool, len(levels))
	for _, l := range levels {
		wanted[l] = true
	}

	pool := make([]models.QuestionPublic, 0)
	for _, q := range r.questions {
		if wanted[q.Level] {
			pool = append(pool, q.Public())
		}
	}

	// Map iteration order is not uniform; sort before shuffling
	sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
	r.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	if len(pool) > count {
		pool = pool[:count]
	}
	return pool, nil
}

func (r *MemoryRepository) FindCorrectAnswers(ctx context.Context, ids []string) (map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	answers := make(map[string]string, len(ids))
	for _, id := range ids {
		if q, ok := r.questions[id]; ok {
			answers[id] = q.CorrectAnswer
		}
	}
	return answers, nil
}

func (r *MemoryRepository) InsertQuestions(ctx context.Context, questions []*models.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, q := range questions {
		if q.ID == "" {
			q.ID = uuid.New().String()
		} else if u, err := uuid.Parse(q.ID); err == nil {
			q.ID = u.String()
		}
		if q.CreatedAt.IsZero() {
			q.CreatedAt = time.Now().UTC()
		}
		copied := *q
		copied.Options = append([]string(nil), q.Options...)
		r.questions[q.ID] = &copied
	}
	return nil
}

func (r *MemoryRepository) CountByLevel(ctx context.Context) (map[models.Level]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[models.Level]int)
	for _, q := range r.questions {
		counts[q.Level]++
	}
	return counts, nil
}

// --- Sessions ---

func (r *MemoryRepository) CreateSession(ctx context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.sessions {
		if existing.CandidateID == s.CandidateID && existing.Status == models.SessionInProgress {
			return ErrSessionInProgress
		}
	}

	r.sessions[s.ID] = cloneSession(s)
	return nil
}

func (r *MemoryRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return cloneSession(s), nil
}

func (r *MemoryRepository) LatestCompleted(ctx context.Context, candidateID string) (*models.Session, error) {
	completed, err := r.ListCompleted(ctx, candidateID)
	if err != nil || len(completed) == 0 {
		return nil, err
	}
	return completed[0], nil
}

func (r *MemoryRepository) ListCompleted(ctx context.Context, candidateID string) ([]*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sessions []*models.Session
	for _, s := range r.sessions {
		if s.CandidateID == candidateID && s.Status == models.SessionCompleted {
			sessions = append(sessions, cloneSession(s))
		}
	}

	// Newest commit first
	sort.Slice(sessions, func(i, j int) bool {
		si, sj := r.completionSeq[sessions[i].ID], r.completionSeq[sessions[j].ID]
		if si != sj {
			return si > sj
		}
		ti, tj := completedAt(sessions[i]), completedAt(sessions[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return sessions[i].ID > sessions[j].ID
	})
	return sessions, nil
}

func (r *MemoryRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sessions []*models.Session
	for _, s := range r.sessions {
		if s.Status == models.SessionInProgress && s.IsExpired(now) {
			sessions = append(sessions, cloneSession(s))
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].EndTime.Before(*sessions[j].EndTime)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (r *MemoryRepository) CompleteSession(ctx context.Context, c models.Completion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[c.SessionID]
	if !ok || s.Status != models.SessionInProgress {
		return ErrSessionCompleted
	}

	score := c.Score
	s.Status = models.SessionCompleted
	s.Outcome = c.Outcome
	s.Score = &score
	if c.LevelAchieved != nil {
		lv := *c.LevelAchieved
		s.LevelAchieved = &lv
	}
	if c.EndTime != nil {
		end := *c.EndTime
		s.EndTime = &end
	}
	at := c.CompletedAt
	s.CompletedAt = &at
	r.seq++
	r.completionSeq[s.ID] = r.seq

	if c.LockCandidate != "" {
		if cand, ok := r.candidates[c.LockCandidate]; ok && cand.Status == models.CandidateActive {
			_ = cand.Lock(c.CompletedAt)
		}
	}

	return nil
}

func cloneSession(s *models.Session) *models.Session {
	copied := *s
	if s.Score != nil {
		v := *s.Score
		copied.Score = &v
	}
	if s.LevelAchieved != nil {
		v := *s.LevelAchieved
		copied.LevelAchieved = &v
	}
	if s.EndTime != nil {
		v := *s.EndTime
		copied.EndTime = &v
	}
	if s.CompletedAt != nil {
		v := *s.CompletedAt
		copied.CompletedAt = &v
	}
	return &copied
}

func completedAt(s *models.Session) time.Time {
	if s.CompletedAt != nil {
		return *s.CompletedAt
	}
	return s.CreatedAt
}
