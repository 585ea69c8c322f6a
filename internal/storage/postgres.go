package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/assessment-engine/internal/models"
)

const pgUniqueViolation = "23505"

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25 // default
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5 // default
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// --- Candidates ---

const candidateColumns = `id, name, email, role, is_verified, status, locked_at, created_at`

// FindCandidateByID retrieves a candidate by ID
func (r *PostgresRepository) FindCandidateByID(ctx context.Context, id string) (*models.Candidate, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.findCandidate(ctx, "id", id)
}

// FindCandidateByEmail retrieves a candidate by email
func (r *PostgresRepository) FindCandidateByEmail(ctx context.Context, email string) (*models.Candidate, error) {
	return r.findCandidate(ctx, "email", email)
}

func (r *PostgresRepository) findCandidate(ctx context.Context, field, value string) (*models.Candidate, error) {
	query := fmt.Sprintf(`SELECT %s FROM candidates WHERE %s = $1`, candidateColumns, field)

	var c models.Candidate
	var role, status string
	var lockedAt sql.NullTime

	err := r.pool.QueryRow(ctx, query, value).Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&role,
		&c.IsVerified,
		&status,
		&lockedAt,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}

	c.Role = models.Role(role)
	c.Status = models.CandidateStatus(status)
	if lockedAt.Valid {
		c.LockedAt = &lockedAt.Time
	}

	return &c, nil
}

// CreateCandidate inserts a new candidate
func (r *PostgresRepository) CreateCandidate(ctx context.Context, c *models.Candidate) error {
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

	query := fmt.Sprintf(`INSERT INTO candidates (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, candidateColumns)

	_, err := r.pool.Exec(ctx, query,
		c.ID,
		c.Name,
		c.Email,
		string(c.Role),
		c.IsVerified,
		string(c.Status),
		nullTime(c.LockedAt),
		c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create candidate: %w", err)
	}

	return nil
}

// SaveCandidate updates profile fields of an existing candidate. A locked
// candidate is never moved back to active.
func (r *PostgresRepository) SaveCandidate(ctx context.Context, c *models.Candidate) error {
	query := `
		UPDATE candidates
		SET name = $2, email = $3, role = $4, is_verified = $5,
		    status = CASE WHEN status = 'locked' THEN status ELSE $6 END,
		    locked_at = COALESCE(locked_at, $7)
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		c.ID,
		c.Name,
		c.Email,
		string(c.Role),
		c.IsVerified,
		string(c.Status),
		nullTime(c.LockedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to save candidate: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("candidate not found: %s", c.ID)
	}

	return nil
}

// --- Questions ---

// SampleByLevels draws a random sample of questions for the given levels
func (r *PostgresRepository) SampleByLevels(ctx context.Context, levels []models.Level, count int) ([]models.QuestionPublic, error) {
	levelNames := make([]string, len(levels))
	for i, l := range levels {
		levelNames[i] = string(l)
	}

	query := `
		SELECT id, competency, level, question_text, options
		FROM questions
		WHERE level = ANY($1)
		ORDER BY random()
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, levelNames, count)
	if err != nil {
		return nil, fmt.Errorf("failed to sample questions: %w", err)
	}
	defer rows.Close()

	questions := make([]models.QuestionPublic, 0, count)

	for rows.Next() {
		var q models.QuestionPublic
		var level string
		var optionsJSON []byte

		if err := rows.Scan(&q.ID, &q.Competency, &level, &q.Text, &optionsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}

		q.Level = models.Level(level)
		if err := json.Unmarshal(optionsJSON, &q.Options); err != nil {
			return nil, fmt.Errorf("failed to unmarshal options: %w", err)
		}

		questions = append(questions, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating questions: %w", err)
	}

	return questions, nil
}

// FindCorrectAnswers returns the correct answers for the given question IDs.
// Unknown or malformed IDs are absent from the result.
func (r *PostgresRepository) FindCorrectAnswers(ctx context.Context, ids []string) (map[string]string, error) {
	answers := make(map[string]string, len(ids))

	parsed := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if u, err := uuid.Parse(id); err == nil {
			parsed = append(parsed, u)
		}
	}
	if len(parsed) == 0 {
		return answers, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT id, correct_answer FROM questions WHERE id = ANY($1)`, parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to get correct answers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, answer string
		if err := rows.Scan(&id, &answer); err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		answers[id] = answer
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating answers: %w", err)
	}

	return answers, nil
}

// InsertQuestions upserts questions in a single batch
func (r *PostgresRepository) InsertQuestions(ctx context.Context, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}

	query := `
		INSERT INTO questions (id, competency, level, question_text, options, correct_answer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET competency = EXCLUDED.competency, level = EXCLUDED.level, question_text = EXCLUDED.question_text,
		    options = EXCLUDED.options, correct_answer = EXCLUDED.correct_answer
	`

	batch := &pgx.Batch{}
	for _, q := range questions {
		if q.ID == "" {
			q.ID = uuid.New().String()
		}
		if q.CreatedAt.IsZero() {
			q.CreatedAt = time.Now().UTC()
		}

		optionsJSON, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("failed to marshal options: %w", err)
		}

		batch.Queue(query, q.ID, q.Competency, string(q.Level), q.Text, optionsJSON, q.CorrectAnswer, q.CreatedAt)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	for i := range questions {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert question %s: %w", questions[i].ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit questions: %w", err)
	}

	return nil
}

// CountByLevel returns the number of stored questions per level
func (r *PostgresRepository) CountByLevel(ctx context.Context) (map[models.Level]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT level, COUNT(*) FROM questions GROUP BY level`)
	if err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Level]int)
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[models.Level(level)] = n
	}

	return counts, rows.Err()
}

// --- Sessions ---

const sessionColumns = `id, candidate_id, step, status, outcome, score, level_achieved, start_time, end_time, completed_at, created_at`

// CreateSession creates a new in-progress session record
func (r *PostgresRepository) CreateSession(ctx context.Context, s *models.Session) error {
	query := fmt.Sprintf(`INSERT INTO sessions (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, sessionColumns)

	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.CandidateID,
		int(s.Step),
		string(s.Status),
		nullString(string(s.Outcome)),
		nullFloat(s.Score),
		nullLevel(s.LevelAchieved),
		s.StartTime,
		nullTime(s.EndTime),
		nullTime(s.CompletedAt),
		s.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSessionInProgress
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetSession retrieves a session by its ID
func (r *PostgresRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1`, sessionColumns)

	s, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return s, nil
}

// LatestCompleted returns the most recently completed session of a candidate
func (r *PostgresRepository) LatestCompleted(ctx context.Context, candidateID string) (*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sessions
		WHERE candidate_id = $1 AND status = 'completed'
		ORDER BY completion_seq DESC NULLS LAST, completed_at DESC NULLS LAST, created_at DESC
		LIMIT 1
	`, sessionColumns)

	s, err := scanSession(r.pool.QueryRow(ctx, query, candidateID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest completed session: %w", err)
	}

	return s, nil
}

// ListCompleted returns all completed sessions of a candidate, newest first
func (r *PostgresRepository) ListCompleted(ctx context.Context, candidateID string) ([]*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sessions
		WHERE candidate_id = $1 AND status = 'completed'
		ORDER BY completion_seq DESC NULLS LAST, completed_at DESC NULLS LAST, created_at DESC
	`, sessionColumns)

	return r.querySessions(ctx, query, candidateID)
}

// ListExpired returns in-progress sessions whose deadline has passed
func (r *PostgresRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sessions
		WHERE status = 'in_progress'
		  AND end_time < $1
		ORDER BY end_time ASC
		LIMIT $2
	`, sessionColumns)

	return r.querySessions(ctx, query, now, limit)
}

// CompleteSession moves a session to completed and optionally locks the
// owner, in one transaction. The status check is part of the UPDATE so two
// concurrent completions cannot both succeed.
func (r *PostgresRepository) CompleteSession(ctx context.Context, c models.Completion) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE sessions
		SET status = 'completed', outcome = $2, score = $3, level_achieved = $4,
		    end_time = COALESCE($5::timestamptz, end_time), completed_at = $6,
		    completion_seq = nextval('sessions_completion_seq')
		WHERE id = $1 AND status = 'in_progress'
	`

	result, err := tx.Exec(ctx, query,
		c.SessionID,
		string(c.Outcome),
		c.Score,
		nullLevel(c.LevelAchieved),
		nullTime(c.EndTime),
		c.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrSessionCompleted
	}

	if c.LockCandidate != "" {
		_, err := tx.Exec(ctx,
			`UPDATE candidates SET status = 'locked', locked_at = $2 WHERE id = $1 AND status = 'active'`,
			c.LockCandidate, c.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to lock candidate: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit completion: %w", err)
	}

	return nil
}

func (r *PostgresRepository) querySessions(ctx context.Context, query string, args ...interface{}) ([]*models.Session, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session

	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	var step int
	var status string
	var outcome, level sql.NullString
	var score sql.NullFloat64
	var endTime, completedAt sql.NullTime

	err := row.Scan(
		&s.ID,
		&s.CandidateID,
		&step,
		&status,
		&outcome,
		&score,
		&level,
		&s.StartTime,
		&endTime,
		&completedAt,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Step = models.Step(step)
	s.Status = models.SessionStatus(status)
	s.Outcome = models.SessionOutcome(outcome.String)

	if score.Valid {
		s.Score = &score.Float64
	}
	if level.Valid {
		lv := models.Level(level.String)
		s.LevelAchieved = &lv
	}
	if endTime.Valid {
		s.EndTime = &endTime.Time
	}
	if completedAt.Valid {
		s.CompletedAt = &completedAt.Time
	}

	return &s, nil
}

// Helper functions for nullable values

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullLevel(l *models.Level) sql.NullString {
	if l == nil {
		return sql.NullString{}
	}
	return nullString(string(*l))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
