package attempt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quizhub/internal/quiz"

	"github.com/google/uuid"
)

var (
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrAttemptCompleted  = errors.New("attempt already completed")
	ErrQuestionNotInQuiz = errors.New("question not in quiz")
	ErrAttemptForbidden  = errors.New("attempt forbidden")
	ErrInvalidInput      = errors.New("invalid input")
)

// Service drives the attempt state machine: a row is created in progress,
// accumulates upserted responses, and is sealed exactly once by Complete.
// There is no expiry transition; an abandoned attempt stays in progress
// forever and never shows up in completed-attempt reporting.
type Service struct {
	db   *sql.DB
	bank *quiz.Service
}

func NewService(db *sql.DB, bank *quiz.Service) *Service {
	return &Service{db: db, bank: bank}
}

type StartInput struct {
	QuizSlug string
	UserID   *int64
}

type StartResult struct {
	AttemptID int64 `json:"attempt_id"`
	// AttemptToken is returned once, only for anonymous attempts; the
	// client presents it on later calls to prove ownership.
	AttemptToken string          `json:"attempt_token,omitempty"`
	QuizSlug     string          `json:"quiz_slug"`
	QuizTitle    string          `json:"quiz_title"`
	PassingScore int             `json:"passing_score"`
	StartTime    time.Time       `json:"start_time"`
	Questions    []StartQuestion `json:"questions"`
}

type StartQuestion struct {
	ID      int64         `json:"id"`
	Type    string        `json:"type"`
	Prompt  string        `json:"prompt"`
	Options []StartOption `json:"options"`
}

// StartOption deliberately has no correctness field: the answer key never
// leaves the server while an attempt is open.
type StartOption struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

type SubmitInput struct {
	AttemptID         int64
	QuestionID        int64
	SelectedOptionIDs []int64
	TimeSpent         *int
}

type SubmitResult struct {
	IsCorrect bool `json:"is_correct"`
}

type Summary struct {
	AttemptID      int64      `json:"attempt_id"`
	QuizID         int64      `json:"quiz_id"`
	IsCompleted    bool       `json:"is_completed"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Answered       int        `json:"answered"`
	TotalQuestions int        `json:"total_questions"`
	Score          *float64   `json:"score,omitempty"`
	TimeTaken      *int64     `json:"time_taken,omitempty"`
	ElapsedSecs    int64      `json:"elapsed_secs"`
}

type CompleteResult struct {
	AttemptID      int64            `json:"attempt_id"`
	Score          float64          `json:"score"`
	Passed         bool             `json:"passed"`
	TotalQuestions int              `json:"total_questions"`
	CorrectAnswers int              `json:"correct_answers"`
	TimeTaken      int64            `json:"time_taken"`
	EndTime        time.Time        `json:"end_time"`
	Responses      []ResponseDetail `json:"responses"`
}

type ResponseDetail struct {
	QuestionID        int64          `json:"question_id"`
	Prompt            string         `json:"prompt"`
	SelectedOptionIDs []int64        `json:"selected_option_ids"`
	IsCorrect         bool           `json:"is_correct"`
	TimeSpent         *int           `json:"time_spent,omitempty"`
	Options           []OptionDetail `json:"options"`
}

// OptionDetail carries is_correct: it only ever appears in the payload of a
// sealed attempt.
type OptionDetail struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type attemptRow struct {
	ID           int64
	QuizID       int64
	UserID       sql.NullInt64
	SessionToken sql.NullString
	StartTime    time.Time
	EndTime      sql.NullTime
	IsCompleted  bool
	Score        sql.NullFloat64
	TimeTaken    sql.NullInt64
}

// Start creates an attempt against a published quiz and builds its question
// payload. Exactly one owner field is set: the authenticated user id when
// present, a fresh session token otherwise.
func (s *Service) Start(ctx context.Context, in StartInput) (*StartResult, error) {
	z, err := s.bank.GetBySlug(ctx, in.QuizSlug)
	if err != nil {
		return nil, err
	}

	questions, err := s.bank.LoadQuestionSet(ctx, z.ID)
	if err != nil {
		return nil, err
	}

	var userID interface{}
	var sessionToken interface{}
	attemptToken := ""
	if in.UserID != nil {
		userID = *in.UserID
	} else {
		attemptToken = uuid.NewString()
		sessionToken = attemptToken
	}

	var attemptID int64
	var startTime time.Time
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO attempts (quiz_id, user_id, session_token, start_time, is_completed)
		VALUES ($1, $2, $3, now(), FALSE)
		RETURNING id, start_time
	`, z.ID, userID, sessionToken).Scan(&attemptID, &startTime)
	if err != nil {
		return nil, fmt.Errorf("insert attempt: %w", err)
	}

	if z.RandomizeQuestions {
		questions = shuffleQuestions(questions)
	}

	payload := make([]StartQuestion, 0, len(questions))
	for _, q := range questions {
		options := q.Options
		if z.RandomizeAnswers {
			options = shuffleOptions(options)
		}
		sq := StartQuestion{
			ID:      q.ID,
			Type:    q.Type,
			Prompt:  q.Prompt,
			Options: make([]StartOption, 0, len(options)),
		}
		for _, o := range options {
			sq.Options = append(sq.Options, StartOption{ID: o.ID, Text: o.Text})
		}
		payload = append(payload, sq)
	}

	return &StartResult{
		AttemptID:    attemptID,
		AttemptToken: attemptToken,
		QuizSlug:     z.Slug,
		QuizTitle:    z.Title,
		PassingScore: z.PassingScore,
		StartTime:    startTime,
		Questions:    payload,
	}, nil
}

// Submit evaluates and upserts one response. The attempt row is locked for
// the duration so a submit racing a complete either lands before scoring or
// fails ErrAttemptCompleted, never halfway.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if in.AttemptID <= 0 || in.QuestionID <= 0 {
		return nil, ErrInvalidInput
	}
	if in.TimeSpent != nil && *in.TimeSpent < 0 {
		return nil, ErrInvalidInput
	}
	selected := normalizeOptionIDs(in.SelectedOptionIDs)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin submit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row, err := s.loadAttemptRowForUpdate(ctx, tx, in.AttemptID)
	if err != nil {
		return nil, err
	}
	if row.IsCompleted {
		return nil, ErrAttemptCompleted
	}

	key, inQuiz, err := s.bank.AnswerKey(ctx, row.QuizID, in.QuestionID)
	if err != nil {
		return nil, err
	}
	if !inQuiz {
		return nil, ErrQuestionNotInQuiz
	}

	isCorrect := evaluateSelection(key, selected)

	selectedJSON, err := json.Marshal(selected)
	if err != nil {
		return nil, fmt.Errorf("encode selected option ids: %w", err)
	}

	var timeSpent interface{}
	if in.TimeSpent != nil {
		timeSpent = *in.TimeSpent
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO responses (
			attempt_id, question_id, selected_option_ids, is_correct, time_spent, updated_at
		) VALUES ($1, $2, $3::jsonb, $4, $5, now())
		ON CONFLICT (attempt_id, question_id)
		DO UPDATE SET
			selected_option_ids = EXCLUDED.selected_option_ids,
			is_correct = EXCLUDED.is_correct,
			time_spent = EXCLUDED.time_spent,
			updated_at = now()
	`, in.AttemptID, in.QuestionID, selectedJSON, isCorrect, timeSpent); err != nil {
		return nil, fmt.Errorf("upsert response: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit submit: %w", err)
	}
	return &SubmitResult{IsCorrect: isCorrect}, nil
}

// Complete seals the attempt: score, end time and elapsed seconds are
// written in one update under the row lock, after which the attempt is
// immutable. Unanswered questions contribute nothing; the score denominator
// is the number of responses recorded.
func (s *Service) Complete(ctx context.Context, attemptID int64) (*CompleteResult, error) {
	if attemptID <= 0 {
		return nil, ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin complete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row, err := s.loadAttemptRowForUpdate(ctx, tx, attemptID)
	if err != nil {
		return nil, err
	}
	if row.IsCompleted {
		return nil, ErrAttemptCompleted
	}

	answered, correct, err := countResponses(ctx, tx, attemptID)
	if err != nil {
		return nil, err
	}
	score := scorePercent(correct, answered)

	var endTime time.Time
	var timeTaken int64
	err = tx.QueryRowContext(ctx, `
		UPDATE attempts
		SET is_completed = TRUE,
			end_time = now(),
			score = $2,
			time_taken = floor(extract(epoch FROM (now() - start_time)))::bigint
		WHERE id = $1
		RETURNING end_time, time_taken
	`, attemptID, score).Scan(&endTime, &timeTaken)
	if err != nil {
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}

	details, err := loadResponseDetails(ctx, tx, attemptID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit complete: %w", err)
	}

	z, err := s.bank.GetByID(ctx, row.QuizID)
	if err != nil {
		return nil, err
	}

	return &CompleteResult{
		AttemptID:      attemptID,
		Score:          score,
		Passed:         score >= float64(z.PassingScore),
		TotalQuestions: answered,
		CorrectAnswers: correct,
		TimeTaken:      timeTaken,
		EndTime:        endTime,
		Responses:      details,
	}, nil
}

// GetSummary reports attempt progress. For a sealed attempt the frozen
// score and timing come back; for a live one only counts and elapsed time.
func (s *Service) GetSummary(ctx context.Context, attemptID int64) (*Summary, error) {
	row, err := s.loadAttemptRow(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	var totalQuestions int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM questions WHERE quiz_id = $1
	`, row.QuizID).Scan(&totalQuestions); err != nil {
		return nil, fmt.Errorf("count quiz questions: %w", err)
	}

	var answered int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM responses WHERE attempt_id = $1
	`, attemptID).Scan(&answered); err != nil {
		return nil, fmt.Errorf("count responses: %w", err)
	}

	summary := &Summary{
		AttemptID:      row.ID,
		QuizID:         row.QuizID,
		IsCompleted:    row.IsCompleted,
		StartTime:      row.StartTime,
		Answered:       answered,
		TotalQuestions: totalQuestions,
	}
	if row.EndTime.Valid {
		t := row.EndTime.Time
		summary.EndTime = &t
		summary.ElapsedSecs = int64(t.Sub(row.StartTime).Seconds())
	} else {
		summary.ElapsedSecs = int64(time.Since(row.StartTime).Seconds())
	}
	if row.Score.Valid {
		v := row.Score.Float64
		summary.Score = &v
	}
	if row.TimeTaken.Valid {
		v := row.TimeTaken.Int64
		summary.TimeTaken = &v
	}
	return summary, nil
}

// GetOwner returns whichever owner field the attempt carries: a user id for
// authenticated attempts, a session token for anonymous ones.
func (s *Service) GetOwner(ctx context.Context, attemptID int64) (*int64, string, error) {
	row, err := s.loadAttemptRow(ctx, attemptID)
	if err != nil {
		return nil, "", err
	}
	if row.UserID.Valid {
		v := row.UserID.Int64
		return &v, "", nil
	}
	return nil, row.SessionToken.String, nil
}

func (s *Service) loadAttemptRow(ctx context.Context, attemptID int64) (*attemptRow, error) {
	return scanAttemptRow(s.db.QueryRowContext(ctx, `
		SELECT id, quiz_id, user_id, session_token, start_time, end_time,
		       is_completed, score, time_taken
		FROM attempts
		WHERE id = $1
	`, attemptID))
}

func (s *Service) loadAttemptRowForUpdate(ctx context.Context, tx *sql.Tx, attemptID int64) (*attemptRow, error) {
	return scanAttemptRow(tx.QueryRowContext(ctx, `
		SELECT id, quiz_id, user_id, session_token, start_time, end_time,
		       is_completed, score, time_taken
		FROM attempts
		WHERE id = $1
		FOR UPDATE
	`, attemptID))
}

func scanAttemptRow(r *sql.Row) (*attemptRow, error) {
	row := &attemptRow{}
	err := r.Scan(
		&row.ID,
		&row.QuizID,
		&row.UserID,
		&row.SessionToken,
		&row.StartTime,
		&row.EndTime,
		&row.IsCompleted,
		&row.Score,
		&row.TimeTaken,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("load attempt: %w", err)
	}
	return row, nil
}

func countResponses(ctx context.Context, tx *sql.Tx, attemptID int64) (answered, correct int, err error) {
	err = tx.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_correct)
		FROM responses
		WHERE attempt_id = $1
	`, attemptID).Scan(&answered, &correct)
	if err != nil {
		return 0, 0, fmt.Errorf("count responses: %w", err)
	}
	return answered, correct, nil
}

func loadResponseDetails(ctx context.Context, tx *sql.Tx, attemptID int64) ([]ResponseDetail, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT
			r.question_id,
			q.prompt,
			r.selected_option_ids,
			r.is_correct,
			r.time_spent,
			o.id,
			o.option_text,
			o.is_correct
		FROM responses r
		JOIN questions q ON q.id = r.question_id
		JOIN options o ON o.question_id = q.id
		WHERE r.attempt_id = $1
		ORDER BY q.order_in_quiz ASC, o.display_order ASC
	`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("query response details: %w", err)
	}
	defer rows.Close()

	out := make([]ResponseDetail, 0)
	index := map[int64]int{}
	for rows.Next() {
		var (
			d            ResponseDetail
			selectedJSON []byte
			timeSpent    sql.NullInt64
			opt          OptionDetail
		)
		if err := rows.Scan(&d.QuestionID, &d.Prompt, &selectedJSON, &d.IsCorrect, &timeSpent, &opt.ID, &opt.Text, &opt.IsCorrect); err != nil {
			return nil, fmt.Errorf("scan response detail: %w", err)
		}

		i, ok := index[d.QuestionID]
		if !ok {
			if err := json.Unmarshal(selectedJSON, &d.SelectedOptionIDs); err != nil {
				return nil, fmt.Errorf("decode selected option ids: %w", err)
			}
			if d.SelectedOptionIDs == nil {
				d.SelectedOptionIDs = []int64{}
			}
			if timeSpent.Valid {
				v := int(timeSpent.Int64)
				d.TimeSpent = &v
			}
			d.Options = []OptionDetail{opt}
			out = append(out, d)
			index[d.QuestionID] = len(out) - 1
			continue
		}
		out[i].Options = append(out[i].Options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate response details: %w", err)
	}
	return out, nil
}
