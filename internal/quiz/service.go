package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrQuizNotFound = errors.New("quiz not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Question types supported by the bank. A true/false question is stored as
// a single-choice question with two options.
const (
	TypeSingleChoice   = "single_choice"
	TypeMultipleChoice = "multiple_choice"
	TypeTrueFalse      = "true_false"
)

// Service is the read side of the question bank. It never mutates anything;
// quiz authoring lives elsewhere in the platform.
type Service struct {
	db *sql.DB
}

type Quiz struct {
	ID                 int64     `json:"id"`
	Slug               string    `json:"slug"`
	Title              string    `json:"title"`
	Description        string    `json:"description,omitempty"`
	PassingScore       int       `json:"passing_score"`
	RandomizeQuestions bool      `json:"randomize_questions"`
	RandomizeAnswers   bool      `json:"randomize_answers"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
}

type QuizSummary struct {
	Slug          string `json:"slug"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	PassingScore  int    `json:"passing_score"`
	QuestionCount int    `json:"question_count"`
}

type Question struct {
	ID          int64    `json:"id"`
	QuizID      int64    `json:"quiz_id"`
	Type        string   `json:"type"`
	Prompt      string   `json:"prompt"`
	OrderInQuiz int      `json:"order_in_quiz"`
	Options     []Option `json:"options"`
}

type Option struct {
	ID           int64  `json:"id"`
	Text         string `json:"text"`
	IsCorrect    bool   `json:"is_correct"`
	DisplayOrder int    `json:"display_order"`
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// ListPublished returns the public quiz catalog.
func (s *Service) ListPublished(ctx context.Context) ([]QuizSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			z.slug,
			z.title,
			COALESCE(z.description, ''),
			z.passing_score,
			COUNT(q.id) AS question_count
		FROM quizzes z
		LEFT JOIN questions q ON q.quiz_id = z.id
		WHERE z.status = 'published'
		GROUP BY z.id
		ORDER BY z.title ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query quiz catalog: %w", err)
	}
	defer rows.Close()

	out := make([]QuizSummary, 0)
	for rows.Next() {
		var item QuizSummary
		if err := rows.Scan(&item.Slug, &item.Title, &item.Description, &item.PassingScore, &item.QuestionCount); err != nil {
			return nil, fmt.Errorf("scan quiz summary: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quiz catalog: %w", err)
	}
	return out, nil
}

// GetBySlug loads a published quiz's configuration. Draft quizzes are
// indistinguishable from missing ones on this surface.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Quiz, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrInvalidInput
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, slug, title, COALESCE(description, ''), passing_score,
		       randomize_questions, randomize_answers, status, created_at
		FROM quizzes
		WHERE slug = $1 AND status = 'published'
	`, slug)

	var z Quiz
	if err := row.Scan(
		&z.ID,
		&z.Slug,
		&z.Title,
		&z.Description,
		&z.PassingScore,
		&z.RandomizeQuestions,
		&z.RandomizeAnswers,
		&z.Status,
		&z.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	return &z, nil
}

// GetByID loads a quiz regardless of status. Used by attempt finalization
// and reporting, which reference quizzes attempts already point at.
func (s *Service) GetByID(ctx context.Context, quizID int64) (*Quiz, error) {
	if quizID <= 0 {
		return nil, ErrInvalidInput
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, slug, title, COALESCE(description, ''), passing_score,
		       randomize_questions, randomize_answers, status, created_at
		FROM quizzes
		WHERE id = $1
	`, quizID)

	var z Quiz
	if err := row.Scan(
		&z.ID,
		&z.Slug,
		&z.Title,
		&z.Description,
		&z.PassingScore,
		&z.RandomizeQuestions,
		&z.RandomizeAnswers,
		&z.Status,
		&z.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("load quiz by id: %w", err)
	}
	return &z, nil
}

// LoadQuestionSet returns the quiz's questions with their options in
// canonical order: questions by order_in_quiz, options by display_order.
// Options carry their answer-key flag; callers serving untrusted clients
// must strip it.
func (s *Service) LoadQuestionSet(ctx context.Context, quizID int64) ([]Question, error) {
	if quizID <= 0 {
		return nil, ErrInvalidInput
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			q.id,
			q.quiz_id,
			q.question_type,
			q.prompt,
			q.order_in_quiz,
			o.id,
			o.option_text,
			o.is_correct,
			o.display_order
		FROM questions q
		JOIN options o ON o.question_id = q.id
		WHERE q.quiz_id = $1
		ORDER BY q.order_in_quiz ASC, o.display_order ASC
	`, quizID)
	if err != nil {
		return nil, fmt.Errorf("query question set: %w", err)
	}
	defer rows.Close()

	out := make([]Question, 0)
	index := map[int64]int{}
	for rows.Next() {
		var (
			q   Question
			opt Option
		)
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Type, &q.Prompt, &q.OrderInQuiz, &opt.ID, &opt.Text, &opt.IsCorrect, &opt.DisplayOrder); err != nil {
			return nil, fmt.Errorf("scan question row: %w", err)
		}
		i, ok := index[q.ID]
		if !ok {
			q.Options = []Option{opt}
			out = append(out, q)
			index[q.ID] = len(out) - 1
			continue
		}
		out[i].Options = append(out[i].Options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question set: %w", err)
	}
	return out, nil
}

// AnswerKey returns the set of correct option ids for one question of a
// quiz, plus whether the question belongs to that quiz at all.
func (s *Service) AnswerKey(ctx context.Context, quizID, questionID int64) ([]int64, bool, error) {
	if quizID <= 0 || questionID <= 0 {
		return nil, false, ErrInvalidInput
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM questions
			WHERE id = $1 AND quiz_id = $2
		)
	`, questionID, quizID).Scan(&exists); err != nil {
		return nil, false, fmt.Errorf("validate question in quiz: %w", err)
	}
	if !exists {
		return nil, false, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id
		FROM options
		WHERE question_id = $1 AND is_correct = TRUE
		ORDER BY id ASC
	`, questionID)
	if err != nil {
		return nil, false, fmt.Errorf("query answer key: %w", err)
	}
	defer rows.Close()

	key := make([]int64, 0, 4)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, false, fmt.Errorf("scan answer key: %w", err)
		}
		key = append(key, id)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate answer key: %w", err)
	}
	return key, true, nil
}
