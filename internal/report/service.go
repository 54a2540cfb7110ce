package report

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	ErrQuizNotFound = errors.New("quiz not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Service aggregates completed attempts for quiz owners. Abandoned
// (never-completed) attempts are excluded everywhere.
type Service struct {
	db *sql.DB
}

type QuizReport struct {
	QuizID       int64   `json:"quiz_id"`
	Title        string  `json:"title"`
	PassingScore int     `json:"passing_score"`
	Participants int     `json:"participants"`
	AverageScore float64 `json:"average_score"`
	HighestScore float64 `json:"highest_score"`
	LowestScore  float64 `json:"lowest_score"`
	PassRate     float64 `json:"pass_rate"`
}

type attemptExportRow struct {
	AttemptID int64
	Owner     string
	Score     float64
	Passed    bool
	TimeTaken int64
	StartTime time.Time
	EndTime   time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

func (s *Service) SummaryByQuiz(ctx context.Context, quizID int64) (*QuizReport, error) {
	if quizID <= 0 {
		return nil, ErrInvalidInput
	}

	rep := &QuizReport{QuizID: quizID}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			z.title,
			z.passing_score,
			COUNT(a.id),
			COALESCE(AVG(a.score), 0),
			COALESCE(MAX(a.score), 0),
			COALESCE(MIN(a.score), 0),
			COALESCE(AVG(CASE WHEN a.score >= z.passing_score THEN 1.0 ELSE 0.0 END), 0)
		FROM quizzes z
		LEFT JOIN attempts a ON a.quiz_id = z.id AND a.is_completed = TRUE
		WHERE z.id = $1
		GROUP BY z.id
	`, quizID).Scan(
		&rep.Title,
		&rep.PassingScore,
		&rep.Participants,
		&rep.AverageScore,
		&rep.HighestScore,
		&rep.LowestScore,
		&rep.PassRate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("query quiz report: %w", err)
	}
	return rep, nil
}

// ExportAttemptsExcel writes every completed attempt of a quiz to an XLSX
// workbook, one row per attempt.
func (s *Service) ExportAttemptsExcel(ctx context.Context, quizID int64) ([]byte, error) {
	if quizID <= 0 {
		return nil, ErrInvalidInput
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM quizzes WHERE id = $1)
	`, quizID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check quiz exists: %w", err)
	}
	if !exists {
		return nil, ErrQuizNotFound
	}

	items, err := s.listCompletedAttempts(ctx, quizID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"attempt_id", "owner", "score", "passed", "time_taken_secs", "start_time", "end_time"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, it := range items {
		row := i + 2
		values := []any{
			it.AttemptID,
			it.Owner,
			it.Score,
			it.Passed,
			it.TimeTaken,
			it.StartTime.Format("2006-01-02 15:04:05"),
			it.EndTime.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "A", "G", 20)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Service) listCompletedAttempts(ctx context.Context, quizID int64) ([]attemptExportRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			a.id,
			COALESCE(u.username, 'anonymous'),
			a.score,
			a.score >= z.passing_score,
			a.time_taken,
			a.start_time,
			a.end_time
		FROM attempts a
		JOIN quizzes z ON z.id = a.quiz_id
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.quiz_id = $1 AND a.is_completed = TRUE
		ORDER BY a.end_time ASC
	`, quizID)
	if err != nil {
		return nil, fmt.Errorf("query completed attempts: %w", err)
	}
	defer rows.Close()

	out := make([]attemptExportRow, 0)
	for rows.Next() {
		var it attemptExportRow
		if err := rows.Scan(&it.AttemptID, &it.Owner, &it.Score, &it.Passed, &it.TimeTaken, &it.StartTime, &it.EndTime); err != nil {
			return nil, fmt.Errorf("scan completed attempt: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completed attempts: %w", err)
	}
	return out, nil
}
