package report

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"quizhub/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc reportService
}

type reportService interface {
	SummaryByQuiz(ctx context.Context, quizID int64) (*QuizReport, error)
	ExportAttemptsExcel(ctx context.Context, quizID int64) ([]byte, error)
}

func NewHandler(svc reportService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) QuizSummary(w http.ResponseWriter, r *http.Request) {
	quizID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || quizID <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid quiz id")
		return
	}

	rep, err := h.svc.SummaryByQuiz(r.Context(), quizID)
	if err != nil {
		switch {
		case errors.Is(err, ErrQuizNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrInvalidInput):
			apiresp.WriteError(w, r, http.StatusBadRequest, "invalid quiz id")
		default:
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, rep)
}

func (h *Handler) ExportAttempts(w http.ResponseWriter, r *http.Request) {
	quizID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || quizID <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid quiz id")
		return
	}

	data, err := h.svc.ExportAttemptsExcel(r.Context(), quizID)
	if err != nil {
		switch {
		case errors.Is(err, ErrQuizNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrInvalidInput):
			apiresp.WriteError(w, r, http.StatusBadRequest, "invalid quiz id")
		default:
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	filename := fmt.Sprintf("quiz-%d-attempts.xlsx", quizID)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
