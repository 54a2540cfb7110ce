package quiz

import (
	"context"
	"errors"
	"net/http"

	"quizhub/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc catalogService
}

type catalogService interface {
	ListPublished(ctx context.Context) ([]QuizSummary, error)
	GetBySlug(ctx context.Context, slug string) (*Quiz, error)
}

// quizView is the public shape of a quiz. Internal ids and lifecycle status
// stay server-side.
type quizView struct {
	Slug               string `json:"slug"`
	Title              string `json:"title"`
	Description        string `json:"description,omitempty"`
	PassingScore       int    `json:"passing_score"`
	RandomizeQuestions bool   `json:"randomize_questions"`
	RandomizeAnswers   bool   `json:"randomize_answers"`
}

func NewHandler(svc catalogService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListPublished(r.Context())
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	z, err := h.svc.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		switch {
		case errors.Is(err, ErrQuizNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrInvalidInput):
			apiresp.WriteError(w, r, http.StatusBadRequest, "invalid quiz slug")
		default:
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	apiresp.WriteOK(w, r, http.StatusOK, quizView{
		Slug:               z.Slug,
		Title:              z.Title,
		Description:        z.Description,
		PassingScore:       z.PassingScore,
		RandomizeQuestions: z.RandomizeQuestions,
		RandomizeAnswers:   z.RandomizeAnswers,
	})
}
