package attempt

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"quizhub/internal/app/apiresp"
	"quizhub/internal/identity"
	"quizhub/internal/quiz"

	"github.com/go-chi/chi/v5"
)

// Anonymous clients prove attempt ownership with this header, carrying the
// token returned by start.
const attemptTokenHeader = "X-Attempt-Token"

type Handler struct {
	svc attemptService
}

type attemptService interface {
	Start(ctx context.Context, in StartInput) (*StartResult, error)
	Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error)
	Complete(ctx context.Context, attemptID int64) (*CompleteResult, error)
	GetSummary(ctx context.Context, attemptID int64) (*Summary, error)
	GetOwner(ctx context.Context, attemptID int64) (*int64, string, error)
}

type submitAnswerRequest struct {
	SelectedOptionIDs []int64 `json:"selected_option_ids"`
	TimeSpent         *int    `json:"time_spent,omitempty"`
}

func NewHandler(svc attemptService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	if slug == "" {
		apiresp.WriteError(w, r, http.StatusBadRequest, "quiz slug is required")
		return
	}

	var userID *int64
	if user, ok := identity.CurrentUser(r.Context()); ok {
		userID = &user.ID
	}

	result, err := h.svc.Start(r.Context(), StartInput{QuizSlug: slug, UserID: userID})
	if err != nil {
		switch {
		case errors.Is(err, quiz.ErrQuizNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		case errors.Is(err, quiz.ErrInvalidInput):
			apiresp.WriteError(w, r, http.StatusBadRequest, "invalid quiz slug")
		default:
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	apiresp.WriteOK(w, r, http.StatusCreated, result)
}

func (h *Handler) SaveAnswer(w http.ResponseWriter, r *http.Request) {
	attemptID, ok := parseIDParam(r, "id")
	if !ok {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid attempt id")
		return
	}
	questionID, ok := parseIDParam(r, "questionID")
	if !ok {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid question id")
		return
	}

	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.authorizeAttemptAccess(r, attemptID); err != nil {
		h.writeAccessError(w, r, err)
		return
	}

	result, err := h.svc.Submit(r.Context(), SubmitInput{
		AttemptID:         attemptID,
		QuestionID:        questionID,
		SelectedOptionIDs: req.SelectedOptionIDs,
		TimeSpent:         req.TimeSpent,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrAttemptNotFound), errors.Is(err, ErrQuestionNotInQuiz):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrAttemptCompleted):
			apiresp.WriteError(w, r, http.StatusConflict, err.Error())
		case errors.Is(err, ErrInvalidInput):
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		default:
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	apiresp.WriteOK(w, r, http.StatusOK, result)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	attemptID, ok := parseIDParam(r, "id")
	if !ok {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid attempt id")
		return
	}

	if err := h.authorizeAttemptAccess(r, attemptID); err != nil {
		h.writeAccessError(w, r, err)
		return
	}

	result, err := h.svc.Complete(r.Context(), attemptID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAttemptNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrAttemptCompleted):
			apiresp.WriteError(w, r, http.StatusConflict, err.Error())
		case errors.Is(err, ErrInvalidInput):
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		default:
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	apiresp.WriteOK(w, r, http.StatusOK, result)
}

func (h *Handler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID, ok := parseIDParam(r, "id")
	if !ok {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid attempt id")
		return
	}

	if err := h.authorizeAttemptAccess(r, attemptID); err != nil {
		h.writeAccessError(w, r, err)
		return
	}

	summary, err := h.svc.GetSummary(r.Context(), attemptID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAttemptNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		default:
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	apiresp.WriteOK(w, r, http.StatusOK, summary)
}

// authorizeAttemptAccess admits the attempt's owner: the matching session
// user for authenticated attempts, the matching attempt token for anonymous
// ones. Admins may read any attempt.
func (h *Handler) authorizeAttemptAccess(r *http.Request, attemptID int64) error {
	ownerID, ownerToken, err := h.svc.GetOwner(r.Context(), attemptID)
	if err != nil {
		return err
	}

	if user, ok := identity.CurrentUser(r.Context()); ok {
		if user.Role == "admin" {
			return nil
		}
		if ownerID != nil && *ownerID == user.ID {
			return nil
		}
	}

	if ownerID == nil && ownerToken != "" {
		presented := strings.TrimSpace(r.Header.Get(attemptTokenHeader))
		if presented != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(ownerToken)) == 1 {
			return nil
		}
	}

	return ErrAttemptForbidden
}

func (h *Handler) writeAccessError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrAttemptNotFound):
		apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAttemptForbidden):
		apiresp.WriteError(w, r, http.StatusForbidden, "forbidden")
	default:
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func parseIDParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
