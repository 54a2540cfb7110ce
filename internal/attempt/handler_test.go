package attempt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quizhub/internal/identity"
	"quizhub/internal/quiz"

	"github.com/go-chi/chi/v5"
)

type mockAttemptService struct {
	startFn      func(ctx context.Context, in StartInput) (*StartResult, error)
	submitFn     func(ctx context.Context, in SubmitInput) (*SubmitResult, error)
	completeFn   func(ctx context.Context, attemptID int64) (*CompleteResult, error)
	getSummaryFn func(ctx context.Context, attemptID int64) (*Summary, error)
	getOwnerFn   func(ctx context.Context, attemptID int64) (*int64, string, error)
}

func (m *mockAttemptService) Start(ctx context.Context, in StartInput) (*StartResult, error) {
	if m.startFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.startFn(ctx, in)
}

func (m *mockAttemptService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if m.submitFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.submitFn(ctx, in)
}

func (m *mockAttemptService) Complete(ctx context.Context, attemptID int64) (*CompleteResult, error) {
	if m.completeFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.completeFn(ctx, attemptID)
}

func (m *mockAttemptService) GetSummary(ctx context.Context, attemptID int64) (*Summary, error) {
	if m.getSummaryFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.getSummaryFn(ctx, attemptID)
}

func (m *mockAttemptService) GetOwner(ctx context.Context, attemptID int64) (*int64, string, error) {
	if m.getOwnerFn == nil {
		return nil, "", errors.New("not implemented")
	}
	return m.getOwnerFn(ctx, attemptID)
}

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestStartAnonymousReturnsToken(t *testing.T) {
	var gotUserID *int64
	h := NewHandler(&mockAttemptService{
		startFn: func(ctx context.Context, in StartInput) (*StartResult, error) {
			gotUserID = in.UserID
			return &StartResult{
				AttemptID:    7,
				AttemptToken: "tok-abc",
				QuizSlug:     in.QuizSlug,
				QuizTitle:    "Go Basics",
				PassingScore: 70,
				StartTime:    time.Now(),
				Questions: []StartQuestion{
					{ID: 1, Type: quiz.TypeSingleChoice, Prompt: "Pick one", Options: []StartOption{{ID: 10, Text: "A"}, {ID: 11, Text: "B"}}},
				},
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes/go-basics/attempts", nil)
	req = withChiParam(req, "slug", "go-basics")
	w := httptest.NewRecorder()

	h.Start(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if gotUserID != nil {
		t.Fatalf("expected nil user id for anonymous start, got %d", *gotUserID)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"attempt_token":"tok-abc"`) {
		t.Fatalf("expected attempt token in response, got %s", body)
	}
	if strings.Contains(body, "is_correct") {
		t.Fatalf("start payload must not leak answer key: %s", body)
	}
}

func TestStartAuthenticatedUsesSessionUser(t *testing.T) {
	var gotUserID *int64
	h := NewHandler(&mockAttemptService{
		startFn: func(ctx context.Context, in StartInput) (*StartResult, error) {
			gotUserID = in.UserID
			return &StartResult{AttemptID: 3, QuizSlug: in.QuizSlug, StartTime: time.Now()}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes/go-basics/attempts", nil)
	req = withChiParam(req, "slug", "go-basics")
	req = req.WithContext(identity.ContextWithUser(req.Context(), &identity.User{ID: 42, Role: "member"}))
	w := httptest.NewRecorder()

	h.Start(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if gotUserID == nil || *gotUserID != 42 {
		t.Fatalf("expected user id 42 from session, got %v", gotUserID)
	}
	if strings.Contains(w.Body.String(), "attempt_token") {
		t.Fatalf("authenticated start must not include an attempt token: %s", w.Body.String())
	}
}

func TestStartUnknownQuizReturns404(t *testing.T) {
	h := NewHandler(&mockAttemptService{
		startFn: func(ctx context.Context, in StartInput) (*StartResult, error) {
			return nil, quiz.ErrQuizNotFound
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes/missing/attempts", nil)
	req = withChiParam(req, "slug", "missing")
	w := httptest.NewRecorder()

	h.Start(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestSaveAnswerCompletedAttemptReturns409(t *testing.T) {
	ownerID := int64(42)
	h := NewHandler(&mockAttemptService{
		getOwnerFn: func(ctx context.Context, attemptID int64) (*int64, string, error) {
			return &ownerID, "", nil
		},
		submitFn: func(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
			return nil, ErrAttemptCompleted
		},
	})

	payload := []byte(`{"selected_option_ids":[10]}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/attempts/5/answers/1", bytes.NewReader(payload))
	req = withChiParam(req, "id", "5")
	req = withChiParam(req, "questionID", "1")
	req = req.WithContext(identity.ContextWithUser(req.Context(), &identity.User{ID: 42, Role: "member"}))
	w := httptest.NewRecorder()

	h.SaveAnswer(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestSaveAnswerForeignQuestionReturns404(t *testing.T) {
	ownerID := int64(42)
	h := NewHandler(&mockAttemptService{
		getOwnerFn: func(ctx context.Context, attemptID int64) (*int64, string, error) {
			return &ownerID, "", nil
		},
		submitFn: func(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
			return nil, ErrQuestionNotInQuiz
		},
	})

	payload := []byte(`{"selected_option_ids":[10]}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/attempts/5/answers/999", bytes.NewReader(payload))
	req = withChiParam(req, "id", "5")
	req = withChiParam(req, "questionID", "999")
	req = req.WithContext(identity.ContextWithUser(req.Context(), &identity.User{ID: 42, Role: "member"}))
	w := httptest.NewRecorder()

	h.SaveAnswer(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestSaveAnswerForbiddenForNonOwner(t *testing.T) {
	ownerID := int64(99)
	calledSubmit := false
	h := NewHandler(&mockAttemptService{
		getOwnerFn: func(ctx context.Context, attemptID int64) (*int64, string, error) {
			return &ownerID, "", nil
		},
		submitFn: func(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
			calledSubmit = true
			return &SubmitResult{IsCorrect: true}, nil
		},
	})

	payload := []byte(`{"selected_option_ids":[10]}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/attempts/5/answers/1", bytes.NewReader(payload))
	req = withChiParam(req, "id", "5")
	req = withChiParam(req, "questionID", "1")
	req = req.WithContext(identity.ContextWithUser(req.Context(), &identity.User{ID: 1, Role: "member"}))
	w := httptest.NewRecorder()

	h.SaveAnswer(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if calledSubmit {
		t.Fatalf("submit should not be called when forbidden")
	}
}

func TestSaveAnswerInvalidBodyReturns400(t *testing.T) {
	h := NewHandler(&mockAttemptService{})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/attempts/5/answers/1", strings.NewReader("{not json"))
	req = withChiParam(req, "id", "5")
	req = withChiParam(req, "questionID", "1")
	w := httptest.NewRecorder()

	h.SaveAnswer(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetAttemptAnonymousTokenGrantsAccess(t *testing.T) {
	h := NewHandler(&mockAttemptService{
		getOwnerFn: func(ctx context.Context, attemptID int64) (*int64, string, error) {
			return nil, "tok-abc", nil
		},
		getSummaryFn: func(ctx context.Context, attemptID int64) (*Summary, error) {
			return &Summary{AttemptID: attemptID, QuizID: 2, StartTime: time.Now()}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attempts/5", nil)
	req = withChiParam(req, "id", "5")
	req.Header.Set(attemptTokenHeader, "tok-abc")
	w := httptest.NewRecorder()

	h.GetAttempt(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestGetAttemptWrongTokenForbidden(t *testing.T) {
	h := NewHandler(&mockAttemptService{
		getOwnerFn: func(ctx context.Context, attemptID int64) (*int64, string, error) {
			return nil, "tok-abc", nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attempts/5", nil)
	req = withChiParam(req, "id", "5")
	req.Header.Set(attemptTokenHeader, "tok-wrong")
	w := httptest.NewRecorder()

	h.GetAttempt(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestGetAttemptAllowedForAdmin(t *testing.T) {
	ownerID := int64(99)
	h := NewHandler(&mockAttemptService{
		getOwnerFn: func(ctx context.Context, attemptID int64) (*int64, string, error) {
			return &ownerID, "", nil
		},
		getSummaryFn: func(ctx context.Context, attemptID int64) (*Summary, error) {
			return &Summary{AttemptID: attemptID, QuizID: 2, StartTime: time.Now()}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attempts/11", nil)
	req = withChiParam(req, "id", "11")
	req = req.WithContext(identity.ContextWithUser(req.Context(), &identity.User{ID: 7, Role: "admin"}))
	w := httptest.NewRecorder()

	h.GetAttempt(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestCompleteReturnsGradedResponses(t *testing.T) {
	ownerID := int64(42)
	h := NewHandler(&mockAttemptService{
		getOwnerFn: func(ctx context.Context, attemptID int64) (*int64, string, error) {
			return &ownerID, "", nil
		},
		completeFn: func(ctx context.Context, attemptID int64) (*CompleteResult, error) {
			return &CompleteResult{
				AttemptID:      attemptID,
				Score:          50,
				Passed:         false,
				TotalQuestions: 2,
				CorrectAnswers: 1,
				TimeTaken:      120,
				EndTime:        time.Now(),
				Responses: []ResponseDetail{
					{QuestionID: 1, SelectedOptionIDs: []int64{10}, IsCorrect: true, Options: []OptionDetail{{ID: 10, Text: "A", IsCorrect: true}}},
					{QuestionID: 2, SelectedOptionIDs: []int64{20}, IsCorrect: false, Options: []OptionDetail{{ID: 20, Text: "B", IsCorrect: false}, {ID: 21, Text: "C", IsCorrect: true}}},
				},
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attempts/5/complete", nil)
	req = withChiParam(req, "id", "5")
	req = req.WithContext(identity.ContextWithUser(req.Context(), &identity.User{ID: 42, Role: "member"}))
	w := httptest.NewRecorder()

	h.Complete(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	data, ok := out["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object, got %v", out)
	}
	if data["score"].(float64) != 50 {
		t.Fatalf("expected score 50, got %v", data["score"])
	}
	if len(data["responses"].([]interface{})) != 2 {
		t.Fatalf("expected 2 graded responses, got %v", data["responses"])
	}
	if !strings.Contains(w.Body.String(), "is_correct") {
		t.Fatalf("complete payload should reveal correctness: %s", w.Body.String())
	}
}

func TestCompleteAlreadyCompletedReturns409(t *testing.T) {
	ownerID := int64(42)
	h := NewHandler(&mockAttemptService{
		getOwnerFn: func(ctx context.Context, attemptID int64) (*int64, string, error) {
			return &ownerID, "", nil
		},
		completeFn: func(ctx context.Context, attemptID int64) (*CompleteResult, error) {
			return nil, ErrAttemptCompleted
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attempts/5/complete", nil)
	req = withChiParam(req, "id", "5")
	req = req.WithContext(identity.ContextWithUser(req.Context(), &identity.User{ID: 42, Role: "member"}))
	w := httptest.NewRecorder()

	h.Complete(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestGetAttemptInvalidIDReturns400(t *testing.T) {
	h := NewHandler(&mockAttemptService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attempts/abc", nil)
	req = withChiParam(req, "id", "abc")
	w := httptest.NewRecorder()

	h.GetAttempt(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
