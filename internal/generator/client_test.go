package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quizroom-service/internal/domain"
)

func draftServer(t *testing.T, status int, draft Draft) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/quizzes/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(draft)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func validDraft() Draft {
	return Draft{
		Title: "Fractions",
		Questions: []domain.Question{
			{
				ID:   "g1",
				Type: domain.QuestionMultipleChoice,
				Text: "1/2 + 1/4 = ?",
				Options: []domain.Option{
					{ID: "o1", Text: "3/4", IsCorrect: true},
					{ID: "o2", Text: "2/6"},
				},
			},
			{
				ID:            "g2",
				Type:          domain.QuestionTextInput,
				Text:          "Half of 10?",
				CorrectAnswer: "5",
			},
		},
	}
}

func TestGenerateReturnsDraft(t *testing.T) {
	srv := draftServer(t, http.StatusOK, validDraft())
	client := NewClient(srv.URL, "test-key", time.Second)

	draft, err := client.Generate(context.Background(), Request{
		Subject:      "Math",
		Topic:        "Fractions",
		NumQuestions: 2,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if draft.Title != "Fractions" || len(draft.Questions) != 2 {
		t.Fatalf("unexpected draft: %+v", draft)
	}
}

func TestGenerateDropsInvalidQuestions(t *testing.T) {
	draft := validDraft()
	// no correct option marked; must be filtered out
	draft.Questions = append(draft.Questions, domain.Question{
		ID:   "g3",
		Type: domain.QuestionMultipleChoice,
		Text: "Broken",
		Options: []domain.Option{
			{ID: "o1", Text: "a"},
			{ID: "o2", Text: "b"},
		},
	})
	srv := draftServer(t, http.StatusOK, draft)
	client := NewClient(srv.URL, "", time.Second)

	got, err := client.Generate(context.Background(), Request{Subject: "Math", Topic: "Fractions", NumQuestions: 3})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(got.Questions) != 2 {
		t.Fatalf("expected invalid question dropped, got %d questions", len(got.Questions))
	}
}

func TestGenerateErrorTaxonomy(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, ErrThrottled},
		{http.StatusPaymentRequired, ErrQuotaExceeded},
		{http.StatusInternalServerError, ErrGenerationFailed},
	}
	for _, tc := range cases {
		srv := draftServer(t, tc.status, Draft{})
		client := NewClient(srv.URL, "", time.Second)
		_, err := client.Generate(context.Background(), Request{Subject: "Math", Topic: "X", NumQuestions: 1})
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestGenerateRejectsInvalidRequest(t *testing.T) {
	client := NewClient("http://localhost:0", "", time.Second)
	if _, err := client.Generate(context.Background(), Request{Subject: "Math"}); err == nil {
		t.Fatal("expected validation error for missing topic")
	}
	if _, err := client.Generate(context.Background(), Request{Subject: "Math", Topic: "X", NumQuestions: 50}); err == nil {
		t.Fatal("expected validation error for too many questions")
	}
}
