package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"

	"quizroom-service/internal/domain"
)

// Failure taxonomy the UI distinguishes: throttling and quota exhaustion get
// their own messaging; everything else is a generic failure.
var (
	ErrThrottled        = errors.New("generator: rate limited")
	ErrQuotaExceeded    = errors.New("generator: quota exceeded")
	ErrGenerationFailed = errors.New("generator: generation failed")
)

var validate = validator.New()

// Request describes the quiz draft to generate.
type Request struct {
	Subject      string `json:"subject" validate:"required,max=100"`
	Topic        string `json:"topic" validate:"required,max=200"`
	NumQuestions int    `json:"numQuestions" validate:"required,min=1,max=20"`
	GradeLevel   string `json:"gradeLevel,omitempty" validate:"max=50"`
}

// Draft is an unsaved quiz proposal. The teacher reviews and edits it before
// anything is persisted.
type Draft struct {
	Title     string            `json:"title"`
	Questions []domain.Question `json:"questions"`
}

// Client calls the external question-generation API.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		c.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return &Client{http: c}
}

// Generate requests a quiz draft. Questions that fail validation are dropped
// rather than failing the whole draft; an empty result is a failure.
func (c *Client) Generate(ctx context.Context, req Request) (Draft, error) {
	if err := validate.Struct(req); err != nil {
		return Draft{}, fmt.Errorf("invalid generation request: %w", err)
	}

	var draft Draft
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&draft).
		Post("/v1/quizzes/generate")
	if err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated:
	case http.StatusTooManyRequests:
		return Draft{}, ErrThrottled
	case http.StatusPaymentRequired:
		return Draft{}, ErrQuotaExceeded
	default:
		return Draft{}, fmt.Errorf("%w: status %d", ErrGenerationFailed, resp.StatusCode())
	}

	kept := draft.Questions[:0]
	for _, q := range draft.Questions {
		if err := domain.ValidateQuestion(q); err != nil {
			continue
		}
		kept = append(kept, q)
	}
	draft.Questions = kept
	if len(draft.Questions) == 0 {
		return Draft{}, fmt.Errorf("%w: no usable questions", ErrGenerationFailed)
	}
	return draft, nil
}
