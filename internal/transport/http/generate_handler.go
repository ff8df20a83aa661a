package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"quizroom-service/internal/generator"
)

// GenerateHandler fronts the question-generation API for the authoring UI,
// translating the client's failure taxonomy into status codes it can branch on.
type GenerateHandler struct {
	client *generator.Client
}

func NewGenerateHandler(client *generator.Client) *GenerateHandler {
	return &GenerateHandler{client: client}
}

func (h *GenerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req generator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	draft, err := h.client.Generate(r.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, generator.ErrThrottled):
		http.Error(w, "generation rate limited, try again shortly", http.StatusTooManyRequests)
		return
	case errors.Is(err, generator.ErrQuotaExceeded):
		http.Error(w, "generation quota exceeded", http.StatusPaymentRequired)
		return
	default:
		log.Printf("generate quiz: %v", err)
		http.Error(w, "generation failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(draft); err != nil {
		log.Printf("encode draft: %v", err)
	}
}
