package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/vidmetrics/vidmetrics/internal/observability"
	"github.com/vidmetrics/vidmetrics/internal/pipeline"
)

const maxQuestionBytes = 4096

// Examples are the sample questions offered to new users.
var Examples = []string{
	"Сколько всего видео есть в системе?",
	"Сколько видео набрало больше 100000 просмотров?",
	"На сколько просмотров выросли все видео 28 ноября 2025?",
}

type answerRequest struct {
	Question string `json:"question"`
}

type answerResponse struct {
	Value     int64  `json:"value"`
	RequestID string `json:"request_id"`
}

func handleAnswer(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Answerer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ANSWER_NOT_CONFIGURED", "answer pipeline is not configured", false, nil)
		return
	}

	var request answerRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxQuestionBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid answer request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	value, err := deps.Answerer.Answer(r.Context(), request.Question)
	if err != nil {
		requestID := observability.TraceIDFromContext(r.Context())
		var answerErr *pipeline.Error
		if errors.As(err, &answerErr) {
			requestID = answerErr.RequestID
		}
		writeError(r.Context(), w, http.StatusBadGateway, "ANSWER_FAILED", pipeline.UserMessage, false, map[string]any{"request_id": requestID})
		return
	}

	writeJSON(w, http.StatusOK, answerResponse{
		Value:     value,
		RequestID: observability.TraceIDFromContext(r.Context()),
	})
}

func handleExamples(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"examples": Examples})
}
