package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/models"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/service"
)

type describeService interface {
	Ready() error
	Describe(ctx context.Context, req *models.DescribeRequest) (*models.DescribeResponse, error)
	DescribeStream(ctx context.Context, req *models.DescribeRequest) (<-chan models.StreamChunk, error)
}

type DescribeHandler struct {
	service      describeService
	logger       *log.Logger
	maxBodyBytes int64
}

func NewDescribeHandler(service describeService, logger *log.Logger, maxBodyBytes int64) *DescribeHandler {
	return &DescribeHandler{
		service:      service,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// Routes returns the /api subtree. CORS is installed on the root router so
// that throttled and timed-out responses carry the headers too.
func (h *DescribeHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Options("/describe", h.Preflight)
	r.Post("/describe", h.Describe)
	r.Options("/describe/stream", h.Preflight)
	r.Post("/describe/stream", h.DescribeStream)
	return r
}

// Preflight answers CORS preflight requests with an empty 200.
func (h *DescribeHandler) Preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Describe godoc
// @Summary Describe image
// @Description Generate an accessibility description of an image. Image is sent as base64 string in JSON.
// @Tags describe
// @Accept json
// @Produce json
// @Param request body models.DescribeRequest true "Describe request"
// @Success 200 {object} models.DescribeResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/describe [post]
func (h *DescribeHandler) Describe(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ready(); err != nil {
		h.writeError(w, err)
		return
	}

	req, err := h.decode(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp, err := h.service.Describe(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// DescribeStream godoc
// @Summary Stream image description
// @Description Stream description tokens for an image. Image is sent as base64 string in JSON.
// @Tags describe
// @Accept json
// @Produce text/event-stream
// @Param request body models.DescribeRequest true "Describe request"
// @Success 200 {object} models.StreamChunk "Stream of tokens (SSE)"
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/describe/stream [post]
func (h *DescribeHandler) DescribeStream(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ready(); err != nil {
		h.writeError(w, err)
		return
	}

	req, err := h.decode(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	stream, err := h.service.DescribeStream(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher := http.NewResponseController(w)

	for chunk := range stream {
		if chunk.Err != nil {
			e := service.AsError(chunk.Err)
			data, _ := sonic.Marshal(models.ErrorResponse{Error: e.Message, Details: e.Details})
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
			flusher.Flush()
			return
		}

		data, err := sonic.Marshal(chunk)
		if err != nil {
			fmt.Fprintf(w, "event: error\ndata: {\"error\":\"marshal error\"}\n\n")
			flusher.Flush()
			return
		}

		if chunk.Done {
			fmt.Fprintf(w, "event: done\ndata: %s\n\n", data)
			flusher.Flush()
			return
		}

		fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
		flusher.Flush()
	}
}

func (h *DescribeHandler) decode(w http.ResponseWriter, r *http.Request) (*models.DescribeRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, service.BodyTooLarge(maxErr.Limit)
		}
		return nil, service.InvalidBody(err)
	}

	var req models.DescribeRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		return nil, service.InvalidBody(err)
	}
	return &req, nil
}

func (h *DescribeHandler) writeError(w http.ResponseWriter, err error) {
	e := service.AsError(err)
	if e.Status >= http.StatusInternalServerError {
		h.logger.Printf("describe failed: %v\n", e)
	}
	writeJSON(w, e.Status, models.ErrorResponse{Error: e.Message, Details: e.Details})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to encode: %s", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
