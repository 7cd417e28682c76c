package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/tjfontaine/promptgate/internal/dispatch"
	"github.com/tjfontaine/promptgate/internal/domain"
	"github.com/tjfontaine/promptgate/internal/stats"
	"github.com/tjfontaine/promptgate/internal/templates"
)

const modelsNote = "You can use any of these models by changing the model name in the query parameter if supported by your API key."

// maxBodyBytes bounds request bodies on /chat and /rate.
const maxBodyBytes = 1 << 20

type chatBody struct {
	Prompt       string            `json:"prompt"`
	Template     string            `json:"template,omitempty"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateVars map[string]string `json:"template_vars,omitempty"`
}

type attemptView struct {
	Model string `json:"model"`
	Error string `json:"error"`
}

type errorBody struct {
	Detail   string        `json:"detail"`
	Attempts []attemptView `json:"attempts,omitempty"`
}

type modelsResponse struct {
	AvailableModels []string           `json:"available_models"`
	Models          []domain.ModelInfo `json:"models"`
	Note            string             `json:"note"`
}

type templatesResponse struct {
	Templates []templates.Template `json:"templates"`
}

type rateResponse struct {
	Status   string `json:"status"`
	PromptID string `json:"prompt_id"`
	Model    string `json:"model,omitempty"`
	Rating   int    `json:"rating,omitempty"`
	Score    int    `json:"score,omitempty"`
	Updated  *int   `json:"updated,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	model := r.URL.Query().Get("model")
	AddLogField(ctx, "model", model)

	ignoreCache := false
	if v := r.URL.Query().Get("ignore_cache"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, r, &domain.ValidationError{Field: "ignore_cache", Message: "must be a boolean"})
			return
		}
		ignoreCache = b
	}

	var body chatBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	prompt := body.Prompt
	if s.templates != nil {
		prompt = s.templates.Apply(body.Prompt, body.TemplateID, body.Template, body.TemplateVars)
	}
	if body.TemplateID != "" {
		AddLogField(ctx, "template_id", body.TemplateID)
	}

	res, err := s.dispatcher.Chat(ctx, dispatch.ChatRequest{
		Prompt:      prompt,
		Model:       model,
		IgnoreCache: ignoreCache,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	AddLogField(ctx, "prompt_id", res.PromptID)
	AddLogField(ctx, "model_used", res.ModelUsed)
	if res.FromCache {
		AddLogField(ctx, "from_cache", "true")
	}
	writeJSON(w, http.StatusOK, res)
}

// handleRate accepts a v2 JSON body, or the v1 query form
// ?prompt_id=&score= which rates the matching interactions in place.
func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if q.Has("prompt_id") || q.Has("score") {
		promptID := q.Get("prompt_id")
		AddLogField(ctx, "prompt_id", promptID)

		raw := q.Get("score")
		if raw == "" {
			s.writeError(w, r, domain.ErrMissingField("score"))
			return
		}
		score, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, &domain.ValidationError{Field: "score", Message: "must be an integer"})
			return
		}

		n, err := s.dispatcher.RateLegacy(ctx, promptID, score)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rateResponse{
			Status:   "ok",
			PromptID: promptID,
			Score:    score,
			Updated:  &n,
		})
		return
	}

	var req dispatch.RatingRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	AddLogField(ctx, "prompt_id", req.PromptID)

	if err := s.dispatcher.Rate(ctx, req); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rateResponse{
		Status:   "ok",
		PromptID: req.PromptID,
		Model:    req.Model,
		Rating:   req.Rating,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	records, err := s.log.List(r.Context())
	if err != nil {
		s.writeError(w, r, fmt.Errorf("list interactions: %w", err))
		return
	}
	ratings, err := s.ratings.ListRatings(r.Context())
	if err != nil {
		s.writeError(w, r, fmt.Errorf("list ratings: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, stats.Compute(records, ratings))
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	catalog := s.dispatcher.Catalog()
	ids := make([]string, len(catalog))
	for i, m := range catalog {
		ids[i] = m.ID
	}
	writeJSON(w, http.StatusOK, modelsResponse{
		AvailableModels: ids,
		Models:          catalog,
		Note:            modelsNote,
	})
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	resp := templatesResponse{Templates: []templates.Template{}}
	if s.templates != nil {
		resp.Templates = s.templates.All()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &domain.ValidationError{Message: "invalid JSON body: " + err.Error()}
	}
	return nil
}

// writeError maps err to a status code and a {detail} body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)

	status := http.StatusInternalServerError
	var coded interface{ HTTPStatusCode() int }
	if errors.As(err, &coded) {
		status = coded.HTTPStatusCode()
	}

	body := errorBody{Detail: err.Error()}

	var dispErr *domain.DispatchError
	if errors.As(err, &dispErr) {
		body.Detail = fmt.Sprintf("all %s models failed: %s",
			dispErr.Family, strings.Join(dispErr.Models(), ", "))
		for _, a := range dispErr.Attempts {
			view := attemptView{Model: a.Model, Error: "unknown error"}
			if a.Err != nil {
				view.Error = a.Err.Error()
			}
			body.Attempts = append(body.Attempts, view)
		}
	}

	var valErr *domain.ValidationError
	if errors.As(err, &valErr) && valErr.Message == "field required" {
		body.Detail = "Missing " + valErr.Field
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("request_id", GetRequestID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
