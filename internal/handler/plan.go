package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/middleware"
	"github.com/pkordes/tripplanner/internal/service"
)

// Response messages of the synchronous plan endpoint.
const (
	MessagePlanCreated   = "The travel plan was created successfully."
	MessagePlanModified  = "The travel plan was modified by AI."
	MessageInvalidBody   = "The request body is not valid."
	MessagePlanFailed    = "An error occurred while creating the travel plan."
	MessageModifyFailed  = "An error occurred while modifying the travel plan."
	MessageBodyTooLarge  = middleware.MessageBodyTooLarge
	messagePlanNotFound  = "Travel plan not found."
	messageReadFailed    = "An error occurred while reading travel plans."
	messageDeleteFailed  = "An error occurred while deleting the travel plan."
	messageInvalidPaging = "page and limit must be positive integers."
)

// planResponse is the body of a successful POST /plans.
type planResponse struct {
	Message     string          `json:"message"`
	PlanID      string          `json:"planId"`
	Plan        any             `json:"plan"`
	IsRoundTrip bool            `json:"isRoundTrip"`
	FlightInfo  json.RawMessage `json:"flightInfo,omitempty"`
	Warning     string          `json:"warning,omitempty"`
}

// planSummary is one row of GET /plans.
type planSummary struct {
	PlanID      string    `json:"planId"`
	Title       string    `json:"title,omitempty"`
	StartDate   string    `json:"startDate,omitempty"`
	IsRoundTrip bool      `json:"isRoundTrip"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type planListResponse struct {
	Plans []planSummary `json:"plans"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// planDetail is the body of GET /plans/{planId}.
type planDetail struct {
	planSummary
	Plan              json.RawMessage `json:"plan"`
	FlightInfo        json.RawMessage `json:"flightInfo,omitempty"`
	AccommodationInfo json.RawMessage `json:"accommodationInfo,omitempty"`
}

// CreatePlan handles POST /plans and POST /travel-plans. It runs the whole
// pipeline inside the request and answers with the stored plan.
func (s *Server) CreatePlan(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Message: MessageBodyTooLarge, Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: MessageInvalidBody, Error: err.Error()})
		return
	}

	req, err := domain.ParseTravelRequest(body)
	if err != nil {
		writeError(w, err, MessageInvalidBody)
		return
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		req.AuthToken = auth
	}

	out, err := s.plans.Generate(r.Context(), req, nil)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			writeError(w, err, MessageInvalidBody)
		case req.IsModification():
			writeError(w, err, MessageModifyFailed)
		default:
			writeError(w, err, MessagePlanFailed)
		}
		return
	}

	writeJSON(w, http.StatusOK, newPlanResponse(out))
}

func newPlanResponse(out service.Outcome) planResponse {
	msg := MessagePlanCreated
	if out.Mode == service.ModeModify {
		msg = fmt.Sprintf("%s (ID: %s)", MessagePlanModified, out.Plan.PlanID)
	}
	return planResponse{
		Message:     msg,
		PlanID:      out.Plan.PlanID,
		Plan:        out.View,
		IsRoundTrip: out.Plan.IsRoundTrip,
		FlightInfo:  out.Plan.FlightInfo,
		Warning:     out.Warning,
	}
}

// ListPlans handles GET /plans.
func (s *Server) ListPlans(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: messageInvalidPaging, Error: err.Error()})
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: messageInvalidPaging, Error: err.Error()})
		return
	}
	p := domain.NewPaginationParams(page, limit)

	plans, total, err := s.plans.List(r.Context(), r.Header.Get("Authorization"), p)
	if err != nil {
		writeError(w, err, messageReadFailed)
		return
	}

	resp := planListResponse{Plans: make([]planSummary, 0, len(plans)), Total: total, Page: p.Page, Limit: p.Limit}
	for _, plan := range plans {
		resp.Plans = append(resp.Plans, summarize(plan))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPlan handles GET /plans/{planId}.
func (s *Server) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.plans.Get(r.Context(), r.Header.Get("Authorization"), chi.URLParam(r, "planId"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, err, messagePlanNotFound)
			return
		}
		writeError(w, err, messageReadFailed)
		return
	}
	writeJSON(w, http.StatusOK, planDetail{
		planSummary:       summarize(plan),
		Plan:              plan.Data,
		FlightInfo:        plan.FlightInfo,
		AccommodationInfo: plan.LodgingInfo,
	})
}

// DeletePlan handles DELETE /plans/{planId}.
func (s *Server) DeletePlan(w http.ResponseWriter, r *http.Request) {
	err := s.plans.Delete(r.Context(), r.Header.Get("Authorization"), chi.URLParam(r, "planId"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, err, messagePlanNotFound)
			return
		}
		writeError(w, err, messageDeleteFailed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func summarize(p domain.TravelPlan) planSummary {
	return planSummary{
		PlanID:      p.PlanID,
		Title:       p.Title,
		StartDate:   p.StartDate,
		IsRoundTrip: p.IsRoundTrip,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// queryInt returns nil when the parameter is absent.
func queryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return nil, fmt.Errorf("%s: %q is not a positive integer", name, raw)
	}
	return &n, nil
}
