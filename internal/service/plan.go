// Package service contains the plan pipeline and the read operations on stored
// plans. Services depend on interfaces (repo, completion, identity), not on
// implementations, so handlers and the worker share one pipeline.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkordes/tripplanner/internal/completion"
	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/identity"
	"github.com/pkordes/tripplanner/internal/merge"
	"github.com/pkordes/tripplanner/internal/metrics"
	"github.com/pkordes/tripplanner/internal/prompt"
	"github.com/pkordes/tripplanner/internal/repo"
)

// Mode is the pipeline variant selected by the request.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeModify Mode = "modify"
)

// ModifyMaxOutputTokens caps the answer length when regenerating a plan.
// Modified plans echo every day back, so they need more room than new ones.
const ModifyMaxOutputTokens = 32768

// Progress messages passed to the progress callback.
const (
	ProgressContacting = "Contacting the AI model to build your plan..."
	ProgressModifying  = "Contacting the AI model to modify your plan..."
	ProgressSaving     = "Saving the generated travel plan..."
)

// WarningUnparsed is attached to an outcome whose model answer did not parse.
const WarningUnparsed = "The plan may not have been fully parsed by the server. Open it by ID to check."

// Completer is the completion call the pipeline needs.
type Completer interface {
	Complete(ctx context.Context, instruction string, images []domain.Image, opts ...completion.CallOption) (completion.Result, error)
}

// Outcome is the result of one pipeline run.
type Outcome struct {
	Mode Mode
	// Plan is the stored plan.
	Plan domain.TravelPlan
	// View is what the client receives as "plan": the parsed answer (or raw
	// response) for a new plan, a merge.PlanView for a modified one.
	View    any
	Warning string
}

// PlanService runs build → complete → [merge] → persist for both creation
// and modification, and serves stored plans back to their owner.
type PlanService struct {
	plans    repo.PlanRepo
	llm      Completer
	identity identity.Resolver
	metrics  *metrics.Pipeline
	logger   *slog.Logger
	now      func() time.Time
}

// NewPlanService constructs a PlanService. m may be nil.
func NewPlanService(plans repo.PlanRepo, llm Completer, resolver identity.Resolver, m *metrics.Pipeline, logger *slog.Logger) *PlanService {
	return &PlanService{
		plans:    plans,
		llm:      llm,
		identity: resolver,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the service clock. Used by tests.
func (s *PlanService) WithClock(now func() time.Time) *PlanService {
	s.now = now
	return s
}

// Generate runs the pipeline for req. progress, when non-nil, is called
// before each long-running step.
func (s *PlanService) Generate(ctx context.Context, req domain.TravelRequest, progress func(string)) (Outcome, error) {
	if progress == nil {
		progress = func(string) {}
	}
	mode := ModeCreate
	if req.IsModification() {
		mode = ModeModify
	}
	if err := req.Validate(); err != nil {
		s.metrics.ObservePlan(string(mode), metrics.OutcomeInvalid)
		return Outcome{}, fmt.Errorf("service.PlanService.Generate: %w", err)
	}

	start := s.now()
	who := s.identity.Resolve(ctx, req.AuthToken)
	log := s.logger.With("user_id", who.UserID, "mode", string(mode))
	log.Info("plan pipeline started", "flights", len(req.Flights), "lodgings", len(req.Lodgings), "images", len(req.Images))

	var out Outcome
	var err error
	if mode == ModeModify {
		out, err = s.modify(ctx, req, who, progress)
	} else {
		out, err = s.create(ctx, req, who, progress)
	}
	if err != nil {
		s.metrics.ObservePlan(string(mode), metrics.OutcomeError)
		log.Error("plan pipeline failed", "error", err, "duration_ms", s.now().Sub(start).Milliseconds())
		return Outcome{}, fmt.Errorf("service.PlanService.Generate: %w", err)
	}

	outcome := metrics.OutcomeOK
	if out.Warning != "" {
		outcome = metrics.OutcomeWarning
	}
	s.metrics.ObservePlan(string(mode), outcome)
	log.Info("plan persisted",
		"plan_id", out.Plan.PlanID,
		"schedules", out.Plan.ScheduleCount(),
		"duration_ms", s.now().Sub(start).Milliseconds(),
	)
	return out, nil
}

func (s *PlanService) create(ctx context.Context, req domain.TravelRequest, who domain.Identity, progress func(string)) (Outcome, error) {
	p := prompt.Build(req, nil)

	progress(ProgressContacting)
	res, err := s.complete(ctx, p.Instruction, req.Images)
	if err != nil {
		return Outcome{}, err
	}

	data := res.Parsed
	warning := ""
	if data == nil {
		data = res.Raw
		warning = WarningUnparsed
	}

	plan, err := domain.DecodePlan(data)
	if err != nil && warning == "" {
		// The answer is stored as is; only the summary fields are lost.
		s.logger.WarnContext(ctx, "plan summary not decodable", "user_id", who.UserID, "error", err)
	}
	plan.PlanID = domain.NewPlanID(s.now())
	plan.UserID = who.UserID
	plan.IsRoundTrip = req.IsRoundTrip
	plan.FlightInfo = req.RawFlights
	plan.LodgingInfo = req.RawLodgings
	plan.Data = data
	if plan.StartDate == "" {
		plan.StartDate = req.StartDate
	}

	progress(ProgressSaving)
	stored, err := s.plans.Put(ctx, plan)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Mode: ModeCreate, Plan: stored, View: data, Warning: warning}, nil
}

func (s *PlanService) modify(ctx context.Context, req domain.TravelRequest, who domain.Identity, progress func(string)) (Outcome, error) {
	existing := *req.ExistingPlan
	split := merge.SplitPreserved(existing)
	p := prompt.Build(req, &split)

	progress(ProgressModifying)
	res, err := s.complete(ctx, p.Instruction, req.Images, completion.WithMaxOutputTokens(ModifyMaxOutputTokens))
	if err != nil {
		return Outcome{}, err
	}

	regenerated, err := merge.ParseRegenerated(res.Parsed)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}

	plan := merge.Merge(split, regenerated)
	if plan.PlanID == "" {
		plan.PlanID = domain.NewPlanID(s.now())
	}
	if plan.StartDate == "" {
		plan.StartDate = req.StartDate
	}
	plan.UserID = who.UserID
	plan.IsRoundTrip = existing.IsRoundTrip || req.IsRoundTrip
	plan.FlightInfo = firstRaw(req.RawFlights, existing.FlightInfo)
	plan.LodgingInfo = firstRaw(req.RawLodgings, existing.LodgingInfo)

	view := merge.ToView(plan)
	data, err := json.Marshal(view)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: encode merged plan: %v", domain.ErrUpstream, err)
	}
	plan.Data = data

	progress(ProgressSaving)
	stored, err := s.plans.Put(ctx, plan)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Mode: ModeModify, Plan: stored, View: view}, nil
}

func (s *PlanService) complete(ctx context.Context, instruction string, images []domain.Image, opts ...completion.CallOption) (completion.Result, error) {
	start := s.now()
	res, err := s.llm.Complete(ctx, instruction, images, opts...)
	s.metrics.ObserveCompletion(s.now().Sub(start))
	if err != nil {
		return completion.Result{}, err
	}
	if res.Warning != "" {
		s.logger.Warn("completion answer incomplete", "warning", res.Warning)
	}
	return res, nil
}

// Get returns one of the caller's plans.
func (s *PlanService) Get(ctx context.Context, token, planID string) (domain.TravelPlan, error) {
	who := s.identity.Resolve(ctx, token)
	plan, err := s.plans.Get(ctx, who.UserID, planID)
	if err != nil {
		return domain.TravelPlan{}, fmt.Errorf("service.PlanService.Get: %w", err)
	}
	return plan, nil
}

// List returns a page of the caller's plans and the caller's total.
func (s *PlanService) List(ctx context.Context, token string, p domain.PaginationParams) ([]domain.TravelPlan, int64, error) {
	who := s.identity.Resolve(ctx, token)
	plans, total, err := s.plans.ListByUser(ctx, who.UserID, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.PlanService.List: %w", err)
	}
	return plans, total, nil
}

// Delete removes one of the caller's plans.
func (s *PlanService) Delete(ctx context.Context, token, planID string) error {
	who := s.identity.Resolve(ctx, token)
	if err := s.plans.Delete(ctx, who.UserID, planID); err != nil {
		return fmt.Errorf("service.PlanService.Delete: %w", err)
	}
	return nil
}

func firstRaw(vals ...json.RawMessage) json.RawMessage {
	for _, v := range vals {
		if len(v) > 0 && string(v) != "null" {
			return v
		}
	}
	return nil
}
