// Package merge reconciles a regenerated itinerary with the bookings a
// modification request must not touch.
//
// A stored plan is split into preserved entries (flights and lodging) and
// mutable entries (everything else). Only the mutable entries go to the
// model. The model's answer is then spliced back behind the preserved entries
// of each day, in day_order.
package merge

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/samber/lo"

	"github.com/pkordes/tripplanner/internal/domain"
)

// ErrNoSchedules is returned by ParseRegenerated when the model's answer has
// no day schedules to merge.
var ErrNoSchedules = errors.New("no usable schedules in model answer")

// Split is a plan divided for regeneration.
type Split struct {
	Preserved map[string][]domain.ScheduleEntry
	Mutable   map[string][]domain.ScheduleEntry
	Titles    map[string]string
	DayOrder  []string
	StartDate string

	PlanID      string
	Title       string
	IsRoundTrip bool
}

// MutableCount returns the number of entries that will be sent for regeneration.
func (s Split) MutableCount() int {
	n := 0
	for _, entries := range s.Mutable {
		n += len(entries)
	}
	return n
}

// PreservedCount returns the number of bookings that must survive the merge.
func (s Split) PreservedCount() int {
	n := 0
	for _, entries := range s.Preserved {
		n += len(entries)
	}
	return n
}

// SplitPreserved divides plan into preserved and mutable entries per day.
// Source order is kept within each group. Days that hold bookings but are
// missing from the plan's day_order are appended to DayOrder so the merge
// cannot lose them.
func SplitPreserved(plan domain.TravelPlan) Split {
	s := Split{
		Preserved:   map[string][]domain.ScheduleEntry{},
		Mutable:     map[string][]domain.ScheduleEntry{},
		Titles:      map[string]string{},
		DayOrder:    dayOrder(plan),
		StartDate:   plan.StartDate,
		PlanID:      plan.PlanID,
		Title:       plan.Title,
		IsRoundTrip: plan.IsRoundTrip,
	}
	for key, day := range plan.Days {
		if day.Title != "" {
			s.Titles[key] = day.Title
		}
		preserved, mutable := lo.FilterReject(day.Schedules, func(e domain.ScheduleEntry, _ int) bool {
			return e.IsPreserved()
		})
		if len(preserved) > 0 {
			s.Preserved[key] = preserved
		}
		if len(mutable) > 0 {
			s.Mutable[key] = mutable
		}
	}

	listed := lo.SliceToMap(s.DayOrder, func(k string) (string, struct{}) { return k, struct{}{} })
	orphans := lo.PickBy(plan.Days, func(k string, _ domain.DayPlan) bool {
		_, ok := listed[k]
		return !ok && len(s.Preserved[k]) > 0
	})
	s.DayOrder = append(s.DayOrder, domain.SortedDayKeys(orphans)...)
	return s
}

// Merge rebuilds a plan from split and the regenerated entries. For each day
// in DayOrder the result is the preserved entries followed by the regenerated
// ones. Regenerated entries that look like bookings are dropped so the set of
// flights and lodging is exactly the preserved one. Regenerated days that are
// not in DayOrder are ignored.
func Merge(split Split, regenerated map[string][]domain.ScheduleEntry) domain.TravelPlan {
	plan := domain.TravelPlan{
		PlanID:      split.PlanID,
		Title:       split.Title,
		StartDate:   split.StartDate,
		DayOrder:    append([]string(nil), split.DayOrder...),
		Days:        make(map[string]domain.DayPlan, len(split.DayOrder)),
		IsRoundTrip: split.IsRoundTrip,
	}
	for _, key := range split.DayOrder {
		fresh := lo.Reject(regenerated[key], func(e domain.ScheduleEntry, _ int) bool {
			return e.IsPreserved()
		})
		schedules := make([]domain.ScheduleEntry, 0, len(split.Preserved[key])+len(fresh))
		schedules = append(schedules, split.Preserved[key]...)
		schedules = append(schedules, fresh...)

		title, ok := split.Titles[key]
		if !ok {
			title = defaultTitle(key)
		}
		plan.Days[key] = domain.DayPlan{Title: title, Schedules: schedules}
	}
	return plan
}

// ParseRegenerated reads the model's answer. Both {"days": {"1": {...}}} and
// the creation shape {"days": [{"day": 1, ...}]} are accepted.
func ParseRegenerated(parsed []byte) (map[string][]domain.ScheduleEntry, error) {
	if len(parsed) == 0 {
		return nil, ErrNoSchedules
	}
	plan, err := domain.DecodePlan(parsed)
	if err != nil {
		return nil, fmt.Errorf("merge.ParseRegenerated: %w: %v", ErrNoSchedules, err)
	}
	if len(plan.Days) == 0 {
		return nil, ErrNoSchedules
	}
	out := make(map[string][]domain.ScheduleEntry, len(plan.Days))
	for key, day := range plan.Days {
		out[key] = day.Schedules
	}
	return out, nil
}

func dayOrder(plan domain.TravelPlan) []string {
	if len(plan.DayOrder) > 0 {
		return append([]string(nil), plan.DayOrder...)
	}
	return domain.SortedDayKeys(plan.Days)
}

func defaultTitle(key string) string {
	if _, err := strconv.Atoi(key); err == nil {
		return "Day " + key
	}
	return key
}
