package merge

import (
	"strconv"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/tripplanner/internal/domain"
)

// PlanView is the client-facing plan shape.
type PlanView struct {
	Title     string    `json:"title,omitempty"`
	Days      []DayView `json:"days"`
	PlanID    string    `json:"planId,omitempty"`
	StartDate string    `json:"start_date,omitempty"`
	DayOrder  []string  `json:"day_order"`
}

// DayView is one day of a PlanView. Date is omitted when the plan has no
// usable start date.
type DayView struct {
	Day       int                    `json:"day"`
	Date      *openapi_types.Date    `json:"date,omitempty"`
	Title     string                 `json:"title"`
	Schedules []domain.ScheduleEntry `json:"schedules"`
}

// DayDate returns startDate + (n - 1) days for the 1-based day number n.
// ok is false when startDate is not a YYYY-MM-DD date or n < 1.
func DayDate(startDate string, n int) (openapi_types.Date, bool) {
	if n < 1 {
		return openapi_types.Date{}, false
	}
	start, err := time.Parse(openapi_types.DateFormat, startDate)
	if err != nil {
		return openapi_types.Date{}, false
	}
	return openapi_types.Date{Time: start.AddDate(0, 0, n-1)}, true
}

// DeriveDates returns the calendar date of each day in dayOrder, numbering
// days 1..len(dayOrder) by position. It returns nil for an invalid startDate.
func DeriveDates(startDate string, dayOrder []string) []openapi_types.Date {
	if _, ok := DayDate(startDate, 1); !ok {
		return nil
	}
	dates := make([]openapi_types.Date, len(dayOrder))
	for i := range dayOrder {
		dates[i], _ = DayDate(startDate, i+1)
	}
	return dates
}

// ToView converts plan to the client shape, deriving each day's date.
func ToView(plan domain.TravelPlan) PlanView {
	order := dayOrder(plan)
	dates := DeriveDates(plan.StartDate, order)

	view := PlanView{
		Title:     plan.Title,
		Days:      make([]DayView, 0, len(order)),
		PlanID:    plan.PlanID,
		StartDate: plan.StartDate,
		DayOrder:  order,
	}
	for i, key := range order {
		day := plan.Days[key]
		n, err := strconv.Atoi(key)
		if err != nil {
			n = i + 1
		}
		dv := DayView{
			Day:       n,
			Title:     day.Title,
			Schedules: day.Schedules,
		}
		if dv.Title == "" {
			dv.Title = defaultTitle(key)
		}
		if dv.Schedules == nil {
			dv.Schedules = []domain.ScheduleEntry{}
		}
		if dates != nil {
			d := dates[i]
			dv.Date = &d
		}
		view.Days = append(view.Days, dv)
	}
	return view
}
