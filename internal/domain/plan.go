package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DayPlan is the ordered list of entries for one calendar day. The order is
// the visiting order the model or client produced, not a sort by time.
type DayPlan struct {
	Title     string          `json:"title"`
	Schedules []ScheduleEntry `json:"schedules"`
}

// TravelPlan is the persisted itinerary aggregate, keyed by (UserID, PlanID).
type TravelPlan struct {
	PlanID      string
	UserID      string
	Title       string
	StartDate   string
	DayOrder    []string
	Days        map[string]DayPlan
	IsRoundTrip bool

	// FlightInfo and LodgingInfo are the caller-supplied booking payloads,
	// stored verbatim for the client to render.
	FlightInfo  json.RawMessage
	LodgingInfo json.RawMessage

	// Data is the plan document as persisted in plan_data. For created plans
	// it is the parsed model answer (or the raw completion response when the
	// answer did not parse); for modified plans it is the merged view.
	Data json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPlanID returns an identifier of the form "plan-<epoch-seconds>".
func NewPlanID(now time.Time) string {
	return fmt.Sprintf("plan-%d", now.Unix())
}

// ScheduleCount returns the number of entries across all days.
func (p TravelPlan) ScheduleCount() int {
	n := 0
	for _, d := range p.Days {
		n += len(d.Schedules)
	}
	return n
}

// ---- wire documents ----

// planDocument covers both shapes a plan arrives in: the day-list shape the
// model produces ({"title", "days": [...]}) and the keyed shape the client
// sends back for modification ({"planId", "travel_plans": {...}, "day_order"}).
type planDocument struct {
	PlanID       string             `json:"planId"`
	Title        string             `json:"title"`
	StartDate    string             `json:"start_date"`
	StartDateAlt string             `json:"startDate"`
	DayOrder     []json.RawMessage  `json:"day_order"`
	TravelPlans  map[string]DayPlan `json:"travel_plans"`
	Days         json.RawMessage    `json:"days"`
	IsRoundTrip  *bool              `json:"isRoundTrip"`
}

// DayDocument is one entry of the day-list shape.
type DayDocument struct {
	Day       json.RawMessage `json:"day"`
	Date      string          `json:"date,omitempty"`
	Title     string          `json:"title"`
	Schedules []ScheduleEntry `json:"schedules"`
}

// DecodePlan reads a plan in either wire shape. Day keys are the decimal day
// numbers ("1", "2", ...). When no explicit day_order is present the keys are
// ordered numerically.
func DecodePlan(raw json.RawMessage) (TravelPlan, error) {
	var doc planDocument
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return TravelPlan{}, fmt.Errorf("domain.DecodePlan: %w: %v", ErrValidation, err)
	}

	plan := TravelPlan{
		PlanID:    doc.PlanID,
		Title:     doc.Title,
		StartDate: doc.StartDate,
		Days:      map[string]DayPlan{},
	}
	if plan.StartDate == "" {
		plan.StartDate = doc.StartDateAlt
	}
	if doc.IsRoundTrip != nil {
		plan.IsRoundTrip = *doc.IsRoundTrip
	}

	for k, d := range doc.TravelPlans {
		plan.Days[normalizeDayKey(k)] = d
	}

	if len(doc.Days) > 0 {
		days, err := decodeDays(doc.Days)
		if err != nil {
			return TravelPlan{}, fmt.Errorf("domain.DecodePlan: %w: %v", ErrValidation, err)
		}
		for k, d := range days {
			if _, ok := plan.Days[k]; !ok {
				plan.Days[k] = d.plan
			}
			if plan.StartDate == "" && d.day == "1" && d.date != "" {
				plan.StartDate = d.date
			}
		}
	}

	for _, k := range doc.DayOrder {
		plan.DayOrder = append(plan.DayOrder, normalizeDayKey(rawText(k)))
	}
	if len(plan.DayOrder) == 0 {
		plan.DayOrder = SortedDayKeys(plan.Days)
	}
	return plan, nil
}

type decodedDay struct {
	day  string
	date string
	plan DayPlan
}

// decodeDays accepts "days" as a list of DayDocument or as an object keyed
// by day number.
func decodeDays(raw json.RawMessage) (map[string]decodedDay, error) {
	out := map[string]decodedDay{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, nil
	}

	if trimmed[0] == '{' {
		var keyed map[string]DayDocument
		if err := json.Unmarshal(trimmed, &keyed); err != nil {
			return nil, err
		}
		for k, d := range keyed {
			key := normalizeDayKey(k)
			out[key] = decodedDay{day: key, date: d.Date, plan: DayPlan{Title: d.Title, Schedules: d.Schedules}}
		}
		return out, nil
	}

	var list []DayDocument
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, err
	}
	for i, d := range list {
		key := normalizeDayKey(rawText(d.Day))
		if key == "" {
			key = strconv.Itoa(i + 1)
		}
		out[key] = decodedDay{day: key, date: d.Date, plan: DayPlan{Title: d.Title, Schedules: d.Schedules}}
	}
	return out, nil
}

// normalizeDayKey maps "01", " 2", "2.0" style keys to their integer form.
// Keys that are not numbers are kept as given.
func normalizeDayKey(k string) string {
	k = strings.TrimSpace(k)
	if n, err := strconv.Atoi(k); err == nil {
		return strconv.Itoa(n)
	}
	if f, err := strconv.ParseFloat(k, 64); err == nil && f == float64(int(f)) {
		return strconv.Itoa(int(f))
	}
	return k
}

// SortedDayKeys orders day keys numerically; non-numeric keys sort last.
func SortedDayKeys(days map[string]DayPlan) []string {
	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}
