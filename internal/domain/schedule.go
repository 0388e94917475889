package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Category classifies a ScheduleEntry.
type Category string

const (
	CategoryAttraction Category = "attraction"
	CategoryMeal       Category = "meal"
	CategoryLodging    Category = "lodging"
	CategoryFlight     Category = "flight"
)

// Schedule entry "type" values written by the client for confirmed bookings.
const (
	TypeFlightOneWay    = "Flight_OneWay"
	TypeFlightRoundTrip = "Flight_RoundTrip"
	TypeAccommodation   = "accommodation"
)

// ScheduleEntry is one atomic itinerary item.
//
// The exported fields are decoded views. An entry decoded from JSON keeps its
// original object and re-encodes from it, so unknown keys (flightOfferDetails,
// hotelDetails, ...) and the exact number literals survive a round trip.
type ScheduleEntry struct {
	ID       string
	Name     string
	Time     string
	Lat      json.Number
	Lng      json.Number
	Kind     string // raw "category" value as written by the model or client
	Type     string
	Duration string
	Notes    string
	Cost     string
	Address  string

	fields map[string]json.RawMessage
}

// UnmarshalJSON decodes an entry, tolerating numbers where strings are
// expected and vice versa.
func (e *ScheduleEntry) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return err
	}
	*e = ScheduleEntry{fields: fields}
	e.ID = rawText(fields["id"])
	e.Name = rawText(fields["name"])
	e.Time = rawText(fields["time"])
	e.Lat = rawNumber(fields["lat"])
	e.Lng = rawNumber(fields["lng"])
	e.Kind = rawText(fields["category"])
	e.Type = rawText(fields["type"])
	e.Duration = rawText(fields["duration"])
	e.Notes = rawText(fields["notes"])
	e.Cost = rawText(fields["cost"])
	e.Address = rawText(fields["address"])
	return nil
}

// MarshalJSON re-encodes the original object when there is one.
func (e ScheduleEntry) MarshalJSON() ([]byte, error) {
	if e.fields != nil {
		return json.Marshal(e.fields)
	}
	return json.Marshal(e.Summary())
}

// Summary returns the ten core fields only. Preserved booking detail blobs
// are dropped; it is the shape sent to the model for regeneration.
func (e ScheduleEntry) Summary() map[string]any {
	out := map[string]any{
		"id":       e.ID,
		"name":     e.Name,
		"time":     e.Time,
		"category": e.Kind,
		"duration": e.Duration,
		"notes":    e.Notes,
		"cost":     e.Cost,
		"address":  e.Address,
		"lat":      nil,
		"lng":      nil,
	}
	if e.Lat != "" {
		out["lat"] = e.Lat
	}
	if e.Lng != "" {
		out["lng"] = e.Lng
	}
	if e.Type != "" {
		out["type"] = e.Type
	}
	return out
}

// Has reports whether the decoded object carried key.
func (e ScheduleEntry) Has(key string) bool {
	_, ok := e.fields[key]
	return ok
}

// Field returns the raw JSON for key, or nil.
func (e ScheduleEntry) Field(key string) json.RawMessage {
	return e.fields[key]
}

// Category normalizes the free-form category the model or client wrote.
// Booking markers win over the category tag.
func (e ScheduleEntry) Category() Category {
	switch {
	case e.Type == TypeFlightOneWay || e.Type == TypeFlightRoundTrip || e.Has("flightOfferDetails"):
		return CategoryFlight
	case e.Type == TypeAccommodation || e.Has("hotelDetails"):
		return CategoryLodging
	}
	switch strings.ToLower(strings.TrimSpace(e.Kind)) {
	case "flight", "airport", "air":
		return CategoryFlight
	case "lodging", "hotel", "accommodation", "stay":
		return CategoryLodging
	case "meal", "restaurant", "food", "cafe", "dining":
		return CategoryMeal
	}
	return CategoryAttraction
}

// IsPreserved reports whether a modification must leave this entry untouched.
func (e ScheduleEntry) IsPreserved() bool {
	c := e.Category()
	return c == CategoryFlight || c == CategoryLodging
}

// rawText renders a JSON scalar as text: strings are unquoted, numbers and
// booleans keep their literal form, null and objects become "".
func rawText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	if raw[0] == '{' || raw[0] == '[' {
		return ""
	}
	return string(raw)
}

// rawNumber returns the literal of a JSON number, or a numeric string's
// content. Anything that is not a number is treated as absent.
func rawNumber(raw json.RawMessage) json.Number {
	s := rawText(raw)
	if s == "" {
		return ""
	}
	n := json.Number(s)
	if _, err := n.Float64(); err != nil {
		return ""
	}
	return n
}
