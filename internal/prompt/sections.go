package prompt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/pkordes/tripplanner/internal/domain"
)

// Flights describes the booked flights. The first day must start at the
// outbound arrival airport and the last day must end at the return departure
// airport. In creation mode the section is skipped when there are no flights.
func Flights(in Input) (string, bool) {
	offers := in.Request.Flights
	if len(offers) == 0 {
		if in.Split != nil {
			return "<flights>\nNo flight information provided.", true
		}
		return "", false
	}

	var b strings.Builder
	switch {
	case len(offers) == 1 && offers[0].IsRoundTrip():
		legs := offers[0].Legs
		writeOutbound(&b, legs[0])
		writeReturn(&b, legs[len(legs)-1])
		writeFare(&b, offers[0])
	case len(offers) == 1:
		writeOutbound(&b, offers[0].Legs[0])
		writeFare(&b, offers[0])
	default:
		// Several one-way offers: first is outbound, last is the way home,
		// anything between is an internal hop.
		for i, offer := range offers {
			leg := offer.Legs[0]
			switch i {
			case 0:
				writeOutbound(&b, leg)
			case len(offers) - 1:
				writeReturn(&b, leg)
			default:
				fmt.Fprintf(&b, "<connecting flight %d>\n", i)
				writeLeg(&b, leg)
				fmt.Fprintf(&b, "Schedule nothing between %s and %s on that day except the transfer.\n\n",
					clock(leg.DepartureAt), clock(leg.ArrivalAt))
			}
			writeFare(&b, offer)
		}
	}
	return b.String(), true
}

func writeLeg(b *strings.Builder, leg domain.FlightLeg) {
	fmt.Fprintf(b, "From: %s (%s)\n", orUnknown(leg.OriginName), orUnknown(leg.Origin))
	fmt.Fprintf(b, "To: %s (%s)\n", orUnknown(leg.DestinationName), orUnknown(leg.Destination))
	if leg.Carrier != "" || leg.Number != "" {
		fmt.Fprintf(b, "Flight: %s %s\n", leg.Carrier, leg.Number)
	}
	fmt.Fprintf(b, "Departure time: %s\n", orUnknown(clock(leg.DepartureAt)))
	fmt.Fprintf(b, "Arrival time: %s\n", orUnknown(clock(leg.ArrivalAt)))
}

func writeOutbound(b *strings.Builder, leg domain.FlightLeg) {
	b.WriteString("<outbound flight>\n")
	writeLeg(b, leg)
	fmt.Fprintf(b, "Arrival airport lat/lng: %s/%s\n", coord(leg.ArrivalLat), coord(leg.ArrivalLng))
	fmt.Fprintf(b, "IMPORTANT: the first schedule of day 1 is arriving at %s at %s. "+
		"Include that airport's name, latitude and longitude in schedules. Start sightseeing no earlier than one hour after arrival.\n\n",
		orUnknown(leg.DestinationName), orUnknown(clock(leg.ArrivalAt)))
}

func writeReturn(b *strings.Builder, leg domain.FlightLeg) {
	b.WriteString("<return flight>\n")
	writeLeg(b, leg)
	fmt.Fprintf(b, "Departure airport lat/lng: %s/%s\n", coord(leg.DepartureLat), coord(leg.DepartureLng))
	fmt.Fprintf(b, "IMPORTANT: the last schedule of the last day is getting ready to depart from %s "+
		"at least two hours before %s. All times are local to that airport.\n\n",
		orUnknown(leg.OriginName), orUnknown(clock(leg.DepartureAt)))
}

func writeFare(b *strings.Builder, offer domain.FlightOffer) {
	if offer.PriceTotal == "" {
		return
	}
	fmt.Fprintf(b, "Fare: %s %s\n\n", offer.PriceTotal, offer.Currency)
}

// Lodging describes the booked stays. Creation without a booking asks the
// model to recommend one place to sleep per night.
func Lodging(in Input) (string, bool) {
	stays := in.Request.Lodgings
	if len(stays) == 0 {
		if in.Split != nil {
			return "<lodging>\nNo lodging information provided.", true
		}
		return noLodging, true
	}

	var b strings.Builder
	for i, s := range stays {
		if len(stays) > 1 {
			fmt.Fprintf(&b, "<lodging %d>\n", i+1)
		} else {
			b.WriteString("<lodging>\n")
		}
		fmt.Fprintf(&b, "Hotel: %s\n", s.Name)
		fmt.Fprintf(&b, "Room: %s\n", s.RoomName)
		fmt.Fprintf(&b, "Check-in: %s\n", s.CheckIn)
		fmt.Fprintf(&b, "Check-out: %s\n", s.CheckOut)
		fmt.Fprintf(&b, "Address: %s\n", orUnknown(strings.Trim(s.Address+", "+s.City, ", ")))
		fmt.Fprintf(&b, "Hotel lat/lng: %s/%s\n", coord(s.Lat), coord(s.Lng))
		if s.Price != "" {
			fmt.Fprintf(&b, "Price: %s\n", s.Price)
		}
		b.WriteString("\n")
	}
	b.WriteString("IMPORTANT: include the hotel check-in on the first day of each stay. " +
		"Every day starts from and returns to the hotel. On the check-out day, route from the hotel " +
		"to the return flight's departure airport. All times are local to the hotel.")
	return b.String(), true
}

const noLodging = `<lodging>
No lodging is booked. Recommend exactly one real lodging for every night of the trip.
Add it as the last schedule of each day with "category": "lodging", "time": "22:00" and an id of the form "custom-<day>-lodging".`

// Requirement carries the caller's free-text request.
func Requirement(in Input) (string, bool) {
	return "<requirement>\n" + in.Request.Query + "\n\nPlan around these places and the number of days.", true
}

// DateRange renders "start ~ end". Missing dates render as empty, rejecting
// such a request is the caller's job. Modification only includes it when a
// date is known.
func DateRange(in Input) (string, bool) {
	r := in.Request
	if in.Split != nil && r.StartDate == "" && r.EndDate == "" {
		return "", false
	}
	return fmt.Sprintf("<dates>\n%s ~ %s, plan for exactly these dates.", r.StartDate, r.EndDate), true
}

// PartySize renders the adult and child counts.
func PartySize(in Input) (string, bool) {
	return fmt.Sprintf("<party>\nadults: %d, children: %d", in.Request.Adults, in.Request.Children), true
}

// ImageGuidance is only present when the request has images attached.
func ImageGuidance(in Input) (string, bool) {
	n := len(in.Request.Images)
	if n == 0 {
		return "", false
	}
	return fmt.Sprintf("<images>\n%d image(s) are attached. Identify the places, food or scenery they show "+
		"and work the matching real locations into the itinerary where they fit the route.", n), true
}

// Rules lists the constraints every generated plan has to follow.
func Rules(Input) (string, bool) {
	return `<rules>
Every place must exist and use the name shown on the map.
Keep each day realistic: no excessive travel distance within a day.
The first stop of a day should be close to the previous night's lodging so the days flow into each other.
Do not put consecutive stops right next to each other.
If flight information is given, the first schedule of day 1 is the outbound arrival airport at the arrival time, and the last schedule of the last day is the return departure airport before the departure time. Airports count as places and carry their name, latitude and longitude.

<answer format>
Shape each day as attraction - meal - attraction - attraction - attraction - attraction - last attraction.
Attractions are landmarks or sights on the map, not hotels, stations or airports unless required above.
Every schedule carries lat and lng, including the last one of each day.
Return only JSON in the structure below.`, true
}

// PreservationRules opens a modification prompt.
func PreservationRules(Input) (string, bool) {
	return `Task:
1. Generate only general sightseeing, meal and activity schedules that satisfy the user's request.
2. Do not generate flight or lodging schedules. They are kept separately and merged back afterwards.
3. Every schedule has id, name, time, lat, lng, category, duration, notes, cost and address.
4. The answer must be valid JSON.`, true
}

// Need carries the modification instruction.
func Need(in Input) (string, bool) {
	return "<user request>\n" + in.Request.Need, true
}

type existingDay struct {
	Day       string           `json:"day"`
	Title     string           `json:"title,omitempty"`
	Schedules []map[string]any `json:"schedules"`
}

// ExistingSchedules embeds the mutable part of the plan being modified as
// indented JSON, reduced to the core fields.
func ExistingSchedules(in Input) (string, bool) {
	if in.Split == nil {
		return "", false
	}
	var days []existingDay
	for _, key := range in.Split.DayOrder {
		entries := in.Split.Mutable[key]
		if len(entries) == 0 {
			continue
		}
		days = append(days, existingDay{
			Day:       key,
			Title:     in.Split.Titles[key],
			Schedules: lo.Map(entries, func(e domain.ScheduleEntry, _ int) map[string]any { return e.Summary() }),
		})
	}
	if len(days) == 0 {
		return "<existing schedules>\nNo existing general schedules.", true
	}
	b, err := json.MarshalIndent(days, "", "  ")
	if err != nil {
		return "<existing schedules>\nNo existing general schedules.", true
	}
	return "<existing schedules>\n" + string(b), true
}

// coord renders a coordinate, or Unknown when absent.
func coord(v *float64) string {
	if v == nil {
		return Unknown
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
