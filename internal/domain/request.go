package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TravelRequest is one plan creation or modification request. It is built
// once per call by ParseTravelRequest and not mutated afterwards.
type TravelRequest struct {
	Query     string
	StartDate string
	EndDate   string
	Adults    int
	Children  int

	Flights  []FlightOffer
	Lodgings []LodgingStay
	Images   []Image

	// ExistingPlan and Need are set for modification requests.
	ExistingPlan *TravelPlan
	Need         string

	AuthToken   string
	IsRoundTrip bool

	// RawFlights and RawLodgings are the booking payloads as received, kept
	// for persistence alongside the plan.
	RawFlights  json.RawMessage
	RawLodgings json.RawMessage
}

// IsModification reports whether the request carries a plan to modify.
func (r TravelRequest) IsModification() bool {
	return r.ExistingPlan != nil
}

// Validate checks the fields the pipeline cannot do without.
// Creation needs both dates; modification needs an existing plan.
func (r TravelRequest) Validate() error {
	if r.IsModification() {
		if len(r.ExistingPlan.DayOrder) == 0 {
			return fmt.Errorf("%w: plans has no days", ErrValidation)
		}
		return nil
	}
	var missing []string
	if r.StartDate == "" {
		missing = append(missing, "startDate")
	}
	if r.EndDate == "" {
		missing = append(missing, "endDate")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// FlightLeg is one directional segment group: the first segment's departure
// through the last segment's arrival.
type FlightLeg struct {
	Origin          string
	Destination     string
	OriginName      string
	DestinationName string
	DepartureAt     string
	ArrivalAt       string
	Carrier         string
	Number          string
	DepartureLat    *float64
	DepartureLng    *float64
	ArrivalLat      *float64
	ArrivalLng      *float64
}

// FlightOffer is one booked offer. More than one leg means a round trip.
type FlightOffer struct {
	Legs       []FlightLeg
	PriceTotal string
	Currency   string
}

// IsRoundTrip reports whether the offer has an inbound leg.
func (o FlightOffer) IsRoundTrip() bool {
	return len(o.Legs) > 1
}

// LodgingStay is one hotel reservation.
type LodgingStay struct {
	Name     string
	RoomName string
	Address  string
	City     string
	Lat      *float64
	Lng      *float64
	CheckIn  string
	CheckOut string
	Price    string
}

// Image is one inline image attached to a request.
type Image struct {
	MIMEType string
	Data     string // base64
}

// ParseImage decodes a data URI ("data:image/png;base64,....").
// A bare base64 string is taken as image/jpeg.
func ParseImage(s string) Image {
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		if meta, data, found := strings.Cut(rest, ","); found {
			mime := strings.TrimSuffix(meta, ";base64")
			if mime == "" {
				mime = "image/jpeg"
			}
			return Image{MIMEType: mime, Data: data}
		}
	}
	return Image{MIMEType: "image/jpeg", Data: s}
}

// ---- wire decoding ----

type requestBody struct {
	Query              string          `json:"query"`
	StartDate          string          `json:"startDate"`
	EndDate            string          `json:"endDate"`
	Adults             optNumber       `json:"adults"`
	Children           optNumber       `json:"children"`
	FlightInfo         json.RawMessage `json:"flightInfo"`
	FlightInfos        json.RawMessage `json:"flightInfos"`
	AccommodationInfo  json.RawMessage `json:"accommodationInfo"`
	AccommodationInfos json.RawMessage `json:"accommodationInfos"`
	Images             []string        `json:"images"`
	Plans              json.RawMessage `json:"plans"`
	Need               string          `json:"need"`
	AuthToken          string          `json:"authToken"`
	IsRoundTrip        *bool           `json:"isRoundTrip"`
}

// ParseTravelRequest decodes a request body. Malformed JSON is an
// ErrValidation; individual optional fields that do not decode are dropped.
func ParseTravelRequest(body []byte) (TravelRequest, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return TravelRequest{}, fmt.Errorf("domain.ParseTravelRequest: %w: empty body", ErrValidation)
	}
	if trimmed[0] != '{' {
		return TravelRequest{}, fmt.Errorf("domain.ParseTravelRequest: %w: body must be a JSON object", ErrValidation)
	}
	var in requestBody
	if err := json.Unmarshal(trimmed, &in); err != nil {
		return TravelRequest{}, fmt.Errorf("domain.ParseTravelRequest: %w: %v", ErrValidation, err)
	}

	req := TravelRequest{
		Query:     in.Query,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Adults:    1,
		Children:  0,
		Need:      in.Need,
		AuthToken: in.AuthToken,
	}
	if n, ok := in.Adults.count(); ok {
		req.Adults = n
	}
	if n, ok := in.Children.count(); ok {
		req.Children = n
	}

	req.RawFlights = firstPresent(in.FlightInfos, in.FlightInfo)
	req.Flights = parseFlightOffers(req.RawFlights)
	for _, f := range req.Flights {
		if f.IsRoundTrip() {
			req.IsRoundTrip = true
		}
	}
	if in.IsRoundTrip != nil && len(req.Flights) == 0 {
		req.IsRoundTrip = *in.IsRoundTrip
	}

	req.RawLodgings = firstPresent(in.AccommodationInfos, in.AccommodationInfo)
	req.Lodgings = parseLodgings(req.RawLodgings, req.StartDate, req.EndDate)

	for _, img := range in.Images {
		if img == "" {
			continue
		}
		req.Images = append(req.Images, ParseImage(img))
	}

	if isPresent(in.Plans) {
		plan, err := DecodePlan(in.Plans)
		if err != nil {
			return TravelRequest{}, fmt.Errorf("domain.ParseTravelRequest: plans: %w", err)
		}
		if plan.StartDate == "" {
			plan.StartDate = req.StartDate
		}
		req.ExistingPlan = &plan
	}
	return req, nil
}

func isPresent(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && !bytes.Equal(t, []byte("null")) && !bytes.Equal(t, []byte("[]")) && !bytes.Equal(t, []byte("{}"))
}

// firstPresent returns the plural field when it was sent, else the singular.
func firstPresent(plural, singular json.RawMessage) json.RawMessage {
	if isPresent(plural) {
		return plural
	}
	if isPresent(singular) {
		return singular
	}
	return nil
}

// objects splits a value that may be one object or a list of objects.
func objects(raw json.RawMessage) []json.RawMessage {
	t := bytes.TrimSpace(raw)
	if len(t) == 0 {
		return nil
	}
	if t[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(t, &list); err != nil {
			return nil
		}
		return list
	}
	if t[0] == '{' {
		return []json.RawMessage{t}
	}
	return nil
}

type geoCode struct {
	Latitude  optNumber `json:"latitude"`
	Longitude optNumber `json:"longitude"`
}

type flightPoint struct {
	IataCode    string   `json:"iataCode"`
	At          string   `json:"at"`
	GeoCode     *geoCode `json:"geoCode"`
	AirportInfo struct {
		KoreanName string `json:"koreanName"`
		Name       string `json:"name"`
	} `json:"airportInfo"`
}

type flightSegment struct {
	Departure   flightPoint `json:"departure"`
	Arrival     flightPoint `json:"arrival"`
	CarrierCode string      `json:"carrierCode"`
	Number      string      `json:"number"`
}

type flightOfferBody struct {
	Itineraries []struct {
		Segments []flightSegment `json:"segments"`
	} `json:"itineraries"`
	Price struct {
		GrandTotal json.RawMessage `json:"grandTotal"`
		Total      json.RawMessage `json:"total"`
		Currency   string          `json:"currency"`
	} `json:"price"`
}

func parseFlightOffers(raw json.RawMessage) []FlightOffer {
	var offers []FlightOffer
	for _, obj := range objects(raw) {
		var body flightOfferBody
		if err := json.Unmarshal(obj, &body); err != nil {
			continue
		}
		offer := FlightOffer{
			PriceTotal: rawText(body.Price.GrandTotal),
			Currency:   body.Price.Currency,
		}
		if offer.PriceTotal == "" {
			offer.PriceTotal = rawText(body.Price.Total)
		}
		for _, it := range body.Itineraries {
			if len(it.Segments) == 0 {
				continue
			}
			offer.Legs = append(offer.Legs, legFromSegments(it.Segments))
		}
		if len(offer.Legs) > 0 {
			offers = append(offers, offer)
		}
	}
	return offers
}

func legFromSegments(segs []flightSegment) FlightLeg {
	first, last := segs[0], segs[len(segs)-1]
	leg := FlightLeg{
		Origin:          first.Departure.IataCode,
		Destination:     last.Arrival.IataCode,
		OriginName:      airportName(first.Departure),
		DestinationName: airportName(last.Arrival),
		DepartureAt:     first.Departure.At,
		ArrivalAt:       last.Arrival.At,
		Carrier:         first.CarrierCode,
		Number:          first.Number,
	}
	if g := first.Departure.GeoCode; g != nil {
		leg.DepartureLat, leg.DepartureLng = g.Latitude.ptr(), g.Longitude.ptr()
	}
	if g := last.Arrival.GeoCode; g != nil {
		leg.ArrivalLat, leg.ArrivalLng = g.Latitude.ptr(), g.Longitude.ptr()
	}
	return leg
}

func airportName(p flightPoint) string {
	switch {
	case p.AirportInfo.KoreanName != "":
		return p.AirportInfo.KoreanName
	case p.AirportInfo.Name != "":
		return p.AirportInfo.Name
	}
	return p.IataCode
}

type lodgingBody struct {
	Hotel struct {
		HotelNameTrans string          `json:"hotel_name_trans"`
		HotelName      string          `json:"hotel_name"`
		Name           string          `json:"name"`
		Address        string          `json:"address"`
		City           string          `json:"city"`
		Latitude       optNumber       `json:"latitude"`
		Longitude      optNumber       `json:"longitude"`
		Price          json.RawMessage `json:"price"`
		CheckinFrom    string          `json:"checkin_from"`
		CheckoutUntil  string          `json:"checkout_until"`
	} `json:"hotel"`
	Room struct {
		Name  string          `json:"name"`
		Price json.RawMessage `json:"price"`
	} `json:"room"`
	CheckIn  string          `json:"checkIn"`
	CheckOut string          `json:"checkOut"`
	Price    json.RawMessage `json:"price"`
}

func parseLodgings(raw json.RawMessage, startDate, endDate string) []LodgingStay {
	var stays []LodgingStay
	for _, obj := range objects(raw) {
		var body lodgingBody
		if err := json.Unmarshal(obj, &body); err != nil {
			continue
		}
		h := body.Hotel
		stay := LodgingStay{
			Name:     firstNonEmpty(h.HotelNameTrans, h.HotelName, h.Name, "Unknown Hotel"),
			RoomName: firstNonEmpty(body.Room.Name, "Standard Room"),
			Address:  h.Address,
			City:     h.City,
			Lat:      h.Latitude.ptr(),
			Lng:      h.Longitude.ptr(),
			CheckIn:  firstNonEmpty(body.CheckIn, startDate),
			CheckOut: firstNonEmpty(body.CheckOut, endDate),
			Price:    firstNonEmpty(rawText(body.Price), rawText(body.Room.Price), rawText(h.Price)),
		}
		stays = append(stays, stay)
	}
	return stays
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// optNumber decodes a JSON number or numeric string. Anything else, including
// "two" or null, leaves it unset instead of failing the whole body.
type optNumber struct {
	v  float64
	ok bool
}

func (n *optNumber) UnmarshalJSON(b []byte) error {
	s := rawText(b)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	n.v, n.ok = f, true
	return nil
}

// maxTravellers bounds adults and children; larger values are treated as absent.
const maxTravellers = 1000

// count is the value as a traveller count. Negative and oversized values
// report false so the caller keeps its default.
func (n optNumber) count() (int, bool) {
	if !n.ok || n.v < 0 || n.v > maxTravellers {
		return 0, false
	}
	return int(n.v), true
}

func (n optNumber) ptr() *float64 {
	if !n.ok {
		return nil
	}
	v := n.v
	return &v
}
