package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripplanner/internal/domain"
)

// ---- helpers ---------------------------------------------------------------

const roundTripOffer = `{
	"itineraries": [
		{"segments": [
			{"departure": {"iataCode": "ICN", "at": "2025-05-12T09:10:00"},
			 "arrival": {"iataCode": "HKG", "at": "2025-05-12T11:00:00"},
			 "carrierCode": "CX", "number": "411"},
			{"departure": {"iataCode": "HKG", "at": "2025-05-12T12:30:00"},
			 "arrival": {"iataCode": "NRT", "at": "2025-05-12T17:45:00",
			             "geoCode": {"latitude": 35.7647, "longitude": 140.3864},
			             "airportInfo": {"koreanName": "나리타 국제공항"}}}
		]},
		{"segments": [
			{"departure": {"iataCode": "NRT", "at": "2025-05-14T19:00:00"},
			 "arrival": {"iataCode": "ICN", "at": "2025-05-14T21:30:00"}}
		]}
	],
	"price": {"grandTotal": "812.40", "currency": "EUR"}
}`

// ---- ParseTravelRequest tests ----------------------------------------------

func TestParseTravelRequest_Defaults(t *testing.T) {
	req, err := domain.ParseTravelRequest([]byte(`{"query":"food tour","startDate":"2025-05-12","endDate":"2025-05-14"}`))

	require.NoError(t, err)
	assert.Equal(t, "food tour", req.Query)
	assert.Equal(t, 1, req.Adults)
	assert.Equal(t, 0, req.Children)
	assert.False(t, req.IsModification())
	assert.NoError(t, req.Validate())
}

func TestParseTravelRequest_MalformedJSON(t *testing.T) {
	_, err := domain.ParseTravelRequest([]byte(`{not valid json`))

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestParseTravelRequest_EmptyBody(t *testing.T) {
	_, err := domain.ParseTravelRequest([]byte("  "))

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestParseTravelRequest_NonNumericCountsFallBack(t *testing.T) {
	req, err := domain.ParseTravelRequest([]byte(`{"startDate":"a","endDate":"b","adults":"two","children":"1"}`))

	require.NoError(t, err)
	assert.Equal(t, 1, req.Adults, "unparseable adults keeps the default")
	assert.Equal(t, 1, req.Children, "numeric strings are accepted")
}

func TestParseTravelRequest_OutOfRangeCountsFallBack(t *testing.T) {
	cases := map[string]string{
		"infinite adults":  `{"adults":"Infinity","children":"-3"}`,
		"nan adults":       `{"adults":"NaN","children":-1}`,
		"oversized adults": `{"adults":1e300,"children":"1e20"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req, err := domain.ParseTravelRequest([]byte(body))

			require.NoError(t, err)
			assert.Equal(t, 1, req.Adults)
			assert.Equal(t, 0, req.Children)
		})
	}
}

func TestParseTravelRequest_PluralFlightInfoWins(t *testing.T) {
	body := `{"startDate":"2025-05-12","endDate":"2025-05-14",
		"flightInfo": {"itineraries":[{"segments":[{"departure":{"iataCode":"GMP"},"arrival":{"iataCode":"CJU"}}]}]},
		"flightInfos": [` + roundTripOffer + `]}`

	req, err := domain.ParseTravelRequest([]byte(body))

	require.NoError(t, err)
	require.Len(t, req.Flights, 1)
	assert.Equal(t, "ICN", req.Flights[0].Legs[0].Origin)
	assert.True(t, req.IsRoundTrip)
	assert.Contains(t, string(req.RawFlights), "812.40")
}

func TestParseTravelRequest_FlightLegSpansSegments(t *testing.T) {
	req, err := domain.ParseTravelRequest([]byte(`{"startDate":"a","endDate":"b","flightInfo":` + roundTripOffer + `}`))

	require.NoError(t, err)
	require.Len(t, req.Flights, 1)
	out := req.Flights[0].Legs[0]
	assert.Equal(t, "ICN", out.Origin)
	assert.Equal(t, "NRT", out.Destination)
	assert.Equal(t, "나리타 국제공항", out.DestinationName)
	assert.Equal(t, "CX", out.Carrier)
	require.NotNil(t, out.ArrivalLat)
	assert.InDelta(t, 35.7647, *out.ArrivalLat, 1e-9)
	assert.Nil(t, out.DepartureLat)

	back := req.Flights[0].Legs[1]
	assert.Equal(t, "NRT", back.OriginName, "missing airport info falls back to the code")
	assert.Equal(t, "812.40", req.Flights[0].PriceTotal)
}

func TestParseTravelRequest_LodgingDefaults(t *testing.T) {
	body := `{"startDate":"2025-05-12","endDate":"2025-05-14",
		"accommodationInfo": {"hotel": {"hotel_name": "Hotel Gracery", "latitude": "n/a"}}}`

	req, err := domain.ParseTravelRequest([]byte(body))

	require.NoError(t, err)
	require.Len(t, req.Lodgings, 1)
	stay := req.Lodgings[0]
	assert.Equal(t, "Hotel Gracery", stay.Name)
	assert.Equal(t, "Standard Room", stay.RoomName)
	assert.Equal(t, "2025-05-12", stay.CheckIn)
	assert.Equal(t, "2025-05-14", stay.CheckOut)
	assert.Nil(t, stay.Lat)
}

func TestParseTravelRequest_Images(t *testing.T) {
	req, err := domain.ParseTravelRequest([]byte(`{"startDate":"a","endDate":"b","images":["data:image/png;base64,iVBORw0=","/9j/4AAQ"]}`))

	require.NoError(t, err)
	require.Len(t, req.Images, 2)
	assert.Equal(t, domain.Image{MIMEType: "image/png", Data: "iVBORw0="}, req.Images[0])
	assert.Equal(t, domain.Image{MIMEType: "image/jpeg", Data: "/9j/4AAQ"}, req.Images[1])
}

func TestParseTravelRequest_ModificationPlan(t *testing.T) {
	body := `{"need":"more museums","plans":{
		"planId":"plan-1700000000","start_date":"2025-07-05","day_order":["1","2"],
		"travel_plans":{"1":{"title":"Arrival","schedules":[]},"2":{"title":"Old town","schedules":[]}}}}`

	req, err := domain.ParseTravelRequest([]byte(body))

	require.NoError(t, err)
	require.True(t, req.IsModification())
	assert.Equal(t, "plan-1700000000", req.ExistingPlan.PlanID)
	assert.Equal(t, []string{"1", "2"}, req.ExistingPlan.DayOrder)
	assert.Equal(t, "Old town", req.ExistingPlan.Days["2"].Title)
	assert.NoError(t, req.Validate(), "modification does not need dates")
}

// ---- Validate tests --------------------------------------------------------

func TestTravelRequest_Validate_MissingDates(t *testing.T) {
	req, err := domain.ParseTravelRequest([]byte(`{"query":"x"}`))
	require.NoError(t, err)

	err = req.Validate()

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "startDate")
	assert.Contains(t, err.Error(), "endDate")
}
