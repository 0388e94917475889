package prompt_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/merge"
	"github.com/pkordes/tripplanner/internal/prompt"
)

// ---- helpers ---------------------------------------------------------------

func parse(t *testing.T, body string) domain.TravelRequest {
	t.Helper()
	req, err := domain.ParseTravelRequest([]byte(body))
	require.NoError(t, err)
	return req
}

func indexOf(t *testing.T, s, sub string) int {
	t.Helper()
	i := strings.Index(s, sub)
	require.GreaterOrEqualf(t, i, 0, "%q not found in prompt", sub)
	return i
}

// ---- creation --------------------------------------------------------------

func TestBuild_ContainsRequestLiterals(t *testing.T) {
	bodies := []string{
		`{"query":"food tour","startDate":"2025-05-12","endDate":"2025-05-14","adults":2,"children":0}`,
		`{"query":"온천 여행","startDate":"2024-12-30","endDate":"2025-01-02","adults":"3","children":2}`,
		`{"query":"","startDate":"2025-01-01","endDate":"2025-01-01"}`,
	}
	for _, body := range bodies {
		req := parse(t, body)

		p := prompt.Build(req, nil)

		assert.NotEmpty(t, p.Instruction)
		assert.Contains(t, p.Instruction, req.Query)
		assert.Contains(t, p.Instruction, req.StartDate)
		assert.Contains(t, p.Instruction, req.EndDate)
		assert.Contains(t, p.Instruction, "adults: "+strconv.Itoa(req.Adults))
		assert.Contains(t, p.Instruction, "children: "+strconv.Itoa(req.Children))
		assert.True(t, strings.HasSuffix(p.Instruction, p.Example))
	}
}

func TestBuild_CreateSectionOrder(t *testing.T) {
	req := parse(t, `{"query":"museums","startDate":"2025-05-12","endDate":"2025-05-14",
		"flightInfo":{"itineraries":[{"segments":[{"departure":{"iataCode":"ICN","at":"2025-05-12T09:00:00"},"arrival":{"iataCode":"NRT","at":"2025-05-12T11:30:00"}}]}]},
		"accommodationInfo":{"hotel":{"name":"Hotel Gracery"}},
		"images":["AAAA"]}`)

	p := prompt.Build(req, nil).Instruction

	flights := indexOf(t, p, "<outbound flight>")
	lodging := indexOf(t, p, "<lodging>")
	requirement := indexOf(t, p, "<requirement>")
	dates := indexOf(t, p, "<dates>")
	party := indexOf(t, p, "<party>")
	images := indexOf(t, p, "<images>")
	rules := indexOf(t, p, "<rules>")
	example := indexOf(t, p, "JSON example")
	assert.True(t, flights < lodging && lodging < requirement && requirement < dates &&
		dates < party && party < images && images < rules && rules < example)
}

func TestBuild_ImagesSectionOnlyWithImages(t *testing.T) {
	p := prompt.Build(parse(t, `{"startDate":"a","endDate":"b"}`), nil)

	assert.NotContains(t, p.Instruction, "<images>")
}

func TestBuild_NoLodgingAsksForRecommendation(t *testing.T) {
	p := prompt.Build(parse(t, `{"startDate":"a","endDate":"b"}`), nil)

	assert.Contains(t, p.Instruction, "No lodging is booked")
	assert.Contains(t, p.Instruction, "custom-")
}

func TestBuild_MissingCoordinatesRenderUnknown(t *testing.T) {
	req := parse(t, `{"startDate":"2025-05-12","endDate":"2025-05-14",
		"flightInfo":{"itineraries":[
			{"segments":[{"departure":{"iataCode":"ICN","at":"2025-05-12T09:00:00"},"arrival":{"iataCode":"NRT","at":"2025-05-12T11:30:00","geoCode":{}}}]},
			{"segments":[{"departure":{"iataCode":"NRT","at":"2025-05-14T18:00:00","geoCode":{"latitude":"?"}},"arrival":{"iataCode":"ICN"}}]}]},
		"accommodationInfo":{"hotel":{"name":"Somewhere"}}}`)

	p := prompt.Build(req, nil).Instruction

	assert.Contains(t, p, "Arrival airport lat/lng: Unknown/Unknown")
	assert.Contains(t, p, "Departure airport lat/lng: Unknown/Unknown")
	assert.Contains(t, p, "Hotel lat/lng: Unknown/Unknown")
}

func TestBuild_FlightTimesAreClockTimes(t *testing.T) {
	req := parse(t, `{"startDate":"a","endDate":"b",
		"flightInfo":{"itineraries":[{"segments":[{"departure":{"iataCode":"ICN","at":"2025-05-12T09:05:00"},
			"arrival":{"iataCode":"NRT","at":"2025-05-12T11:30:00","geoCode":{"latitude":35.7647,"longitude":140.3864}}}]}]}}`)

	p := prompt.Build(req, nil).Instruction

	assert.Contains(t, p, "Departure time: 09:05")
	assert.Contains(t, p, "Arrival time: 11:30")
	assert.Contains(t, p, "Arrival airport lat/lng: 35.7647/140.3864")
	assert.NotContains(t, p, "<return flight>")
}

func TestBuild_MultipleOneWayOffers(t *testing.T) {
	leg := func(from, to string) string {
		return `{"itineraries":[{"segments":[{"departure":{"iataCode":"` + from + `"},"arrival":{"iataCode":"` + to + `"}}]}]}`
	}
	req := parse(t, `{"startDate":"a","endDate":"b","flightInfos":[`+leg("ICN", "NRT")+`,`+leg("NRT", "CTS")+`,`+leg("CTS", "ICN")+`]}`)

	p := prompt.Build(req, nil).Instruction

	out := indexOf(t, p, "<outbound flight>")
	hop := indexOf(t, p, "<connecting flight 1>")
	back := indexOf(t, p, "<return flight>")
	assert.True(t, out < hop && hop < back)
}

func TestBuild_MissingDatesRenderEmpty(t *testing.T) {
	p := prompt.Build(parse(t, `{"query":"x"}`), nil)

	assert.Contains(t, p.Instruction, "<dates>\n ~ ,")
}

// ---- modification ----------------------------------------------------------

func TestBuild_ModifyEmbedsOnlyMutableEntries(t *testing.T) {
	req := parse(t, `{"need":"swap the museum for a park","plans":{"start_date":"2025-07-05","day_order":["1","2"],"travel_plans":{
		"1":{"title":"Arrival","schedules":[
			{"id":"f-1","name":"KIX","type":"Flight_OneWay","flightOfferDetails":{"secret":"keep-out"}},
			{"id":"1-1","name":"Osaka Museum","category":"attraction","lat":34.68,"lng":135.52}]},
		"2":{"title":"Free day","schedules":[]}}}}`)
	split := merge.SplitPreserved(*req.ExistingPlan)

	p := prompt.Build(req, &split).Instruction

	assert.Contains(t, p, "swap the museum for a park")
	assert.Contains(t, p, `"name": "Osaka Museum"`)
	assert.NotContains(t, p, "keep-out")
	assert.NotContains(t, p, `"name": "KIX"`)
	assert.Contains(t, p, "No flight information provided.")
	assert.Contains(t, p, `"days": {`)

	preserve := indexOf(t, p, "Task:")
	need := indexOf(t, p, "<user request>")
	existing := indexOf(t, p, "<existing schedules>")
	flights := indexOf(t, p, "<flights>")
	lodging := indexOf(t, p, "<lodging>")
	format := indexOf(t, p, "Answer format")
	assert.True(t, preserve < need && need < existing && existing < flights && flights < lodging && lodging < format)
}

func TestBuild_ModifyWithNoMutableEntries(t *testing.T) {
	req := parse(t, `{"need":"x","plans":{"day_order":["1"],"travel_plans":{"1":{"schedules":[{"id":"h","type":"accommodation"}]}}}}`)
	split := merge.SplitPreserved(*req.ExistingPlan)

	p := prompt.Build(req, &split).Instruction

	assert.Contains(t, p, "No existing general schedules.")
}
