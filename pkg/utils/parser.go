package utils

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"aerorelay-service/internal/domain/entity"
)

var (
	// ErrNoFlightStatuses is returned when a response carries no flightStatuses entry
	ErrNoFlightStatuses = errors.New("no flightStatuses in upstream response")
	// ErrInvalidResponse is returned when the upstream body is not valid JSON
	ErrInvalidResponse = errors.New("failed to decode upstream response")
)

// ParseFlightStatus reads the first flightStatuses entry of an upstream response.
// Fields that are missing or of an unexpected type come back empty.
func ParseFlightStatus(body []byte) (*entity.FlightStatus, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidResponse
	}

	statuses := gjson.GetBytes(body, "flightStatuses")
	if !statuses.IsArray() || len(statuses.Array()) == 0 {
		return nil, ErrNoFlightStatuses
	}

	first := statuses.Get("0")

	return &entity.FlightStatus{
		Carrier:            firstString(str(first, "flight.carrierFsCode"), str(first, "carrierFsCode")),
		FlightNumber:       firstString(str(first, "flight.flightNumber"), str(first, "flightNumber")),
		Status:             str(first, "status"),
		DepartureAirport:   str(first, "departureAirportFsCode"),
		ArrivalAirport:     str(first, "arrivalAirportFsCode"),
		Gate:               firstString(str(first, "airportResources.departure.gate"), str(first, "departureDate.gate")),
		Terminal:           firstString(str(first, "airportResources.departure.terminal"), str(first, "departureDate.terminal")),
		ScheduledDeparture: str(first, "departureDate.dateLocal"),
		ScheduledArrival:   str(first, "arrivalDate.dateLocal"),
		ActualDeparture:    str(first, "departureDate.dateUtc"),
		ActualArrival:      str(first, "arrivalDate.dateUtc"),
		DepartureDelay:     integer(first, "departureDate.delayMinutes"),
		ArrivalDelay:       integer(first, "arrivalDate.delayMinutes"),
		FlightStatuses:     json.RawMessage(statuses.Raw),
	}, nil
}

// str returns strings and numbers as text; objects, arrays, booleans and null are empty
func str(r gjson.Result, path string) string {
	v := r.Get(path)
	switch v.Type {
	case gjson.String, gjson.Number:
		return v.String()
	default:
		return ""
	}
}

func integer(r gjson.Result, path string) int {
	v := r.Get(path)
	switch v.Type {
	case gjson.Number:
		return int(v.Int())
	case gjson.String:
		return ParseInt(v.Str)
	default:
		return 0
	}
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ParseInt converts string to int, 0 when it is not a number
func ParseInt(value string) int {
	parsedValue, _ := strconv.Atoi(strings.TrimSpace(value))
	return parsedValue
}
