package calculator

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrUnrecognizedUnit is returned when a unit is not in the alias table
	ErrUnrecognizedUnit = errors.New("unrecognized distance unit")

	// ErrInvalidAmount is returned when a distance amount is NaN or infinite
	ErrInvalidAmount = errors.New("distance amount is not a number")

	// ErrInvalidDistance is returned when a distance string cannot be parsed
	ErrInvalidDistance = errors.New("distance could not be interpreted")
)

// unitGroup maps a set of aliases to the length of one unit in meters
type unitGroup struct {
	aliases []string
	meters  float64
}

// unitGroups is matched in order; the first group containing the unit wins
var unitGroups = []unitGroup{
	{aliases: []string{"m", "meter", "meters", "metre", "metres"}, meters: 1},
	{aliases: []string{"km", "kilometer", "kilometers", "kilometre", "kilometres"}, meters: 1000},
	{aliases: []string{
		"mil",
		"swedish mile", "swedish miles",
		"norwegian mile", "norwegian miles",
		"scandinavian mile", "scandinavian miles",
	}, meters: 10000},
	{aliases: []string{"ft", "foot", "feet"}, meters: 0.3048},
	{aliases: []string{"yd", "yard", "yards"}, meters: 0.9144},
	{aliases: []string{"mi", "mile", "miles"}, meters: 1609.344},
	{aliases: []string{"nm", "nmi", "nautical mile", "nautical miles"}, meters: 1852},
}

// distancePattern splits "<number><optional space><unit>"
var distancePattern = buildDistancePattern()

func buildDistancePattern() *regexp.Regexp {
	var aliases []string
	for _, g := range unitGroups {
		aliases = append(aliases, g.aliases...)
	}
	// Longest first so "miles" is preferred over "mi" and "mil"
	sort.Slice(aliases, func(i, j int) bool { return len(aliases[i]) > len(aliases[j]) })

	quoted := make([]string, len(aliases))
	for i, a := range aliases {
		quoted[i] = regexp.QuoteMeta(a)
	}
	return regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(` + strings.Join(quoted, "|") + `)$`)
}

// normalizeUnit lowercases a unit and collapses inner whitespace
func normalizeUnit(unit string) string {
	return strings.Join(strings.Fields(strings.ToLower(unit)), " ")
}

// Metrify returns the length of one unit in meters
func Metrify(unit string) (float64, error) {
	u := normalizeUnit(unit)
	for _, g := range unitGroups {
		for _, alias := range g.aliases {
			if u == alias {
				return g.meters, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnrecognizedUnit, unit)
}

// Convert converts amount from one distance unit to another
func Convert(amount float64, from, to string) (float64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, ErrInvalidAmount
	}

	fromMeters, err := Metrify(from)
	if err != nil {
		return 0, err
	}
	toMeters, err := Metrify(to)
	if err != nil {
		return 0, err
	}

	return amount * (fromMeters / toMeters), nil
}

// Distance is a quantity paired with its unit, e.g. "50km"
type Distance struct {
	Quantity float64
	Unit     string
}

// ParseDistance splits text such as "50km" or "2.5 nautical miles"
// into a quantity and a unit
func ParseDistance(text string) (Distance, error) {
	normalized := normalizeUnit(text)
	matches := distancePattern.FindStringSubmatch(normalized)
	if matches == nil {
		return Distance{}, fmt.Errorf("%w: %q", ErrInvalidDistance, text)
	}

	quantity, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return Distance{}, fmt.Errorf("%w: %q", ErrInvalidDistance, text)
	}

	return Distance{Quantity: quantity, Unit: matches[2]}, nil
}

// In converts the distance to the given unit
func (d Distance) In(unit string) (float64, error) {
	return Convert(d.Quantity, d.Unit, unit)
}

// Kilometers converts the distance to kilometers
func (d Distance) Kilometers() (float64, error) {
	return d.In("km")
}

// String formats the distance the way ParseDistance accepts it
func (d Distance) String() string {
	return strconv.FormatFloat(d.Quantity, 'f', -1, 64) + d.Unit
}
