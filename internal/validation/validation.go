// Package validation checks user-supplied city names and coordinates before
// they reach the repository.
package validation

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrCityEmpty is returned when the city is empty or whitespace-only after trim.
	ErrCityEmpty = errors.New("city is required")
	// ErrCityTooShort is returned when the city length is below the minimum.
	ErrCityTooShort = errors.New("city too short")
	// ErrCityTooLong is returned when the city length exceeds the maximum.
	ErrCityTooLong = errors.New("city too long")
	// ErrCityInvalidChars is returned when the city contains disallowed characters.
	ErrCityInvalidChars = errors.New("city contains invalid characters")

	// ErrCoordinatesMissing is returned when lat or lon is absent.
	ErrCoordinatesMissing = errors.New("lat and lon are required")
	// ErrCoordinatesInvalid is returned when lat or lon is not a number or out of range.
	ErrCoordinatesInvalid = errors.New("lat must be within [-90, 90] and lon within [-180, 180]")
)

var validate = validator.New()

// Coordinates is a validated latitude/longitude pair.
type Coordinates struct {
	Lat float64 `validate:"gte=-90,lte=90"`
	Lon float64 `validate:"gte=-180,lte=180"`
}

// ValidateCity trims the input, enforces length bounds (minLen, maxLen in runes),
// and restricts to letters (Unicode), digits, space, comma, hyphen, period and
// apostrophe. Returns the trimmed string; case is left as given.
func ValidateCity(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrCityEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrCityTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrCityTooLong
	}
	for _, c := range r {
		if !isAllowedCityRune(c) {
			return "", ErrCityInvalidChars
		}
	}
	return s, nil
}

func isAllowedCityRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}

// ParseCoordinates parses and range-checks query string coordinates.
func ParseCoordinates(latStr, lonStr string) (Coordinates, error) {
	latStr, lonStr = strings.TrimSpace(latStr), strings.TrimSpace(lonStr)
	if latStr == "" || lonStr == "" {
		return Coordinates{}, ErrCoordinatesMissing
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return Coordinates{}, ErrCoordinatesInvalid
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return Coordinates{}, ErrCoordinatesInvalid
	}
	c := Coordinates{Lat: lat, Lon: lon}
	if err := validate.Struct(c); err != nil {
		return Coordinates{}, ErrCoordinatesInvalid
	}
	return c, nil
}
