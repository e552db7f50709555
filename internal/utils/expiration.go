package utils

import (
	"fmt"
	"strings"
	"time"
)

type DateFormat string

const (
	FormatISO8601Date DateFormat = "2006-01-02"
	FormatUSDate      DateFormat = "01/02/2006"
	FormatDotDate     DateFormat = "02.01.2006"
	FormatShortMonth  DateFormat = "Jan 2, 2006"
	FormatMonthDay    DateFormat = "January 2, 2006"
)

// Mission expirations are stored as entered. YYYY-MM-DD is canonical, the rest
// are tolerated so older records still expire.
var expirationFormats = []DateFormat{
	FormatISO8601Date,
	FormatUSDate,
	FormatDotDate,
	FormatShortMonth,
	FormatMonthDay,
}

// ParseExpirationDate returns the UTC midnight of the given date.
func ParseExpirationDate(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, fmt.Errorf("expiration date is empty")
	}

	for _, format := range expirationFormats {
		if parsed, err := time.ParseInLocation(string(format), input, time.UTC); err == nil {
			return parsed, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized expiration date %q", input)
}

// NowUTC is the clock every expiration check runs against.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// IsExpired reports whether the whole expiration day has passed. Unparseable
// dates never expire.
func IsExpired(expiration string, now time.Time) bool {
	date, err := ParseExpirationDate(expiration)
	if err != nil {
		return false
	}
	return !now.UTC().Before(date.AddDate(0, 0, 1))
}

// IsCanonicalDate reports whether the input is already YYYY-MM-DD.
func IsCanonicalDate(input string) bool {
	_, err := time.Parse(string(FormatISO8601Date), strings.TrimSpace(input))
	return err == nil
}
