package analysis

import (
	"fmt"
	"strconv"

	"github.com/lox/energydash/internal/models"
)

// InvalidMonthError is returned for a month outside 1-12.
type InvalidMonthError struct {
	Month int
}

func (e *InvalidMonthError) Error() string {
	return fmt.Sprintf("invalid month %d: must be 1-12", e.Month)
}

// MalformedKeyError is returned for a month key that is not "YYYY-MM".
type MalformedKeyError struct {
	Key    string
	Reason string
}

func (e *MalformedKeyError) Error() string {
	return fmt.Sprintf("malformed month key %q: %s", e.Key, e.Reason)
}

// Classify maps a calendar month to its season.
func Classify(month int) (models.Season, error) {
	switch month {
	case 12, 1, 2:
		return models.Winter, nil
	case 3, 4, 5:
		return models.Spring, nil
	case 6, 7, 8:
		return models.Summer, nil
	case 9, 10, 11:
		return models.Fall, nil
	}
	return "", &InvalidMonthError{Month: month}
}

// YearOfKey returns the first four characters of a month key.
func YearOfKey(key string) (string, error) {
	if len(key) < 4 {
		return "", &MalformedKeyError{Key: key, Reason: "shorter than 4 characters"}
	}
	return key[:4], nil
}

// MonthOfKey parses the month from the last two characters of a key.
func MonthOfKey(key string) (int, error) {
	if len(key) < 2 {
		return 0, &MalformedKeyError{Key: key, Reason: "too short to hold a month"}
	}
	m, err := strconv.Atoi(key[len(key)-2:])
	if err != nil {
		return 0, &MalformedKeyError{Key: key, Reason: "month is not numeric"}
	}
	if m < 1 || m > 12 {
		return 0, &MalformedKeyError{Key: key, Reason: "month out of range"}
	}
	return m, nil
}
