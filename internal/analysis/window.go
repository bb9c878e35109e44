package analysis

import (
	"sort"

	"github.com/lox/energydash/internal/models"
)

// ByYear keeps the rows dated in the given calendar year. No match yields
// an empty slice.
func ByYear(rows []models.FlaggedReading, year int) []models.FlaggedReading {
	out := []models.FlaggedReading{}
	for _, r := range rows {
		if r.Time.Year() == year {
			out = append(out, r)
		}
	}
	return out
}

// ByYearWeek keeps the rows whose ISO year and ISO week both match.
func ByYearWeek(rows []models.FlaggedReading, year, week int) []models.FlaggedReading {
	out := []models.FlaggedReading{}
	for _, r := range rows {
		y, w := r.Time.ISOWeek()
		if y == year && w == week {
			out = append(out, r)
		}
	}
	return out
}

// Years lists the distinct calendar years present, newest first.
func Years(rows []models.FlaggedReading) []int {
	seen := make(map[int]bool)
	var years []int
	for _, r := range rows {
		y := r.Time.Year()
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

// YearWeeks lists the distinct ISO year/week pairs present, newest first.
func YearWeeks(rows []models.FlaggedReading) []models.YearWeek {
	seen := make(map[models.YearWeek]bool)
	var out []models.YearWeek
	for _, r := range rows {
		y, w := r.Time.ISOWeek()
		yw := models.YearWeek{Year: y, Week: w}
		if !seen[yw] {
			seen[yw] = true
			out = append(out, yw)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Before(out[i]) })
	return out
}
