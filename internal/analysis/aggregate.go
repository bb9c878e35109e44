package analysis

import (
	"math"
	"sort"

	"github.com/lox/energydash/internal/models"
)

// YearlyMax groups monthly records by the year part of their key and takes
// the maximum power per year, ordered by year.
func YearlyMax(records []models.MonthlyRecord) ([]models.YearMax, error) {
	maxima := make(map[string]float64)
	for _, r := range records {
		year, err := YearOfKey(r.Month)
		if err != nil {
			return nil, err
		}
		if cur, ok := maxima[year]; !ok || r.Power > cur {
			maxima[year] = r.Power
		}
	}

	out := make([]models.YearMax, 0, len(maxima))
	for year, v := range maxima {
		out = append(out, models.YearMax{Year: year, Max: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

// SeasonalMean averages a metric per season, in canonical season order.
func SeasonalMean(readings []models.Reading, metric models.Metric) []models.SeasonValue {
	var acc accumulator
	for _, r := range readings {
		acc.add(r.Season, r.Value(metric))
	}
	return Project(acc.means())
}

// MonthlySeasonalMean averages monthly power per season, taking the month
// from each record's key.
func MonthlySeasonalMean(records []models.MonthlyRecord) ([]models.SeasonValue, error) {
	var acc accumulator
	for _, r := range records {
		m, err := MonthOfKey(r.Month)
		if err != nil {
			return nil, err
		}
		season, err := Classify(m)
		if err != nil {
			return nil, err
		}
		acc.add(season, r.Power)
	}
	return Project(acc.means()), nil
}

// Project lays grouped values out in canonical season order. Seasons with
// no group are left out rather than zero-filled.
func Project(groups map[models.Season]float64) []models.SeasonValue {
	out := make([]models.SeasonValue, 0, len(groups))
	for _, s := range models.Seasons {
		if v, ok := groups[s]; ok {
			out = append(out, models.SeasonValue{Season: s, Value: v})
		}
	}
	return out
}

// Lookup finds a season in a projected result.
func Lookup(values []models.SeasonValue, s models.Season) (float64, bool) {
	for _, v := range values {
		if v.Season == s {
			return v.Value, true
		}
	}
	return 0, false
}

type accumulator struct {
	sum   map[models.Season]float64
	count map[models.Season]int
}

func (a *accumulator) add(s models.Season, v float64) {
	if math.IsNaN(v) {
		return
	}
	if a.sum == nil {
		a.sum = make(map[models.Season]float64)
		a.count = make(map[models.Season]int)
	}
	a.sum[s] += v
	a.count[s]++
}

func (a *accumulator) means() map[models.Season]float64 {
	out := make(map[models.Season]float64, len(a.sum))
	for s, sum := range a.sum {
		out[s] = sum / float64(a.count[s])
	}
	return out
}
