package analytics

import (
	"sort"
	"time"
)

// RevenuePoint is one bucket of a revenue series.
type RevenuePoint struct {
	Period  time.Time `json:"period"`
	Revenue float64   `json:"revenue"`
	Count   int       `json:"count"`
}

// TrendPoint extends a revenue bucket with the trailing moving average and
// a prediction marker.
type TrendPoint struct {
	Period       time.Time `json:"period"`
	Revenue      float64   `json:"revenue"`
	Count        float64   `json:"count"`
	MovingAvg7d  *float64  `json:"moving_avg_7d,omitempty"`
	IsPrediction bool      `json:"is_prediction,omitempty"`
}

// StatusPoint is one bucket of a registration series broken out by status.
type StatusPoint struct {
	Period    time.Time `json:"period"`
	Total     int       `json:"total"`
	Pending   int       `json:"pending"`
	Confirmed int       `json:"confirmed"`
	Cancelled int       `json:"cancelled"`
	Completed int       `json:"completed"`
}

// CountPoint is one bucket of a plain count series.
type CountPoint struct {
	Period time.Time `json:"period"`
	Count  int       `json:"count"`
}

type amountSample struct {
	at     time.Time
	amount float64
}

// bucketRevenue groups timestamped amounts into ordered buckets.
func bucketRevenue(samples []amountSample, g Granularity) []RevenuePoint {
	byPeriod := make(map[time.Time]*RevenuePoint)
	for _, s := range samples {
		period := g.Truncate(s.at)
		p, ok := byPeriod[period]
		if !ok {
			p = &RevenuePoint{Period: period}
			byPeriod[period] = p
		}
		p.Revenue += s.amount
		p.Count++
	}
	points := make([]RevenuePoint, 0, len(byPeriod))
	for _, p := range byPeriod {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Period.Before(points[j].Period) })
	return points
}

type statusSample struct {
	at     time.Time
	status string
}

// bucketByStatus groups timestamped registration statuses into ordered
// buckets with per-status counts.
func bucketByStatus(samples []statusSample, g Granularity) []StatusPoint {
	byPeriod := make(map[time.Time]*StatusPoint)
	for _, s := range samples {
		period := g.Truncate(s.at)
		p, ok := byPeriod[period]
		if !ok {
			p = &StatusPoint{Period: period}
			byPeriod[period] = p
		}
		switch s.status {
		case RegistrationPending:
			p.Pending++
		case RegistrationConfirmed:
			p.Confirmed++
		case RegistrationCancelled:
			p.Cancelled++
		case RegistrationCompleted:
			p.Completed++
		}
		p.Total++
	}
	points := make([]StatusPoint, 0, len(byPeriod))
	for _, p := range byPeriod {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Period.Before(points[j].Period) })
	return points
}

// bucketCounts groups timestamps into ordered count buckets.
func bucketCounts(times []time.Time, g Granularity) []CountPoint {
	byPeriod := make(map[time.Time]int)
	for _, t := range times {
		byPeriod[g.Truncate(t)]++
	}
	points := make([]CountPoint, 0, len(byPeriod))
	for period, n := range byPeriod {
		points = append(points, CountPoint{Period: period, Count: n})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Period.Before(points[j].Period) })
	return points
}

// moving-average window for daily revenue trends
const movingAvgWindow = 7

// trendSeries converts bucketed revenue into trend points, attaching the
// 7-bucket trailing moving average when the series is daily and has at
// least 7 buckets.
func trendSeries(points []RevenuePoint, g Granularity) []TrendPoint {
	trend := make([]TrendPoint, len(points))
	withAvg := g == GranularityDay && len(points) >= movingAvgWindow
	for i, p := range points {
		trend[i] = TrendPoint{Period: p.Period, Revenue: p.Revenue, Count: float64(p.Count)}
		if withAvg && i >= movingAvgWindow-1 {
			var sum float64
			for j := i - movingAvgWindow + 1; j <= i; j++ {
				sum += points[j].Revenue
			}
			avg := round2(sum / movingAvgWindow)
			trend[i].MovingAvg7d = &avg
		}
	}
	return trend
}

// forecast buckets used for the trailing mean
const forecastBasis = 5

// forecastSeries projects the series forward by the granularity's future
// period count, using the mean revenue and count of the last 5 buckets.
// Fewer than 5 historical buckets yields no prediction. This is an
// intentionally naive projection, not a time-series model.
func forecastSeries(points []RevenuePoint, g Granularity) []TrendPoint {
	if len(points) < forecastBasis {
		return []TrendPoint{}
	}
	var revSum, cntSum float64
	for _, p := range points[len(points)-forecastBasis:] {
		revSum += p.Revenue
		cntSum += float64(p.Count)
	}
	avgRevenue := round2(revSum / forecastBasis)
	avgCount := round2(cntSum / forecastBasis)

	last := points[len(points)-1].Period
	predicted := make([]TrendPoint, 0, g.FuturePeriods())
	for i := 0; i < g.FuturePeriods(); i++ {
		last = g.Next(last)
		predicted = append(predicted, TrendPoint{
			Period:       last,
			Revenue:      avgRevenue,
			Count:        avgCount,
			IsPrediction: true,
		})
	}
	return predicted
}
