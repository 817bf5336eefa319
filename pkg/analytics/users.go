package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// UserService computes user growth, segmentation and retention statistics.
type UserService struct {
	db *sql.DB
}

// NewUserService creates a new user analytics service.
func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

// GrowthPoint is one bucket of the signup series with the running total.
type GrowthPoint struct {
	Period          time.Time `json:"period"`
	NewUsers        int       `json:"new_users"`
	CumulativeUsers int       `json:"cumulative_users"`
}

// UserGrowth is the signup series plus headline user counts.
type UserGrowth struct {
	Granularity   string        `json:"granularity"`
	Data          []GrowthPoint `json:"data"`
	TotalUsers    int           `json:"total_users"`
	ActiveUsers   int           `json:"active_users"`
	VerifiedUsers int           `json:"verified_users"`
}

// users are considered active within this window of their last login
const activeWindow = 30 * 24 * time.Hour

// Growth buckets signups over the trailing window of `periods` buckets
// ending at asOf and accumulates them onto the pre-window baseline count.
// Active users are those who logged in within 30 days of asOf.
func (s *UserService) Growth(ctx context.Context, g Granularity, periods int, asOf time.Time) (*UserGrowth, error) {
	if periods <= 0 {
		periods = 12
	}
	start := asOf.Add(-g.Span(periods))

	var baseline int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE date_joined < $1`, start).Scan(&baseline); err != nil {
		return nil, fmt.Errorf("baseline count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT date_joined FROM users
		WHERE date_joined >= $1 ORDER BY date_joined`, start)
	if err != nil {
		return nil, fmt.Errorf("growth query: %w", err)
	}
	defer rows.Close()

	var joined []time.Time
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, fmt.Errorf("growth scan: %w", err)
		}
		joined = append(joined, at)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("growth rows: %w", err)
	}

	growth := &UserGrowth{Granularity: g.String(), Data: []GrowthPoint{}}
	cumulative := baseline
	for _, p := range bucketCounts(joined, g) {
		cumulative += p.Count
		growth.Data = append(growth.Data, GrowthPoint{
			Period:          p.Period,
			NewUsers:        p.Count,
			CumulativeUsers: cumulative,
		})
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN last_login >= $1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_verified THEN 1 ELSE 0 END), 0)
		FROM users`, asOf.Add(-activeWindow)).
		Scan(&growth.TotalUsers, &growth.ActiveUsers, &growth.VerifiedUsers)
	if err != nil {
		return nil, fmt.Errorf("totals query: %w", err)
	}
	return growth, nil
}

// SegmentCount is one labeled segment of the user base.
type SegmentCount struct {
	Segment    string  `json:"segment"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// UserSegmentation breaks the user base down by role, organizer type,
// verification, login activity and registration engagement. The activity
// buckets are mutually exclusive: active 7d, active 8-30d, inactive beyond
// 30 days (or never logged in).
type UserSegmentation struct {
	TotalUsers     int            `json:"total_users"`
	Roles          []SegmentCount `json:"roles"`
	OrganizerTypes []SegmentCount `json:"organizer_types"`
	Verification   []SegmentCount `json:"verification"`
	Activity       []SegmentCount `json:"activity"`
	Engagement     []SegmentCount `json:"engagement"`
}

// Segmentation computes the role/type/verification/activity/engagement
// breakdown of all users as of the given time.
func (s *UserService) Segmentation(ctx context.Context, asOf time.Time) (*UserSegmentation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.role, u.organizer_type, u.is_verified, u.last_login,
			COALESCE(r.registrations, 0)
		FROM users u
		LEFT JOIN (
			SELECT user_id, COUNT(*) AS registrations FROM registrations GROUP BY user_id
		) r ON r.user_id = u.id`)
	if err != nil {
		return nil, fmt.Errorf("segmentation query: %w", err)
	}
	defer rows.Close()

	seg := &UserSegmentation{
		Roles:          []SegmentCount{},
		OrganizerTypes: []SegmentCount{},
		Verification:   []SegmentCount{},
		Activity:       []SegmentCount{},
		Engagement:     []SegmentCount{},
	}
	roleCounts := make(map[string]int)
	orgTypeCounts := make(map[string]int)
	var verified, active7d, active30d, inactive int
	var engNone, engLow, engMid, engHigh int

	for rows.Next() {
		var (
			role          string
			organizerType sql.NullString
			isVerified    bool
			lastLogin     sql.NullTime
			registrations int
		)
		if err := rows.Scan(&role, &organizerType, &isVerified, &lastLogin, &registrations); err != nil {
			return nil, fmt.Errorf("segmentation scan: %w", err)
		}
		seg.TotalUsers++
		roleCounts[role]++
		if role == "organizer" && organizerType.Valid {
			orgTypeCounts[organizerType.String]++
		}
		if isVerified {
			verified++
		}
		switch {
		case lastLogin.Valid && lastLogin.Time.After(asOf.Add(-7*24*time.Hour)):
			active7d++
		case lastLogin.Valid && lastLogin.Time.After(asOf.Add(-activeWindow)):
			active30d++
		default:
			inactive++
		}
		switch {
		case registrations == 0:
			engNone++
		case registrations <= 2:
			engLow++
		case registrations <= 5:
			engMid++
		default:
			engHigh++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("segmentation rows: %w", err)
	}

	total := float64(seg.TotalUsers)
	for role, n := range roleCounts {
		seg.Roles = append(seg.Roles, SegmentCount{Segment: role, Count: n, Percentage: pct(float64(n), total)})
	}
	sortSegments(seg.Roles)
	for typ, n := range orgTypeCounts {
		seg.OrganizerTypes = append(seg.OrganizerTypes, SegmentCount{Segment: typ, Count: n, Percentage: pct(float64(n), total)})
	}
	sortSegments(seg.OrganizerTypes)

	seg.Verification = []SegmentCount{
		{Segment: "verified", Count: verified, Percentage: pct(float64(verified), total)},
		{Segment: "not_verified", Count: seg.TotalUsers - verified, Percentage: pct(float64(seg.TotalUsers-verified), total)},
	}
	seg.Activity = []SegmentCount{
		{Segment: "active_7d", Count: active7d, Percentage: pct(float64(active7d), total)},
		{Segment: "active_30d", Count: active30d, Percentage: pct(float64(active30d), total)},
		{Segment: "inactive_30d", Count: inactive, Percentage: pct(float64(inactive), total)},
	}
	seg.Engagement = []SegmentCount{
		{Segment: "no_registrations", Count: engNone, Percentage: pct(float64(engNone), total)},
		{Segment: "1_2_registrations", Count: engLow, Percentage: pct(float64(engLow), total)},
		{Segment: "3_5_registrations", Count: engMid, Percentage: pct(float64(engMid), total)},
		{Segment: "6plus_registrations", Count: engHigh, Percentage: pct(float64(engHigh), total)},
	}
	return seg, nil
}

// RetentionMonth is one month of a cohort's retention.
type RetentionMonth struct {
	Month         int     `json:"month"`
	ActiveUsers   int     `json:"active_users"`
	RetentionRate float64 `json:"retention_rate"`
}

// Cohort is the set of users who joined in one calendar month.
type Cohort struct {
	Cohort     string           `json:"cohort"`
	CohortSize int              `json:"cohort_size"`
	Retention  []RetentionMonth `json:"retention"`
}

// RetentionReport is the monthly cohort retention table.
type RetentionReport struct {
	Cohorts   []Cohort  `json:"cohorts"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// Retention groups users by signup month and, for each of maxMonths
// subsequent months, reports the share of the cohort that was active
// (logged in) during that month. cohortMonth is "YYYY-MM"; empty means the
// 12 months preceding asOf.
func (s *UserService) Retention(ctx context.Context, cohortMonth string, maxMonths int, asOf time.Time) (*RetentionReport, error) {
	if maxMonths <= 0 {
		maxMonths = 12
	}

	var start, end time.Time
	if cohortMonth == "" {
		end = GranularityMonth.Truncate(asOf).AddDate(0, 0, -1)
		start = GranularityMonth.Truncate(end.AddDate(0, -11, 0))
	} else {
		parsed, err := time.Parse("2006-01", cohortMonth)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCohortMonth, cohortMonth)
		}
		start = parsed
		end = parsed.AddDate(0, maxMonths, 0).AddDate(0, 0, -1)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT date_joined, last_login FROM users
		WHERE date_joined >= $1 AND date_joined <= $2
		ORDER BY date_joined`, start, end.Add(24*time.Hour-time.Nanosecond))
	if err != nil {
		return nil, fmt.Errorf("retention query: %w", err)
	}
	defer rows.Close()

	type member struct {
		joined    time.Time
		lastLogin sql.NullTime
	}
	byMonth := make(map[time.Time][]member)
	for rows.Next() {
		var m member
		if err := rows.Scan(&m.joined, &m.lastLogin); err != nil {
			return nil, fmt.Errorf("retention scan: %w", err)
		}
		month := GranularityMonth.Truncate(m.joined)
		byMonth[month] = append(byMonth[month], m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("retention rows: %w", err)
	}

	months := make([]time.Time, 0, len(byMonth))
	for month := range byMonth {
		months = append(months, month)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	report := &RetentionReport{Cohorts: []Cohort{}, StartDate: start, EndDate: end}
	for _, month := range months {
		members := byMonth[month]
		cohort := Cohort{
			Cohort:     month.Format("2006-01"),
			CohortSize: len(members),
			Retention:  make([]RetentionMonth, 0, maxMonths),
		}
		for i := 0; i < maxMonths; i++ {
			windowStart := month.AddDate(0, i, 0)
			windowEnd := month.AddDate(0, i+1, 0)
			var active int
			for _, m := range members {
				if m.lastLogin.Valid && !m.lastLogin.Time.Before(windowStart) && m.lastLogin.Time.Before(windowEnd) {
					active++
				}
			}
			cohort.Retention = append(cohort.Retention, RetentionMonth{
				Month:         i,
				ActiveUsers:   active,
				RetentionRate: pct(float64(active), float64(len(members))),
			})
		}
		report.Cohorts = append(report.Cohorts, cohort)
	}
	return report, nil
}

func sortSegments(segments []SegmentCount) {
	sort.Slice(segments, func(i, j int) bool {
		if segments[i].Count != segments[j].Count {
			return segments[i].Count > segments[j].Count
		}
		return segments[i].Segment < segments[j].Segment
	})
}
