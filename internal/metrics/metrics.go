// Package metrics derives market-saturation metrics from raw outreach
// status counts. All functions are pure: no I/O, no shared state, safe
// for concurrent use.
package metrics

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tam-cli/internal/model"
)

// Thresholds holds the risk classification cutoffs, in percent.
type Thresholds struct {
	ContactedWarn  float64 `yaml:"contacted_warn" mapstructure:"contacted_warn"`
	HardNoCritical float64 `yaml:"hard_no_critical" mapstructure:"hard_no_critical"`
}

// DefaultThresholds are the canonical depletion thresholds: warn when
// 80% of TAM has been contacted, critical when 60% of touched schools
// said a hard no.
var DefaultThresholds = Thresholds{
	ContactedWarn:  80,
	HardNoCritical: 60,
}

// TargetRate is the policy conversion target as a fraction of TAM.
const TargetRate = 0.20

// Health is a coarse display label for a region's depletion state.
type Health string

const (
	HealthCritical Health = "critical"
	HealthWarning  Health = "warning"
	HealthMonitor  Health = "monitor"
	HealthHealthy  Health = "healthy"
)

// RegionMetrics is the full derived metrics record for one region.
type RegionMetrics struct {
	model.StatusCounts

	TotalTouched    int     `json:"total_touched"`
	ContactedPct    float64 `json:"contacted_pct"`
	HardNoRate      float64 `json:"hard_no_rate"`
	Runway          int     `json:"runway"`
	ConversionRate  float64 `json:"conversion_rate"`
	Target          int     `json:"target"`
	StillNeed       int     `json:"still_need"`
	ConvertiblePool int     `json:"convertible_pool"`
	NetConvertible  int     `json:"net_convertible"`
	IsWarn          bool    `json:"is_warn"`
	IsCritical      bool    `json:"is_critical"`
	Health          Health  `json:"health"`
}

// Totals aggregates raw counts across all regions and re-derives the
// overall percentage fields from the summed values. Percentages are
// never averaged across regions.
type Totals struct {
	TAM             int     `json:"tam"`
	Known           int     `json:"known"`
	TotalTouched    int     `json:"total_touched"`
	Runway          int     `json:"runway"`
	Yes             int     `json:"yes"`
	No              int     `json:"no"`
	Target          int     `json:"target"`
	StillNeed       int     `json:"still_need"`
	ConvertiblePool int     `json:"convertible_pool"`
	NetConvertible  int     `json:"net_convertible"`
	ContactedPct    float64 `json:"contacted_pct"`
	HardNoRate      float64 `json:"hard_no_rate"`
	ConversionRate  float64 `json:"conversion_rate"`
}

// Validate rejects counts outside the documented domain. Compute itself
// never errors; call Validate at the input boundary where counts arrive
// from a caller rather than from the store.
func Validate(c model.StatusCounts) error {
	if c.TAM < 0 {
		return eris.Errorf("metrics: tam must be non-negative (got %d)", c.TAM)
	}
	for _, n := range []int{c.Uncontacted, c.Contacted, c.Replied, c.Yes, c.No, c.Known} {
		if n < 0 {
			return eris.New("metrics: status counts must be non-negative")
		}
	}
	return nil
}

// Compute derives the full metrics record for one region. Zero
// denominators resolve to 0 rather than erroring, so malformed upstream
// counts degrade gracefully.
func Compute(c model.StatusCounts, th Thresholds) RegionMetrics {
	m := RegionMetrics{StatusCounts: c}

	// Uncontacted schools are in the database but not yet touched, so
	// they don't count against TAM penetration.
	m.TotalTouched = c.Contacted + c.Replied + c.Yes + c.No

	if c.TAM > 0 {
		m.ContactedPct = float64(m.TotalTouched) / float64(c.TAM) * 100
	}
	if m.TotalTouched > 0 {
		m.HardNoRate = float64(c.No) / float64(m.TotalTouched) * 100
	}

	m.Runway = c.TAM - m.TotalTouched
	if m.Runway < 0 {
		// Touched exceeding TAM is tolerated (stale TAM), not an error.
		m.Runway = 0
	}

	definitive := c.Yes + c.No
	if definitive > 0 {
		m.ConversionRate = float64(c.Yes) / float64(definitive) * 100
	}

	m.Target = int(math.Ceil(float64(c.TAM) * TargetRate))
	m.StillNeed = m.Target - c.Yes
	if m.StillNeed < 0 {
		m.StillNeed = 0
	}

	// Deliberately unclamped: a negative pool means no > tam, which
	// callers use to detect inconsistent input data.
	m.ConvertiblePool = c.TAM - c.No

	expectedNos := int(math.Round(float64(m.Runway) * m.HardNoRate / 100))
	m.NetConvertible = m.ConvertiblePool - expectedNos
	if m.NetConvertible < 0 {
		m.NetConvertible = 0
	}

	m.IsCritical = m.HardNoRate >= th.HardNoCritical
	m.IsWarn = !m.IsCritical && m.ContactedPct >= th.ContactedWarn

	switch {
	case m.IsCritical:
		m.Health = HealthCritical
	case m.IsWarn:
		m.Health = HealthWarning
	case m.ContactedPct > 40:
		m.Health = HealthMonitor
	default:
		m.Health = HealthHealthy
	}

	return m
}

// ComputeAll derives metrics for every region, sorted by contacted
// percentage descending (most depleted first, ties keep input order),
// plus aggregate totals re-derived from the summed raw counts.
func ComputeAll(counts []model.StatusCounts, th Thresholds) ([]RegionMetrics, Totals) {
	regions := make([]RegionMetrics, 0, len(counts))
	for _, c := range counts {
		regions = append(regions, Compute(c, th))
	}

	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].ContactedPct > regions[j].ContactedPct
	})

	var t Totals
	for _, m := range regions {
		t.TAM += m.TAM
		t.Known += m.Known
		t.TotalTouched += m.TotalTouched
		t.Runway += m.Runway
		t.Yes += m.Yes
		t.No += m.No
		t.Target += m.Target
		t.StillNeed += m.StillNeed
		t.ConvertiblePool += m.ConvertiblePool
		t.NetConvertible += m.NetConvertible
	}
	if t.TAM > 0 {
		t.ContactedPct = float64(t.TotalTouched) / float64(t.TAM) * 100
	}
	if t.TotalTouched > 0 {
		t.HardNoRate = float64(t.No) / float64(t.TotalTouched) * 100
	}
	if t.Yes+t.No > 0 {
		t.ConversionRate = float64(t.Yes) / float64(t.Yes+t.No) * 100
	}

	return regions, t
}
