package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tam-cli/internal/model"
)

func TestCompute_DepletedWarnProvince(t *testing.T) {
	t.Parallel()

	m := Compute(model.StatusCounts{
		Name:      "Gauteng",
		TAM:       100,
		Contacted: 30,
		Replied:   10,
		Yes:       5,
		No:        55,
	}, DefaultThresholds)

	assert.Equal(t, 100, m.TotalTouched)
	assert.InDelta(t, 100.0, m.ContactedPct, 1e-9)
	assert.InDelta(t, 55.0, m.HardNoRate, 1e-9)
	assert.Equal(t, 0, m.Runway)
	assert.InDelta(t, 5.0/60.0*100, m.ConversionRate, 1e-9)
	assert.Equal(t, 20, m.Target)
	assert.Equal(t, 15, m.StillNeed)
	assert.Equal(t, 45, m.ConvertiblePool)
	assert.Equal(t, 45, m.NetConvertible)
	assert.True(t, m.IsWarn)
	assert.False(t, m.IsCritical)
	assert.Equal(t, HealthWarning, m.Health)
}

func TestCompute_ZeroTAMNoDivisionErrors(t *testing.T) {
	t.Parallel()

	m := Compute(model.StatusCounts{Name: "Northern Cape"}, DefaultThresholds)

	assert.Zero(t, m.ContactedPct)
	assert.Zero(t, m.HardNoRate)
	assert.Zero(t, m.ConversionRate)
	assert.Zero(t, m.Target)
	assert.Zero(t, m.StillNeed)
	assert.Zero(t, m.Runway)
	assert.False(t, m.IsWarn)
	assert.False(t, m.IsCritical)
	assert.Equal(t, HealthHealthy, m.Health)
}

func TestCompute_CriticalTakesPrecedenceOverWarn(t *testing.T) {
	t.Parallel()

	// Both thresholds exceeded: contactedPct=90, hardNoRate=66.7.
	m := Compute(model.StatusCounts{
		TAM:       100,
		Contacted: 20,
		Replied:   10,
		Yes:       0,
		No:        60,
	}, DefaultThresholds)

	assert.True(t, m.IsCritical)
	assert.False(t, m.IsWarn, "a region is never both warn and critical")
	assert.Equal(t, HealthCritical, m.Health)
}

func TestCompute_RunwayClampedWhenTouchedExceedsTAM(t *testing.T) {
	t.Parallel()

	m := Compute(model.StatusCounts{TAM: 50, Contacted: 70}, DefaultThresholds)

	assert.Equal(t, 0, m.Runway)
	assert.GreaterOrEqual(t, m.StillNeed, 0)
}

func TestCompute_ConvertiblePoolNotClamped(t *testing.T) {
	t.Parallel()

	// no > tam is an input-consistency anomaly: surfaced, not hidden.
	m := Compute(model.StatusCounts{TAM: 10, No: 25}, DefaultThresholds)

	assert.Equal(t, -15, m.ConvertiblePool)
	assert.Equal(t, 0, m.NetConvertible)
}

func TestCompute_NetConvertibleDiscountsExpectedNos(t *testing.T) {
	t.Parallel()

	// touched=40, noRate=50%, runway=60 → expect 30 future NOs.
	// pool = 100-20 = 80, net = 80-30 = 50.
	m := Compute(model.StatusCounts{
		TAM:       100,
		Contacted: 10,
		Replied:   10,
		Yes:       0,
		No:        20,
	}, DefaultThresholds)

	assert.Equal(t, 60, m.Runway)
	assert.InDelta(t, 50.0, m.HardNoRate, 1e-9)
	assert.Equal(t, 80, m.ConvertiblePool)
	assert.Equal(t, 50, m.NetConvertible)
}

func TestCompute_Idempotent(t *testing.T) {
	t.Parallel()

	c := model.StatusCounts{TAM: 331, Contacted: 120, Replied: 40, Yes: 18, No: 61, Uncontacted: 30}
	assert.Equal(t, Compute(c, DefaultThresholds), Compute(c, DefaultThresholds))
}

func TestComputeAll_SortsByContactedPctDescending(t *testing.T) {
	t.Parallel()

	regions, _ := ComputeAll([]model.StatusCounts{
		{Name: "Free State", TAM: 100, Contacted: 10},
		{Name: "Gauteng", TAM: 100, Contacted: 90},
		{Name: "Limpopo", TAM: 100, Contacted: 50},
	}, DefaultThresholds)

	require.Len(t, regions, 3)
	assert.Equal(t, "Gauteng", regions[0].Name)
	assert.Equal(t, "Limpopo", regions[1].Name)
	assert.Equal(t, "Free State", regions[2].Name)
}

func TestComputeAll_StableSortPreservesInputOrderOnTies(t *testing.T) {
	t.Parallel()

	regions, _ := ComputeAll([]model.StatusCounts{
		{Name: "A", TAM: 100, Contacted: 50},
		{Name: "B", TAM: 100, Contacted: 50},
		{Name: "C", TAM: 100, Contacted: 50},
	}, DefaultThresholds)

	assert.Equal(t, "A", regions[0].Name)
	assert.Equal(t, "B", regions[1].Name)
	assert.Equal(t, "C", regions[2].Name)
}

func TestComputeAll_TotalsRederivedNotAveraged(t *testing.T) {
	t.Parallel()

	// Region 1: 100% contacted; region 2: 0%. Averaging percentages
	// would give 50%; re-deriving from summed raws gives 100/400 = 25%.
	_, totals := ComputeAll([]model.StatusCounts{
		{Name: "Small", TAM: 100, Contacted: 100},
		{Name: "Big", TAM: 300},
	}, DefaultThresholds)

	assert.Equal(t, 400, totals.TAM)
	assert.Equal(t, 100, totals.TotalTouched)
	assert.InDelta(t, 25.0, totals.ContactedPct, 1e-9)
	assert.Zero(t, totals.HardNoRate)
	assert.Zero(t, totals.ConversionRate)
}

func TestComputeAll_TotalsSumRawFields(t *testing.T) {
	t.Parallel()

	counts := []model.StatusCounts{
		{Name: "Gauteng", TAM: 937, Known: 400, Contacted: 200, Replied: 50, Yes: 30, No: 70},
		{Name: "Western Cape", TAM: 331, Known: 150, Contacted: 80, Replied: 20, Yes: 10, No: 15},
	}
	regions, totals := ComputeAll(counts, DefaultThresholds)

	var wantTouched, wantRunway int
	for _, m := range regions {
		wantTouched += m.TotalTouched
		wantRunway += m.Runway
	}
	assert.Equal(t, wantTouched, totals.TotalTouched)
	assert.Equal(t, wantRunway, totals.Runway)
	assert.Equal(t, 1268, totals.TAM)
	assert.Equal(t, 40, totals.Yes)
	assert.Equal(t, 85, totals.No)
	assert.InDelta(t, 40.0/125.0*100, totals.ConversionRate, 1e-9)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Validate(model.StatusCounts{TAM: 10, Yes: 1}))
	assert.Error(t, Validate(model.StatusCounts{TAM: -1}))
	assert.Error(t, Validate(model.StatusCounts{TAM: 5, No: -2}))
}

func TestProvinceTAM(t *testing.T) {
	t.Parallel()

	tam, err := ProvinceTAM()
	require.NoError(t, err)
	assert.Len(t, tam, 9)
	assert.Equal(t, 937, tam["Gauteng"])
	assert.Equal(t, 46, tam["Northern Cape"])
}
