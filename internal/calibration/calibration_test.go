package calibration

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cultureplan/pkg/units"
)

func fluoresceinPlate(slope, intercept float64) [][]float64 {
	dm := make([][]float64, 6)
	for i := range dm {
		dm[i] = make([]float64, PlateColumns)
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < PlateColumns; j++ {
			conc := 0.0
			if j < PlateColumns-1 {
				conc = FluoresceinStart / float64(int(1)<<j)
			}
			// rows alternate ±1 around the line so the average sits on it
			noise := 1.0
			if i%2 == 1 {
				noise = -1
			}
			dm[i][j] = slope*conc + intercept + noise
		}
	}
	return dm
}

func TestFluorescenceAverages(t *testing.T) {
	points, err := FluorescenceAverages(fluoresceinPlate(100, 5))
	require.NoError(t, err)
	require.Len(t, points, PlateColumns)
	assert.Equal(t, 50.0, points[0].X)
	assert.Equal(t, 25.0, points[1].X)
	assert.Equal(t, 0.0, points[11].X)
	assert.InDelta(t, 5005, points[0].Y, 1e-9)
	assert.InDelta(t, 5, points[11].Y, 1e-9)
}

func TestFitStandardCurveOnLinearData(t *testing.T) {
	points, err := FluorescenceAverages(fluoresceinPlate(123.4, 56.7))
	require.NoError(t, err)
	curve, err := FitStandardCurve(points)
	require.NoError(t, err)
	assert.Equal(t, 123.4, curve.Slope)
	assert.Equal(t, 56.7, curve.Intercept)
	assert.Equal(t, 1.0, curve.RSquared)
	assert.Equal(t, "y = 123.4x + 56.7  (R^2 = 1.0)", curve.Trendline())
}

func TestFitStandardCurveNeedsPointsInRange(t *testing.T) {
	_, err := FitStandardCurve([]Point{{X: 50, Y: 1}, {X: 25, Y: 2}, {X: 10, Y: 3}})
	var insufficient *InsufficientPointsError
	assert.True(t, errors.As(err, &insufficient))
}

func TestOpticalDensityAveragesAndCorrection(t *testing.T) {
	dm := make([][]float64, 6)
	for i := range dm {
		dm[i] = make([]float64, PlateColumns)
	}
	for j := 0; j < PlateColumns; j++ {
		dm[4][j] = 0.1 * float64(j/4+1)
		dm[5][j] = 0.04
	}
	avgs, err := OpticalDensityAverages(dm)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 200, 300}, Volumes(avgs))
	assert.InDelta(t, 0.06, avgs[100], 1e-12)
	assert.InDelta(t, 0.26, avgs[300], 1e-12)

	factors := OpticalCorrectionFactors(avgs)
	assert.Equal(t, units.Round(0.0425/avgs[100], 4), factors[100])
	assert.NotContains(t, OpticalCorrectionFactors(map[int]float64{100: 0}), 100)
}

func TestMatrixShapeIsChecked(t *testing.T) {
	var shape *MatrixShapeError
	_, err := FluorescenceAverages([][]float64{{1, 2}})
	assert.ErrorAs(t, err, &shape)
	_, err = OpticalDensityAverages(fluoresceinPlate(1, 0)[:5])
	assert.ErrorAs(t, err, &shape)
}

func TestPrepareFluorescein(t *testing.T) {
	prep, err := PrepareFluorescein(units.New(1, "mM"))
	require.NoError(t, err)
	assert.Equal(t, 20.0, prep.DilutionFactor)
	assert.Equal(t, 50.0, prep.StockVolume.Qty)
	assert.Equal(t, 950.0, prep.DiluentVolume.Qty)

	_, err = PrepareFluorescein(units.New(10, "uM"))
	assert.Error(t, err)
	_, err = PrepareFluorescein(units.New(1, "mg/mL"))
	assert.Error(t, err)
}

func TestPlateExpired(t *testing.T) {
	created := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	assert.False(t, PlateExpired(created, created.AddDate(0, 0, 20)))
	assert.True(t, PlateExpired(created, created.AddDate(0, 1, 1)))
}
