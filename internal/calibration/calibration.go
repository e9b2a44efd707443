// Package calibration reduces plate-reader calibration plates to standard
// curves and optical-density correction factors.
package calibration

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"cultureplan/pkg/units"
)

// Plate template constants.
const (
	// FluoresceinStart is the top concentration, in µM, of the serial dilution.
	FluoresceinStart = 50.0
	// LinearRangeLimit excludes concentrations, in µM, above the reader's linear range.
	LinearRangeLimit = 25.0
	// ReferenceOD600 is the reference spectrophotometer reading for LUDOX.
	ReferenceOD600 = 0.0425
	// PlateColumns is the width of the calibration plate template.
	PlateColumns = 12
	fluoresceinRows = 4
	ludoxRow        = 4
	waterRow        = 5
)

// Kind selects the calibration measurement.
type Kind string

const (
	KindFluorescence   Kind = "fluorescence"
	KindOpticalDensity Kind = "optical_density"
)

// MatrixShapeError reports a measurement matrix that does not cover the template.
type MatrixShapeError struct {
	Rows, Columns int
	WantRows      int
}

func (e *MatrixShapeError) Error() string {
	return fmt.Sprintf("calibration matrix is %dx%d, need at least %dx%d", e.Rows, e.Columns, e.WantRows, PlateColumns)
}

// InsufficientPointsError reports too few points within the linear range.
type InsufficientPointsError struct {
	Points int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("standard curve needs at least 2 distinct points below %v µM, have %d", LinearRangeLimit, e.Points)
}

func checkShape(dm [][]float64, rows int) error {
	if len(dm) < rows {
		return &MatrixShapeError{Rows: len(dm), WantRows: rows}
	}
	for _, row := range dm[:rows] {
		if len(row) < PlateColumns {
			return &MatrixShapeError{Rows: len(dm), Columns: len(row), WantRows: rows}
		}
	}
	return nil
}

// Point is a (concentration, reading) pair.
type Point struct {
	X float64
	Y float64
}

// FluorescenceAverages averages the four fluorescein rows per concentration.
// Column j holds 50/2^j µM; the last column is the blank.
func FluorescenceAverages(dm [][]float64) ([]Point, error) {
	if err := checkShape(dm, fluoresceinRows); err != nil {
		return nil, err
	}
	out := make([]Point, PlateColumns)
	for j := 0; j < PlateColumns; j++ {
		conc := 0.0
		if j < PlateColumns-1 {
			conc = FluoresceinStart / float64(int(1)<<j)
		}
		sum := 0.0
		for i := 0; i < fluoresceinRows; i++ {
			sum += dm[i][j]
		}
		out[j] = Point{X: conc, Y: sum / fluoresceinRows}
	}
	return out, nil
}

// OpticalDensityAverages returns blanked LUDOX readings keyed by well volume
// in µL (100, 200, 300). Each volume spans four columns.
func OpticalDensityAverages(dm [][]float64) (map[int]float64, error) {
	if err := checkShape(dm, waterRow+1); err != nil {
		return nil, err
	}
	out := make(map[int]float64, 3)
	for band := 0; band < 3; band++ {
		var ludox, water float64
		for j := band * 4; j < band*4+4; j++ {
			ludox += dm[ludoxRow][j]
			water += dm[waterRow][j]
		}
		out[(band+1)*100] = units.Round(ludox/4-water/4, 5)
	}
	return out, nil
}

// Curve is a fitted linear standard curve.
type Curve struct {
	Slope     float64
	Intercept float64
	RSquared  float64
}

// FitStandardCurve fits reading = slope × concentration + intercept over the
// points inside the linear range.
func FitStandardCurve(points []Point) (Curve, error) {
	var xs, ys []float64
	distinct := map[float64]struct{}{}
	for _, p := range points {
		if p.X >= LinearRangeLimit {
			continue
		}
		xs = append(xs, p.X)
		ys = append(ys, p.Y)
		distinct[p.X] = struct{}{}
	}
	if len(distinct) < 2 {
		return Curve{}, &InsufficientPointsError{Points: len(xs)}
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, alpha, beta)
	return Curve{
		Slope:     units.Round(beta, 3),
		Intercept: units.Round(alpha, 3),
		RSquared:  units.Round(r2, 4),
	}, nil
}

// Trendline renders the curve as "y = <slope>x + <intercept>  (R^2 = <r2>)".
func (c Curve) Trendline() string {
	return fmt.Sprintf("y = %sx + %s  (R^2 = %s)", decimal(c.Slope), decimal(c.Intercept), decimal(c.RSquared))
}

func decimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// OpticalCorrectionFactors divides the reference OD600 by each blanked
// LUDOX average. Non-positive averages are skipped.
func OpticalCorrectionFactors(averages map[int]float64) map[int]float64 {
	out := make(map[int]float64, len(averages))
	for vol, avg := range averages {
		if avg <= 0 {
			continue
		}
		out[vol] = units.Round(ReferenceOD600/avg, 4)
	}
	return out
}

// Volumes returns the keys of a per-volume map in ascending order.
func Volumes(m map[int]float64) []int {
	out := make([]int, 0, len(m))
	for v := range m {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// FluoresceinPrep is the recipe for the 50 µM working aliquot.
type FluoresceinPrep struct {
	DilutionFactor float64
	StockVolume    units.Measurement
	DiluentVolume  units.Measurement
}

// PrepareFluorescein dilutes a fluorescein stock into 1000 µL of PBS at the
// template's starting concentration.
func PrepareFluorescein(stock units.Measurement) (FluoresceinPrep, error) {
	molar, err := stock.Molar()
	if err != nil {
		return FluoresceinPrep{}, fmt.Errorf("fluorescein stock: %w", err)
	}
	df := molar / (FluoresceinStart * 1e-6)
	if df < 1 {
		return FluoresceinPrep{}, fmt.Errorf("fluorescein stock %s is below the %v µM working concentration", stock, FluoresceinStart)
	}
	stockVol := units.Round(1000/df, 3)
	return FluoresceinPrep{
		DilutionFactor: units.Round(df, 4),
		StockVolume:    units.Measurement{Qty: stockVol, Units: units.Microliters},
		DiluentVolume:  units.Measurement{Qty: units.Round(1000-stockVol, 3), Units: units.Microliters},
	}, nil
}

// PlateExpired reports whether a calibration plate made at created is more
// than a month old at now.
func PlateExpired(created, now time.Time) bool {
	return now.After(created.AddDate(0, 1, 0))
}
