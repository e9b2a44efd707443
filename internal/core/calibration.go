package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"cultureplan/internal/calibration"
)

// CalibrationPlateExpiredError reports a calibration plate past its shelf life.
type CalibrationPlateExpiredError struct {
	PlateID string
	Created time.Time
}

func (e *CalibrationPlateExpiredError) Error() string {
	return fmt.Sprintf("calibration plate %s made %s has expired", e.PlateID, e.Created.Format(time.DateOnly))
}

// CalibrationRequest carries one plate-reader measurement of a calibration plate.
type CalibrationRequest struct {
	PlateID string
	Kind    calibration.Kind
	Matrix  [][]float64
}

// CalibrationResult is the outcome stored against the plate.
type CalibrationResult struct {
	Kind              calibration.Kind   `json:"kind"`
	Curve             *calibration.Curve `json:"curve,omitempty"`
	Trendline         string             `json:"trendline,omitempty"`
	CorrectionFactors map[string]float64 `json:"correction_factors,omitempty"`
	MeasuredAt        time.Time          `json:"measured_at"`
}

// Calibrate computes a calibration result from a measurement matrix without
// touching the catalog.
func Calibrate(kind calibration.Kind, matrix [][]float64) (CalibrationResult, error) {
	out := CalibrationResult{Kind: kind}
	switch kind {
	case calibration.KindFluorescence:
		points, err := calibration.FluorescenceAverages(matrix)
		if err != nil {
			return CalibrationResult{}, err
		}
		curve, err := calibration.FitStandardCurve(points)
		if err != nil {
			return CalibrationResult{}, err
		}
		out.Curve = &curve
		out.Trendline = curve.Trendline()
	case calibration.KindOpticalDensity:
		averages, err := calibration.OpticalDensityAverages(matrix)
		if err != nil {
			return CalibrationResult{}, err
		}
		factors := calibration.OpticalCorrectionFactors(averages)
		out.CorrectionFactors = make(map[string]float64, len(factors))
		for _, vol := range calibration.Volumes(factors) {
			out.CorrectionFactors[strconv.Itoa(vol)+"_µL"] = factors[vol]
		}
	default:
		return CalibrationResult{}, fmt.Errorf("unknown calibration kind %q", kind)
	}
	return out, nil
}

// RecordCalibration evaluates a calibration measurement and stores the
// result on the calibration plate. Plates older than a month are rejected.
func (s *Service) RecordCalibration(ctx context.Context, req CalibrationRequest) (CalibrationResult, Result, error) {
	var (
		out CalibrationResult
		res Result
	)
	err := s.run(ctx, opRecordCalibration, func(ctx context.Context) (string, error) {
		computed, err := Calibrate(req.Kind, req.Matrix)
		if err != nil {
			return req.PlateID, err
		}
		// The store's clock is read before its write lock is taken.
		now := s.now()
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			plate, ok := tx.FindCollection(req.PlateID)
			if !ok {
				return ErrNotFound{Entity: EntityCollection, ID: req.PlateID}
			}
			if calibration.PlateExpired(plate.CreatedAt, now) {
				return &CalibrationPlateExpiredError{PlateID: plate.ID, Created: plate.CreatedAt}
			}
			computed.MeasuredAt = now
			payload, err := json.Marshal(computed)
			if err != nil {
				return err
			}
			_, err = tx.PutAssociation(Association{
				Subject:   EntityCollection,
				SubjectID: plate.ID,
				Key:       "calibration_" + string(req.Kind),
				Value:     payload,
			})
			return err
		})
		if err == nil {
			out = computed
		}
		return req.PlateID, err
	})
	return out, res, err
}
