package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cultureplan/internal/calibration"
	"cultureplan/internal/core"
	"cultureplan/pkg/units"
)

type calibrateOptions struct {
	kind        string
	csvPath     string
	plateID     string
	fluorescein string
}

func newCalibrateCmd(root *rootOptions) *cobra.Command {
	opts := &calibrateOptions{}
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Reduce a plate-reader calibration measurement",
		Long: "Reads a plate-reader export (one CSV row per plate row) and prints the\n" +
			"fluorescein standard curve or the optical density correction factors.\n" +
			"With --plate the result is stored on the calibration plate. With\n" +
			"--fluorescein-stock it prints how to dilute the stock for the plate.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCalibrate(cmd.Context(), cmd.OutOrStdout(), root.configPath, opts)
		},
	}
	cmd.Flags().StringVar(&opts.kind, "kind", "", "fluorescence or optical")
	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "measurement CSV file")
	cmd.Flags().StringVar(&opts.plateID, "plate", "", "calibration plate collection ID to record the result on")
	cmd.Flags().StringVar(&opts.fluorescein, "fluorescein-stock", "", "fluorescein stock concentration (e.g. 1_mM) to prepare the working aliquot from")
	cmd.MarkFlagsRequiredTogether("kind", "csv")
	cmd.MarkFlagsOneRequired("csv", "fluorescein-stock")
	return cmd
}

func parseKind(s string) (calibration.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fluorescence", "fluorescein":
		return calibration.KindFluorescence, nil
	case "optical", "optical_density", "od":
		return calibration.KindOpticalDensity, nil
	default:
		return "", fmt.Errorf("unknown calibration kind %q", s)
	}
}

func runCalibrate(ctx context.Context, out io.Writer, configPath string, opts *calibrateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.fluorescein != "" {
		if err := printFluoresceinPrep(out, opts.fluorescein); err != nil {
			return err
		}
		if opts.csvPath == "" {
			return nil
		}
	}
	kind, err := parseKind(opts.kind)
	if err != nil {
		return err
	}
	matrix, err := readMatrix(opts.csvPath)
	if err != nil {
		return err
	}
	var result core.CalibrationResult
	if opts.plateID == "" {
		if result, err = core.Calibrate(kind, matrix); err != nil {
			return err
		}
	} else {
		rt, err := openRuntime(ctx, configPath)
		if err != nil {
			return err
		}
		defer rt.Close()
		result, _, err = rt.service.RecordCalibration(ctx, core.CalibrationRequest{PlateID: opts.plateID, Kind: kind, Matrix: matrix})
		if err != nil {
			return err
		}
	}
	printCalibration(out, result)
	if opts.plateID != "" {
		fmt.Fprintf(out, "recorded on plate %s\n", opts.plateID)
	}
	return nil
}

func printFluoresceinPrep(out io.Writer, stock string) error {
	m, err := units.ParseMeasurement(stock)
	if err != nil {
		return fmt.Errorf("fluorescein stock: %w", err)
	}
	prep, err := calibration.PrepareFluorescein(m)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "dilute %s fluorescein %gX: %s stock into %s PBS\n", m, prep.DilutionFactor, prep.StockVolume, prep.DiluentVolume)
	return nil
}

func printCalibration(out io.Writer, result core.CalibrationResult) {
	switch result.Kind {
	case calibration.KindFluorescence:
		fmt.Fprintln(out, result.Trendline)
	case calibration.KindOpticalDensity:
		keys := make([]string, 0, len(result.CorrectionFactors))
		for k := range result.CorrectionFactors {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return volumeOf(keys[i]) < volumeOf(keys[j]) })
		for _, k := range keys {
			fmt.Fprintf(out, "%s\t%.4f\n", k, result.CorrectionFactors[k])
		}
	}
}

func volumeOf(key string) int {
	n, _ := strconv.Atoi(strings.TrimSuffix(key, "_µL"))
	return n
}

// readMatrix loads a rectangular grid of readings. Blank cells read as zero
// so partially filled plates keep their column positions.
func readMatrix(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open measurement: %w", err)
	}
	defer func() { _ = f.Close() }()
	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.Comment = '#'
	var matrix [][]float64
	for line := 1; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read measurement: %w", err)
		}
		row := make([]float64, len(record))
		for i, field := range record {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("measurement line %d column %d: %w", line, i+1, err)
			}
			row[i] = v
		}
		matrix = append(matrix, row)
	}
	if len(matrix) == 0 {
		return nil, fmt.Errorf("measurement %s is empty", path)
	}
	return matrix, nil
}
