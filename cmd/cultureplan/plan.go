package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cultureplan/internal/adapters/layouts"
	"cultureplan/internal/blob"
	"cultureplan/internal/composition"
	"cultureplan/internal/core"
	"cultureplan/internal/layout"
	"cultureplan/internal/logging"
)

const exportTimeout = 2 * time.Minute

type planOptions struct {
	file        string
	commit      bool
	export      string
	requestedBy string
	dilution    string
}

func newPlanCmd(root *rootOptions) *cobra.Command {
	opts := &planOptions{}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Lay out an experiment's cultures on plates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd.Context(), cmd.OutOrStdout(), root.configPath, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "experiment YAML file")
	cmd.Flags().BoolVar(&opts.commit, "commit", false, "persist the plates to the catalog")
	cmd.Flags().StringVar(&opts.export, "export", "", "comma separated artifact formats (json,csv,html,png)")
	cmd.Flags().StringVar(&opts.requestedBy, "requested-by", "", "operator recorded on exported artifacts")
	cmd.Flags().StringVar(&opts.dilution, "dilution", "", "print the culture volume to transfer per well at this dilution factor (e.g. 0.1X)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runPlan(ctx context.Context, out io.Writer, configPath string, opts *planOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, _, err := layout.ParseDilutionFactor(opts.dilution); err != nil {
		return err
	}
	var formats []layouts.Format
	if opts.export != "" {
		var err error
		if formats, err = layouts.ParseFormats(opts.export); err != nil {
			return err
		}
	}
	exp, err := loadExperiment(opts.file)
	if err != nil {
		return err
	}
	rt, err := openRuntime(ctx, configPath)
	if err != nil {
		return err
	}
	defer rt.Close()

	added, err := seed(ctx, rt.service, exp.Catalog)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	if added > 0 {
		rt.logger.Info("catalog seeded", zap.Int("entries", added))
	}
	plan, err := rt.service.PlanExperiment(ctx, exp.request())
	if err != nil {
		return err
	}
	if err := printPlan(out, exp.Name, plan); err != nil {
		return err
	}
	if err := printMaterials(out, plan.Materials()); err != nil {
		return err
	}
	if opts.dilution != "" {
		if err := printTransfers(out, plan, opts.dilution); err != nil {
			return err
		}
	}

	if opts.commit {
		collections, _, err := rt.service.CommitPlan(ctx, plan)
		if err != nil {
			return fmt.Errorf("commit plan: %w", err)
		}
		for i, col := range collections {
			fmt.Fprintf(out, "committed plate %d as collection %s\n", i+1, col.ID)
		}
	}

	if len(formats) > 0 {
		return exportPlan(ctx, out, rt, exp.Name, plan, formats, opts.requestedBy)
	}
	return nil
}

func exportPlan(ctx context.Context, out io.Writer, rt *runtime, label string, plan core.Plan, formats []layouts.Format, requestedBy string) error {
	store, err := blob.Open(ctx, rt.blobConfig())
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}
	worker := layouts.NewWorker(store, layouts.WithLogger(logging.Adapt(rt.logger)))
	worker.Start()
	stopCtx, cancel := context.WithTimeout(context.Background(), exportTimeout)
	defer cancel()
	defer func() { _ = worker.Stop(stopCtx) }()

	rec, err := worker.Enqueue(ctx, layouts.ExportInput{Label: label, Plan: plan, Formats: formats, RequestedBy: requestedBy})
	if err != nil {
		return err
	}
	waitCtx, cancelWait := context.WithTimeout(ctx, exportTimeout)
	defer cancelWait()
	rec, err = worker.Wait(waitCtx, rec.ID)
	if err != nil {
		return err
	}
	if rec.Status != layouts.ExportStatusSucceeded {
		return fmt.Errorf("export %s failed: %s", rec.ID, rec.Error)
	}
	fmt.Fprintf(out, "export %s stored %d artifacts in %s\n", rec.ID, len(rec.Artifacts), store.Driver())
	for _, a := range rec.Artifacts {
		fmt.Fprintf(out, "  %s\t%d bytes\n", a.Key, a.SizeBytes)
	}
	return nil
}

// printPlan writes a summary line followed by one grid per plate. Wells
// show strain and group; control wells are starred and empty wells dotted.
func printPlan(out io.Writer, name string, plan core.Plan) error {
	if name == "" {
		name = "experiment"
	}
	fmt.Fprintf(out, "%s: %d conditions, %d controls, %d wells on %d %s plates (%s per well)\n",
		name, len(plan.Groups), len(plan.Controls), plan.Wells(), len(plan.Plates), plan.Container.Name, plan.Volume)
	for _, plate := range plan.Plates {
		fmt.Fprintf(out, "\nplate %d\n", plate.Index+1)
		err := printGrid(out, plate, func(r, c int) string { return wellLabel(plate.Cells[r][c]) })
		if err != nil {
			return err
		}
	}
	return nil
}

func printGrid(out io.Writer, plate layout.PlateMatrix, text func(r, c int) string) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := make([]string, 0, plate.Columns+1)
	header = append(header, "")
	for c := 0; c < plate.Columns; c++ {
		header = append(header, strconv.Itoa(c+1))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for r, row := range plate.Cells {
		line := make([]string, 0, len(row)+1)
		line = append(line, strings.TrimSuffix(layout.Coordinate(r, 0), "1"))
		for c := range row {
			line = append(line, text(r, c))
		}
		fmt.Fprintln(tw, strings.Join(line, "\t"))
	}
	return tw.Flush()
}

// printMaterials lists the stock volumes to prepare, the inoculation steps
// per plate and the media each step consumes.
func printMaterials(out io.Writer, m core.Materials) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nreagent\titem\tvolume\tprepare")
	for _, r := range m.Reagents {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Sample, r.ItemID, r.Volume, r.Prepare)
	}
	fmt.Fprintln(tw, "\ninoculate\tstrain\twells\tresuspend")
	for _, step := range m.Inoculations {
		fmt.Fprintf(tw, "plate %d\t%s\t%s\t%g mL\n", step.Plate+1, step.Strain, strings.Join(step.Wells, " "), step.ResuspensionML)
	}
	for _, media := range m.Media {
		fmt.Fprintf(tw, "media\t%s\t%s\t%g mL\n", media.Sample, media.ItemID, media.Milliliters)
	}
	return tw.Flush()
}

// printTransfers writes, per plate, the culture volume to move out of each
// well at the dilution factor. "None" prints nothing.
func printTransfers(out io.Writer, plan core.Plan, factor string) error {
	grids, ok, err := plan.TransferPlan(factor)
	if err != nil || !ok {
		return err
	}
	for i, plate := range plan.Plates {
		fmt.Fprintf(out, "\ntransfer at %s, plate %d (%s)\n", factor, plate.Index+1, plan.Volume.Units)
		grid := grids[i]
		err := printGrid(out, plate, func(r, c int) string {
			if grid[r][c] < 0 {
				return "."
			}
			return strconv.FormatFloat(grid[r][c], 'f', -1, 64)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func wellLabel(cell layout.Cell) string {
	if cell.Empty() {
		return "."
	}
	strain := ""
	if c, ok := cell.Culture.First(composition.KindStrain); ok {
		strain = c.Name()
	}
	label := strain + "/" + strconv.Itoa(cell.Group)
	if cell.Control {
		label += "*"
	}
	return label
}
