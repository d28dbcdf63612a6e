package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/allergen-risk/internal/allergen"
	"github.com/sells-group/allergen-risk/internal/input"
	"github.com/sells-group/allergen-risk/internal/model"
	"github.com/sells-group/allergen-risk/internal/report"
	"github.com/sells-group/allergen-risk/internal/risk"
	"github.com/sells-group/allergen-risk/internal/source"
)

var (
	batchFile              string
	batchAllergies         []string
	batchAvoidTraces       bool
	batchAvoidFacilityRisk bool
	batchSource            string
	batchFormat            string
	batchOutput            string
	batchLimit             int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Score a list of barcodes and export the results",
	Example: `  allergen-risk batch --file eans.txt --allergies milk,peanut --format csv
  allergen-risk batch --file products.xlsx --allergies gluten --format xlsx --output risk.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch batchFormat {
		case "csv", "json":
		case "xlsx":
			if batchOutput == "" {
				return eris.New("--output is required for xlsx")
			}
		default:
			return eris.Errorf("unknown format %q (want csv, xlsx or json)", batchFormat)
		}

		codes, err := allergen.ResolveAll(batchAllergies)
		if err != nil {
			return err
		}
		profile := model.NewUserAllergyProfile(codes, batchAvoidTraces, batchAvoidFacilityRisk)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		barcodes, err := input.ReadBarcodes(ctx, batchFile)
		if err != nil {
			return err
		}
		if batchLimit > 0 && len(barcodes) > batchLimit {
			barcodes = barcodes[:batchLimit]
		}

		env, err := initEnv(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		src, err := env.barcodeSource(batchSource)
		if err != nil {
			return err
		}

		rows, err := processBatch(ctx, barcodes, cfg.Batch.MaxConcurrency, src, env.Engine, profile)
		if err != nil {
			return err
		}

		return writeBatch(cmd.OutOrStdout(), batchFormat, batchOutput, rows, profile.AllergenCodes)
	},
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&batchFile, "file", "", "barcode list (.txt, .csv or .xlsx)")
	f.StringSliceVar(&batchAllergies, "allergies", nil, "allergens to check, comma separated (codes or names)")
	f.BoolVar(&batchAvoidTraces, "avoid-traces", false, "treat 'may contain' statements as risk")
	f.BoolVar(&batchAvoidFacilityRisk, "avoid-facility-risk", false, "include facility cross-contact inference")
	f.StringVar(&batchSource, "source", "off", "barcode source: off or db")
	f.StringVar(&batchFormat, "format", "csv", "output format: csv, xlsx or json")
	f.StringVar(&batchOutput, "output", "", "output file (default stdout; required for xlsx)")
	f.IntVar(&batchLimit, "limit", 0, "max number of barcodes to process (0 = all)")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

// processBatch scores barcodes concurrently. Rows keep input order. A failed
// lookup becomes an error row and does not abort the batch.
func processBatch(ctx context.Context, barcodes []string, concurrency int, src source.ProductSource, engine *risk.Engine, profile model.UserAllergyProfile) ([]report.Row, error) {
	if len(barcodes) == 0 {
		zap.L().Info("no barcodes to process")
		return nil, nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("barcodes", len(barcodes)),
		zap.Int("concurrency", concurrency),
	)

	rows := make([]report.Row, len(barcodes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for i, code := range barcodes {
		g.Go(func() error {
			log := zap.L().With(zap.String("barcode", code))

			p, result, err := assessProduct(gctx, src, engine, code, profile)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				log.Warn("assessment failed", zap.Error(err))
				rows[i] = report.ErrorRow(code, err)
				return nil
			}

			succeeded.Add(1)
			log.Debug("assessment complete", zap.Float64("final_score", result.FinalScore))
			rows[i] = report.NewRow(p, result)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return rows, nil
}

func writeBatch(stdout io.Writer, format, output string, rows []report.Row, codes []string) error {
	if format == "xlsx" {
		return report.WriteXLSX(output, rows, codes)
	}

	w := stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return eris.Wrapf(err, "create %s", output)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	if format == "json" {
		return report.WriteJSON(w, rows)
	}
	return report.WriteCSV(w, rows, codes)
}
