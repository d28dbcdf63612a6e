package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/allergen-risk/internal/input"
	"github.com/sells-group/allergen-risk/internal/store"
)

var (
	facilityFile string
	facilityEAN  string
	facilityID   string
)

var facilityCmd = &cobra.Command{
	Use:   "facility",
	Short: "Manage facility allergen profiles",
}

var facilityImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import facility profiles and product links from YAML or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ff, err := input.ReadFacilityFile(ctx, facilityFile)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := importFacilities(ctx, st, ff)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d profiles, %d links\n", n, len(ff.Links))
		return err
	},
}

var facilityLinkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link a product barcode to a facility",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.LinkFacility(ctx, facilityEAN, facilityID); err != nil {
			return eris.Wrapf(err, "link %s to %s", facilityEAN, facilityID)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "linked %s to %s\n", facilityEAN, facilityID)
		return err
	},
}

func init() {
	facilityImportCmd.Flags().StringVar(&facilityFile, "file", "", "profile file (.yaml, .yml or .csv)")
	_ = facilityImportCmd.MarkFlagRequired("file")

	facilityLinkCmd.Flags().StringVar(&facilityEAN, "ean", "", "product barcode")
	facilityLinkCmd.Flags().StringVar(&facilityID, "facility", "", "facility identifier")
	_ = facilityLinkCmd.MarkFlagRequired("ean")
	_ = facilityLinkCmd.MarkFlagRequired("facility")

	facilityCmd.AddCommand(facilityImportCmd, facilityLinkCmd)
	rootCmd.AddCommand(facilityCmd)
}

// importFacilities upserts every profile and then records the links.
func importFacilities(ctx context.Context, st store.Store, ff *input.FacilityFile) (int64, error) {
	n, err := st.UpsertFacilityProfiles(ctx, ff.Profiles)
	if err != nil {
		return 0, eris.Wrap(err, "upsert facility profiles")
	}
	for _, l := range ff.Links {
		if err := st.LinkFacility(ctx, l.Identifier, l.FacilityID); err != nil {
			return n, eris.Wrapf(err, "link %s to %s", l.Identifier, l.FacilityID)
		}
	}
	zap.L().Info("facility file imported",
		zap.Int64("profiles", n),
		zap.Int("links", len(ff.Links)),
	)
	return n, nil
}
