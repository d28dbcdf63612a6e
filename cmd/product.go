package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/allergen-risk/internal/input"
	"github.com/sells-group/allergen-risk/internal/model"
	"github.com/sells-group/allergen-risk/internal/store"
)

var productFile string

var productCmd = &cobra.Command{
	Use:   "product",
	Short: "Manage products in the local database",
}

var productImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import products and their allergen facts from YAML or CSV",
	Long: `Imports products into the local database so that assess and batch
can look them up with --source db.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		products, err := input.ReadProductFile(ctx, productFile)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := importProducts(ctx, st, products)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d products\n", n)
		return err
	},
}

func init() {
	productImportCmd.Flags().StringVar(&productFile, "file", "", "product file (.yaml, .yml or .csv)")
	_ = productImportCmd.MarkFlagRequired("file")

	productCmd.AddCommand(productImportCmd)
	rootCmd.AddCommand(productCmd)
}

// importProducts upserts every product, replacing stored facts.
func importProducts(ctx context.Context, st store.Store, products []*model.ProductInfo) (int, error) {
	for i, p := range products {
		if err := st.UpsertProduct(ctx, p); err != nil {
			return i, eris.Wrapf(err, "upsert product %s", p.Identifier)
		}
	}
	zap.L().Info("product file imported", zap.Int("products", len(products)))
	return len(products), nil
}
