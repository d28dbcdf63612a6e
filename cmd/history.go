package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/allergen-risk/internal/model"
	"github.com/sells-group/allergen-risk/internal/monitoring"
	"github.com/sells-group/allergen-risk/internal/risk"
	"github.com/sells-group/allergen-risk/internal/store"
)

var (
	historyLimit int
	historyEAN   string
	historyStats bool
	historyHours int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved assessments",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if historyStats {
			snap, err := monitoring.NewCollector(st).Collect(ctx, historyHours)
			if err != nil {
				return err
			}
			return writeSnapshot(cmd.OutOrStdout(), snap, historyJSON)
		}

		list, err := st.ListAssessments(ctx, store.AssessmentFilter{
			Identifier: historyEAN,
			Limit:      historyLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list assessments")
		}
		return writeHistory(cmd.OutOrStdout(), list, historyJSON)
	},
}

func init() {
	f := historyCmd.Flags()
	f.IntVar(&historyLimit, "limit", 20, "max assessments to list")
	f.StringVar(&historyEAN, "ean", "", "only list assessments of this product")
	f.BoolVar(&historyStats, "stats", false, "print aggregate statistics instead of a list")
	f.IntVar(&historyHours, "hours", 24, "lookback window for --stats")
	f.BoolVar(&historyJSON, "json", false, "print JSON")
	rootCmd.AddCommand(historyCmd)
}

func writeHistory(w io.Writer, list []model.Assessment, asJSON bool) error {
	if asJSON {
		return eris.Wrap(json.NewEncoder(w).Encode(list), "encode history")
	}
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "no saved assessments")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tIDENTIFIER\tNAME\tALLERGENS\tSCORE\tLABEL") //nolint:errcheck
	for _, a := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%s\n", //nolint:errcheck
			a.CreatedAt.Local().Format(time.DateTime),
			a.Identifier,
			a.ProductName,
			strings.Join(a.UserAllergens, ","),
			a.FinalScore,
			risk.Label(a.FinalScore),
		)
	}
	return tw.Flush()
}

func writeSnapshot(w io.Writer, s *monitoring.Snapshot, asJSON bool) error {
	if asJSON {
		return eris.Wrap(json.NewEncoder(w).Encode(s), "encode stats")
	}
	fmt.Fprintf(w, "last %dh: %d assessments, avg score %.2f, %d high risk\n", //nolint:errcheck
		s.LookbackHours, s.Total, s.AvgFinalScore, s.HighRisk)
	for _, label := range []string{"very high", "high", "moderate", "low", "very low"} {
		if n := s.ByLabel[label]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", label, n) //nolint:errcheck
		}
	}
	codes := make([]string, 0, len(s.TopAllergens))
	for c := range s.TopAllergens {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool {
		if s.TopAllergens[codes[i]] != s.TopAllergens[codes[j]] {
			return s.TopAllergens[codes[i]] > s.TopAllergens[codes[j]]
		}
		return codes[i] < codes[j]
	})
	for _, c := range codes {
		fmt.Fprintf(w, "  worst %-10s %d\n", c, s.TopAllergens[c]) //nolint:errcheck
	}
	return nil
}
