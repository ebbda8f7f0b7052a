package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/travliaq/popsync/internal/enrich"
	"github.com/travliaq/popsync/internal/match"
	"github.com/travliaq/popsync/pkg/wikidata"
)

var (
	populateOnlyMissing  bool
	populateDryRun       bool
	populateReportOut    string
	populateReportFormat string
)

// wikidataSource adapts wikidata.Client to match.CandidateSource.
type wikidataSource struct {
	client *wikidata.Client
}

func (s *wikidataSource) Nearby(ctx context.Context, lat, lon, radiusKm float64, countryCode string) ([]match.FallbackCandidate, error) {
	found, err := s.client.CitiesNear(ctx, lat, lon, radiusKm, countryCode)
	if err != nil {
		return nil, err
	}
	candidates := make([]match.FallbackCandidate, 0, len(found))
	for _, c := range found {
		candidates = append(candidates, match.FallbackCandidate{
			Name:       c.Name,
			Lat:        c.Lat,
			Lon:        c.Lon,
			Population: c.Population,
		})
	}
	return candidates, nil
}

var populateCmd = &cobra.Command{
	Use:   "populate",
	Short: "Reconcile city populations against GeoNames and Wikidata",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if !cmd.Flags().Changed("only-missing") {
			populateOnlyMissing = cfg.Populate.OnlyMissing
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		engine := enrich.NewEngine(
			st,
			newGazetteerLoader(),
			newWikidataSource(),
			engineOptions(populateOnlyMissing, populateDryRun),
		)

		report, runErr := engine.Run(ctx)
		if report != nil {
			report.LogSummary()
			fmt.Fprint(os.Stdout, report.Render())
			if populateReportOut != "" {
				if err := report.Save(populateReportOut, populateReportFormat); err != nil {
					return err
				}
			}
		}
		if runErr != nil {
			return eris.Wrap(runErr, "populate")
		}
		return nil
	},
}

func init() {
	populateCmd.Flags().BoolVar(&populateOnlyMissing, "only-missing", true, "only process cities without a usable population")
	populateCmd.Flags().BoolVar(&populateDryRun, "dry-run", false, "match without writing updates")
	populateCmd.Flags().StringVar(&populateReportOut, "report-out", "", "write the run report to this file")
	populateCmd.Flags().StringVar(&populateReportFormat, "report-format", "json", "report file format (json|yaml)")
	rootCmd.AddCommand(populateCmd)
}
