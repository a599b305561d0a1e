package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/tam-cli/internal/metrics"
	"github.com/sells-group/tam-cli/internal/model"
)

// seedPipeline mirrors one CRM pipeline group and its stages.
type seedPipeline struct {
	name      string
	groupID   int
	sortOrder int
	stages    []seedStage
}

type seedStage struct {
	name      string
	stageID   int
	sortOrder int
}

// seedPipelines is the CRM pipeline layout for the ZA market.
var seedPipelines = []seedPipeline{
	{
		name: "Sales Qualification", groupID: 4, sortOrder: 1,
		stages: []seedStage{
			{"New Lead", 36, 1},
			{"Marketing Qualified Lead", 38, 2},
			{"Sales Qualified Lead", 39, 3},
			{"Cold Lead", 40, 4},
			{"Disqualified", 41, 5},
		},
	},
	{
		name: "Sales Conversion", groupID: 5, sortOrder: 2,
		stages: []seedStage{
			{"Trial Booked", 42, 1},
			{"Trial in Progress", 43, 2},
			{"Trial Completed - Review", 44, 3},
			{"Proposal", 45, 4},
			{"Negotiation", 46, 5},
			{"Agreed", 47, 6},
			{"Won", 48, 7},
			{"Lost", 49, 8},
		},
	},
	{
		name: "Customer Account Management", groupID: 6, sortOrder: 3,
		stages: []seedStage{
			{"Onboarding", 50, 1},
			{"Activated", 51, 2},
			{"Upcoming Renewal", 52, 3},
			{"Low Activity", 53, 4},
			{"Churning", 54, 5},
			{"Lost", 55, 6},
		},
	},
	{
		name: "Cold/Disqualified Leads", groupID: 7, sortOrder: 4,
		stages: []seedStage{
			{"Not Interested", 56, 1},
			{"Unable to Contact", 57, 2},
			{"Long Term Interest", 58, 3},
			{"Disqualified", 59, 4},
		},
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the ZA market, provinces, and CRM pipeline layout",
	Long:  "Creates the South Africa market, its nine provinces with their school TAM estimates, and the four CRM pipelines with their stages. Safe to re-run: existing rows are preserved.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		market, err := st.UpsertMarket(ctx, "South Africa", "ZA")
		if err != nil {
			return eris.Wrap(err, "seed market")
		}

		tamByProvince, err := metrics.ProvinceTAM()
		if err != nil {
			return eris.Wrap(err, "seed: load province TAM table")
		}
		for province, tam := range tamByProvince {
			if _, err := st.UpsertRegion(ctx, market.ID, province, tam); err != nil {
				return eris.Wrapf(err, "seed region %s", province)
			}
		}

		var stageCount int
		for _, sp := range seedPipelines {
			pipeline, err := st.UpsertPipeline(ctx, model.Pipeline{
				Name:       sp.name,
				CRMGroupID: sp.groupID,
				SortOrder:  sp.sortOrder,
			})
			if err != nil {
				return eris.Wrapf(err, "seed pipeline %s", sp.name)
			}
			for _, ss := range sp.stages {
				if _, err := st.UpsertPipelineStage(ctx, model.PipelineStage{
					PipelineID: pipeline.ID,
					Name:       ss.name,
					CRMStageID: ss.stageID,
					SortOrder:  ss.sortOrder,
				}); err != nil {
					return eris.Wrapf(err, "seed stage %s", ss.name)
				}
				stageCount++
			}
		}

		fmt.Printf("Seeded market ZA, %d provinces, %d pipelines, %d stages\n",
			len(tamByProvince), len(seedPipelines), stageCount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
