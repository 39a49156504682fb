package find

import (
	"context"
	"log"

	kenv "github.com/superb-ai/spb-curate-go/cmd/curate/env"
	"github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/common"
	"github.com/superb-ai/spb-curate-go/pkg/curate"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Name   string `flag:"name" help:"find the dataset with exactly this name."`
	Like   string `flag:"like" help:"find datasets whose name contains this."`
	Counts bool   `flag:"counts" help:"include image and slice counts."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Display datasets that satisfy all specified conditions.",
		Flag{},
		flarc.Args{},
		common.NewTask(Task()),
		flarc.WithDescription(`
Display datasets that satisfy all specified conditions.

If no condition is specified, all datasets of the team are displayed.

Example
-------

Finding datasets whose name contains "street":

	{{ .Command }} --like street

Finding the dataset "street-scenes" with its counts:

	{{ .Command }} --name street-scenes --counts
`),
	)
}

func Task() common.Task[Flag] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		curateEnv kenv.CurateEnv,
		client *curate.Client,
		cl flarc.Commandline[Flag],
		params []any,
	) error {
		flags := cl.Flags()
		datasets, err := client.FetchDatasets(ctx, curate.DatasetFilter{
			Name:              flags.Name,
			NameContains:      flags.Like,
			IncludeImageCount: flags.Counts,
			IncludeSliceCount: flags.Counts,
		})
		if err != nil {
			return err
		}
		logger.Printf("%d datasets found", len(datasets))
		return common.PrintJSON(cl.Stdout(), datasets)
	}
}
