package show

import (
	"context"
	"fmt"
	"log"

	kenv "github.com/superb-ai/spb-curate-go/cmd/curate/env"
	"github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/common"
	"github.com/superb-ai/spb-curate-go/pkg/curate"
	"github.com/youta-t/flarc"
)

type Flag struct {
	ID bool `flag:"id" help:"treat DATASET as an id, not a name."`
}

const ARG_DATASET = "DATASET"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Display a dataset with its image and slice counts.",
		Flag{},
		flarc.Args{
			{
				Name: ARG_DATASET, Required: false,
				Help: "name of the dataset. If omitted, the dataset in curateenv.",
			},
		},
		common.NewTask(Task()),
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
		arg := ""
		if a := cl.Args()[ARG_DATASET]; len(a) != 0 {
			arg = a[0]
		}

		counts := []curate.FetchOption{curate.WithImageCount(), curate.WithSliceCount()}
		var ds *curate.Dataset
		var err error
		if cl.Flags().ID {
			if arg == "" {
				return fmt.Errorf("%w: --id needs %s", flarc.ErrUsage, ARG_DATASET)
			}
			ds, err = client.FetchDataset(ctx, arg, counts...)
		} else {
			ds, err = common.DatasetOf(ctx, client, curateEnv.DatasetOr(arg), counts...)
		}
		if err != nil {
			return err
		}
		return common.PrintJSON(cl.Stdout(), ds)
	}
}
