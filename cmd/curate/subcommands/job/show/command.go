package show

import (
	"context"
	"log"

	kenv "github.com/superb-ai/spb-curate-go/cmd/curate/env"
	"github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/common"
	"github.com/superb-ai/spb-curate-go/pkg/curate"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Wait bool `flag:"wait" alias:"w" help:"wait for the job to finish, up to the timeout of curateenv."`
}

const ARG_JOBID = "JOB_ID"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Display a job.",
		Flags{},
		flarc.Args{
			{
				Name: ARG_JOBID, Required: true,
				Help: "id of the job to be shown.",
			},
		},
		common.NewTask(Task()),
	)
}

func Task() common.Task[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		curateEnv kenv.CurateEnv,
		client *curate.Client,
		cl flarc.Commandline[Flags],
		params []any,
	) error {
		jobID := cl.Args()[ARG_JOBID][0]
		job, err := client.FetchJob(ctx, jobID)
		if err != nil {
			return err
		}
		if cl.Flags().Wait {
			options := []curate.WaitOption{}
			if curateEnv.Timeout != 0 {
				options = append(options, curate.WithWaitTimeout(curateEnv.Timeout))
			}
			if err := job.Wait(ctx, options...); err != nil {
				return err
			}
			if !job.Done() {
				logger.Printf("job %s is still %s", job.ID(), job.Status())
			}
		}
		return common.PrintJSON(cl.Stdout(), job)
	}
}
