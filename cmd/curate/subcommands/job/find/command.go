package find

import (
	"context"
	"fmt"
	"log"
	"time"

	kenv "github.com/superb-ai/spb-curate-go/cmd/curate/env"
	"github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/common"
	"github.com/superb-ai/spb-curate-go/pkg/curate"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Since string `flag:"since" metavar:"RFC3339" help:"find jobs created at this time or later."`
	Limit int    `flag:"limit" help:"display at most this number of jobs. 0 means all."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Display jobs of the team.",
		Flags{},
		flarc.Args{},
		common.NewTask(Task()),
		flarc.WithDescription(`
Display jobs of the team.

Example
-------

Finding jobs created since 2024-01-02 00:00 in UTC:

	{{ .Command }} --since 2024-01-02T00:00:00Z

Finding the last 10 jobs:

	{{ .Command }} --limit 10
`),
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
		flags := cl.Flags()
		filter := curate.JobFilter{}
		if flags.Since != "" {
			since, err := time.Parse(time.RFC3339, flags.Since)
			if err != nil {
				return fmt.Errorf("%w: --since: %w", flarc.ErrUsage, err)
			}
			filter.FromDate = since
		}
		if flags.Limit < 0 {
			return fmt.Errorf("%w: --limit should not be negative", flarc.ErrUsage)
		}

		jobs := []*curate.Job{}
		for job, err := range client.Jobs(ctx, filter) {
			if err != nil {
				return err
			}
			jobs = append(jobs, job)
			if flags.Limit != 0 && flags.Limit <= len(jobs) {
				break
			}
		}
		return common.PrintJSON(cl.Stdout(), jobs)
	}
}
