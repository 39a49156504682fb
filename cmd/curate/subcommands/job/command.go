package job

import (
	job_find "github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/job/find"
	job_show "github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/job/show"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	show, err := job_show.New()
	if err != nil {
		return nil, err
	}
	find, err := job_find.New()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Look up jobs of bulk operations.",
		struct{}{},
		flarc.WithSubcommand("show", show),
		flarc.WithSubcommand("find", find),
	)
}
