package dataset

import (
	dataset_find "github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/dataset/find"
	dataset_show "github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/dataset/show"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	find, err := dataset_find.New()
	if err != nil {
		return nil, err
	}
	show, err := dataset_show.New()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Look up Curate datasets.",
		struct{}{},
		flarc.WithSubcommand("find", find),
		flarc.WithSubcommand("show", show),
	)
}
