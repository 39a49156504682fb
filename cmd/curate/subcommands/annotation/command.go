package annotation

import (
	"github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/annotation/importer"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	imp, err := importer.New()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Manipulate annotations of a dataset.",
		struct{}{},
		flarc.WithSubcommand("import", imp),
	)
}
