package image

import (
	image_push "github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/image/push"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	push, err := image_push.New()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Manipulate images of a dataset.",
		struct{}{},
		flarc.WithSubcommand("push", push),
	)
}
