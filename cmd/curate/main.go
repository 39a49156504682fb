package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path"

	subannotation "github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/annotation"
	"github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/common"
	subconfigure "github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/configure"
	subdataset "github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/dataset"
	subimage "github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/image"
	subjob "github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/job"
	subver "github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/version"
	"github.com/superb-ai/spb-curate-go/pkg/utils/try"
	"github.com/youta-t/flarc"
)

func main() {
	name := path.Base(os.Args[0])
	logger := log.Default()
	logger.SetPrefix("[" + name + "] ")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cf := try.To(common.Flags(".")).OrFatal(logger)
	configure := try.To(subconfigure.New()).OrFatal(logger)
	dataset := try.To(subdataset.New()).OrFatal(logger)
	image := try.To(subimage.New()).OrFatal(logger)
	annotation := try.To(subannotation.New()).OrFatal(logger)
	job := try.To(subjob.New()).OrFatal(logger)
	version := try.To(subver.New()).OrFatal(logger)

	curate := try.To(
		flarc.NewCommandGroup(
			"Superb AI Curate commandline interface",
			cf,
			flarc.WithSubcommand("configure", configure),
			flarc.WithSubcommand("dataset", dataset),
			flarc.WithSubcommand("image", image),
			flarc.WithSubcommand("annotation", annotation),
			flarc.WithSubcommand("job", job),
			flarc.WithSubcommand("version", version),
		),
	).OrFatal(logger)

	os.Exit(flarc.Run(ctx, curate, flarc.WithHelp(true)))
}
