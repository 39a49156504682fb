package importer

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	kenv "github.com/superb-ai/spb-curate-go/cmd/curate/env"
	"github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/common"
	"github.com/superb-ai/spb-curate-go/pkg/curate"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Dataset string `flag:"dataset" alias:"d" help:"name of the dataset. If empty, the dataset in curateenv."`
	Wait    bool   `flag:"wait" alias:"w" help:"wait for the import job to finish."`
}

const ARG_FILE = "FILE"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Import annotations in a JSON file into a dataset.",
		Flags{},
		flarc.Args{
			{
				Name: ARG_FILE, Required: true,
				Help: `JSON file of annotations. Use "-" to read stdin.`,
			},
		},
		common.NewTask(Task()),
		flarc.WithDescription(`
Import annotations in a JSON file into a dataset with an ANNOTATION_IMPORT job.

FILE is a JSON list of annotations, each of them like:

	{
		"image_key": "a.png",
		"annotation_class": "car",
		"annotation_type": "box",
		"annotation_value": {"x": 10, "y": 20, "width": 30, "height": 40},
		"metadata": {}
	}

"image_id" can be used instead of "image_key".
"annotation_type" is one of box, rbox, polygon, polyline, cuboid2d, keypoint and category.
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
		file := cl.Args()[ARG_FILE][0]

		var content []byte
		var err error
		if file == "-" {
			content, err = io.ReadAll(cl.Stdin())
		} else {
			content, err = os.ReadFile(file)
		}
		if err != nil {
			return err
		}
		annotations, err := client.ParseAnnotations(content)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}

		ds, err := common.DatasetOf(ctx, client, curateEnv.DatasetOr(flags.Dataset))
		if err != nil {
			return err
		}

		logger.Printf("importing %d annotations into %s", len(annotations), ds.Name())
		job, err := client.CreateAnnotationsBulk(
			ctx, ds.ID(), annotations, common.BulkOptions(curateEnv, flags.Wait)...,
		)
		if err != nil {
			return err
		}
		return common.PrintJSON(cl.Stdout(), job)
	}
}
