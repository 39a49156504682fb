package push

import (
	"context"
	"io"
	"log"
	"os"

	pb "github.com/cheggaaa/pb/v3"
	kenv "github.com/superb-ai/spb-curate-go/cmd/curate/env"
	"github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/common"
	"github.com/superb-ai/spb-curate-go/pkg/curate"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Dataset   string `flag:"dataset" alias:"d" help:"name of the dataset. If empty, the dataset in curateenv."`
	Slice     string `flag:"slice" alias:"s" help:"name of the slice the images are added to. If empty, the slice in curateenv."`
	Recursive bool   `flag:"recursive" alias:"r" help:"push images in subdirectories, too."`
	Wait      bool   `flag:"wait" alias:"w" help:"wait for the import jobs to finish."`
}

type Option struct {
	progressOut io.Writer
}

func WithProgressOut(w io.Writer) func(*Option) *Option {
	return func(o *Option) *Option {
		o.progressOut = w
		return o
	}
}

const ARG_SOURCE = "SOURCE"

func New(options ...func(*Option) *Option) (flarc.Command, error) {
	option := &Option{progressOut: os.Stderr}
	for _, o := range options {
		option = o(option)
	}

	return flarc.NewCommand(
		"Push image files in directories into a dataset.",
		Flags{},
		flarc.Args{
			{
				Name: ARG_SOURCE, Required: true, Repeatable: true,
				Help: "directory containing image files.",
			},
		},
		common.NewTask(Task(option.progressOut)),
		flarc.WithDescription(`
Push image files (bmp, jpg, jpeg, png, mpo, webp) in directories into a dataset.

The key of each image is its path relative to the SOURCE directory.
An IMAGE_IMPORT job is created for each SOURCE, and displayed.

Example
-------

To push images in "./images/train" into the dataset "street-scenes":

	{{ .Command }} --dataset street-scenes ./images/train

To push images in "./images" and its subdirectories into the slice "train",
and wait the job:

	{{ .Command }} --dataset street-scenes --slice train --recursive --wait ./images
`),
	)
}

func Task(progressOut io.Writer) common.Task[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		curateEnv kenv.CurateEnv,
		client *curate.Client,
		cl flarc.Commandline[Flags],
		params []any,
	) error {
		flags := cl.Flags()
		ds, err := common.DatasetOf(ctx, client, curateEnv.DatasetOr(flags.Dataset))
		if err != nil {
			return err
		}
		slice := flags.Slice
		if slice == "" {
			slice = curateEnv.Slice
		}

		sources := cl.Args()[ARG_SOURCE]
		jobs := make([]*curate.Job, 0, len(sources))
		for n, src := range sources {
			logger.Printf("[[%d/%d]] pushing... %s", n+1, len(sources), src)

			bar := pb.New(0)
			bar.SetWriter(progressOut)
			bar.Start()
			options := append(
				common.BulkOptions(curateEnv, flags.Wait),
				curate.WithProgress(func(done, total int) {
					bar.SetTotal(int64(total))
					bar.SetCurrent(int64(done))
				}),
			)
			job, err := ds.UploadImagesFromDirectory(ctx, src, flags.Recursive, slice, options...)
			bar.Finish()
			if err != nil {
				return err
			}
			logger.Printf("%s -> job %s (%s)", src, job.ID(), job.Status())
			jobs = append(jobs, job)
		}

		return common.PrintJSON(cl.Stdout(), jobs)
	}
}
