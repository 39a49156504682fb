package common

import (
	"context"
	"errors"
	"fmt"
	"log"

	kenv "github.com/superb-ai/spb-curate-go/cmd/curate/env"
	cuierrors "github.com/superb-ai/spb-curate-go/cmd/curate/errors"
	"github.com/superb-ai/spb-curate-go/pkg/configs"
	"github.com/superb-ai/spb-curate-go/pkg/curate"
	"github.com/superb-ai/spb-curate-go/pkg/logger"
	"github.com/youta-t/flarc"
)

type TaskWithCommonFlag[T any] func(
	ctx context.Context,
	logger *log.Logger,
	commonFlag CommonFlags,
	cl flarc.Commandline[T],
	params []any,
) error

func NewTaskWithCommonFlag[T any](task TaskWithCommonFlag[T]) flarc.Task[T] {
	return func(ctx context.Context, cl flarc.Commandline[T], pos []any) error {
		var commonFlag CommonFlags
		found := false
		newpos := make([]any, 0, len(pos))
		for _, p := range pos {
			switch v := p.(type) {
			case CommonFlags:
				found = true
				commonFlag = v
			default:
				newpos = append(newpos, p)
			}
		}
		if !found {
			return errors.New("programming error: common flags not found")
		}

		logger := log.New(cl.Stderr(), "", log.LstdFlags)
		logger.SetPrefix(fmt.Sprintf("[%s] ", cl.Fullname()))

		return cuierrors.Explain(task(ctx, logger, commonFlag, cl, newpos))
	}
}

// Task is a command body which talks to the API.
type Task[T any] func(
	ctx context.Context,
	logger *log.Logger,
	curateEnv kenv.CurateEnv,
	client *curate.Client,
	cl flarc.Commandline[T],
	params []any,
) error

func NewTask[T any](task Task[T]) flarc.Task[T] {
	return NewTaskWithCommonFlag(func(
		ctx context.Context,
		l *log.Logger,
		commonFlag CommonFlags,
		cl flarc.Commandline[T],
		params []any,
	) error {
		e, err := kenv.LoadCurateEnv(commonFlag.Env)
		if err != nil {
			return fmt.Errorf("%w: failed to load curateenv", err)
		}

		client, err := NewClient(commonFlag, cl.Fullname())
		if err != nil {
			return err
		}
		return task(ctx, l, *e, client, cl, params)
	})
}

// NewClient builds a client with credentials of the profile in common flags.
//
// Environment variables override the profile, as configs.Load does.
func NewClient(commonFlag CommonFlags, name string) (*curate.Client, error) {
	options := []configs.LoadOption{}
	if commonFlag.Profile != "" {
		options = append(options, configs.WithProfile(commonFlag.Profile))
	}
	if commonFlag.Config != "" {
		options = append(options, configs.WithConfigPath(commonFlag.Config))
	}
	creds, err := configs.Load(options...)
	if err != nil {
		return nil, fmt.Errorf(
			"%w: failed to load credentials. Try `curate configure` first", err,
		)
	}
	settings, err := configs.LoadSettings()
	if err != nil {
		return nil, err
	}

	return curate.New(curate.Config{
		Credentials: creds,
		Settings:    settings,
		Logger:      logger.FromEnv(name),
	})
}
