package configure

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/common"
	"github.com/superb-ai/spb-curate-go/pkg/configs"
	"github.com/youta-t/flarc"
)

type Flags struct {
	TeamName  string `flag:"team-name" help:"team name. Asked in the terminal if not given."`
	AccessKey string `flag:"access-key" help:"access key. Asked in the terminal if not given."`
	Pin       bool   `flag:"pin" help:"write .curateprofile into the working directory, to use the profile under there."`
}

type Option struct {
	workdir func() (string, error)
}

// WithWorkdir sets where --pin writes .curateprofile.
func WithWorkdir(workdir func() (string, error)) func(*Option) *Option {
	return func(o *Option) *Option {
		o.workdir = workdir
		return o
	}
}

func New(options ...func(*Option) *Option) (flarc.Command, error) {
	option := &Option{workdir: os.Getwd}
	for _, o := range options {
		option = o(option)
	}

	return flarc.NewCommand(
		"Save credentials into a profile.",
		Flags{},
		flarc.Args{},
		common.NewTaskWithCommonFlag(Task(option.workdir)),
		flarc.WithDescription(`
Save a team name and an access key into a profile of the config file
(default: ~/.spb/config). The profile is "--profile", or "default".

Other profiles in the config file are kept as they are.

Example
-------

	{{ .Command }} --team-name my-team --access-key xxxxxxxx

To use the profile "work" in the working directory and under:

	{{ .Command }} --profile work --pin
`),
	)
}

func Task(workdir func() (string, error)) common.TaskWithCommonFlag[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		commonFlag common.CommonFlags,
		cl flarc.Commandline[Flags],
		params []any,
	) error {
		flags := cl.Flags()
		in := bufio.NewScanner(cl.Stdin())
		ask := func(prompt string, value string) (string, error) {
			if value != "" {
				return value, nil
			}
			fmt.Fprintf(cl.Stderr(), "%s: ", prompt)
			if !in.Scan() {
				if err := in.Err(); err != nil {
					return "", err
				}
				return "", fmt.Errorf("%w: %s is required", flarc.ErrUsage, prompt)
			}
			v := strings.TrimSpace(in.Text())
			if v == "" {
				return "", fmt.Errorf("%w: %s is required", flarc.ErrUsage, prompt)
			}
			return v, nil
		}

		team, err := ask("Team name", flags.TeamName)
		if err != nil {
			return err
		}
		key, err := ask("Access key", flags.AccessKey)
		if err != nil {
			return err
		}

		profile := commonFlag.Profile
		if profile == "" {
			profile = configs.DefaultProfile
		}
		path := commonFlag.Config
		if path == "" {
			p, err := configs.DefaultConfigPath()
			if err != nil {
				return err
			}
			path = p
		}

		if err := configs.SaveProfile(
			path, profile, configs.Credentials{TeamName: team, AccessKey: key},
		); err != nil {
			return err
		}
		logger.Printf("profile %s is saved to %s", profile, path)

		if flags.Pin {
			dir, err := workdir()
			if err != nil {
				return err
			}
			pointer := filepath.Join(dir, common.ProfilePointer)
			if err := os.WriteFile(pointer, []byte(profile+"\n"), os.FileMode(0600)); err != nil {
				return err
			}
			logger.Printf("%s is pinned with %s", dir, pointer)
		}
		return nil
	}
}
