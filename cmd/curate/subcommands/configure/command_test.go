package configure_test

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/common"
	"github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/configure"
	"github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/internal/commandline"
	"github.com/superb-ai/spb-curate-go/pkg/configs"
	"github.com/superb-ai/spb-curate-go/pkg/utils/try"
	"github.com/youta-t/flarc"
)

func TestConfigure(t *testing.T) {
	type when struct {
		profile string
		flags   configure.Flags
		stdin   string
	}
	type then struct {
		err     error
		profile string
		creds   configs.Credentials
		pinned  bool
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			root := t.TempDir()
			workdir := t.TempDir()
			config := filepath.Join(root, ".spb", "config")

			testee := configure.Task(func() (string, error) { return workdir, nil })
			err := testee(
				context.Background(),
				log.New(new(strings.Builder), "", 0),
				common.CommonFlags{Profile: when.profile, Config: config},
				commandline.MockCommandline[configure.Flags]{
					Fullname_: "curate configure",
					Stdin_:    strings.NewReader(when.stdin),
					Stderr_:   new(strings.Builder),
					Flags_:    when.flags,
				},
				[]any{},
			)
			if then.err != nil {
				if !errors.Is(err, then.err) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}

			actual := try.To(configs.LoadProfile(config, then.profile)).OrFatal(t)
			if actual != then.creds {
				t.Errorf("unmatch:\nactual   = %+v\nexpected = %+v", actual, then.creds)
			}

			content, err := os.ReadFile(filepath.Join(workdir, common.ProfilePointer))
			if then.pinned {
				if err != nil {
					t.Fatal(err)
				}
				if string(content) != then.profile+"\n" {
					t.Errorf("pointer: %q", content)
				}
			} else if !errors.Is(err, os.ErrNotExist) {
				t.Errorf("pointer should not be written: %v", err)
			}
		}
	}

	t.Run("with flags, it saves them into the default profile", theory(
		when{flags: configure.Flags{TeamName: "team", AccessKey: "key"}},
		then{
			profile: "default",
			creds:   configs.Credentials{TeamName: "team", AccessKey: "key", Profile: "default"},
		},
	))

	t.Run("missing values are read from the terminal", theory(
		when{
			profile: "work",
			flags:   configure.Flags{AccessKey: "key", Pin: true},
			stdin:   "  my-team  \n",
		},
		then{
			profile: "work",
			creds:   configs.Credentials{TeamName: "my-team", AccessKey: "key", Profile: "work"},
			pinned:  true,
		},
	))

	t.Run("empty input is a usage error", theory(
		when{flags: configure.Flags{TeamName: "team"}, stdin: "\n"},
		then{err: flarc.ErrUsage},
	))
}
