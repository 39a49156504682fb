package common_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/common"
	"github.com/superb-ai/spb-curate-go/pkg/utils/try"
)

func TestFlags(t *testing.T) {
	t.Run("it finds .curateprofile and curateenv in ancestors", func(t *testing.T) {
		root := t.TempDir()
		home := t.TempDir()
		deeper := filepath.Join(root, "project", "images")
		if err := os.MkdirAll(deeper, 0700); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(root, common.ProfilePointer), []byte("work\nignored\n"), 0600); err != nil {
			t.Fatal(err)
		}
		envpath := filepath.Join(root, "project", "curateenv")
		if err := os.WriteFile(envpath, []byte("dataset: x\n"), 0600); err != nil {
			t.Fatal(err)
		}

		actual := try.To(common.Flags(deeper, common.WithHome(home))).OrFatal(t)

		expected := common.CommonFlags{
			Profile: "work",
			Config:  filepath.Join(home, ".spb", "config"),
			Env:     envpath,
		}
		if actual != expected {
			t.Errorf("unmatch:\nactual   = %+v\nexpected = %+v", actual, expected)
		}
	})

	t.Run("without them, profile is empty and curateenv is in the directory", func(t *testing.T) {
		root := t.TempDir()
		home := t.TempDir()

		actual := try.To(common.Flags(root, common.WithHome(home))).OrFatal(t)

		if actual.Profile != "" {
			t.Errorf("profile: %s", actual.Profile)
		}
		if actual.Env != filepath.Join(root, "curateenv") {
			t.Errorf("env: %s", actual.Env)
		}
	})

	t.Run("options are applied in order, the last one wins", func(t *testing.T) {
		root := t.TempDir()
		first := t.TempDir()
		last := t.TempDir()

		actual := try.To(common.Flags(
			root, common.WithHome(first), common.WithHome(last),
		)).OrFatal(t)

		if expected := filepath.Join(last, ".spb", "config"); actual.Config != expected {
			t.Errorf("config: actual = %s, expected = %s", actual.Config, expected)
		}
	})
}
