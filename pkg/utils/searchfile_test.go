package utils_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/superb-ai/spb-curate-go/pkg/utils"
	"github.com/superb-ai/spb-curate-go/pkg/utils/try"
)

func TestSearchFilePathtoUpward(t *testing.T) {
	name := "curateenv"

	t.Run("the file in the directory itself is found", func(t *testing.T) {
		root := t.TempDir()
		path := filepath.Join(root, name)
		try.To(os.Create(path)).OrFatal(t).Close()

		actual := try.To(utils.SearchFilePathtoUpward(root, name)).OrFatal(t)
		if actual != path {
			t.Errorf("unmatch file path: actual = %s, expected = %s", actual, path)
		}
	})

	t.Run("the file in an ancestor is found", func(t *testing.T) {
		root := t.TempDir()
		deeper := filepath.Join(root, "data", "train")
		if err := os.MkdirAll(deeper, 0700); err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(root, name)
		try.To(os.Create(path)).OrFatal(t).Close()

		actual := try.To(utils.SearchFilePathtoUpward(deeper, name)).OrFatal(t)
		if actual != path {
			t.Errorf("unmatch file path: actual = %s, expected = %s", actual, path)
		}
	})

	t.Run("a directory of the name is not a match", func(t *testing.T) {
		root := t.TempDir()
		if err := os.Mkdir(filepath.Join(root, "not-a-file.d"), 0700); err != nil {
			t.Fatal(err)
		}

		_, err := utils.SearchFilePathtoUpward(root, "not-a-file.d")
		if !errors.Is(err, utils.ErrSearchFile) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
