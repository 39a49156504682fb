// Package env reads curateenv, the per-project defaults of the CLI.
//
// curateenv is a YAML file like:
//
//	dataset: my-dataset
//	slice: train
//	timeout: 10m
package env

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the name of curateenv searched from the working directory upward.
const FileName = "curateenv"

var ErrInvalidCurateEnv = errors.New("invalid curateenv")

type CurateEnv struct {
	// Dataset is the name of the dataset used when --dataset is not given.
	Dataset string `yaml:"dataset"`

	// Slice is the name of the slice imported images are added to.
	Slice string `yaml:"slice"`

	// Timeout is how long commands with --wait wait for jobs.
	Timeout time.Duration `yaml:"timeout"`
}

func New() *CurateEnv {
	return new(CurateEnv)
}

// LoadCurateEnv reads curateenv at filepath.
//
// A missing file is an empty CurateEnv.
func LoadCurateEnv(filepath string) (*CurateEnv, error) {
	env := CurateEnv{}

	content, err := os.ReadFile(filepath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &env, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(content, &env); err != nil {
		return nil, fmt.Errorf("%w (%s): %w", ErrInvalidCurateEnv, filepath, err)
	}
	if env.Timeout < 0 {
		return nil, fmt.Errorf("%w (%s): negative timeout", ErrInvalidCurateEnv, filepath)
	}

	return &env, nil
}

// DatasetOr returns name, or the dataset of curateenv when name is empty.
func (ce *CurateEnv) DatasetOr(name string) string {
	if name != "" {
		return name
	}
	return ce.Dataset
}
