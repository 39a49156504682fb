package common

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	kenv "github.com/superb-ai/spb-curate-go/cmd/curate/env"
	"github.com/superb-ai/spb-curate-go/pkg/utils"
)

// ProfilePointer is the file telling the profile used under its directory.
//
// Its first line is the profile name.
const ProfilePointer = ".curateprofile"

type CommonFlags struct {
	Profile string `flag:"profile" help:"profile name in the config file. If empty, SPB_PROFILE or \"default\"."`
	Config  string `flag:"config" help:"path to the config file of profiles"`
	Env     string `flag:"env" help:"path to curateenv file"`
}

type commonFlagDetection struct {
	home string
}

type CommonFlagDetectionOption func(*commonFlagDetection) *commonFlagDetection

func WithHome(home string) CommonFlagDetectionOption {
	return func(opt *commonFlagDetection) *commonFlagDetection {
		opt.home = home
		return opt
	}
}

// Flags detects default values of common flags for the directory from.
//
// .curateprofile and curateenv are searched from the directory upward.
// The config file is ~/.spb/config.
func Flags(from string, opt ...CommonFlagDetectionOption) (CommonFlags, error) {
	detparam := commonFlagDetection{}
	for _, o := range opt {
		detparam = *o(&detparam)
	}

	home := detparam.home
	if home == "" {
		_home, err := os.UserHomeDir()
		if err != nil {
			_home = ""
		}
		home = _home
	}

	if _from, err := filepath.Abs(from); err == nil {
		from = _from
	}

	profile := ""
	if pointer, err := utils.SearchFilePathtoUpward(from, ProfilePointer); err == nil {
		content, err := os.ReadFile(pointer)
		if err != nil {
			return CommonFlags{}, err
		}
		profile = strings.TrimSpace(strings.SplitN(string(content), "\n", 2)[0])
	} else if !errors.Is(err, utils.ErrSearchFile) {
		return CommonFlags{}, err
	}

	env, err := utils.SearchFilePathtoUpward(from, kenv.FileName)
	if err != nil {
		env = filepath.Join(from, kenv.FileName)
	}

	return CommonFlags{
		Profile: profile,
		Config:  filepath.Join(home, ".spb", "config"),
		Env:     env,
	}, nil
}
