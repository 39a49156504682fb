package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-ini/ini"
	"github.com/hectane/go-acl"
)

var ErrProfileNotFound = errors.New("profile is not found")
var ErrCannotCreateConfig = errors.New("cannot create config file")
var ErrCannotUpdateConfig = errors.New("cannot update config file")

// LoadProfile reads credentials of the profile from an INI file.
//
// A profile section has `team_name` and `access_key`.
// Older files have `account_name` instead of `team_name`.
func LoadProfile(path string, profile string) (Credentials, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Credentials{}, fmt.Errorf("%w: no config file at %s", ErrProfileNotFound, path)
	}
	f, err := ini.Load(path)
	if err != nil {
		return Credentials{}, err
	}
	sec, err := f.GetSection(profile)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: [%s] in %s", ErrProfileNotFound, profile, path)
	}

	for _, teamKey := range []string{"team_name", "account_name"} {
		if sec.HasKey(teamKey) && sec.HasKey("access_key") {
			return Credentials{
				TeamName:  sec.Key(teamKey).String(),
				AccessKey: sec.Key("access_key").String(),
				Profile:   profile,
			}, nil
		}
	}
	return Credentials{}, fmt.Errorf(
		"%w: [%s] in %s does not have team_name and access_key", ErrProfileNotFound, profile, path,
	)
}

// SaveProfile writes credentials as the profile into an INI file.
//
// Other profiles in the file are kept. The file is made accessible only by the current user.
func SaveProfile(path string, profile string, creds Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), os.FileMode(0700)); err != nil {
		return err
	}

	f := ini.Empty()
	if _, err := os.Stat(path); err == nil {
		loaded, err := ini.Load(path)
		if err != nil {
			return fmt.Errorf("%w: %s is broken: %w", ErrCannotUpdateConfig, path, err)
		}
		f = loaded
		// In case of the existing file with loose permissions,
		// enforce permission to 0600.
		if err := acl.Chmod(path, os.FileMode(0600)); err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	sec := f.Section(profile)
	sec.DeleteKey("account_name")
	sec.Key("team_name").SetValue(creds.TeamName)
	sec.Key("access_key").SetValue(creds.AccessKey)

	out, err := newSafeFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf(
				"%w, because no permission to write file at %s", ErrCannotUpdateConfig, path,
			)
		}
		return fmt.Errorf("%w: cannot create a file at %s", ErrCannotCreateConfig, path)
	}
	defer out.Close()

	_, err = f.WriteTo(out)
	return err
}
