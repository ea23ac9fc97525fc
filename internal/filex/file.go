// Package filex holds filesystem helpers shared by the local stores.
package filex

import (
	"fmt"
	"os"
)

// EnsurePrivateDir creates dir with owner-only permissions when missing.
// An existing directory is tightened to 0700; a non-directory at the path
// is an error.
func EnsurePrivateDir(dir string) error {
	fi, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("stat %s: %w", dir, err)
	case !fi.IsDir():
		return fmt.Errorf("%s exists and is not a directory", dir)
	}

	if fi.Mode().Perm()&0o077 != 0 {
		if err := os.Chmod(dir, 0o700); err != nil {
			return fmt.Errorf("chmod %s: %w", dir, err)
		}
	}
	return nil
}
