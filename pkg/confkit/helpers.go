package confkit

import "os"

// fileExists reports whether p names an existing file or directory.
func fileExists(p string) bool {
	if p == "" {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}
