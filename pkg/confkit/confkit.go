// Package confkit carries the small conveniences the trader config layer is
// built on: go-zero file loading, sibling-file resolution for split configs
// (etc/market.yaml and etc/strategy.yaml live next to etc/trader.yaml) and
// .env bootstrapping for local runs.
package confkit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeromicro/go-zero/core/conf"
)

// ResolvePath resolves a section file path against the directory of the main
// config file. Environment variables are expanded first, and an absolute path
// wins over the base directory.
func ResolvePath(base, file string) string {
	file = os.ExpandEnv(file)
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(base, file)
}

// BaseDir returns the directory of the main config file path.
func BaseDir(mainPath string) string {
	return filepath.Dir(mainPath)
}

// LoadFile loads one YAML config file into T through go-zero's conf.Load,
// optionally with ${VAR} expansion.
func LoadFile[T any](path string, useEnv bool) (*T, error) {
	var cfg T
	var opts []conf.Option
	if useEnv {
		opts = append(opts, conf.UseEnv())
	}
	if err := conf.Load(path, &cfg, opts...); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return &cfg, nil
}

// Section is a config block that lives in its own file. The main config only
// names the file; Hydrate fills Value via the section's own loader so each
// section keeps its validation rules.
type Section[T any] struct {
	File  string `json:",optional"`
	Value *T     `json:"-"`
}

// Hydrate resolves File against the base directory and loads it through the
// loader. A Section with no File stays empty, which lets callers fall back to
// a default location.
func (s *Section[T]) Hydrate(base string, loader func(string) (*T, error)) error {
	if s.File == "" {
		return nil
	}
	p := ResolvePath(base, s.File)
	v, err := loader(p)
	if err != nil {
		return err
	}
	s.File, s.Value = p, v
	return nil
}
