package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SourceExt is the extension every SPP source file carries.
const SourceExt = ".spp"

// GetPathInfo resolves a source path given on the command line to an
// absolute, cleaned path and the directory holding it.
func GetPathInfo(path string) (fullPath string, parentDir string, err error) {
	fullPath, err = filepath.Abs(path)
	if err != nil {
		return "", "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return fullPath, filepath.Dir(fullPath), nil
}

// CheckSourceExt rejects paths that do not end in .spp.
func CheckSourceExt(path string) error {
	if filepath.Ext(path) != SourceExt {
		return fmt.Errorf("%s: source files must have the %s extension", path, SourceExt)
	}
	return nil
}

// DefaultOutputPath derives the executable path for inPath: the file name
// without its extension, placed in outDir, or next to the source when
// outDir is empty.
func DefaultOutputPath(inPath, outDir string) string {
	base := strings.TrimSuffix(filepath.Base(inPath), filepath.Ext(inPath))
	if outDir == "" {
		outDir = filepath.Dir(inPath)
	}
	return filepath.Join(outDir, base)
}

// WithExt replaces the extension of path with ext (which includes the dot).
func WithExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
