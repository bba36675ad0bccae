package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
)

// PackageManifest is the package metadata file the version is read from.
const PackageManifest = "package.json"

// PackageVersion returns the version field of the package manifest found in dir.
func PackageVersion(dir string) (string, error) {
	path := filepath.Join(dir, PackageManifest)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading package metadata: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("%s is not valid JSON", path)
	}
	version := gjson.GetBytes(data, "version")
	if !version.Exists() || version.String() == "" {
		return "", fmt.Errorf("%s has no version field", path)
	}
	return version.String(), nil
}
