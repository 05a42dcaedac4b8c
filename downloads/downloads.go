// Package downloads describes the desktop builds offered on the site.
package downloads

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrUnknownPlatform is returned for a platform with no build.
var ErrUnknownPlatform = errors.New("downloads: unknown platform")

// Build is one downloadable installer.
type Build struct {
	OS       string   `json:"os"`
	Name     string   `json:"name"`
	FileName string   `json:"file_name"`
	URL      string   `json:"url"`
	Steps    []string `json:"steps"`
}

// Notice is the message shown while the download starts.
func (b Build) Notice() string {
	return fmt.Sprintf("Downloading Tufn for %s...", b.Name)
}

var builds = []Build{
	{
		OS:       "windows",
		Name:     "Windows",
		FileName: "tufn-windows.exe",
		Steps: []string{
			"Run the downloaded tufn-windows.exe file",
			"Follow the setup wizard instructions",
			"Launch Tufn from Start Menu or desktop shortcut",
		},
	},
	{
		OS:       "macos",
		Name:     "macOS",
		FileName: "tufn-macos.dmg",
		Steps: []string{
			"Open the downloaded tufn-macos.dmg file",
			"Drag Tufn.app to the Applications folder",
			"Launch Tufn from Applications or Launchpad",
		},
	},
	{
		OS:       "linux",
		Name:     "Linux",
		FileName: "tufn-linux.deb",
		Steps: []string{
			"Double-click the downloaded .deb file",
			"Install using your package manager",
			"Launch Tufn from applications menu or terminal",
		},
	},
}

var aliases = map[string]string{
	"win":    "windows",
	"mac":    "macos",
	"osx":    "macos",
	"darwin": "macos",
}

// Catalog resolves builds against a download base URL.
type Catalog struct {
	baseURL string
}

// NewCatalog returns a catalog whose URLs live under baseURL, e.g.
// "https://tufn.app/downloads". An empty base yields site-relative URLs.
func NewCatalog(baseURL string) *Catalog {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = "/downloads"
	}
	return &Catalog{baseURL: base}
}

func (c *Catalog) resolve(b Build) Build {
	b.URL = c.baseURL + "/" + b.FileName
	b.Steps = append([]string(nil), b.Steps...)
	return b
}

// All returns every build in display order.
func (c *Catalog) All() []Build {
	out := make([]Build, 0, len(builds))
	for _, b := range builds {
		out = append(out, c.resolve(b))
	}
	return out
}

// Lookup returns the build for os. Matching ignores case and accepts
// common aliases such as "darwin" and "win".
func (c *Catalog) Lookup(os string) (Build, error) {
	key := strings.ToLower(strings.TrimSpace(os))
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	for _, b := range builds {
		if b.OS == key {
			return c.resolve(b), nil
		}
	}
	return Build{}, fmt.Errorf("%w: %q", ErrUnknownPlatform, os)
}

// Current returns the build for the running platform.
func (c *Catalog) Current() (Build, error) {
	return c.Lookup(runtime.GOOS)
}
