// Package browse lists directories for the script picker and tracks
// pinned/recent paths.
package browse

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Entry is one directory member.
type Entry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size,omitempty"`
}

// Crumb is one breadcrumb segment.
type Crumb struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Listing is the browser view of one directory.
type Listing struct {
	CurrentPath      string  `json:"current_path"`
	ParentPath       string  `json:"parent_path,omitempty"`
	Breadcrumbs      []Crumb `json:"breadcrumbs"`
	Directories      []Entry `json:"directories"`
	Files            []Entry `json:"files"`
	TotalDirectories int     `json:"total_directories"`
	TotalFiles       int     `json:"total_files"`
}

// List returns the subdirectories and matching files of path. An empty
// path defaults to the home directory; a file path is replaced by its
// parent. Files are filtered by suffix (e.g. ".py"); hidden entries
// are skipped unless showHidden is set. Entries that cannot be stat'd
// are skipped silently.
func List(path, filter string, showHidden bool) (*Listing, error) {
	path = Expand(path)
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = home
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("path does not exist: %s", path)
	}
	if !info.IsDir() {
		path = filepath.Dir(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	listing := &Listing{CurrentPath: path, Breadcrumbs: breadcrumbs(path)}
	if path != string(os.PathSeparator) {
		listing.ParentPath = filepath.Dir(path)
	}

	for _, e := range entries {
		if !showHidden && strings.HasPrefix(e.Name(), ".") {
			continue
		}
		full := filepath.Join(path, e.Name())
		if e.IsDir() {
			listing.Directories = append(listing.Directories, Entry{
				Name: e.Name(), Path: full, Type: "directory",
			})
			continue
		}
		if filter != "" && !strings.HasSuffix(e.Name(), filter) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		listing.Files = append(listing.Files, Entry{
			Name: e.Name(), Path: full, Type: "file", Size: fi.Size(),
		})
	}

	byName := func(entries []Entry) func(i, j int) bool {
		return func(i, j int) bool {
			return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
		}
	}
	sort.Slice(listing.Directories, byName(listing.Directories))
	sort.Slice(listing.Files, byName(listing.Files))

	listing.TotalDirectories = len(listing.Directories)
	listing.TotalFiles = len(listing.Files)
	return listing, nil
}

// Expand resolves a leading ~ and makes the path absolute. Empty input
// stays empty so callers can apply their own default.
func Expand(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// breadcrumbs splits an absolute path into clickable segments, root
// first.
func breadcrumbs(path string) []Crumb {
	sep := string(os.PathSeparator)
	crumbs := []Crumb{}
	if strings.HasPrefix(path, sep) {
		crumbs = append(crumbs, Crumb{Name: sep, Path: sep})
	}
	current := ""
	for _, part := range strings.Split(path, sep) {
		if part == "" {
			continue
		}
		current = current + sep + part
		crumbs = append(crumbs, Crumb{Name: part, Path: current})
	}
	return crumbs
}
