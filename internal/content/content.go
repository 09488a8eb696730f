// Package content loads the bookmarks and resume data files shown on the
// public pages. Files may be YAML or JSON.
package content

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// IconBaseURL serves the dashboard-icons set used for bare icon names.
const IconBaseURL = "https://cdn.jsdelivr.net/gh/walkxcode/dashboard-icons/png"

// ErrNotFound is returned when a data file does not exist.
var ErrNotFound = errors.New("content file not found")

var skillIcons = map[string]string{
	"cloud":    "☁️",
	"server":   "🖥️",
	"code":     "💻",
	"database": "🗄️",
	"security": "🔒",
	"network":  "🌐",
}

var envPlaceholder = regexp.MustCompile(`\$\{([^}]+)\}`)

type Bookmark struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	URL         string `yaml:"url" json:"url"`
	Icon        string `yaml:"icon" json:"icon"`
	Color       string `yaml:"color" json:"color"`
}

type bookmarksFile struct {
	Bookmarks []Bookmark `yaml:"bookmarks"`
}

// LoadBookmarks reads the bookmarks file. ${VAR} placeholders in URLs are
// resolved with getenv (unset becomes "#") and bare icon names become CDN
// URLs. A missing file yields an empty list.
func LoadBookmarks(path string, getenv func(string) string) ([]Bookmark, error) {
	var data bookmarksFile
	if err := readFile(path, &data); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []Bookmark{}, nil
		}
		return nil, err
	}

	bookmarks := make([]Bookmark, 0, len(data.Bookmarks))
	for _, b := range data.Bookmarks {
		b.URL = expandEnv(b.URL, getenv)
		b.Icon = iconURL(b.Icon)
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, nil
}

// LoadResume reads the resume file and maps skill category icon keys to
// emoji. It returns ErrNotFound when the file is absent.
func LoadResume(path string) (*Resume, error) {
	var resume Resume
	if err := readFile(path, &resume); err != nil {
		return nil, err
	}
	resume.normalize()

	for i, category := range resume.SkillCategories {
		if emoji, ok := skillIcons[category.Icon]; ok {
			resume.SkillCategories[i].Icon = emoji
		}
	}
	return &resume, nil
}

func expandEnv(s string, getenv func(string) string) string {
	return envPlaceholder.ReplaceAllStringFunc(s, func(match string) string {
		name := envPlaceholder.FindStringSubmatch(match)[1]
		if value := getenv(name); value != "" {
			return value
		}
		return "#"
	})
}

func iconURL(icon string) string {
	if icon == "" || strings.HasPrefix(icon, "http") {
		return icon
	}
	return IconBaseURL + "/" + icon + ".png"
}

// readFile decodes path into dest. A missing .yaml/.yml file falls back to
// the .json file of the same name.
func readFile(path string, dest any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if ext := filepath.Ext(path); ext == ".yaml" || ext == ".yml" {
			path = strings.TrimSuffix(path, ext) + ".json"
			data, err = os.ReadFile(path)
		}
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	// YAML is a superset of JSON, so one decoder serves both.
	if err := yaml.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	log.Debug().Str("file", path).Msg("Loaded content file")
	return nil
}
