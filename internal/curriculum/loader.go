package curriculum

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader reads curriculum submissions from YAML files under a directory, for seeding
// a store at startup. Each file holds one submission in the same shape as the JSON
// request body.
type Loader struct {
	rootDir     string
	submissions []Submission
	paths       []string
}

// NewLoader creates a new curriculum loader and loads all content.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{rootDir: rootDir}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}

	slog.Info("curriculum loaded", "path", rootDir, "subjects", len(l.submissions))
	return l, nil
}

// Submissions returns the loaded submissions in file path order.
func (l *Loader) Submissions() []Submission {
	return append([]Submission{}, l.submissions...)
}

// Seed ingests every loaded submission through svc. It stops at the first failure and
// reports how many files were ingested before it.
func (l *Loader) Seed(ctx context.Context, svc *Service) (int, error) {
	for i, sub := range l.submissions {
		sum, err := svc.PostCurriculumForm(ctx, sub)
		if err != nil {
			return i, fmt.Errorf("seed %s: %w", l.paths[i], err)
		}
		slog.Debug("curriculum seeded",
			"path", l.paths[i],
			"subject", sum.Subject.Name,
			"created", sum.SubjectCreated,
		)
	}
	return len(l.submissions), nil
}

func (l *Loader) loadAll() error {
	if _, err := os.Stat(l.rootDir); err != nil {
		return err
	}
	return filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			return l.loadSubmission(path)
		}
		return nil
	})
}

func (l *Loader) loadSubmission(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var sub Submission
	if err := yaml.Unmarshal(data, &sub); err != nil {
		slog.Warn("skipping invalid curriculum YAML", "path", path, "error", err)
		return nil
	}

	if sub.SubjectName == "" {
		return nil // Not a curriculum file
	}

	l.submissions = append(l.submissions, sub)
	l.paths = append(l.paths, path)
	return nil
}
