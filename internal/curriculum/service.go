package curriculum

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/pai-curriculum/internal/platform/cache"
)

// ServiceConfig holds dependencies for the curriculum service.
type ServiceConfig struct {
	Store  Store
	Cache  *cache.TTL
	Events EventPublisher
}

// Service serves assembled curriculum trees from the read cache and writes
// submissions through the store, clearing the cache after every successful write.
type Service struct {
	store  Store
	cache  *cache.TTL
	events EventPublisher
}

// NewService creates a curriculum service. Missing dependencies fall back to an
// in-memory store, a default TTL cache and a no-op publisher.
func NewService(cfg ServiceConfig) *Service {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	c := cfg.Cache
	if c == nil {
		c = cache.NewTTL(cache.DefaultTTL)
	}
	events := cfg.Events
	if events == nil {
		events = NopPublisher{}
	}
	return &Service{store: store, cache: c, events: events}
}

// Cache exposes the read cache, for stats.
func (s *Service) Cache() *cache.TTL {
	return s.cache
}

// Cache keys. Every query shape has its own prefix.

func subjectsKey(board Board, grade string) string {
	return "subjects:" + string(board) + ":" + grade
}

func contentKey(board Board, grade string) string {
	return "content:" + string(board) + ":" + grade
}

func curriculumKey(name string) string {
	return "curriculum:" + name
}

// GetSubjects lists subjects, optionally narrowed by board and grade. The returned
// slice is the caller's own copy.
func (s *Service) GetSubjects(ctx context.Context, board Board, grade string) ([]Subject, error) {
	key := subjectsKey(board, grade)
	if subjects, ok := cache.Lookup[[]Subject](s.cache, key); ok {
		return slices.Clone(subjects), nil
	}
	gen := s.cache.Generation()

	subjects, err := s.store.FindSubjects(ctx, SubjectFilter{Board: board, Grade: grade})
	if err != nil {
		return nil, fmt.Errorf("find subjects: %w", err)
	}
	s.cache.SetAt(gen, key, subjects)
	return slices.Clone(subjects), nil
}

// GetCompleteContent assembles every subject of a board and grade. The trees are shared
// with the read cache and must not be modified.
func (s *Service) GetCompleteContent(ctx context.Context, board Board, grade string) ([]SubjectTree, error) {
	key := contentKey(board, grade)
	if trees, ok := cache.Lookup[[]SubjectTree](s.cache, key); ok {
		return trees, nil
	}
	gen := s.cache.Generation()

	subjects, err := s.store.FindSubjects(ctx, SubjectFilter{Board: board, Grade: grade})
	if err != nil {
		return nil, fmt.Errorf("find subjects: %w", err)
	}
	if len(subjects) == 0 {
		return nil, fmt.Errorf("no subjects for board %s grade %s: %w", board, grade, ErrNotFound)
	}

	idx, err := s.loadIndex(ctx, subjects)
	if err != nil {
		return nil, err
	}
	trees := make([]SubjectTree, 0, len(subjects))
	for _, subj := range subjects {
		trees = append(trees, Assemble(subj, idx))
	}

	s.cache.SetAt(gen, key, trees)
	return trees, nil
}

// GetCurriculumBySubjectName assembles the first subject stored under name. The tree
// shares its slices with the read cache and must not be modified.
func (s *Service) GetCurriculumBySubjectName(ctx context.Context, name string) (SubjectTree, error) {
	key := curriculumKey(name)
	if tree, ok := cache.Lookup[SubjectTree](s.cache, key); ok {
		return tree, nil
	}
	gen := s.cache.Generation()

	subjects, err := s.store.FindSubjects(ctx, SubjectFilter{Name: name})
	if err != nil {
		return SubjectTree{}, fmt.Errorf("find subject: %w", err)
	}
	if len(subjects) == 0 {
		return SubjectTree{}, fmt.Errorf("subject %q: %w", name, ErrNotFound)
	}

	subject := subjects[0]
	idx, err := s.loadIndex(ctx, []Subject{subject})
	if err != nil {
		return SubjectTree{}, err
	}
	tree := Assemble(subject, idx)

	s.cache.SetAt(gen, key, tree)
	return tree, nil
}

// loadIndex reads the collections scoped to subjects and indexes them. The four
// name-scoped collections are read concurrently; quizzes follow once video URLs are known.
func (s *Service) loadIndex(ctx context.Context, subjects []Subject) (*Index, error) {
	names := make([]string, 0, len(subjects))
	ids := make([]string, 0, len(subjects))
	seen := make(map[string]bool, len(subjects))
	for _, subj := range subjects {
		ids = append(ids, subj.ID)
		if !seen[subj.Name] {
			seen[subj.Name] = true
			names = append(names, subj.Name)
		}
	}

	var (
		chapters  []Chapter
		topics    []Topic
		subtopics []Subtopic
		videos    []Video
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		chapters, err = s.store.FindChapters(gctx, ChapterFilter{Subjects: names})
		return wrap("find chapters", err)
	})
	g.Go(func() (err error) {
		topics, err = s.store.FindTopics(gctx, TopicFilter{SubjectIDs: ids})
		return wrap("find topics", err)
	})
	g.Go(func() (err error) {
		subtopics, err = s.store.FindSubtopics(gctx, SubtopicFilter{SubNames: names})
		return wrap("find subtopics", err)
	})
	g.Go(func() (err error) {
		videos, err = s.store.FindVideos(gctx, VideoFilter{SubNames: names})
		return wrap("find videos", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(videos))
	for _, v := range videos {
		urls = append(urls, v.VideoURL)
	}
	quizzes, err := s.store.FindQuizzes(ctx, QuizFilter{VideoURLs: urls})
	if err != nil {
		return nil, fmt.Errorf("find quizzes: %w", err)
	}

	return BuildIndex(chapters, topics, subtopics, videos, quizzes), nil
}

// PostCurriculumForm ingests a submission and clears the read cache on commit.
func (s *Service) PostCurriculumForm(ctx context.Context, sub Submission) (Summary, error) {
	sum, err := Ingest(ctx, s.store, sub)
	if err != nil {
		return Summary{}, err
	}
	s.cache.Clear()

	slog.Info("curriculum ingested",
		"subject", sum.Subject.Name,
		"board", sum.Subject.Board,
		"grade", sum.Subject.Grade,
		"chapters", sum.Chapters.Created+sum.Chapters.Updated,
		"videos", sum.Videos.Created+sum.Videos.Updated,
		"questions", sum.TotalQuestions,
	)
	s.publish(ctx, Event{
		Type:    EventIngested,
		Subject: sum.Subject.Name,
		Board:   sum.Subject.Board,
		Grade:   sum.Subject.Grade,
		Data: map[string]any{
			"subjectCreated": sum.SubjectCreated,
			"chapters":       sum.Chapters,
			"topics":         sum.Topics,
			"subtopics":      sum.Subtopics,
			"videos":         sum.Videos,
			"quizzes":        sum.Quizzes,
			"totalQuestions": sum.TotalQuestions,
		},
	})
	return sum, nil
}

// ImportSpreadsheet ingests an xlsx workbook for one subject. See ParseSpreadsheet for
// the sheet layout.
func (s *Service) ImportSpreadsheet(ctx context.Context, r io.Reader, subjectName, board, grade string) (Summary, error) {
	sub, err := ParseSpreadsheet(r, subjectName, board, grade)
	if err != nil {
		return Summary{}, err
	}
	return s.PostCurriculumForm(ctx, sub)
}

// AddVideoInput identifies a subtopic and the video to add under it.
type AddVideoInput struct {
	SubName      string `json:"subName"`
	ChapterName  string `json:"chapterName"`
	TopicName    string `json:"topicName"`
	SubtopicName string `json:"subtopicName"`
	VideoURL     string `json:"videoUrl"`
}

func (in AddVideoInput) validate() error {
	verr := &ValidationError{}
	for _, f := range []struct{ name, value string }{
		{"subName", in.SubName},
		{"chapterName", in.ChapterName},
		{"topicName", in.TopicName},
		{"subtopicName", in.SubtopicName},
		{"videoUrl", in.VideoURL},
	} {
		if strings.TrimSpace(f.value) == "" {
			verr.add(f.name, "this field is required")
		}
	}
	return verr.orNil()
}

// AddVideo stores one video under an existing subtopic. A second video with the same
// path and URL fails with ErrConflict.
func (s *Service) AddVideo(ctx context.Context, in AddVideoInput) (Video, error) {
	if err := in.validate(); err != nil {
		return Video{}, err
	}

	var created Video
	err := s.store.WithTx(ctx, func(tx Tx) error {
		subtopics, err := tx.FindSubtopics(ctx, SubtopicFilter{
			SubNames:     []string{in.SubName},
			ChapterName:  in.ChapterName,
			TopicName:    in.TopicName,
			SubtopicName: in.SubtopicName,
		})
		if err != nil {
			return fmt.Errorf("find subtopic: %w", err)
		}
		if len(subtopics) == 0 {
			return fmt.Errorf("subtopic %s: %w",
				subtopicPath(in.SubName, in.ChapterName, in.TopicName, in.SubtopicName), ErrNotFound)
		}
		created, err = tx.InsertVideo(ctx, Video{
			SubName:      in.SubName,
			ChapterName:  in.ChapterName,
			TopicName:    in.TopicName,
			SubtopicName: in.SubtopicName,
			VideoURL:     in.VideoURL,
		})
		return err
	})
	if err != nil {
		return Video{}, err
	}
	s.cache.Clear()

	s.publish(ctx, Event{
		Type:    EventVideoAdded,
		Subject: created.SubName,
		Data: map[string]any{
			"path":     subtopicPath(created.SubName, created.ChapterName, created.TopicName, created.SubtopicName),
			"videoUrl": created.VideoURL,
		},
	})
	return created, nil
}

// publish never fails a write that has already committed.
func (s *Service) publish(ctx context.Context, event Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		slog.Warn("failed to publish curriculum event", "type", event.Type, "error", err)
	}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
