package curriculum

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store. Each transaction works on a private copy of the
// collections which replaces the committed snapshot only when the transaction succeeds,
// so readers never observe a partial write.
type MemoryStore struct {
	writeMu sync.Mutex // serializes transactions
	mu      sync.RWMutex
	snap    *memSnapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snap: newMemSnapshot()}
}

func (s *MemoryStore) current() *memSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.current().clone()
	if err := fn(&memTx{snap: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.mu.Lock()
	s.snap = work
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) FindSubjects(_ context.Context, f SubjectFilter) ([]Subject, error) {
	return s.current().findSubjects(f), nil
}

func (s *MemoryStore) FindChapters(_ context.Context, f ChapterFilter) ([]Chapter, error) {
	return s.current().findChapters(f), nil
}

func (s *MemoryStore) FindTopics(_ context.Context, f TopicFilter) ([]Topic, error) {
	return s.current().findTopics(f), nil
}

func (s *MemoryStore) FindSubtopics(_ context.Context, f SubtopicFilter) ([]Subtopic, error) {
	return s.current().findSubtopics(f), nil
}

func (s *MemoryStore) FindVideos(_ context.Context, f VideoFilter) ([]Video, error) {
	return s.current().findVideos(f), nil
}

func (s *MemoryStore) FindQuizzes(_ context.Context, f QuizFilter) ([]Quiz, error) {
	return s.current().findQuizzes(f), nil
}

// memTx reads and writes a private snapshot.
type memTx struct {
	snap *memSnapshot
}

func (t *memTx) FindSubjects(_ context.Context, f SubjectFilter) ([]Subject, error) {
	return t.snap.findSubjects(f), nil
}

func (t *memTx) FindChapters(_ context.Context, f ChapterFilter) ([]Chapter, error) {
	return t.snap.findChapters(f), nil
}

func (t *memTx) FindTopics(_ context.Context, f TopicFilter) ([]Topic, error) {
	return t.snap.findTopics(f), nil
}

func (t *memTx) FindSubtopics(_ context.Context, f SubtopicFilter) ([]Subtopic, error) {
	return t.snap.findSubtopics(f), nil
}

func (t *memTx) FindVideos(_ context.Context, f VideoFilter) ([]Video, error) {
	return t.snap.findVideos(f), nil
}

func (t *memTx) FindQuizzes(_ context.Context, f QuizFilter) ([]Quiz, error) {
	return t.snap.findQuizzes(f), nil
}

func (t *memTx) UpsertSubject(ctx context.Context, s Subject) (Subject, bool, error) {
	if err := ctx.Err(); err != nil {
		return Subject{}, false, err
	}
	rec, created := put(&t.snap.subjects, t.snap.subjectKeys,
		naturalKey(s.Name, string(s.Board), s.Grade), s, subjectID)
	return rec, created, nil
}

func (t *memTx) UpsertChapters(ctx context.Context, chapters []Chapter) (BulkResult, error) {
	return bulkPut(ctx, &t.snap.chapters, t.snap.chapterKeys, chapters, chapterID,
		func(c Chapter) string { return naturalKey(c.Subject, c.ChapterName) })
}

func (t *memTx) UpsertTopics(ctx context.Context, topics []Topic) (BulkResult, error) {
	return bulkPut(ctx, &t.snap.topics, t.snap.topicKeys, topics, topicID,
		func(tp Topic) string { return naturalKey(tp.SubjectID, tp.ChapterID, tp.TopicName) })
}

func (t *memTx) UpsertSubtopics(ctx context.Context, subtopics []Subtopic) (BulkResult, error) {
	return bulkPut(ctx, &t.snap.subtopics, t.snap.subtopicKeys, subtopics, subtopicID, subtopicNaturalKey)
}

func (t *memTx) UpsertVideos(ctx context.Context, videos []Video) (BulkResult, error) {
	return bulkPut(ctx, &t.snap.videos, t.snap.videoKeys, videos, videoID, videoNaturalKey)
}

func (t *memTx) UpsertQuizzes(ctx context.Context, quizzes []Quiz) (BulkResult, error) {
	return bulkPut(ctx, &t.snap.quizzes, t.snap.quizKeys, quizzes, quizID,
		func(q Quiz) string { return q.VideoURL })
}

func (t *memTx) InsertVideo(ctx context.Context, v Video) (Video, error) {
	if err := ctx.Err(); err != nil {
		return Video{}, err
	}
	if _, ok := t.snap.videoKeys[videoNaturalKey(v)]; ok {
		return Video{}, fmt.Errorf("video %s under %s: %w",
			v.VideoURL, subtopicPath(v.SubName, v.ChapterName, v.TopicName, v.SubtopicName), ErrConflict)
	}
	rec, _ := put(&t.snap.videos, t.snap.videoKeys, videoNaturalKey(v), v, videoID)
	return rec, nil
}

type memSnapshot struct {
	subjects  []Subject
	chapters  []Chapter
	topics    []Topic
	subtopics []Subtopic
	videos    []Video
	quizzes   []Quiz

	// natural key -> position in the slice above
	subjectKeys  map[string]int
	chapterKeys  map[string]int
	topicKeys    map[string]int
	subtopicKeys map[string]int
	videoKeys    map[string]int
	quizKeys     map[string]int
}

func newMemSnapshot() *memSnapshot {
	return &memSnapshot{
		subjectKeys:  make(map[string]int),
		chapterKeys:  make(map[string]int),
		topicKeys:    make(map[string]int),
		subtopicKeys: make(map[string]int),
		videoKeys:    make(map[string]int),
		quizKeys:     make(map[string]int),
	}
}

// clone copies the collections. Records are values and quiz question slices are only
// ever replaced, so a shallow copy per collection is enough.
func (m *memSnapshot) clone() *memSnapshot {
	return &memSnapshot{
		subjects:     slices.Clone(m.subjects),
		chapters:     slices.Clone(m.chapters),
		topics:       slices.Clone(m.topics),
		subtopics:    slices.Clone(m.subtopics),
		videos:       slices.Clone(m.videos),
		quizzes:      slices.Clone(m.quizzes),
		subjectKeys:  maps.Clone(m.subjectKeys),
		chapterKeys:  maps.Clone(m.chapterKeys),
		topicKeys:    maps.Clone(m.topicKeys),
		subtopicKeys: maps.Clone(m.subtopicKeys),
		videoKeys:    maps.Clone(m.videoKeys),
		quizKeys:     maps.Clone(m.quizKeys),
	}
}

func (m *memSnapshot) findSubjects(f SubjectFilter) []Subject {
	out := []Subject{}
	for _, s := range m.subjects {
		if (f.Name == "" || s.Name == f.Name) &&
			(f.Board == "" || s.Board == f.Board) &&
			(f.Grade == "" || s.Grade == f.Grade) {
			out = append(out, s)
		}
	}
	return out
}

func (m *memSnapshot) findChapters(f ChapterFilter) []Chapter {
	out := []Chapter{}
	for _, c := range m.chapters {
		if matchAny(f.Subjects, c.Subject) {
			out = append(out, c)
		}
	}
	return out
}

func (m *memSnapshot) findTopics(f TopicFilter) []Topic {
	out := []Topic{}
	for _, t := range m.topics {
		if matchAny(f.SubjectIDs, t.SubjectID) && matchAny(f.ChapterIDs, t.ChapterID) {
			out = append(out, t)
		}
	}
	return out
}

func (m *memSnapshot) findSubtopics(f SubtopicFilter) []Subtopic {
	out := []Subtopic{}
	for _, s := range m.subtopics {
		if matchAny(f.SubNames, s.SubName) &&
			(f.ChapterName == "" || s.ChapterName == f.ChapterName) &&
			(f.TopicName == "" || s.TopicName == f.TopicName) &&
			(f.SubtopicName == "" || s.SubtopicName == f.SubtopicName) {
			out = append(out, s)
		}
	}
	return out
}

func (m *memSnapshot) findVideos(f VideoFilter) []Video {
	out := []Video{}
	for _, v := range m.videos {
		if matchAny(f.SubNames, v.SubName) {
			out = append(out, v)
		}
	}
	return out
}

func (m *memSnapshot) findQuizzes(f QuizFilter) []Quiz {
	out := []Quiz{}
	for _, q := range m.quizzes {
		if matchAny(f.VideoURLs, q.VideoURL) {
			out = append(out, q)
		}
	}
	return out
}

// put inserts rec under key with a fresh id, or replaces the record already stored
// under key while keeping its id and position.
func put[T any](list *[]T, keys map[string]int, key string, rec T, id func(*T) *string) (T, bool) {
	if i, ok := keys[key]; ok {
		*id(&rec) = *id(&(*list)[i])
		(*list)[i] = rec
		return rec, false
	}
	*id(&rec) = uuid.NewString()
	keys[key] = len(*list)
	*list = append(*list, rec)
	return rec, true
}

func bulkPut[T any](ctx context.Context, list *[]T, keys map[string]int, recs []T, id func(*T) *string, key func(T) string) (BulkResult, error) {
	var res BulkResult
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, created := put(list, keys, key(rec), rec, id); created {
			res.Created++
		} else {
			res.Updated++
		}
	}
	return res, nil
}

// matchAny treats a nil list as "match everything" and an empty list as "match nothing".
func matchAny(list []string, v string) bool {
	return list == nil || slices.Contains(list, v)
}

func subtopicNaturalKey(s Subtopic) string {
	return naturalKey(s.SubName, s.ChapterName, s.TopicName, s.SubtopicName)
}

func videoNaturalKey(v Video) string {
	return naturalKey(v.SubName, v.ChapterName, v.TopicName, v.SubtopicName, v.VideoURL)
}

func subjectID(s *Subject) *string   { return &s.ID }
func chapterID(c *Chapter) *string   { return &c.ID }
func topicID(t *Topic) *string       { return &t.ID }
func subtopicID(s *Subtopic) *string { return &s.ID }
func videoID(v *Video) *string       { return &v.ID }
func quizID(q *Quiz) *string         { return &q.ID }
