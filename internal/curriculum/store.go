package curriculum

import (
	"context"
	"strings"
)

// SubjectFilter selects subjects. Empty fields match anything.
type SubjectFilter struct {
	Name  string
	Board Board
	Grade string
}

// ChapterFilter selects chapters by owning subject name.
type ChapterFilter struct {
	Subjects []string
}

// TopicFilter selects topics by subject and chapter id.
type TopicFilter struct {
	SubjectIDs []string
	ChapterIDs []string
}

// SubtopicFilter selects subtopics by subject name and, optionally, the rest of the path.
type SubtopicFilter struct {
	SubNames     []string
	ChapterName  string
	TopicName    string
	SubtopicName string
}

// VideoFilter selects videos by subject name.
type VideoFilter struct {
	SubNames []string
}

// QuizFilter selects quizzes by video URL.
type QuizFilter struct {
	VideoURLs []string
}

// BulkResult counts the outcome of a batch of upserts.
type BulkResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// Add accumulates another batch result.
func (r *BulkResult) Add(o BulkResult) {
	r.Created += o.Created
	r.Updated += o.Updated
}

// Reader finds records by filter. Results are in insertion order.
type Reader interface {
	FindSubjects(ctx context.Context, f SubjectFilter) ([]Subject, error)
	FindChapters(ctx context.Context, f ChapterFilter) ([]Chapter, error)
	FindTopics(ctx context.Context, f TopicFilter) ([]Topic, error)
	FindSubtopics(ctx context.Context, f SubtopicFilter) ([]Subtopic, error)
	FindVideos(ctx context.Context, f VideoFilter) ([]Video, error)
	FindQuizzes(ctx context.Context, f QuizFilter) ([]Quiz, error)
}

// Tx is a transaction scope. Upserts match on natural keys: insert when absent,
// otherwise update in place keeping the record's id and position.
type Tx interface {
	Reader

	UpsertSubject(ctx context.Context, s Subject) (Subject, bool, error)
	UpsertChapters(ctx context.Context, chapters []Chapter) (BulkResult, error)
	UpsertTopics(ctx context.Context, topics []Topic) (BulkResult, error)
	UpsertSubtopics(ctx context.Context, subtopics []Subtopic) (BulkResult, error)
	UpsertVideos(ctx context.Context, videos []Video) (BulkResult, error)
	UpsertQuizzes(ctx context.Context, quizzes []Quiz) (BulkResult, error)

	// InsertVideo fails with ErrConflict when the path and URL already exist.
	InsertVideo(ctx context.Context, v Video) (Video, error)
}

// Store persists curriculum collections.
type Store interface {
	Reader

	// WithTx runs fn in a transaction, committing when it returns nil and
	// rolling back every write otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Composite keys join flat collections by ancestor names. Parts are separated by NUL so
// that names containing ":" cannot collide.

func naturalKey(parts ...string) string {
	return strings.Join(parts, "\x00")
}

func subtopicKey(subject, chapter, topic string) string {
	return naturalKey(subject, chapter, topic)
}

func videoKey(subject, chapter, topic, subtopic string) string {
	return naturalKey(subject, chapter, topic, subtopic)
}

// subtopicPath renders a subtopic path for messages.
func subtopicPath(subject, chapter, topic, subtopic string) string {
	return strings.Join([]string{subject, chapter, topic, subtopic}, ":")
}
