package curriculum_test

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
)

var errStorage = errors.New("storage unavailable")

// sampleSubmission is a two-chapter curriculum with quizzes on some videos.
func sampleSubmission() curriculum.Submission {
	return curriculum.Submission{
		SubjectName: "Math",
		Board:       "CBSE",
		Grade:       "10",
		Chapters: []curriculum.ChapterInput{
			{
				ChapterName: "Algebra",
				Topics: []curriculum.TopicInput{
					{
						TopicName: "Linear Eq",
						Subtopics: []curriculum.SubtopicInput{
							{
								SubtopicName: "Solving",
								Videos: []curriculum.VideoInput{
									{
										VideoURL: "https://x/1",
										Quiz: &curriculum.QuizInput{Questions: []curriculum.Question{
											question("1+1?", "B"),
											question("2+2?", "C"),
										}},
									},
									{VideoURL: "https://x/2"},
								},
							},
							{SubtopicName: "Graphing"},
						},
					},
					{TopicName: "Quadratics"},
				},
			},
			{
				ChapterName: "Geometry",
				Topics: []curriculum.TopicInput{
					{
						TopicName: "Triangles",
						Subtopics: []curriculum.SubtopicInput{
							{
								SubtopicName: "Congruence",
								Videos: []curriculum.VideoInput{
									{
										VideoURL: "https://x/3",
										Quiz: &curriculum.QuizInput{Questions: []curriculum.Question{
											question("SSS?", "A"),
											question("SAS?", "A"),
										}},
									},
								},
							},
						},
					},
				},
			},
		},
	}
}

func question(que, correct string) curriculum.Question {
	return curriculum.Question{
		Que:           que,
		Options:       curriculum.Options{A: "a", B: "b", C: "c", D: "d"},
		CorrectAnswer: correct,
	}
}

// countingStore counts reads that reach the underlying store.
type countingStore struct {
	curriculum.Store
	reads atomic.Int64
}

func (s *countingStore) FindSubjects(ctx context.Context, f curriculum.SubjectFilter) ([]curriculum.Subject, error) {
	s.reads.Add(1)
	return s.Store.FindSubjects(ctx, f)
}

func (s *countingStore) FindChapters(ctx context.Context, f curriculum.ChapterFilter) ([]curriculum.Chapter, error) {
	s.reads.Add(1)
	return s.Store.FindChapters(ctx, f)
}

func (s *countingStore) FindTopics(ctx context.Context, f curriculum.TopicFilter) ([]curriculum.Topic, error) {
	s.reads.Add(1)
	return s.Store.FindTopics(ctx, f)
}

func (s *countingStore) FindSubtopics(ctx context.Context, f curriculum.SubtopicFilter) ([]curriculum.Subtopic, error) {
	s.reads.Add(1)
	return s.Store.FindSubtopics(ctx, f)
}

func (s *countingStore) FindVideos(ctx context.Context, f curriculum.VideoFilter) ([]curriculum.Video, error) {
	s.reads.Add(1)
	return s.Store.FindVideos(ctx, f)
}

func (s *countingStore) FindQuizzes(ctx context.Context, f curriculum.QuizFilter) ([]curriculum.Quiz, error) {
	s.reads.Add(1)
	return s.Store.FindQuizzes(ctx, f)
}

// failingStore runs transactions against the wrapped store but fails the named write.
type failingStore struct {
	curriculum.Store
	failOn string
}

func (s *failingStore) WithTx(ctx context.Context, fn func(tx curriculum.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx curriculum.Tx) error {
		return fn(&failingTx{Tx: tx, failOn: s.failOn})
	})
}

type failingTx struct {
	curriculum.Tx
	failOn string
}

func (t *failingTx) UpsertTopics(ctx context.Context, topics []curriculum.Topic) (curriculum.BulkResult, error) {
	if t.failOn == "topics" {
		return curriculum.BulkResult{}, errStorage
	}
	return t.Tx.UpsertTopics(ctx, topics)
}

func (t *failingTx) UpsertQuizzes(ctx context.Context, quizzes []curriculum.Quiz) (curriculum.BulkResult, error) {
	if t.failOn == "quizzes" {
		return curriculum.BulkResult{}, errStorage
	}
	return t.Tx.UpsertQuizzes(ctx, quizzes)
}

func (t *failingTx) InsertVideo(ctx context.Context, v curriculum.Video) (curriculum.Video, error) {
	if t.failOn == "video" {
		return curriculum.Video{}, errStorage
	}
	return t.Tx.InsertVideo(ctx, v)
}

// treeNames flattens a tree into "chapter/topic/subtopic/video" paths in order.
func treeNames(tree curriculum.SubjectTree) []string {
	var out []string
	for _, ch := range tree.Chapters {
		out = append(out, ch.ChapterName)
		for _, tp := range ch.Topics {
			out = append(out, ch.ChapterName+"/"+tp.TopicName)
			for _, st := range tp.Subtopics {
				out = append(out, ch.ChapterName+"/"+tp.TopicName+"/"+st.SubtopicName)
				for _, v := range st.Videos {
					out = append(out, ch.ChapterName+"/"+tp.TopicName+"/"+st.SubtopicName+"/"+v.VideoURL)
				}
			}
		}
	}
	return out
}

// submissionNames flattens a submission the same way treeNames does, skipping
// unnamed nodes.
func submissionNames(sub curriculum.Submission) []string {
	var out []string
	for _, ch := range sub.Chapters {
		if ch.ChapterName == "" {
			continue
		}
		out = append(out, ch.ChapterName)
		for _, tp := range ch.Topics {
			if tp.TopicName == "" {
				continue
			}
			out = append(out, ch.ChapterName+"/"+tp.TopicName)
			for _, st := range tp.Subtopics {
				if st.SubtopicName == "" {
					continue
				}
				out = append(out, ch.ChapterName+"/"+tp.TopicName+"/"+st.SubtopicName)
				for _, v := range st.Videos {
					if v.VideoURL == "" {
						continue
					}
					out = append(out, ch.ChapterName+"/"+tp.TopicName+"/"+st.SubtopicName+"/"+v.VideoURL)
				}
			}
		}
	}
	return out
}
