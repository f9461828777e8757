package curriculum

import (
	"context"
	"fmt"
	"strings"
)

const sampleQuestionLimit = 3

// Submission is a complete nested curriculum for one subject.
type Submission struct {
	SubjectName string         `json:"subjectName" yaml:"subjectName"`
	Board       string         `json:"board" yaml:"board"`
	Grade       string         `json:"grade" yaml:"grade"`
	Chapters    []ChapterInput `json:"chapters" yaml:"chapters"`
}

// ChapterInput is a chapter of a submission.
type ChapterInput struct {
	ChapterName string       `json:"chapterName" yaml:"chapterName"`
	Topics      []TopicInput `json:"topics" yaml:"topics"`
}

// TopicInput is a topic of a submission.
type TopicInput struct {
	TopicName string          `json:"topicName" yaml:"topicName"`
	Subtopics []SubtopicInput `json:"subtopics" yaml:"subtopics"`
}

// SubtopicInput is a subtopic of a submission.
type SubtopicInput struct {
	SubtopicName string       `json:"subtopicName" yaml:"subtopicName"`
	Videos       []VideoInput `json:"videos" yaml:"videos"`
}

// VideoInput is a video of a submission with an optional quiz.
type VideoInput struct {
	VideoURL string     `json:"videoUrl" yaml:"videoUrl"`
	Quiz     *QuizInput `json:"quiz,omitempty" yaml:"quiz,omitempty"`
}

// QuizInput holds the questions submitted for a video.
type QuizInput struct {
	Questions []Question `json:"questions" yaml:"questions"`
}

// Summary reports what an ingestion wrote.
type Summary struct {
	Subject         Subject    `json:"subject"`
	SubjectCreated  bool       `json:"subjectCreated"`
	Chapters        BulkResult `json:"chapters"`
	Topics          BulkResult `json:"topics"`
	Subtopics       BulkResult `json:"subtopics"`
	Videos          BulkResult `json:"videos"`
	Quizzes         BulkResult `json:"quizzes"`
	TotalQuestions  int        `json:"totalQuestions"`
	SampleQuestions []Question `json:"sampleQuestions"`
}

// pendingTopic waits for its chapter id, which only exists once chapters are written.
type pendingTopic struct {
	chapterName string
	topicName   string
}

// plan is every upsert of a submission, gathered in one walk of the input tree.
type plan struct {
	subject   Subject
	chapters  []Chapter
	topics    []pendingTopic
	subtopics []Subtopic
	videos    []Video
	quizzes   []Quiz
	questions int
	sample    []Question
}

// newPlan validates the subject fields and walks the tree. Nodes without a name (or a
// URL for videos) are skipped together with everything below them. Questions without
// text or a correct answer are dropped, and a video left with no questions gets no quiz.
func newPlan(sub Submission) (*plan, error) {
	verr := &ValidationError{}
	name := strings.TrimSpace(sub.SubjectName)
	if name == "" {
		verr.add("subjectName", "this field is required")
	}
	board, err := ParseBoard(strings.TrimSpace(sub.Board))
	if err != nil {
		verr.add("board", "must be one of CBSE, ICSE, State")
	}
	grade := strings.TrimSpace(sub.Grade)
	if grade == "" {
		verr.add("grade", "this field is required")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	p := &plan{
		subject: Subject{Name: name, Board: board, Grade: grade},
		sample:  []Question{},
	}
	for _, ch := range sub.Chapters {
		if ch.ChapterName == "" {
			continue
		}
		p.chapters = append(p.chapters, Chapter{Subject: name, ChapterName: ch.ChapterName})

		for _, tp := range ch.Topics {
			if tp.TopicName == "" {
				continue
			}
			p.topics = append(p.topics, pendingTopic{chapterName: ch.ChapterName, topicName: tp.TopicName})

			for _, st := range tp.Subtopics {
				if st.SubtopicName == "" {
					continue
				}
				p.subtopics = append(p.subtopics, Subtopic{
					SubName:      name,
					ChapterName:  ch.ChapterName,
					TopicName:    tp.TopicName,
					SubtopicName: st.SubtopicName,
				})

				for _, v := range st.Videos {
					if v.VideoURL == "" {
						continue
					}
					p.videos = append(p.videos, Video{
						SubName:      name,
						ChapterName:  ch.ChapterName,
						TopicName:    tp.TopicName,
						SubtopicName: st.SubtopicName,
						VideoURL:     v.VideoURL,
					})
					p.addQuiz(v)
				}
			}
		}
	}

	if len(sub.Chapters) > 0 && len(p.chapters) == 0 {
		verr.add("chapters", "no chapter has a chapterName")
		return nil, verr
	}
	return p, nil
}

func (p *plan) addQuiz(v VideoInput) {
	if v.Quiz == nil {
		return
	}
	var questions []Question
	for _, q := range v.Quiz.Questions {
		if q.valid() {
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		return
	}
	p.quizzes = append(p.quizzes, Quiz{VideoURL: v.VideoURL, Questions: questions})
	p.questions += len(questions)
	for _, q := range questions {
		if len(p.sample) == sampleQuestionLimit {
			break
		}
		p.sample = append(p.sample, q)
	}
}

// execute runs the plan in two phases. Phase one writes the subject and chapters and
// reads the chapters back to learn their ids; phase two writes the topics that need
// those ids, followed by the name-keyed levels.
func (p *plan) execute(ctx context.Context, tx Tx) (Summary, error) {
	sum := Summary{TotalQuestions: p.questions, SampleQuestions: p.sample}

	subject, created, err := tx.UpsertSubject(ctx, p.subject)
	if err != nil {
		return sum, fmt.Errorf("upsert subject: %w", err)
	}
	sum.Subject, sum.SubjectCreated = subject, created

	if sum.Chapters, err = tx.UpsertChapters(ctx, p.chapters); err != nil {
		return sum, fmt.Errorf("upsert chapters: %w", err)
	}
	chapterIDs, err := resolveChapterIDs(ctx, tx, subject.Name)
	if err != nil {
		return sum, err
	}

	topics := make([]Topic, 0, len(p.topics))
	for _, pt := range p.topics {
		id, ok := chapterIDs[pt.chapterName]
		if !ok {
			return sum, fmt.Errorf("resolve chapter %q: %w", pt.chapterName, ErrNotFound)
		}
		topics = append(topics, Topic{SubjectID: subject.ID, ChapterID: id, TopicName: pt.topicName})
	}
	if sum.Topics, err = tx.UpsertTopics(ctx, topics); err != nil {
		return sum, fmt.Errorf("upsert topics: %w", err)
	}
	if sum.Subtopics, err = tx.UpsertSubtopics(ctx, p.subtopics); err != nil {
		return sum, fmt.Errorf("upsert subtopics: %w", err)
	}
	if sum.Videos, err = tx.UpsertVideos(ctx, p.videos); err != nil {
		return sum, fmt.Errorf("upsert videos: %w", err)
	}
	if sum.Quizzes, err = tx.UpsertQuizzes(ctx, p.quizzes); err != nil {
		return sum, fmt.Errorf("upsert quizzes: %w", err)
	}
	return sum, nil
}

func resolveChapterIDs(ctx context.Context, tx Tx, subject string) (map[string]string, error) {
	chapters, err := tx.FindChapters(ctx, ChapterFilter{Subjects: []string{subject}})
	if err != nil {
		return nil, fmt.Errorf("read back chapters: %w", err)
	}
	ids := make(map[string]string, len(chapters))
	for _, c := range chapters {
		if _, ok := ids[c.ChapterName]; !ok {
			ids[c.ChapterName] = c.ID
		}
	}
	return ids, nil
}

// Ingest writes a submission atomically: either every upsert commits or none does.
func Ingest(ctx context.Context, store Store, sub Submission) (Summary, error) {
	p, err := newPlan(sub)
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	err = store.WithTx(ctx, func(tx Tx) error {
		var err error
		sum, err = p.execute(ctx, tx)
		return err
	})
	if err != nil {
		return Summary{}, fmt.Errorf("ingest %s: %w", p.subject.Name, err)
	}
	return sum, nil
}
