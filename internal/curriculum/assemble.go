package curriculum

// SubjectTree is the nested, read-only view of one subject's curriculum.
type SubjectTree struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Board    Board         `json:"board"`
	Grade    string        `json:"grade"`
	Chapters []ChapterTree `json:"chapters"`
}

// ChapterTree is a chapter with its topics.
type ChapterTree struct {
	ID          string      `json:"id"`
	ChapterName string      `json:"chapterName"`
	Topics      []TopicTree `json:"topics"`
}

// TopicTree is a topic with its subtopics.
type TopicTree struct {
	ID        string         `json:"id"`
	TopicName string         `json:"topicName"`
	Subtopics []SubtopicTree `json:"subtopics"`
}

// SubtopicTree is a subtopic with its videos.
type SubtopicTree struct {
	ID           string      `json:"id"`
	SubtopicName string      `json:"subtopicName"`
	Videos       []VideoTree `json:"videos"`
}

// VideoTree is a video and its quiz, if any.
type VideoTree struct {
	ID       string `json:"id"`
	VideoURL string `json:"videoUrl"`
	Quiz     *Quiz  `json:"quiz,omitempty"`
}

// Assemble builds the tree under subject. Each level is resolved with a lookup keyed by
// its parent's identifying fields; missing children produce empty lists.
func Assemble(subject Subject, idx *Index) SubjectTree {
	tree := SubjectTree{
		ID:       subject.ID,
		Name:     subject.Name,
		Board:    subject.Board,
		Grade:    subject.Grade,
		Chapters: []ChapterTree{},
	}
	for _, ch := range idx.Chapters(subject.Name) {
		tree.Chapters = append(tree.Chapters, assembleChapter(subject.Name, ch, idx))
	}
	return tree
}

func assembleChapter(subject string, ch Chapter, idx *Index) ChapterTree {
	node := ChapterTree{ID: ch.ID, ChapterName: ch.ChapterName, Topics: []TopicTree{}}
	for _, tp := range idx.Topics(ch.ID) {
		node.Topics = append(node.Topics, assembleTopic(subject, ch.ChapterName, tp, idx))
	}
	return node
}

func assembleTopic(subject, chapter string, tp Topic, idx *Index) TopicTree {
	node := TopicTree{ID: tp.ID, TopicName: tp.TopicName, Subtopics: []SubtopicTree{}}
	for _, st := range idx.Subtopics(subject, chapter, tp.TopicName) {
		sub := SubtopicTree{ID: st.ID, SubtopicName: st.SubtopicName, Videos: []VideoTree{}}
		for _, v := range idx.Videos(subject, chapter, tp.TopicName, st.SubtopicName) {
			vt := VideoTree{ID: v.ID, VideoURL: v.VideoURL}
			if q, ok := idx.Quiz(v.VideoURL); ok {
				vt.Quiz = &q
			}
			sub.Videos = append(sub.Videos, vt)
		}
		node.Subtopics = append(node.Subtopics, sub)
	}
	return node
}
