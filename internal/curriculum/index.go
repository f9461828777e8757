package curriculum

// Index holds lookup maps over flat collections so that a tree can be assembled with
// one map lookup per node instead of a collection scan per node.
//
// Buckets keep the order in which records were scanned. Records sharing a key are all
// kept. Keys are compared byte for byte.
type Index struct {
	ChaptersBySubject map[string][]Chapter  // subject name
	TopicsByChapter   map[string][]Topic    // chapter id
	SubtopicsByTopic  map[string][]Subtopic // subject, chapter, topic
	VideosBySubtopic  map[string][]Video    // subject, chapter, topic, subtopic
	QuizByVideo       map[string]Quiz       // video URL
}

// BuildIndex makes a single pass over each collection.
func BuildIndex(chapters []Chapter, topics []Topic, subtopics []Subtopic, videos []Video, quizzes []Quiz) *Index {
	idx := &Index{
		ChaptersBySubject: make(map[string][]Chapter),
		TopicsByChapter:   make(map[string][]Topic),
		SubtopicsByTopic:  make(map[string][]Subtopic, len(subtopics)),
		VideosBySubtopic:  make(map[string][]Video, len(videos)),
		QuizByVideo:       make(map[string]Quiz, len(quizzes)),
	}
	for _, c := range chapters {
		idx.ChaptersBySubject[c.Subject] = append(idx.ChaptersBySubject[c.Subject], c)
	}
	for _, t := range topics {
		idx.TopicsByChapter[t.ChapterID] = append(idx.TopicsByChapter[t.ChapterID], t)
	}
	for _, s := range subtopics {
		k := subtopicKey(s.SubName, s.ChapterName, s.TopicName)
		idx.SubtopicsByTopic[k] = append(idx.SubtopicsByTopic[k], s)
	}
	for _, v := range videos {
		k := videoKey(v.SubName, v.ChapterName, v.TopicName, v.SubtopicName)
		idx.VideosBySubtopic[k] = append(idx.VideosBySubtopic[k], v)
	}
	for _, q := range quizzes {
		if _, ok := idx.QuizByVideo[q.VideoURL]; !ok {
			idx.QuizByVideo[q.VideoURL] = q
		}
	}
	return idx
}

// Chapters returns the chapters filed under a subject name.
func (idx *Index) Chapters(subject string) []Chapter {
	return idx.ChaptersBySubject[subject]
}

// Topics returns the topics filed under a chapter id.
func (idx *Index) Topics(chapterID string) []Topic {
	return idx.TopicsByChapter[chapterID]
}

// Subtopics returns the subtopics filed under a subject/chapter/topic path.
func (idx *Index) Subtopics(subject, chapter, topic string) []Subtopic {
	return idx.SubtopicsByTopic[subtopicKey(subject, chapter, topic)]
}

// Videos returns the videos filed under a full subtopic path.
func (idx *Index) Videos(subject, chapter, topic, subtopic string) []Video {
	return idx.VideosBySubtopic[videoKey(subject, chapter, topic, subtopic)]
}

// Quiz returns the quiz attached to a video URL.
func (idx *Index) Quiz(videoURL string) (Quiz, bool) {
	q, ok := idx.QuizByVideo[videoURL]
	return q, ok
}
