package curriculum

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
)

// Spreadsheet columns. Headers are matched case-insensitively, ignoring spaces and
// underscores, so "Video URL", "video_url" and "VIDEOURL" are the same column.
const (
	colChapter = iota
	colTopic
	colSubtopic
	colVideoURL
	colQuestion
	colOptionA
	colOptionB
	colOptionC
	colOptionD
	colCorrect
	colExplanation
	numColumns
)

var columnHeaders = map[string]int{
	"chapter":       colChapter,
	"chaptername":   colChapter,
	"topic":         colTopic,
	"topicname":     colTopic,
	"subtopic":      colSubtopic,
	"subtopicname":  colSubtopic,
	"videourl":      colVideoURL,
	"video":         colVideoURL,
	"question":      colQuestion,
	"que":           colQuestion,
	"optiona":       colOptionA,
	"a":             colOptionA,
	"optionb":       colOptionB,
	"b":             colOptionB,
	"optionc":       colOptionC,
	"c":             colOptionC,
	"optiond":       colOptionD,
	"d":             colOptionD,
	"correct":       colCorrect,
	"correctanswer": colCorrect,
	"answer":        colCorrect,
	"explanation":   colExplanation,
}

var requiredColumns = []struct {
	col  int
	name string
}{
	{colChapter, "Chapter"},
	{colTopic, "Topic"},
	{colSubtopic, "Subtopic"},
	{colVideoURL, "Video URL"},
}

var headerFold = cases.Fold()

func normalizeHeader(h string) string {
	h = headerFold.String(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(h)
}

// ParseSpreadsheet reads the first sheet of an xlsx workbook into a submission for the
// given subject. The first row is the header. Each following row names a chapter,
// topic, subtopic and video, optionally with one quiz question for that video. A blank
// path cell repeats the value of the row above, the way merged cells read back.
func ParseSpreadsheet(r io.Reader, subjectName, board, grade string) (Submission, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		verr := &ValidationError{}
		verr.add("file", "must be an xlsx workbook")
		return Submission{}, verr
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		verr := &ValidationError{}
		verr.add("file", "workbook has no sheets")
		return Submission{}, verr
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Submission{}, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		verr := &ValidationError{}
		verr.add("file", "sheet needs a header row and at least one data row")
		return Submission{}, verr
	}

	cols, err := mapColumns(rows[0])
	if err != nil {
		return Submission{}, err
	}

	b := newSheetBuilder(Submission{SubjectName: subjectName, Board: board, Grade: grade})
	var carry [colVideoURL + 1]string
	for _, row := range rows[1:] {
		cell := func(c int) string {
			i := cols[c]
			if i < 0 || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		blank := true
		for c := range numColumns {
			if cell(c) != "" {
				blank = false
				break
			}
		}
		if blank {
			continue
		}

		for level := colChapter; level <= colVideoURL; level++ {
			if v := cell(level); v != "" {
				carry[level] = v
				for lower := level + 1; lower <= colVideoURL; lower++ {
					carry[lower] = ""
				}
			}
		}

		b.addRow(carry, Question{
			Que: cell(colQuestion),
			Options: Options{
				A: cell(colOptionA),
				B: cell(colOptionB),
				C: cell(colOptionC),
				D: cell(colOptionD),
			},
			CorrectAnswer: cell(colCorrect),
			Explanation:   cell(colExplanation),
		})
	}
	return b.sub, nil
}

// mapColumns returns the sheet column index of every known column, -1 when absent.
func mapColumns(header []string) ([]int, error) {
	cols := make([]int, numColumns)
	for i := range cols {
		cols[i] = -1
	}
	for i, h := range header {
		if c, ok := columnHeaders[normalizeHeader(h)]; ok && cols[c] < 0 {
			cols[c] = i
		}
	}

	verr := &ValidationError{}
	for _, rc := range requiredColumns {
		if cols[rc.col] < 0 {
			verr.add("header", fmt.Sprintf("missing column %q", rc.name))
		}
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return cols, nil
}

// sheetBuilder groups rows into a nested submission, keeping first-seen order.
type sheetBuilder struct {
	sub       Submission
	chapters  map[string]int
	topics    map[string]int
	subtopics map[string]int
	videos    map[string]int
}

func newSheetBuilder(sub Submission) *sheetBuilder {
	return &sheetBuilder{
		sub:       sub,
		chapters:  make(map[string]int),
		topics:    make(map[string]int),
		subtopics: make(map[string]int),
		videos:    make(map[string]int),
	}
}

func (b *sheetBuilder) addRow(path [colVideoURL + 1]string, q Question) {
	chName, tpName, stName, url := path[colChapter], path[colTopic], path[colSubtopic], path[colVideoURL]
	if chName == "" {
		return
	}

	ci, ok := b.chapters[chName]
	if !ok {
		ci = len(b.sub.Chapters)
		b.chapters[chName] = ci
		b.sub.Chapters = append(b.sub.Chapters, ChapterInput{ChapterName: chName})
	}
	ch := &b.sub.Chapters[ci]
	if tpName == "" {
		return
	}

	tk := naturalKey(chName, tpName)
	ti, ok := b.topics[tk]
	if !ok {
		ti = len(ch.Topics)
		b.topics[tk] = ti
		ch.Topics = append(ch.Topics, TopicInput{TopicName: tpName})
	}
	tp := &ch.Topics[ti]
	if stName == "" {
		return
	}

	sk := naturalKey(chName, tpName, stName)
	si, ok := b.subtopics[sk]
	if !ok {
		si = len(tp.Subtopics)
		b.subtopics[sk] = si
		tp.Subtopics = append(tp.Subtopics, SubtopicInput{SubtopicName: stName})
	}
	st := &tp.Subtopics[si]
	if url == "" {
		return
	}

	vk := naturalKey(chName, tpName, stName, url)
	vi, ok := b.videos[vk]
	if !ok {
		vi = len(st.Videos)
		b.videos[vk] = vi
		st.Videos = append(st.Videos, VideoInput{VideoURL: url})
	}
	v := &st.Videos[vi]
	if q.Que == "" && q.CorrectAnswer == "" {
		return
	}
	if v.Quiz == nil {
		v.Quiz = &QuizInput{}
	}
	v.Quiz.Questions = append(v.Quiz.Questions, q)
}
