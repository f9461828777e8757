package curriculum

import (
	"fmt"

	"golang.org/x/text/cases"
)

// Board is the examination board a subject is taught under.
type Board string

const (
	BoardCBSE  Board = "CBSE"
	BoardICSE  Board = "ICSE"
	BoardState Board = "State"
)

// Boards lists every supported board.
var Boards = []Board{BoardCBSE, BoardICSE, BoardState}

var boardFold = cases.Fold()

// ParseBoard resolves a board name case-insensitively ("cbse", "State", ...).
func ParseBoard(s string) (Board, error) {
	folded := boardFold.String(s)
	for _, b := range Boards {
		if boardFold.String(string(b)) == folded {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown board %q", s)
}

// Subject is the root of a curriculum tree. Unique by (Name, Board, Grade).
type Subject struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Board Board  `json:"board"`
	Grade string `json:"grade"`
}

// Chapter belongs to a subject by name. Unique by (Subject, ChapterName).
type Chapter struct {
	ID          string `json:"id"`
	Subject     string `json:"subject"`
	ChapterName string `json:"chapterName"`
}

// Topic references its subject and chapter by id. Unique by (SubjectID, ChapterID, TopicName).
type Topic struct {
	ID        string `json:"id"`
	SubjectID string `json:"subjectId"`
	ChapterID string `json:"chapterId"`
	TopicName string `json:"topicName"`
}

// Subtopic carries its ancestry as denormalized names.
type Subtopic struct {
	ID           string `json:"id"`
	SubName      string `json:"subName"`
	ChapterName  string `json:"chapterName"`
	TopicName    string `json:"topicName"`
	SubtopicName string `json:"subtopicName"`
}

// Video carries its ancestry as denormalized names. Unique by the four names plus VideoURL.
type Video struct {
	ID           string `json:"id"`
	SubName      string `json:"subName"`
	ChapterName  string `json:"chapterName"`
	TopicName    string `json:"topicName"`
	SubtopicName string `json:"subtopicName"`
	VideoURL     string `json:"videoUrl"`
}

// Quiz is keyed by the URL of the video it belongs to.
type Quiz struct {
	ID        string     `json:"id"`
	VideoURL  string     `json:"videoUrl"`
	Questions []Question `json:"questions"`
}

// Question is a four-option multiple choice question.
type Question struct {
	Que           string  `json:"que" yaml:"que"`
	Options       Options `json:"options" yaml:"options"`
	CorrectAnswer string  `json:"correctAnswer" yaml:"correctAnswer"`
	Explanation   string  `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

// Options holds the four labeled answers of a question.
type Options struct {
	A string `json:"A" yaml:"A"`
	B string `json:"B" yaml:"B"`
	C string `json:"C" yaml:"C"`
	D string `json:"D" yaml:"D"`
}

// valid reports whether a question can be stored.
func (q Question) valid() bool {
	return q.Que != "" && q.CorrectAnswer != ""
}
