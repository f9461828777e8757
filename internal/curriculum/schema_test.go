package curriculum_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
)

func TestValidateSubmissionJSON(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantFields []string
	}{
		{
			name: "valid",
			body: `{"subjectName":"Math","board":"cbse","grade":"10","chapters":[
				{"chapterName":"Algebra","topics":[{"topicName":"Linear Eq","subtopics":[
					{"subtopicName":"Solving","videos":[{"videoUrl":"https://x/1","quiz":{"questions":[
						{"que":"1+1?","options":{"A":"1","B":"2","C":"3","D":"4"},"correctAnswer":"B"}]}}]}]}]}]}`,
		},
		{
			name: "unnamed nodes are allowed",
			body: `{"subjectName":"Math","board":"CBSE","grade":"10","chapters":[{"topics":[{}]}]}`,
		},
		{
			name: "null names are allowed",
			body: `{"subjectName":"Math","board":"CBSE","grade":"10","chapters":[
				{"chapterName":null},
				{"chapterName":"Algebra","topics":[{"topicName":null},{"topicName":"Linear Eq","subtopics":[
					{"subtopicName":null},
					{"subtopicName":"Solving","videos":[{"videoUrl":null},{"videoUrl":"https://x/1","quiz":{"questions":[
						{"que":null,"correctAnswer":null,"explanation":null}]}}]}]}]}]}`,
		},
		{
			name:       "missing required",
			body:       `{"chapters":[]}`,
			wantFields: []string{"subjectName", "board", "grade"},
		},
		{
			name:       "unknown board",
			body:       `{"subjectName":"Math","board":"IB","grade":"10"}`,
			wantFields: []string{"board"},
		},
		{
			name:       "numeric grade",
			body:       `{"subjectName":"Math","board":"CBSE","grade":10}`,
			wantFields: []string{"grade"},
		},
		{
			name:       "chapters not a list",
			body:       `{"subjectName":"Math","board":"CBSE","grade":"10","chapters":"Algebra"}`,
			wantFields: []string{"chapters"},
		},
		{
			name:       "not json",
			body:       `subjectName=Math`,
			wantFields: []string{"body"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := curriculum.ValidateSubmissionJSON([]byte(tt.body))
			if tt.wantFields == nil {
				if err != nil {
					t.Fatalf("ValidateSubmissionJSON() error = %v", err)
				}
				return
			}

			var verr *curriculum.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("ValidateSubmissionJSON() error = %v, want ValidationError", err)
			}
			var fields []string
			for _, f := range verr.Fields {
				fields = append(fields, f.Field)
			}
			slices.Sort(fields)
			want := slices.Sorted(slices.Values(tt.wantFields))
			if !slices.Equal(fields, want) {
				t.Errorf("fields = %v, want %v", fields, want)
			}
		})
	}
}
