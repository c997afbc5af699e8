package models

// GradeStyle is the badge styling for a grade score.
type GradeStyle struct {
	Key        string `json:"key"`
	Background string `json:"background"`
	Foreground string `json:"foreground"`
	Border     string `json:"border"`
	Label      string `json:"label"`
}

var (
	gradeS = GradeStyle{Key: "S", Background: "#fff5f5", Foreground: "#d9534f", Border: "1px solid #d9534f", Label: "Leader"}
	gradeA = GradeStyle{Key: "A", Background: "#f0fff4", Foreground: "#28a745", Border: "1px solid #28a745", Label: "Surging"}
	gradeB = GradeStyle{Key: "B", Background: "#fffaf0", Foreground: "#f0ad4e", Border: "1px solid #f0ad4e", Label: "Pullback"}
	gradeF = GradeStyle{Key: "F", Background: "#f8f9fa", Foreground: "#6c757d", Border: "1px solid #ddd", Label: "Neglected"}
)

// StyleFor maps a grade score to its badge style using only the first byte,
// case-sensitively. Anything other than S, A or B, including "", gets the F style.
func StyleFor(gradeScore string) GradeStyle {
	if gradeScore == "" {
		return gradeF
	}
	switch gradeScore[0] {
	case 'S':
		return gradeS
	case 'A':
		return gradeA
	case 'B':
		return gradeB
	default:
		return gradeF
	}
}
