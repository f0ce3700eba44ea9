package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSVValidRows(t *testing.T) {
	input := strings.Join([]string{
		"question,option1,option2,option3,option4,correct_answer,explanation,category,difficulty",
		"2+2?,3,4,5,6,2,basic addition,math,easy",
		"H2O?,water,salt,gold,air,1,,science,easy",
	}, "\n")

	questions, result, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, questions, 2)

	assert.Equal(t, "2+2?", questions[0].Text)
	assert.Equal(t, []string{"3", "4", "5", "6"}, questions[0].Options)
	// correct_answer is 1-based in the file
	assert.Equal(t, 1, questions[0].CorrectAnswer)
	assert.Equal(t, "basic addition", questions[0].Explanation)
	assert.Equal(t, "math", questions[0].Category)
	assert.True(t, questions[0].Active)

	assert.Equal(t, 0, questions[1].CorrectAnswer)
	assert.Empty(t, questions[1].Explanation)
}

func TestParseCSVHeaderIsCaseInsensitive(t *testing.T) {
	input := strings.Join([]string{
		"Question,Option1,Option2,Option3,Option4,Correct_Answer",
		"2+2?,3,4,5,6,2",
	}, "\n")

	questions, result, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, questions, 1)
	assert.Equal(t, 1, questions[0].CorrectAnswer)
}

func TestParseCSVMissingColumn(t *testing.T) {
	input := strings.Join([]string{
		"question,option1,option2,option3,correct_answer",
		"2+2?,3,4,5,2",
	}, "\n")

	_, _, err := ParseCSV(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "option4")
}

func TestParseCSVCollectsBadRows(t *testing.T) {
	input := strings.Join([]string{
		"question,option1,option2,option3,option4,correct_answer",
		"2+2?,3,4,5,6,2",
		"no answer,a,b,c,d,not-a-number",
		"out of range,a,b,c,d,5",
		",a,b,c,d,1",
		"7*8?,54,55,56,57,3",
	}, "\n")

	questions, result, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, questions, 2)
	assert.Equal(t, "2+2?", questions[0].Text)
	assert.Equal(t, "7*8?", questions[1].Text)

	assert.Equal(t, 3, result.Failed)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "line 3")
	assert.Contains(t, result.Errors[1], "line 4")
	assert.Contains(t, result.Errors[2], "line 5")
}

func TestParseCSVEmptyFile(t *testing.T) {
	_, _, err := ParseCSV(strings.NewReader(""))
	require.Error(t, err)
}
