package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"survey-service/internal/domain"
)

func resultsSurvey() domain.Survey {
	return domain.Survey{
		ID: "s1",
		Questions: []domain.Question{
			{ID: "colour", Label: "Colour", Kind: domain.KindRadio, Choices: []string{"red", "blue"}},
			{ID: "tags", Label: "Tags", Kind: domain.KindCheckboxes, Choices: []string{"a", "b", "c"}},
			{ID: "agree", Label: "Agree", Kind: domain.KindCheckbox, Choices: []string{"true", "false"}},
			{ID: "why", Label: "Why", Kind: domain.KindMultiLine},
		},
	}
}

func resultsSubmissions() []domain.Submission {
	return []domain.Submission{
		{Answers: map[string]any{"colour": "red", "tags": []string{"a", "b"}, "agree": true}},
		{Answers: map[string]any{"colour": "red", "tags": []any{"a"}, "agree": false}},
		{Answers: map[string]any{"colour": "blue", "agree": true}},
		{Answers: map[string]any{"colour": ""}},
	}
}

func TestBuildResultsCounts(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	results := BuildResults(resultsSurvey(), resultsSubmissions(), now)

	assert.Equal(t, "s1", results.SurveyID)
	assert.Equal(t, 4, results.Submissions)
	assert.Equal(t, now, results.GeneratedAt)
	require.Len(t, results.Questions, 3, "free text questions are not tallied")

	assert.Equal(t, []domain.ChoiceCount{{Choice: "red", Count: 2}, {Choice: "blue", Count: 1}}, results.Questions[0].Choices)
	assert.Equal(t, []domain.ChoiceCount{{Choice: "a", Count: 2}, {Choice: "b", Count: 1}, {Choice: "c", Count: 0}}, results.Questions[1].Choices)
	assert.Equal(t, []domain.ChoiceCount{{Choice: "true", Count: 2}, {Choice: "false", Count: 1}}, results.Questions[2].Choices)
}

func TestBuildResultsPercentages(t *testing.T) {
	survey := resultsSurvey()
	survey.ShowResultsAsPercentage = true
	results := BuildResults(survey, resultsSubmissions(), time.Now())

	assert.True(t, results.Percentage)
	// Three submissions answered the colour question.
	assert.Equal(t, []domain.ChoiceCount{{Choice: "red", Count: 67}, {Choice: "blue", Count: 33}}, results.Questions[0].Choices)
	assert.Equal(t, []domain.ChoiceCount{{Choice: "a", Count: 100}, {Choice: "b", Count: 50}, {Choice: "c", Count: 0}}, results.Questions[1].Choices)

	empty := BuildResults(survey, nil, time.Now())
	assert.Equal(t, 0, empty.Questions[0].Choices[0].Count)
}

func TestResultsHubDeliversToSurveySubscribers(t *testing.T) {
	hub := NewResultsHub()
	assert.False(t, hub.HasSubscribers("s1"))

	ch, cancel := hub.Subscribe(domain.Results{SurveyID: "s1"})
	other, cancelOther := hub.Subscribe(domain.Results{SurveyID: "s2"})
	defer cancelOther()
	assert.True(t, hub.HasSubscribers("s1"))

	initial := <-ch
	assert.Equal(t, 0, initial.Submissions)
	<-other

	hub.Publish(domain.Results{SurveyID: "s1", Submissions: 1})
	update := <-ch
	assert.Equal(t, 1, update.Submissions)

	select {
	case got := <-other:
		t.Fatalf("unexpected update for another survey: %+v", got)
	default:
	}

	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.False(t, hub.HasSubscribers("s1"))
	// A second cancel is a no-op.
	cancel()
}

func TestResultsHubDropsOldestWhenBehind(t *testing.T) {
	hub := NewResultsHub()
	ch, cancel := hub.Subscribe(domain.Results{SurveyID: "s1"})
	defer cancel()

	for i := 1; i <= 20; i++ {
		hub.Publish(domain.Results{SurveyID: "s1", Submissions: i})
	}

	var last domain.Results
	for len(ch) > 0 {
		last = <-ch
	}
	assert.Equal(t, 20, last.Submissions)
}

func TestResultsHubInitialSnapshotComesFirst(t *testing.T) {
	hub := NewResultsHub()
	for n := 0; n < 50; n++ {
		published := make(chan struct{})
		go func() {
			defer close(published)
			for i := 1; i <= 3; i++ {
				hub.Publish(domain.Results{SurveyID: "s1", Submissions: i})
			}
		}()
		ch, cancel := hub.Subscribe(domain.Results{SurveyID: "s1"})
		<-published

		first := <-ch
		require.Equal(t, 0, first.Submissions)
		prev := first.Submissions
		for len(ch) > 0 {
			got := <-ch
			require.Greater(t, got.Submissions, prev)
			prev = got.Submissions
		}
		cancel()
	}
}
