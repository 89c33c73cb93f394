package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"internationally/internal/ai"
)

type stubChat struct {
	reply    string
	err      error
	messages []ai.ChatMessage
}

func (s *stubChat) Complete(ctx context.Context, model string, messages []ai.ChatMessage) (string, error) {
	s.messages = messages
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

const housingReply = `{
    "intents": ["housing_search"],
    "parameters": {
        "housing": {
            "location": "Hyde Park, Chicago",
            "price_range": [0, 1500],
            "bedrooms": 0,
            "property_type": "apartment",
            "amenities": ["furnished"],
            "radius_miles": 1
        },
        "location": {},
        "student_info": {}
    }
}`

func TestParseAnalysisPlainJSON(t *testing.T) {
	analysis, err := ParseAnalysis(housingReply)

	require.NoError(t, err)
	require.True(t, analysis.Has(HousingSearch))
	assert.Equal(t, "Hyde Park, Chicago", analysis.Parameters.Housing.Location)
	assert.Equal(t, []int{0, 1500}, analysis.Parameters.Housing.PriceRange)
	assert.Equal(t, []string{"furnished"}, analysis.Parameters.Housing.Amenities)
	assert.Equal(t, 1.0, analysis.Parameters.Housing.RadiusMiles)
}

func TestParseAnalysisStripsCodeFences(t *testing.T) {
	fenced := "```json\n" + housingReply + "\n```"

	analysis, err := ParseAnalysis(fenced)

	require.NoError(t, err)
	assert.True(t, analysis.Has(HousingSearch))
}

func TestParseAnalysisMultiIntent(t *testing.T) {
	raw := `{
        "intents": ["housing_search", "location_info"],
        "parameters": {
            "housing": {"location": "Hyde Park, Chicago", "price_range": [0, 2000]},
            "location": {"search_type": "restaurant", "keywords": ["Asian"], "open_now": true},
            "student_info": {}
        }
    }`

	analysis, err := ParseAnalysis(raw)

	require.NoError(t, err)
	assert.True(t, analysis.Has(HousingSearch))
	assert.True(t, analysis.Has(LocationInfo))
	assert.False(t, analysis.Has(StudentInfo))
	assert.True(t, analysis.Actionable())
	assert.Equal(t, "restaurant", analysis.Parameters.Location.SearchType)
	assert.True(t, analysis.Parameters.Location.OpenNow)
}

func TestParseAnalysisNotJSON(t *testing.T) {
	_, err := ParseAnalysis("I think you are looking for housing near campus.")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
}

func TestParseAnalysisMissingKeys(t *testing.T) {
	cases := map[string]string{
		"no intents":    `{"parameters": {"housing": {}, "location": {}, "student_info": {}}}`,
		"no parameters": `{"intents": ["general"]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAnalysis(raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestClassifyUsesFencedModelOutput(t *testing.T) {
	llm := &stubChat{reply: "```json\n" + housingReply + "\n```"}
	c := NewClassifier(llm, "gpt-4o-mini")

	analysis, err := c.Classify(context.Background(), "Find me a furnished studio under $1500")

	require.NoError(t, err)
	assert.True(t, analysis.Has(HousingSearch))

	require.Len(t, llm.messages, 2)
	assert.Equal(t, ai.RoleSystem, llm.messages[0].Role)
	assert.Contains(t, llm.messages[1].Content, "Find me a furnished studio under $1500")
}

func TestClassifyRequestFailure(t *testing.T) {
	llm := &stubChat{err: errors.New("rate limited")}
	c := NewClassifier(llm, "gpt-4o-mini")

	_, err := c.Classify(context.Background(), "anything")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrParse)
}

func TestAnalysisActionable(t *testing.T) {
	assert.False(t, Analysis{Intents: []string{General}}.Actionable())
	assert.False(t, Analysis{}.Actionable())
	assert.True(t, Analysis{Intents: []string{StudentInfo}}.Actionable())
}
