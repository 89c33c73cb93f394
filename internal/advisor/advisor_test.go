package advisor

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"internationally/internal/ai"
	"internationally/internal/housing"
	"internationally/internal/intent"
	"internationally/internal/places"
	"internationally/internal/rag"
)

type stubClassifier struct {
	analysis intent.Analysis
	err      error
}

func (s *stubClassifier) Classify(ctx context.Context, message string) (intent.Analysis, error) {
	if s.err != nil {
		return intent.Analysis{}, s.err
	}
	return s.analysis, nil
}

type stubRetriever struct {
	queries   []string
	responses [][]rag.Fragment
}

func (s *stubRetriever) Retrieve(ctx context.Context, query string, k int) []rag.Fragment {
	s.queries = append(s.queries, query)
	if len(s.responses) == 0 {
		return nil
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return next
}

type stubHousing struct {
	params   housing.SearchParams
	listings []housing.Listing
	err      error
}

func (s *stubHousing) Search(ctx context.Context, params housing.SearchParams) ([]housing.Listing, error) {
	s.params = params
	if s.err != nil {
		return nil, s.err
	}
	return s.listings, nil
}

type stubPlaces struct {
	params places.SearchParams
	found  []places.Place
	err    error
}

func (s *stubPlaces) Search(ctx context.Context, params places.SearchParams) ([]places.Place, error) {
	s.params = params
	if s.err != nil {
		return nil, s.err
	}
	return s.found, nil
}

type stubLLM struct {
	reply      string
	err        error
	lastSystem string
}

func (s *stubLLM) Complete(ctx context.Context, model string, messages []ai.ChatMessage) (string, error) {
	if len(messages) > 0 && messages[0].Role == ai.RoleSystem {
		s.lastSystem = messages[0].Content
	}
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func testOptions() Options {
	return Options{
		ChatModel:       "gpt-4o",
		BranchTimeout:   2 * time.Second,
		DefaultLocation: "Hyde Park, Chicago",
		CampusLocation:  "University of Chicago",
		TopK:            3,
	}
}

func newTestAdvisor(c Classifier, r Retriever, h HousingSearcher, p PlacesSearcher, llm ai.ChatClient) *Advisor {
	return New(c, r, h, p, llm, testOptions(), log.New(io.Discard, "", 0))
}

func sampleListing() housing.Listing {
	return housing.Listing{
		ID:        "1001",
		Address:   "5400 S Harper Ave",
		Price:     "1450",
		Bedrooms:  1,
		Bathrooms: 1,
		DetailURL: "https://example.com/1001",
	}
}

func samplePlace() places.Place {
	return places.Place{
		ID:      "place-1",
		Name:    "Harper Grocery",
		Address: "1234 E 53rd St",
		Rating:  4.4,
	}
}

func TestProcessMultiIntentFanOut(t *testing.T) {
	classifier := &stubClassifier{analysis: intent.Analysis{
		Intents: []string{intent.HousingSearch, intent.LocationInfo},
		Parameters: intent.Parameters{
			Housing:  intent.HousingParams{Location: "Hyde Park", PriceRange: []int{0, 1500}},
			Location: intent.LocationParams{SearchType: "restaurant"},
		},
	}}
	housingStub := &stubHousing{listings: []housing.Listing{sampleListing()}}
	placesStub := &stubPlaces{found: []places.Place{samplePlace()}}
	llm := &stubLLM{reply: "Here are some options near Hyde Park."}

	a := newTestAdvisor(classifier, &stubRetriever{}, housingStub, placesStub, llm)
	reply, err := a.Process(context.Background(), "housing and food near campus", nil)

	require.NoError(t, err)
	assert.Equal(t, "Here are some options near Hyde Park.", reply.Text)
	require.Len(t, reply.Fragments, 2)
	assert.Len(t, reply.APIData.Housing, 1)
	assert.Len(t, reply.APIData.Places, 1)
	assert.Empty(t, reply.APIData.RAG)

	// Both branches' context reached the composer prompt.
	assert.Contains(t, llm.lastSystem, "5400 S Harper Ave")
	assert.Contains(t, llm.lastSystem, "Harper Grocery")
}

func TestProcessBranchFailureIsIsolated(t *testing.T) {
	classifier := &stubClassifier{analysis: intent.Analysis{
		Intents: []string{intent.HousingSearch, intent.LocationInfo},
	}}
	housingStub := &stubHousing{err: errors.New("rapidapi 500")}
	placesStub := &stubPlaces{found: []places.Place{samplePlace()}}
	llm := &stubLLM{reply: "Found places, but the housing search had trouble."}

	a := newTestAdvisor(classifier, &stubRetriever{}, housingStub, placesStub, llm)
	reply, err := a.Process(context.Background(), "apartments and groceries", nil)

	require.NoError(t, err, "one failed branch must not fail the request")
	require.Len(t, reply.Fragments, 2)

	var failed, ok int
	for _, f := range reply.Fragments {
		if f.Failed {
			failed++
			assert.Equal(t, FragmentHousing, f.Kind)
			assert.NotEmpty(t, f.Text, "failure marker carries user-safe text")
		} else {
			ok++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, ok)

	assert.Empty(t, reply.APIData.Housing, "failed branch contributes no api_data")
	assert.Len(t, reply.APIData.Places, 1)
}

func TestProcessHousingDefaults(t *testing.T) {
	classifier := &stubClassifier{analysis: intent.Analysis{
		Intents: []string{intent.HousingSearch},
	}}
	housingStub := &stubHousing{listings: []housing.Listing{sampleListing()}}
	llm := &stubLLM{reply: "ok"}

	a := newTestAdvisor(classifier, &stubRetriever{}, housingStub, &stubPlaces{}, llm)
	_, err := a.Process(context.Background(), "find me somewhere to live", nil)

	require.NoError(t, err)
	assert.Equal(t, "Hyde Park, Chicago", housingStub.params.Location)
	assert.Equal(t, "apartment", housingStub.params.PropertyType)
	assert.Equal(t, 0, housingStub.params.MinPrice)
	assert.Equal(t, 2000, housingStub.params.MaxPrice)
	assert.Equal(t, 1.0, housingStub.params.RadiusMiles)
}

func TestProcessPlacesDefaults(t *testing.T) {
	classifier := &stubClassifier{analysis: intent.Analysis{
		Intents: []string{intent.LocationInfo},
	}}
	placesStub := &stubPlaces{found: []places.Place{samplePlace()}}
	llm := &stubLLM{reply: "ok"}

	a := newTestAdvisor(classifier, &stubRetriever{}, &stubHousing{}, placesStub, llm)
	_, err := a.Process(context.Background(), "what is around here", nil)

	require.NoError(t, err)
	assert.Equal(t, "grocery_store", placesStub.params.SearchType)
	assert.Equal(t, "University of Chicago", placesStub.params.Location)
	assert.Equal(t, 1000, placesStub.params.RadiusMeters)
}

func TestProcessStudentInfoAugmentsAndRetries(t *testing.T) {
	classifier := &stubClassifier{analysis: intent.Analysis{
		Intents: []string{intent.StudentInfo},
		Parameters: intent.Parameters{
			StudentInfo: intent.StudentInfoParams{Topic: "employment", Subtopic: "opt"},
		},
	}}
	doc := rag.Fragment{Content: "OPT requires form I-765.", Title: "OPT Guide", SourceURL: "https://intl.example.edu/opt"}
	retriever := &stubRetriever{responses: [][]rag.Fragment{nil, {doc}}}
	llm := &stubLLM{reply: "You will need form I-765."}

	a := newTestAdvisor(classifier, retriever, &stubHousing{}, &stubPlaces{}, llm)
	reply, err := a.Process(context.Background(), "What do I need for OPT?", nil)

	require.NoError(t, err)
	require.Len(t, retriever.queries, 2, "empty augmented retrieval gets one retry with the raw message")
	assert.Contains(t, retriever.queries[0], "employment")
	assert.Contains(t, retriever.queries[0], "opt")
	assert.Equal(t, "What do I need for OPT?", retriever.queries[1])

	require.Len(t, reply.APIData.RAG, 1)
	assert.Equal(t, "OPT Guide", reply.APIData.RAG[0].Title)
}

func TestProcessClassificationFailureFallsBackToConversation(t *testing.T) {
	classifier := &stubClassifier{err: intent.ErrParse}
	housingStub := &stubHousing{listings: []housing.Listing{sampleListing()}}
	llm := &stubLLM{reply: "Happy to help - what are you looking for?"}

	a := newTestAdvisor(classifier, &stubRetriever{}, housingStub, &stubPlaces{}, llm)
	reply, err := a.Process(context.Background(), "hmm", nil)

	require.NoError(t, err)
	assert.Equal(t, "Happy to help - what are you looking for?", reply.Text)
	assert.Empty(t, reply.Fragments)
	assert.Empty(t, reply.Analysis.Intents)
	assert.Zero(t, housingStub.params, "no branch may run after a failed classification")
}

func TestProcessNoActionableIntentConverses(t *testing.T) {
	classifier := &stubClassifier{analysis: intent.Analysis{Intents: []string{intent.General}}}
	llm := &stubLLM{reply: "Welcome! Ask me about housing, places, or visas."}

	a := newTestAdvisor(classifier, &stubRetriever{}, &stubHousing{}, &stubPlaces{}, llm)
	reply, err := a.Process(context.Background(), "hello", nil)

	require.NoError(t, err)
	assert.Equal(t, "Welcome! Ask me about housing, places, or visas.", reply.Text)
	assert.Empty(t, reply.Fragments)
}

func TestProcessApologyWhenConversationFails(t *testing.T) {
	classifier := &stubClassifier{analysis: intent.Analysis{Intents: []string{intent.General}}}
	llm := &stubLLM{err: errors.New("llm down")}

	a := newTestAdvisor(classifier, &stubRetriever{}, &stubHousing{}, &stubPlaces{}, llm)
	reply, err := a.Process(context.Background(), "hello", nil)

	require.NoError(t, err, "the apology path is a reply, not an error")
	assert.Equal(t, apologyText, reply.Text)
}

func TestProcessCompositionFailureSurfaces(t *testing.T) {
	classifier := &stubClassifier{analysis: intent.Analysis{
		Intents: []string{intent.HousingSearch},
	}}
	housingStub := &stubHousing{listings: []housing.Listing{sampleListing()}}
	llm := &stubLLM{err: errors.New("llm down")}

	a := newTestAdvisor(classifier, &stubRetriever{}, housingStub, &stubPlaces{}, llm)
	_, err := a.Process(context.Background(), "find housing", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrComposition)
}

func TestProcessEmptyBranchResultsOmitted(t *testing.T) {
	classifier := &stubClassifier{analysis: intent.Analysis{
		Intents: []string{intent.HousingSearch},
	}}
	housingStub := &stubHousing{listings: nil}
	llm := &stubLLM{reply: "I could not find current listings, but here is general advice."}

	a := newTestAdvisor(classifier, &stubRetriever{}, housingStub, &stubPlaces{}, llm)
	reply, err := a.Process(context.Background(), "find housing", nil)

	require.NoError(t, err)
	assert.Empty(t, reply.Fragments, "zero results is not a failure marker")
	assert.Empty(t, reply.APIData.Housing)
	assert.Equal(t, "I could not find current listings, but here is general advice.", reply.Text)
}

func TestProcessHistoryReachesComposer(t *testing.T) {
	classifier := &stubClassifier{analysis: intent.Analysis{
		Intents: []string{intent.HousingSearch},
	}}
	housingStub := &stubHousing{listings: []housing.Listing{sampleListing()}}

	var captured []ai.ChatMessage
	llm := &captureLLM{reply: "ok", capture: &captured}

	a := newTestAdvisor(classifier, &stubRetriever{}, housingStub, &stubPlaces{}, llm)
	history := []ai.ChatMessage{
		{Role: ai.RoleUser, Content: "I just moved to Chicago"},
		{Role: ai.RoleAssistant, Content: "Welcome!"},
	}
	_, err := a.Process(context.Background(), "find housing", history)

	require.NoError(t, err)
	require.GreaterOrEqual(t, len(captured), 4)
	assert.Equal(t, "I just moved to Chicago", captured[1].Content)
	assert.Equal(t, "find housing", captured[len(captured)-1].Content)
}

type captureLLM struct {
	reply   string
	capture *[]ai.ChatMessage
}

func (c *captureLLM) Complete(ctx context.Context, model string, messages []ai.ChatMessage) (string, error) {
	*c.capture = append([]ai.ChatMessage(nil), messages...)
	return c.reply, nil
}
