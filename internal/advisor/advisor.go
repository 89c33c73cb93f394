// Package advisor runs the request pipeline: classify the message, fan out
// to the retrieval branches the intents call for, and compose one reply
// from whatever the branches returned.
package advisor

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"internationally/internal/ai"
	"internationally/internal/housing"
	"internationally/internal/intent"
	"internationally/internal/places"
	"internationally/internal/rag"
)

const (
	FragmentDocuments = "documents"
	FragmentHousing   = "housing"
	FragmentPlaces    = "places"

	defaultMaxPrice     = 2000
	defaultPropertyType = "apartment"
	defaultRadiusMiles  = 1
	defaultSearchType   = "grocery_store"
	defaultRadiusMeters = 1000
)

// Fragment is one retrieval branch's contribution: either a payload with a
// formatted context block, or a failure marker carrying user-safe text.
type Fragment struct {
	Kind      string            `json:"kind"`
	Text      string            `json:"text"`
	Failed    bool              `json:"failed"`
	Documents []rag.Fragment    `json:"documents,omitempty"`
	Listings  []housing.Listing `json:"listings,omitempty"`
	Places    []places.Place    `json:"places,omitempty"`
}

func (f Fragment) empty() bool {
	return !f.Failed && f.Text == "" &&
		len(f.Documents) == 0 && len(f.Listings) == 0 && len(f.Places) == 0
}

// APIData is the structured side channel handed to the client for map and
// listing rendering. It is passed through verbatim, never paraphrased.
type APIData struct {
	Housing []housing.Listing `json:"housing"`
	Places  []places.Place    `json:"places"`
	RAG     []rag.Fragment    `json:"rag"`
}

type Reply struct {
	Text      string          `json:"response"`
	Analysis  intent.Analysis `json:"analysis"`
	APIData   APIData         `json:"api_data"`
	Fragments []Fragment      `json:"fragments"`
}

type Classifier interface {
	Classify(ctx context.Context, message string) (intent.Analysis, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) []rag.Fragment
}

type HousingSearcher interface {
	Search(ctx context.Context, params housing.SearchParams) ([]housing.Listing, error)
}

type PlacesSearcher interface {
	Search(ctx context.Context, params places.SearchParams) ([]places.Place, error)
}

type Options struct {
	ChatModel       string
	BranchTimeout   time.Duration
	DefaultLocation string
	CampusLocation  string
	TopK            int
}

type Advisor struct {
	classifier Classifier
	retriever  Retriever
	housing    HousingSearcher
	places     PlacesSearcher
	llm        ai.ChatClient
	opts       Options
	logger     *log.Logger
}

func New(
	classifier Classifier,
	retriever Retriever,
	housingSearcher HousingSearcher,
	placesSearcher PlacesSearcher,
	llm ai.ChatClient,
	opts Options,
	logger *log.Logger,
) *Advisor {
	if opts.BranchTimeout <= 0 {
		opts.BranchTimeout = 20 * time.Second
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Advisor{
		classifier: classifier,
		retriever:  retriever,
		housing:    housingSearcher,
		places:     placesSearcher,
		llm:        llm,
		opts:       opts,
		logger:     logger,
	}
}

// Process answers one user message. A failed classification degrades to the
// intent-less conversational path; per-branch retrieval failures become
// failure markers; only a failed composition surfaces as an error.
func (a *Advisor) Process(ctx context.Context, message string, history []ai.ChatMessage) (*Reply, error) {
	analysis, err := a.classifier.Classify(ctx, message)
	if err != nil {
		a.logger.Printf("advisor: classification failed, answering without retrieval: %v", err)
		analysis = intent.Analysis{}
	}

	fragments := a.fanOut(ctx, message, analysis)
	return a.compose(ctx, message, history, analysis, fragments)
}

// fanOut runs one goroutine per recognized intent. Branches are independent
// and each is bounded by its own timeout, so one slow or failing upstream
// never blocks the others.
func (a *Advisor) fanOut(ctx context.Context, message string, analysis intent.Analysis) []Fragment {
	type branch func(context.Context) Fragment

	var branches []branch
	if analysis.Has(intent.HousingSearch) {
		params := analysis.Parameters.Housing
		branches = append(branches, func(ctx context.Context) Fragment {
			return a.searchHousing(ctx, params)
		})
	}
	if analysis.Has(intent.LocationInfo) {
		params := analysis.Parameters.Location
		branches = append(branches, func(ctx context.Context) Fragment {
			return a.searchPlaces(ctx, params)
		})
	}
	if analysis.Has(intent.StudentInfo) {
		params := analysis.Parameters.StudentInfo
		branches = append(branches, func(ctx context.Context) Fragment {
			return a.retrieveDocuments(ctx, message, params)
		})
	}
	if len(branches) == 0 {
		return nil
	}

	results := make([]Fragment, len(branches))
	var wg sync.WaitGroup
	for i, run := range branches {
		wg.Add(1)
		go func(i int, run branch) {
			defer wg.Done()
			branchCtx, cancel := context.WithTimeout(ctx, a.opts.BranchTimeout)
			defer cancel()
			results[i] = run(branchCtx)
		}(i, run)
	}
	wg.Wait()

	fragments := make([]Fragment, 0, len(results))
	for _, f := range results {
		if !f.empty() {
			fragments = append(fragments, f)
		}
	}
	return fragments
}

func (a *Advisor) searchHousing(ctx context.Context, params intent.HousingParams) Fragment {
	search := housing.SearchParams{
		Location:     params.Location,
		PropertyType: params.PropertyType,
		Bedrooms:     params.Bedrooms,
		Amenities:    params.Amenities,
		RadiusMiles:  params.RadiusMiles,
	}
	if search.Location == "" {
		search.Location = a.opts.DefaultLocation
	}
	if search.PropertyType == "" {
		search.PropertyType = defaultPropertyType
	}
	if search.RadiusMiles <= 0 {
		search.RadiusMiles = defaultRadiusMiles
	}
	if len(params.PriceRange) == 2 {
		search.MinPrice = params.PriceRange[0]
		search.MaxPrice = params.PriceRange[1]
	} else {
		search.MinPrice = 0
		search.MaxPrice = defaultMaxPrice
	}

	listings, err := a.housing.Search(ctx, search)
	if err != nil {
		a.logger.Printf("advisor: housing search failed: %v", err)
		return Fragment{
			Kind:   FragmentHousing,
			Failed: true,
			Text:   "The housing search could not be completed right now, so no current listings are included.",
		}
	}
	if len(listings) == 0 {
		return Fragment{}
	}
	return Fragment{
		Kind:     FragmentHousing,
		Text:     formatListings(listings),
		Listings: listings,
	}
}

func (a *Advisor) searchPlaces(ctx context.Context, params intent.LocationParams) Fragment {
	search := places.SearchParams{
		SearchType:   params.SearchType,
		Location:     params.Location,
		RadiusMeters: params.RadiusMeters,
		Keywords:     params.Keywords,
		OpenNow:      params.OpenNow,
	}
	if search.SearchType == "" {
		search.SearchType = defaultSearchType
	}
	if search.Location == "" {
		search.Location = a.opts.CampusLocation
	}
	if search.RadiusMeters <= 0 {
		search.RadiusMeters = defaultRadiusMeters
	}

	found, err := a.places.Search(ctx, search)
	if err != nil {
		a.logger.Printf("advisor: places search failed: %v", err)
		return Fragment{
			Kind:   FragmentPlaces,
			Failed: true,
			Text:   "The local place search could not be completed right now, so no nearby places are included.",
		}
	}
	if len(found) == 0 {
		return Fragment{}
	}
	return Fragment{
		Kind:   FragmentPlaces,
		Text:   formatPlaces(found),
		Places: found,
	}
}

// retrieveDocuments augments the query with the extracted topic keywords
// first; an empty result gets one retry with the raw message before the
// branch gives up.
func (a *Advisor) retrieveDocuments(ctx context.Context, message string, params intent.StudentInfoParams) Fragment {
	augmented := strings.TrimSpace(strings.Join([]string{message, params.Topic, params.Subtopic}, " "))
	docs := a.retriever.Retrieve(ctx, augmented, a.opts.TopK)
	if len(docs) == 0 && augmented != message {
		docs = a.retriever.Retrieve(ctx, message, a.opts.TopK)
	}
	if len(docs) == 0 {
		return Fragment{}
	}
	return Fragment{
		Kind:      FragmentDocuments,
		Text:      formatDocuments(docs),
		Documents: docs,
	}
}
