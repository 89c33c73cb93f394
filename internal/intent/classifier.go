package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"internationally/internal/ai"
)

// The few-shot prompt pins the output schema with one worked example per
// intent. The model is asked for raw JSON only; fences still show up with
// some models and are stripped before parsing.
const classifierPrompt = `You are a query analysis system. Your ONLY task is to extract structured information from user queries and output it in the exact JSON format shown in the examples. Do not provide any additional information or explanations.

Example 1 Input: "Find me a furnished studio near campus under $1500"
{
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
}

Example 2 Input: "What Asian restaurants are open now within 10 minutes walk of UChicago?"
{
    "intents": ["location_info"],
    "parameters": {
        "housing": {},
        "location": {
            "search_type": "restaurant",
            "location": "University of Chicago",
            "radius_meters": 800,
            "keywords": ["Asian", "restaurant"],
            "open_now": true
        },
        "student_info": {}
    }
}

Example 3 Input: "How many hours can I work on campus with an F-1 visa?"
{
    "intents": ["student_info"],
    "parameters": {
        "housing": {},
        "location": {},
        "student_info": {
            "topic": "employment",
            "subtopic": "on_campus_work",
            "visa_type": "F-1"
        }
    }
}

Example 4 Input: "What documents do I need for OPT application?"
{
    "intents": ["student_info"],
    "parameters": {
        "housing": {},
        "location": {},
        "student_info": {
            "topic": "employment",
            "subtopic": "opt",
            "document_type": "application_requirements"
        }
    }
}

A query may carry more than one intent; list every one that applies and fill every matching parameter block. IMPORTANT: Your response must ONLY contain the JSON object, nothing else. No explanations, no additional text.`

var codeFencePattern = regexp.MustCompile("```json\\s*|\\s*```")

type Classifier struct {
	llm   ai.ChatClient
	model string
}

func NewClassifier(llm ai.ChatClient, model string) *Classifier {
	return &Classifier{llm: llm, model: model}
}

// Classify runs one constrained-output completion and parses the result.
// A malformed response is ErrParse, never silently defaulted: skipping all
// retrieval because of an unparsed classification must be a visible choice
// of the caller.
func (c *Classifier) Classify(ctx context.Context, message string) (Analysis, error) {
	raw, err := c.llm.Complete(ctx, c.model, []ai.ChatMessage{
		{Role: ai.RoleSystem, Content: classifierPrompt},
		{Role: ai.RoleUser, Content: "Parse this query into the exact JSON format shown above: " + message},
	})
	if err != nil {
		return Analysis{}, fmt.Errorf("classification request failed: %w", err)
	}

	return ParseAnalysis(raw)
}

// ParseAnalysis strips code-fence markup and decodes the classifier output.
func ParseAnalysis(raw string) (Analysis, error) {
	cleaned := strings.TrimSpace(codeFencePattern.ReplaceAllString(raw, ""))

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &probe); err != nil {
		return Analysis{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if _, ok := probe["intents"]; !ok {
		return Analysis{}, fmt.Errorf("%w: missing intents key", ErrParse)
	}
	if _, ok := probe["parameters"]; !ok {
		return Analysis{}, fmt.Errorf("%w: missing parameters key", ErrParse)
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return Analysis{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return analysis, nil
}
