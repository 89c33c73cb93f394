package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"internationally/internal/ai"
	"internationally/internal/housing"
	"internationally/internal/intent"
	"internationally/internal/places"
	"internationally/internal/rag"
)

// ErrComposition means the final generation call failed with context in
// hand. Unlike branch failures it is not locally recoverable and is shown
// to the user as an error rather than degraded content.
var ErrComposition = errors.New("response composition failed")

const composerPrompt = `You are InternationAlly, an AI advisor helping international students settle into their new city.
Use the following information to provide a helpful, natural response that combines background knowledge with real-time data.
Be empathetic, supportive, and concrete: when mentioning properties or places, reference specific details but keep a conversational tone.

%s

Important: listings and places are current results - encourage the user to check the provided links for up-to-date information.
If any search could not be completed or only partial data is available, say so explicitly and suggest narrowing or retrying the search.`

const conversationPrompt = `You are InternationAlly, an AI advisor helping international students settle into their new city.
Answer from general knowledge, be empathetic and actionable, and keep a friendly conversational tone.`

const apologyText = "I'm sorry, I couldn't put together an answer for that right now. " +
	"Please try rephrasing your question, or ask me about housing, nearby places, or student topics like visas and work rules."

// compose merges the gathered fragments into one reply. With no fragments
// at all it answers conversationally; if that also fails the user gets a
// templated apology instead of an LLM call over empty context.
func (a *Advisor) compose(ctx context.Context, message string, history []ai.ChatMessage, analysis intent.Analysis, fragments []Fragment) (*Reply, error) {
	reply := &Reply{Analysis: analysis, Fragments: fragments}
	for _, f := range fragments {
		if f.Failed {
			continue
		}
		switch f.Kind {
		case FragmentHousing:
			reply.APIData.Housing = append(reply.APIData.Housing, f.Listings...)
		case FragmentPlaces:
			reply.APIData.Places = append(reply.APIData.Places, f.Places...)
		case FragmentDocuments:
			reply.APIData.RAG = append(reply.APIData.RAG, f.Documents...)
		}
	}

	if len(fragments) == 0 {
		text, err := a.converse(ctx, message, history)
		if err != nil {
			a.logger.Printf("advisor: conversational fallback failed: %v", err)
			reply.Text = apologyText
			return reply, nil
		}
		reply.Text = text
		return reply, nil
	}

	contextParts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if f.Text != "" {
			contextParts = append(contextParts, f.Text)
		}
	}

	messages := make([]ai.ChatMessage, 0, len(history)+2)
	messages = append(messages, ai.ChatMessage{
		Role:    ai.RoleSystem,
		Content: fmt.Sprintf(composerPrompt, strings.Join(contextParts, "\n\n")),
	})
	messages = append(messages, history...)
	messages = append(messages, ai.ChatMessage{Role: ai.RoleUser, Content: message})

	text, err := a.llm.Complete(ctx, a.opts.ChatModel, messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrComposition, err)
	}
	reply.Text = strings.TrimSpace(text)
	return reply, nil
}

func (a *Advisor) converse(ctx context.Context, message string, history []ai.ChatMessage) (string, error) {
	messages := make([]ai.ChatMessage, 0, len(history)+2)
	messages = append(messages, ai.ChatMessage{Role: ai.RoleSystem, Content: conversationPrompt})
	messages = append(messages, history...)
	messages = append(messages, ai.ChatMessage{Role: ai.RoleUser, Content: message})

	text, err := a.llm.Complete(ctx, a.opts.ChatModel, messages)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func formatListings(listings []housing.Listing) string {
	parts := []string{"Current listings found:"}
	for _, l := range listings {
		parts = append(parts, fmt.Sprintf(
			"- %s: %.0f bed, %.1f bath, $%s/month. More info: %s",
			l.Address, l.Bedrooms, l.Bathrooms, l.Price, l.DetailURL,
		))
	}
	return strings.Join(parts, "\n")
}

func formatPlaces(found []places.Place) string {
	parts := []string{"Nearby places found:"}
	for _, p := range found {
		parts = append(parts, fmt.Sprintf(
			"- %s (%.1f/5 from %d reviews), %s. Map: %s",
			p.Name, p.Rating, p.UserRatingsCount, p.Address, p.MapsURL,
		))
	}
	return strings.Join(parts, "\n")
}

func formatDocuments(docs []rag.Fragment) string {
	parts := []string{"Official information:"}
	for _, d := range docs {
		parts = append(parts, fmt.Sprintf("[%s](%s)\n%s", d.Title, d.SourceURL, d.Content))
	}
	return strings.Join(parts, "\n\n")
}
