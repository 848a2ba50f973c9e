package synth

import (
	"context"
	"errors"
	"log"
	"strings"

	"repowiki/internal/index"
	"repowiki/internal/retrieval"
)

// ContextUnavailable is the answer given when no evidence could be
// retrieved or the generation call failed.
const ContextUnavailable = "Sorry, the code context for this question is currently unavailable, so I cannot give a grounded answer. Please try again later."

const (
	chatTopKFile   = 5
	chatTopKSymbol = 5
	chatCodeChars  = 800
)

// Answer is a chat reply with the evidence it was grounded on.
type Answer struct {
	Text    string   `json:"answer"`
	UnitIDs []string `json:"references"`
	// Degraded is set when Text is the context-unavailable reply.
	Degraded bool `json:"degraded,omitempty"`
}

// ChatQuery prefixes question with the earlier turns so follow-up
// questions retrieve evidence for the whole conversation.
func ChatQuery(history []Turn, question string) string {
	var parts []string
	for _, t := range history {
		if q := strings.TrimSpace(t.Question); q != "" {
			parts = append(parts, q)
		}
		if a := strings.TrimSpace(t.Answer); a != "" {
			parts = append(parts, a)
		}
	}
	parts = append(parts, strings.TrimSpace(question))
	return strings.Join(parts, "\n")
}

// Chat answers question using history for retrieval. Collaborator failures
// produce the context-unavailable answer; only index corruption is
// returned as an error.
func (s *Synthesizer) Chat(ctx context.Context, history []Turn, question string) (Answer, error) {
	res, err := s.search.Search(ctx, ChatQuery(history, question), "", retrieval.Options{
		TopKFile:   chatTopKFile,
		TopKSymbol: chatTopKSymbol,
	})
	if err != nil {
		if errors.Is(err, index.ErrCorrupt) {
			return Answer{}, err
		}
		log.Printf("WARNING: chat retrieval failed: %v", err)
		return Answer{Text: ContextUnavailable, Degraded: true}, nil
	}

	ids := append(retrieval.IDs(res.Files), retrieval.IDs(res.Symbols)...)
	if len(ids) == 0 {
		return Answer{Text: ContextUnavailable, Degraded: true}, nil
	}

	text, err := s.gen.Generate(ctx, "", ChatPrompt(ChatContext(res, chatCodeChars), question))
	if err != nil || strings.TrimSpace(text) == "" {
		log.Printf("WARNING: chat generation failed: %v", err)
		return Answer{Text: ContextUnavailable, UnitIDs: ids, Degraded: true}, nil
	}
	return Answer{Text: strings.TrimSpace(text), UnitIDs: ids}, nil
}
