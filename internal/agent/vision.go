package agent

import (
	"context"

	"github.com/soyeahso/cupid/internal/domain"
	"github.com/soyeahso/cupid/internal/llm"
	"github.com/soyeahso/cupid/internal/logging"
	"github.com/soyeahso/cupid/internal/media"
)

// DefaultVisionMaxTokens caps a picture description.
const DefaultVisionMaxTokens = 300

// Visionaire describes one photo for the conversation. It holds no state
// between calls.
type Visionaire struct {
	client    llm.Client
	source    domain.MediaSource
	maxTokens int
	log       *logging.Logger
}

// NewVisionaire creates a Visionaire that downloads through source and asks
// client for the description.
func NewVisionaire(client llm.Client, source domain.MediaSource, maxTokens int, log *logging.Logger) *Visionaire {
	if maxTokens <= 0 {
		maxTokens = DefaultVisionMaxTokens
	}
	return &Visionaire{
		client:    client,
		source:    source,
		maxTokens: maxTokens,
		log:       log.Sub("visionaire"),
	}
}

// SelectRef picks the one reference worth describing from the sizes a
// channel offers: the third when there are more than two, else the second,
// else the first.
func SelectRef(refs []string) (string, bool) {
	switch {
	case len(refs) > 2:
		return refs[2], true
	case len(refs) > 1:
		return refs[1], true
	case len(refs) == 1:
		return refs[0], true
	}
	return "", false
}

// Describe downloads the selected photo and returns the backend's
// description as-is.
func (v *Visionaire) Describe(ctx context.Context, refs []string) (string, error) {
	ref, ok := SelectRef(refs)
	if !ok {
		return "", ErrNoMedia
	}

	uri, err := media.EncodeDataURI(ctx, v.source, ref)
	if err != nil {
		return "", err
	}

	resp, err := v.client.Complete(ctx, llm.CompletionRequest{
		Purpose:   llm.PurposeVision,
		System:    visionairePrompt,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: visionInstruction, Images: []string{uri}}},
		MaxTokens: v.maxTokens,
	})
	if err != nil {
		return "", &BackendInvocationError{Purpose: "vision", Err: err}
	}

	v.log.Debug().
		Str("ref", ref).
		Int("refs", len(refs)).
		Int("inputTokens", resp.Usage.InputTokens).
		Int("outputTokens", resp.Usage.OutputTokens).
		Dur("duration", resp.Duration).
		Msg("photo described")

	return resp.Content, nil
}
