package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/soyeahso/cupid/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectRef(t *testing.T) {
	tests := []struct {
		refs []string
		want string
		ok   bool
	}{
		{nil, "", false},
		{[]string{"a"}, "a", true},
		{[]string{"a", "b"}, "b", true},
		{[]string{"a", "b", "c"}, "c", true},
		{[]string{"a", "b", "c", "d", "e"}, "c", true},
	}
	for _, tt := range tests {
		got, ok := SelectRef(tt.refs)
		assert.Equal(t, tt.want, got, "refs %v", tt.refs)
		assert.Equal(t, tt.ok, ok, "refs %v", tt.refs)
	}
}

func TestVisionaireDownloadsExactlyOneImage(t *testing.T) {
	for n := 1; n <= 4; n++ {
		src := &photoSource{dir: t.TempDir()}
		client := describer("a couple")
		v := NewVisionaire(client, src, 120, silentLog())

		refs := []string{"r0", "r1", "r2", "r3"}[:n]
		desc, err := v.Describe(context.Background(), refs)
		require.NoError(t, err)
		assert.Equal(t, "a couple", desc)
		assert.Len(t, src.served(), 1, "refs %d", n)

		reqs := client.Requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, 120, reqs[0].MaxTokens)
		assert.Len(t, reqs[0].Messages[0].Images, 1)
		assert.Contains(t, reqs[0].System, "Do not suggest anything")
	}
}

func TestVisionaireNoMedia(t *testing.T) {
	v := NewVisionaire(describer("x"), &photoSource{dir: t.TempDir()}, 0, silentLog())
	_, err := v.Describe(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoMedia)
}

func TestVisionaireDownloadFailure(t *testing.T) {
	client := describer("x")
	v := NewVisionaire(client, &photoSource{err: errors.New("404")}, 0, silentLog())

	_, err := v.Describe(context.Background(), []string{"a"})
	assert.True(t, IsMediaError(err))
	assert.Empty(t, client.Requests())
}

func TestVisionaireBackendFailure(t *testing.T) {
	client := &llm.MockClient{
		ProviderName: "vision",
		CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, errors.New("boom")
		},
	}
	v := NewVisionaire(client, &photoSource{dir: t.TempDir()}, 0, silentLog())

	_, err := v.Describe(context.Background(), []string{"a"})
	assert.True(t, IsBackendError(err))
}
