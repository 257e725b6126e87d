package generators_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ultrapay-backend/internal/generators"
)

type stubGenerator struct {
	artifact *generators.Artifact
	err      error
	block    bool
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (*generators.Artifact, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.artifact, s.err
}

func newDispatcher(timeout time.Duration) *generators.Dispatcher {
	return generators.NewDispatcher(timeout, zerolog.Nop())
}

func TestDispatcher_UnsupportedProvider(t *testing.T) {
	d := newDispatcher(time.Second)

	_, err := d.Generate(context.Background(), "a red fox", "dall-e")
	assert.ErrorIs(t, err, generators.ErrUnsupportedProvider)
	assert.False(t, d.Supports("dall-e"))
}

func TestDispatcher_Success(t *testing.T) {
	d := newDispatcher(time.Second)
	d.Register("stub", &stubGenerator{artifact: &generators.Artifact{Data: []byte("png"), MimeType: "image/png"}})

	artifact, err := d.Generate(context.Background(), "a red fox", "stub")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), artifact.Data)
	assert.Equal(t, "image/png", artifact.MimeType)
}

func TestDispatcher_EmptyArtifactIsUnavailable(t *testing.T) {
	d := newDispatcher(time.Second)
	d.Register("empty", &stubGenerator{artifact: &generators.Artifact{MimeType: "image/png"}})
	d.Register("nomime", &stubGenerator{artifact: &generators.Artifact{Data: []byte("x")}})

	for _, id := range []string{"empty", "nomime"} {
		_, err := d.Generate(context.Background(), "a red fox", id)
		var upstream *generators.UpstreamError
		require.ErrorAs(t, err, &upstream, id)
		assert.Equal(t, generators.KindUnavailable, upstream.Kind)
	}
}

func TestDispatcher_TimeoutIsUnavailable(t *testing.T) {
	d := newDispatcher(20 * time.Millisecond)
	d.Register("slow", &stubGenerator{block: true})

	_, err := d.Generate(context.Background(), "a red fox", "slow")
	var upstream *generators.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, generators.KindUnavailable, upstream.Kind)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatcher_RateLimitPassesThrough(t *testing.T) {
	d := newDispatcher(time.Second)
	d.Register("busy", &stubGenerator{err: generators.RateLimited("busy", 30*time.Second, errors.New("slow down"))})

	_, err := d.Generate(context.Background(), "a red fox", "busy")
	var upstream *generators.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, generators.KindRateLimited, upstream.Kind)
	assert.Equal(t, 30*time.Second, upstream.RetryAfter)
}

func TestDispatcher_PlainErrorIsUnavailable(t *testing.T) {
	d := newDispatcher(time.Second)
	d.Register("broken", &stubGenerator{err: errors.New("boom")})

	_, err := d.Generate(context.Background(), "a red fox", "broken")
	var upstream *generators.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, generators.KindUnavailable, upstream.Kind)
	assert.Equal(t, "broken", upstream.Provider)
}

func TestDefaultDispatcher_AllVariantsProduceMedia(t *testing.T) {
	d := generators.NewDefaultDispatcher(generators.NewHuggingFaceClient("", "", nil), generators.Options{}, time.Second, zerolog.Nop())

	cases := map[string]string{
		generators.ProviderNanoBanana: "image/png",
		generators.ProviderSD35:       "image/png",
		generators.ProviderMidjourney: "image/png",
		generators.ProviderVeo3:       "video/mp4",
		generators.ProviderRunway:     "video/mp4",
	}
	for id, mime := range cases {
		artifact, err := d.Generate(context.Background(), "a red fox in snow", id)
		require.NoError(t, err, id)
		assert.NotEmpty(t, artifact.Data, id)
		assert.Equal(t, mime, artifact.MimeType, id)
	}
}
