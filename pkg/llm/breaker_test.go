package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepresearch/engine/pkg/llm"
)

type fakeProvider struct {
	generateErr error
	response    *llm.Response
	calls       int
}

func (f *fakeProvider) Generate(_ context.Context, _ llm.Request) (*llm.Response, error) {
	f.calls++
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return f.response, nil
}

func (f *fakeProvider) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}

func TestBreakerProvider_PassesThroughSuccess(t *testing.T) {
	fake := &fakeProvider{response: &llm.Response{Content: "hello"}}
	p := llm.NewBreakerProvider("test", fake, 0, nil)

	resp, err := p.Generate(context.Background(), llm.Request{})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, 1, fake.calls)
}

func TestBreakerProvider_TripsAfterConsecutiveFailures(t *testing.T) {
	fake := &fakeProvider{generateErr: errors.New("upstream down")}
	p := llm.NewBreakerProvider("test", fake, 0, nil)

	for i := 0; i < 5; i++ {
		_, err := p.Generate(context.Background(), llm.Request{})
		assert.Error(t, err)
	}

	callsBeforeTrip := fake.calls
	_, err := p.Generate(context.Background(), llm.Request{})
	assert.Error(t, err)
	// Once tripped, the breaker short-circuits without calling the inner provider.
	assert.Equal(t, callsBeforeTrip, fake.calls)
}
