package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyEvaluator struct {
	failures int
	calls    int
	eval     Evaluation
}

func (f *flakyEvaluator) Evaluate(context.Context, string, string) (*Evaluation, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("upstream 503")
	}
	eval := f.eval
	return &eval, nil
}

func (f *flakyEvaluator) Draft(context.Context, string, string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("upstream 503")
	}
	return "drafted reply", nil
}

type flakyMessenger struct {
	failures int
	calls    int
	sent     []string
}

func (f *flakyMessenger) Send(_ context.Context, _, body string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("carrier timeout")
	}
	f.sent = append(f.sent, body)
	return nil
}

func testConfig() Config {
	return Config{Attempts: 3, Timeout: time.Second, Interval: time.Millisecond}
}

func TestEvaluateSucceedsOnFinalAttempt(t *testing.T) {
	evaluator := &flakyEvaluator{failures: 2, eval: Evaluation{Score: 0.82, Reasoning: "good fit"}}
	g := New(evaluator, &flakyMessenger{}, NoopBookingSystem{}, testConfig())

	eval, err := g.Evaluate(context.Background(), "system", "prompt")
	require.NoError(t, err)
	assert.Equal(t, 0.82, eval.Score)
	assert.Equal(t, 3, evaluator.calls)
}

func TestEvaluateExhaustionIsUnavailable(t *testing.T) {
	evaluator := &flakyEvaluator{failures: 10}
	g := New(evaluator, &flakyMessenger{}, NoopBookingSystem{}, testConfig())

	_, err := g.Evaluate(context.Background(), "system", "prompt")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, evaluator.calls, "exactly three attempts, then give up")
}

func TestEvaluateRejectsOutOfRangeScore(t *testing.T) {
	evaluator := &flakyEvaluator{eval: Evaluation{Score: 7.5}}
	g := New(evaluator, &flakyMessenger{}, NoopBookingSystem{}, testConfig())

	_, err := g.Evaluate(context.Background(), "system", "prompt")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, evaluator.calls, "bad shape is retried like any other failure")
}

func TestSendRetries(t *testing.T) {
	messenger := &flakyMessenger{failures: 1}
	g := New(&flakyEvaluator{}, messenger, NoopBookingSystem{}, testConfig())

	err := g.Send(context.Background(), "+15550001111", "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, messenger.sent)
	assert.Equal(t, 2, messenger.calls)
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	evaluator := &flakyEvaluator{failures: 10}
	g := New(evaluator, &flakyMessenger{}, NoopBookingSystem{}, testConfig())

	_, err := g.Evaluate(ctx, "system", "prompt")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.LessOrEqual(t, evaluator.calls, 1)
}

func TestParseEvaluationStripsFences(t *testing.T) {
	raw := "```json\n{\"vibe_score\": 0.9, \"reasoning\": \"polite\", \"reply\": \"hi!\"}\n```"
	eval, err := parseEvaluation(raw)
	require.NoError(t, err)
	assert.Equal(t, 0.9, eval.Score)
	assert.Equal(t, "polite", eval.Reasoning)
	assert.Equal(t, "hi!", eval.Reply)

	_, err = parseEvaluation("sure, sounds good!")
	assert.Error(t, err)
}
