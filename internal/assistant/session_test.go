package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/comigor/ecofarmcast-go/internal/gateway"
	"github.com/comigor/ecofarmcast-go/internal/history"
	"github.com/comigor/ecofarmcast-go/internal/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockGenerator struct {
	GenerateFunc func(ctx context.Context, prompt string, opts gateway.Options) (gateway.Reply, error)

	mu      sync.Mutex
	prompts []string
	opts    []gateway.Options
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string, opts gateway.Options) (gateway.Reply, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.opts = append(m.opts, opts)
	m.mu.Unlock()
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, opts)
	}
	return gateway.Reply{Text: "ok"}, nil
}

func (m *mockGenerator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *mockGenerator) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prompts[len(m.prompts)-1]
}

func echo(_ context.Context, prompt string, _ gateway.Options) (gateway.Reply, error) {
	i := strings.LastIndex(prompt, "User: ")
	return gateway.Reply{Text: "re: " + prompt[i+len("User: "):]}, nil
}

func TestSend_Success(t *testing.T) {
	gen := &mockGenerator{GenerateFunc: func(context.Context, string, gateway.Options) (gateway.Reply, error) {
		return gateway.Reply{Text: "Wheat looks healthy.", Suggestions: []string{"Check nitrogen"}}, nil
	}}
	s := NewSession("s1", gen, Options{})
	s.SetPageContext("crops", json.RawMessage(`{"result":{"primaryCrop":"Wheat"}}`))

	m := s.Send(context.Background(), "  how is my crop?  ", gateway.Options{Temperature: 0.2})
	require.False(t, m.IsUser)
	require.False(t, m.IsError)
	require.Equal(t, "Wheat looks healthy.", m.Text)
	require.Equal(t, []string{"Check nitrogen"}, m.Suggestions)

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	require.True(t, msgs[0].IsUser)
	require.Equal(t, "how is my crop?", msgs[0].Text)
	require.Equal(t, m, msgs[1])

	prompt := gen.lastPrompt()
	require.True(t, strings.HasPrefix(prompt, s.Prompt()))
	require.Contains(t, prompt, "Primary Crop: Wheat")
	require.True(t, strings.HasSuffix(prompt, "User: how is my crop?"))
	require.NotContains(t, prompt, "Conversation so far:")
	require.Equal(t, float32(0.2), gen.opts[0].Temperature)
	require.Equal(t, StateIdle, s.Status())
}

func TestSend_FallsBackToPageSuggestions(t *testing.T) {
	s := NewSession("s1", &mockGenerator{}, Options{})
	s.SetPageContext("energy", nil)

	m := s.Send(context.Background(), "usage?", gateway.Options{})
	require.Equal(t, s.Suggestions(), m.Suggestions)
	require.Contains(t, m.Suggestions, "Energy usage")
}

func TestSend_GatewayFailureYieldsOneErrorMessage(t *testing.T) {
	gen := &mockGenerator{GenerateFunc: func(context.Context, string, gateway.Options) (gateway.Reply, error) {
		return gateway.Reply{}, errors.New("dial tcp: connection refused")
	}}
	s := NewSession("s1", gen, Options{})
	s.SetPageContext("carbon", json.RawMessage(`{"status":"Done"}`))

	m := s.Send(context.Background(), "emissions?", gateway.Options{})
	require.True(t, m.IsError)
	require.False(t, m.IsUser)
	require.Equal(t, APIErrorText, m.Text)

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	require.True(t, msgs[0].IsUser)

	var errorsSeen int
	for _, msg := range msgs {
		if msg.IsError {
			errorsSeen++
			require.Equal(t, "assistant", msg.Role())
		}
	}
	require.Equal(t, 1, errorsSeen)
	require.Equal(t, StateIdle, s.Status())
}

func TestSend_BlankInput(t *testing.T) {
	gen := &mockGenerator{}
	s := NewSession("s1", gen, Options{})

	m := s.Send(context.Background(), " \t\n", gateway.Options{})
	require.True(t, m.IsError)
	require.Equal(t, InvalidInputText, m.Text)
	require.Len(t, s.Messages(), 1)
	require.Zero(t, gen.calls())
}

func TestSend_ReplaysEarlierTurns(t *testing.T) {
	gen := &mockGenerator{GenerateFunc: echo}
	s := NewSession("s1", gen, Options{RetainContext: 2})

	s.Send(context.Background(), "first", gateway.Options{})
	s.Send(context.Background(), "second", gateway.Options{})

	s.Send(context.Background(), "third", gateway.Options{})

	// no page set: the prompt starts with the replayed turns
	require.Equal(t, "Conversation so far:\nUser: second\nAssistant: re: second\n\nUser: third", gen.lastPrompt())
}

func TestSend_TranscriptCapped(t *testing.T) {
	s := NewSession("s1", &mockGenerator{GenerateFunc: echo}, Options{MaxHistory: 4})
	for i := range 5 {
		s.Send(context.Background(), fmt.Sprintf("q%d", i), gateway.Options{})
	}

	msgs := s.Messages()
	require.Len(t, msgs, 4)
	require.Equal(t, "q3", msgs[0].Text)
	require.Equal(t, "re: q4", msgs[3].Text)
}

func TestSend_ConcurrentSendsDoNotInterleave(t *testing.T) {
	s := NewSession("s1", &mockGenerator{GenerateFunc: func(ctx context.Context, p string, o gateway.Options) (gateway.Reply, error) {
		time.Sleep(time.Millisecond)
		return echo(ctx, p, o)
	}}, Options{MaxHistory: 100})

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Send(context.Background(), fmt.Sprintf("q%d", i), gateway.Options{})
		}()
	}
	wg.Wait()

	msgs := s.Messages()
	require.Len(t, msgs, 40)
	for i := 0; i < len(msgs); i += 2 {
		require.True(t, msgs[i].IsUser)
		require.False(t, msgs[i+1].IsUser)
		require.Equal(t, "re: "+msgs[i].Text, msgs[i+1].Text)
	}
}

func TestStatus_GeneratingWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	s := NewSession("s1", &mockGenerator{GenerateFunc: func(context.Context, string, gateway.Options) (gateway.Reply, error) {
		<-release
		return gateway.Reply{Text: "done"}, nil
	}}, Options{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Send(context.Background(), "slow question", gateway.Options{})
	}()

	require.Eventually(t, func() bool { return s.Status() == StateGenerating }, time.Second, time.Millisecond)
	close(release)
	<-done
	require.Equal(t, StateIdle, s.Status())
}

func TestClear(t *testing.T) {
	s := NewSession("s1", &mockGenerator{}, Options{})
	for range 7 {
		s.Send(context.Background(), "hello", gateway.Options{})
	}
	require.Len(t, s.Messages(), 10)

	s.Clear()
	require.Empty(t, s.Messages())
	s.Clear()
	require.Empty(t, s.Messages())
}

func TestOpen(t *testing.T) {
	gen := &mockGenerator{GenerateFunc: func(context.Context, string, gateway.Options) (gateway.Reply, error) {
		return gateway.Reply{Text: "Here is your overview."}, nil
	}}
	s := NewSession("s1", gen, Options{})

	m := s.Open(context.Background(), "crops", json.RawMessage(`{"result":{"primaryCrop":"Rice"}}`))
	require.NotNil(t, m)
	require.Equal(t, "Here is your overview.", m.Text)
	require.Equal(t, float32(overviewTemperature), gen.opts[0].Temperature)
	require.True(t, strings.HasSuffix(gen.lastPrompt(), OverviewRequest))
	require.Contains(t, gen.lastPrompt(), "Primary Crop: Rice")
	require.Len(t, s.Messages(), 1)

	// transcript not empty: switching pages does not call the model again
	require.Nil(t, s.Open(context.Background(), "energy", nil))
	require.Equal(t, 1, gen.calls())
	require.Equal(t, "energy", s.Context().PageName)
}

func TestOpen_UnknownPage(t *testing.T) {
	gen := &mockGenerator{}
	s := NewSession("s1", gen, Options{})

	m := s.Open(context.Background(), "weather", nil)
	require.NotNil(t, m)
	require.True(t, m.IsError)
	require.Equal(t, ContextMissingText, m.Text)
	require.Zero(t, gen.calls())
}

func TestSession_ArchivesEveryTurn(t *testing.T) {
	archive := history.Open("")
	gen := &mockGenerator{GenerateFunc: func(context.Context, string, gateway.Options) (gateway.Reply, error) {
		return gateway.Reply{}, context.DeadlineExceeded
	}}
	s := NewSession("s1", gen, Options{Archive: archive, MaxHistory: 1})

	s.Send(context.Background(), "hi", gateway.Options{})
	require.Len(t, s.Messages(), 1)

	got := archive.List("s1")
	require.Len(t, got, 2)
	require.Equal(t, "user", got[0].Role)
	require.Equal(t, "assistant", got[1].Role)
	require.True(t, got[1].IsError)
}

func TestSession_InvalidTransitionIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })

	s := NewSession("s1", &mockGenerator{}, Options{})
	s.fire(context.Background(), triggerReplied)

	require.Equal(t, StateIdle, s.Status())
	require.Contains(t, buf.String(), "session state transition failed")
	require.Contains(t, buf.String(), "Replied")
}
