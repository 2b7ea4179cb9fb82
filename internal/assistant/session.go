// Package assistant ties a page context, a transcript and an AI gateway into
// a chat session.
package assistant

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/comigor/ecofarmcast-go/internal/gateway"
	"github.com/comigor/ecofarmcast-go/internal/history"
	"github.com/comigor/ecofarmcast-go/internal/logger"
	"github.com/comigor/ecofarmcast-go/internal/pagecontext"
	"github.com/comigor/ecofarmcast-go/internal/transcript"
)

// Texts of the synthetic assistant messages.
const (
	APIErrorText       = "I encountered an issue while processing your request. Please try again."
	ContextMissingText = "I'm missing some important context. Could you provide more details?"
	InvalidInputText   = "I couldn't understand that input. Could you rephrase it?"
)

// OverviewRequest is sent when a page is opened with an empty transcript.
const OverviewRequest = "Please provide an overview of the current analysis."

const overviewTemperature = 0.3

// DefaultRetainContext is the number of earlier turns replayed into a prompt.
const DefaultRetainContext = 5

// State is the lifecycle state of a session.
type State string

const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
)

type trigger string

const (
	triggerSend    trigger = "Send"
	triggerReplied trigger = "Replied"
	triggerFailed  trigger = "Failed"
)

// Options configures a session.
type Options struct {
	MaxHistory    int
	RetainContext int
	Pages         pagecontext.Pages
	Archive       *history.Store
}

// Session is one chat. All methods are safe for concurrent use; sends are
// serialized so turns land in call order.
type Session struct {
	id      string
	ctxs    *pagecontext.Store
	msgs    *transcript.Buffer
	gen     gateway.Generator
	archive *history.Store
	retain  int

	sendMu sync.Mutex
	fsm    *stateless.StateMachine
	now    func() time.Time
}

// NewSession creates an idle session with an empty context and transcript.
func NewSession(id string, gen gateway.Generator, opts Options) *Session {
	if opts.RetainContext <= 0 {
		opts.RetainContext = DefaultRetainContext
	}
	if opts.Pages == nil {
		opts.Pages = pagecontext.DefaultPages()
	}
	s := &Session{
		id:      id,
		ctxs:    pagecontext.NewStore(opts.Pages),
		msgs:    transcript.New(opts.MaxHistory),
		gen:     gen,
		archive: opts.Archive,
		retain:  opts.RetainContext,
		now:     time.Now,
	}

	fsm := stateless.NewStateMachine(StateIdle)
	fsm.Configure(StateIdle).
		Permit(triggerSend, StateGenerating)
	fsm.Configure(StateGenerating).
		OnEntry(func(_ context.Context, _ ...any) error {
			logger.L.Debug("session generating", "session", id)
			return nil
		}).
		Permit(triggerReplied, StateIdle).
		Permit(triggerFailed, StateIdle)
	s.fsm = fsm
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Status reports whether a generation is in flight.
func (s *Session) Status() State {
	return s.fsm.MustState().(State)
}

// SetPageContext replaces the page context.
func (s *Session) SetPageContext(name string, data json.RawMessage) {
	s.ctxs.SetPageContext(name, data)
	logger.L.Debug("page context set", "session", s.id, "page", name)
}

// Context returns the current page context.
func (s *Session) Context() pagecontext.Context { return s.ctxs.Context() }

// Prompt returns the composed prompt of the current page.
func (s *Session) Prompt() string { return s.ctxs.Prompt() }

// Pages returns the page names the session can attach to.
func (s *Session) Pages() []string { return s.ctxs.Pages() }

// Suggestions returns the chips of the current page.
func (s *Session) Suggestions() []string { return s.ctxs.Suggestions() }

// Messages returns the transcript, oldest first.
func (s *Session) Messages() []transcript.Message { return s.msgs.Messages() }

// Clear empties the transcript. The archive is left untouched.
func (s *Session) Clear() { s.msgs.Clear() }

// Open attaches the session to a page. When the transcript is empty the
// assistant is asked for an overview of the page. The returned message is
// nil when nothing was generated.
func (s *Session) Open(ctx context.Context, page string, data json.RawMessage) *transcript.Message {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.SetPageContext(page, data)
	if !s.ctxs.Known() {
		m := transcript.NewErrorMessage(ContextMissingText, s.now())
		s.append(m)
		return &m
	}
	if s.msgs.Len() > 0 {
		return nil
	}
	m := s.generate(ctx, s.ctxs.Prompt()+"\n\n"+OverviewRequest, gateway.Options{Temperature: overviewTemperature})
	return &m
}

// Send records the user's text, asks the model and records the answer. It
// never fails: problems are reported as an assistant message flagged as an
// error.
func (s *Session) Send(ctx context.Context, text string, opts gateway.Options) transcript.Message {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	text = strings.TrimSpace(text)
	if text == "" {
		m := transcript.NewErrorMessage(InvalidInputText, s.now())
		s.append(m)
		return m
	}

	earlier := s.msgs.Last(s.retain)
	s.append(transcript.NewUserMessage(text, s.now()))
	return s.generate(ctx, s.composePrompt(earlier, text), opts)
}

func (s *Session) fire(ctx context.Context, t trigger) {
	if err := s.fsm.FireCtx(ctx, t); err != nil {
		logger.L.Warn("session state transition failed", "session", s.id, "trigger", string(t), "error", err)
	}
}

// generate must be called with sendMu held.
func (s *Session) generate(ctx context.Context, prompt string, opts gateway.Options) transcript.Message {
	s.fire(ctx, triggerSend)

	reply, err := s.gen.Generate(ctx, prompt, opts)
	if err != nil {
		logger.L.Error("assistant generation failed", "session", s.id, "page", s.ctxs.Context().PageName, "error", err)
		s.fire(ctx, triggerFailed)
		m := transcript.NewErrorMessage(APIErrorText, s.now())
		s.append(m)
		return m
	}
	s.fire(ctx, triggerReplied)

	suggestions := reply.Suggestions
	if len(suggestions) == 0 {
		suggestions = s.ctxs.Suggestions()
	}
	m := transcript.NewAssistantMessage(reply.Text, suggestions, s.now())
	s.append(m)
	return m
}

func (s *Session) composePrompt(earlier []transcript.Message, text string) string {
	var b strings.Builder
	if p := s.ctxs.Prompt(); p != "" {
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	if len(earlier) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range earlier {
			role := "Assistant"
			if m.IsUser {
				role = "User"
			}
			b.WriteString(role + ": " + m.Text + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("User: " + text)
	return b.String()
}

func (s *Session) append(m transcript.Message) {
	if s.msgs.Append(m) {
		logger.L.Debug("transcript full; dropped oldest message", "session", s.id)
	}
	if s.archive != nil {
		s.archive.Save(history.FromTranscript(s.id, m))
	}
}
