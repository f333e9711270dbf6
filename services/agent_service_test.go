package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"google.golang.org/genai"

	"github/itish2003/repair-agent/models"
)

// functionCallResponse builds a single-candidate response whose first part is
// a tool invocation.
func functionCallResponse(name string, args map[string]interface{}) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{{
					FunctionCall: &genai.FunctionCall{Name: name, Args: args},
				}},
			},
		}},
	}
}

// scriptedSession replays a fixed sequence of model turns and records every
// part it was sent.
type scriptedSession struct {
	turns    []*genai.GenerateContentResponse
	received []genai.Part
	idx      int
}

func (s *scriptedSession) SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	s.received = append(s.received, parts...)
	if s.idx >= len(s.turns) {
		return nil, errors.New("scripted session exhausted")
	}
	resp := s.turns[s.idx]
	s.idx++
	return resp, nil
}

type scriptedFactory struct {
	session *scriptedSession
}

func (f *scriptedFactory) NewSession(ctx context.Context) (ChatSession, error) {
	return f.session, nil
}

// fakeMatcher returns one canned match result.
type fakeMatcher struct {
	result models.MatchResult
	err    error
	query  string
}

func (m *fakeMatcher) Match(ctx context.Context, query string) (models.MatchResult, error) {
	m.query = query
	return m.result, m.err
}

// memoryHistory is an in-memory HistoryStore.
type memoryHistory struct {
	turns []models.ChatTurn
}

func (h *memoryHistory) Append(ctx context.Context, userID, role, text string) error {
	h.turns = append(h.turns, models.ChatTurn{UserID: userID, Role: role, Text: text})
	return nil
}

func (h *memoryHistory) LastN(ctx context.Context, userID string, n int) ([]models.ChatTurn, error) {
	var out []models.ChatTurn
	for _, t := range h.turns {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

// fakeExpander returns canned guide details.
type fakeExpander struct {
	details  models.GuideDetails
	err      error
	expanded string
}

func (e *fakeExpander) Expand(filename string) (models.GuideDetails, error) {
	e.expanded = filename
	return e.details, e.err
}

// fakeDescribers returns fixed descriptions per modality.
type fakeDescribers struct {
	image, audio, video string
}

func (d *fakeDescribers) DescribeImage(ctx context.Context, image []byte) string { return d.image }
func (d *fakeDescribers) DescribeAudio(ctx context.Context, audio []byte) string { return d.audio }
func (d *fakeDescribers) DescribeVideo(ctx context.Context, video []byte) string { return d.video }

type agentFixture struct {
	session    *scriptedSession
	matcher    *fakeMatcher
	history    *memoryHistory
	expander   *fakeExpander
	describers *fakeDescribers
	gen        *fakeGenerator
}

func newAgentFixture(turns ...*genai.GenerateContentResponse) *agentFixture {
	return &agentFixture{
		session:    &scriptedSession{turns: turns},
		matcher:    &fakeMatcher{},
		history:    &memoryHistory{},
		expander:   &fakeExpander{},
		describers: &fakeDescribers{},
		gen:        &fakeGenerator{},
	}
}

func (f *agentFixture) service() AgentService {
	return NewAgentService(
		&scriptedFactory{session: f.session},
		f.matcher, f.history, f.expander, f.describers,
		f.gen, "final-model", nil, 8, 5,
	)
}

func lastReceivedResult(t *testing.T, session *scriptedSession) string {
	t.Helper()
	require.NotEmpty(t, session.received)
	part := session.received[len(session.received)-1]
	require.NotNil(t, part.FunctionResponse)
	result, ok := part.FunctionResponse.Response["result"].(string)
	require.True(t, ok)
	return result
}

func TestHandleRequestAcceptedMatchProducesWalkthrough(t *testing.T) {
	f := newAgentFixture(
		functionCallResponse("findClosestMatch", map[string]interface{}{"query": "LG washer OE error"}),
		functionCallResponse("acceptGuideMatch", map[string]interface{}{
			"filename": "lg_wm3488hw_oe.json",
			"title":    "LG WM3488HW OE Error Repair",
		}),
	)
	f.matcher.result = models.MatchResult{
		Status: models.MatchFound,
		Metadata: map[string]interface{}{
			"filename": "lg_wm3488hw_oe.json",
			"title":    "LG WM3488HW OE Error Repair",
		},
		Distance: 0.2,
	}
	f.expander.details = models.GuideDetails{
		Title: "LG WM3488HW OE Error Repair",
		Steps: []interface{}{"Unplug the washer", "Clean the drain filter"},
	}
	f.gen.responses = []*genai.GenerateContentResponse{
		textResponse("Step 1: Unplug the washer. Step 2: Clean the drain filter."),
	}

	resp, err := f.service().HandleRequest(context.Background(), models.AgentRequest{
		UserID: "user-1",
		Query:  "My LG washer shows an OE error",
	})
	require.NoError(t, err)
	assert.Equal(t, "Step 1: Unplug the washer. Step 2: Clean the drain filter.", resp.Response)
	assert.Equal(t, "lg_wm3488hw_oe.json", f.expander.expanded)
	assert.Equal(t, "LG washer OE error", f.matcher.query)

	// Both turns were recorded: the user's query and the final answer.
	require.Len(t, f.history.turns, 2)
	assert.Equal(t, models.RoleHuman, f.history.turns[0].Role)
	assert.Equal(t, "My LG washer shows an OE error", f.history.turns[0].Text)
	assert.Equal(t, models.RoleAssistant, f.history.turns[1].Role)
	assert.Equal(t, resp.Response, f.history.turns[1].Text)
}

func TestHandleRequestGreetingAnswersWithoutTools(t *testing.T) {
	f := newAgentFixture(
		textResponse("Hello! What appliance can I help you repair today?"),
	)

	resp, err := f.service().HandleRequest(context.Background(), models.AgentRequest{
		UserID: "user-1",
		Query:  "Hi there",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello! What appliance can I help you repair today?", resp.Response)
	assert.Zero(t, f.gen.calls, "no walkthrough or fallback generation expected")
}

func TestHandleRequestBelowThresholdFeedsRejectionBack(t *testing.T) {
	f := newAgentFixture(
		functionCallResponse("findClosestMatch", map[string]interface{}{"query": "antique gramophone skips"}),
		textResponse("I could not find a matching guide, but try these steps: check the stylus."),
	)
	f.matcher.result = models.MatchResult{Status: models.MatchBelowThreshold, Distance: 0.8}

	resp, err := f.service().HandleRequest(context.Background(), models.AgentRequest{
		UserID: "user-1",
		Query:  "My antique gramophone skips",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Response, "check the stylus")
	assert.Equal(t, "No match passed the similarity score threshold.", lastReceivedResult(t, f.session))
}

func TestHandleRequestEmptyIndexFeedsNoMatchesBack(t *testing.T) {
	f := newAgentFixture(
		functionCallResponse("findClosestMatch", map[string]interface{}{"query": "smart fridge offline"}),
		textResponse("Here is some general troubleshooting for a smart fridge."),
	)
	f.matcher.result = models.MatchResult{Status: models.MatchNone}

	resp, err := f.service().HandleRequest(context.Background(), models.AgentRequest{
		UserID: "user-1",
		Query:  "My smart fridge is offline",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Response, "general troubleshooting")
	assert.Equal(t, "No matches found in the vector database.", lastReceivedResult(t, f.session))
}

func TestHandleRequestRepeatedToolCallIsRefused(t *testing.T) {
	f := newAgentFixture(
		functionCallResponse("getChatHistory", map[string]interface{}{"user_id": "user-1"}),
		functionCallResponse("getChatHistory", map[string]interface{}{"user_id": "user-1"}),
		textResponse("Based on our earlier conversation, tighten the hose clamp."),
	)

	resp, err := f.service().HandleRequest(context.Background(), models.AgentRequest{
		UserID: "user-1",
		Query:  "What was that step again?",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Response, "tighten the hose clamp")
	assert.Contains(t, lastReceivedResult(t, f.session), "already invoked")
}

func TestHandleRequestRejectedMatchFallsBackToGeneration(t *testing.T) {
	f := newAgentFixture(
		functionCallResponse("acceptGuideMatch", map[string]interface{}{"filename": "", "title": ""}),
		textResponse("No guide applies, but here is what to check first."),
	)

	resp, err := f.service().HandleRequest(context.Background(), models.AgentRequest{
		UserID: "user-1",
		Query:  "Strange noise from the attic fan",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Response, "what to check first")
	assert.Contains(t, lastReceivedResult(t, f.session), "Match rejected")
}

func TestHandleRequestUnexpandableMatchFallsBack(t *testing.T) {
	f := newAgentFixture(
		functionCallResponse("acceptGuideMatch", map[string]interface{}{
			"filename": "gone.json",
			"title":    "Deleted Guide",
		}),
	)
	f.expander.err = errors.New("failed to read guide record")
	f.gen.responses = []*genai.GenerateContentResponse{
		textResponse("1. Unplug the unit. 2. Inspect the seal."),
	}

	resp, err := f.service().HandleRequest(context.Background(), models.AgentRequest{
		UserID: "user-1",
		Query:  "Dishwasher leaks",
	})
	require.NoError(t, err)
	assert.Equal(t, "1. Unplug the unit. 2. Inspect the seal.", resp.Response)
	assert.Equal(t, 1, f.gen.calls)
}

func TestHandleRequestStepCapAborts(t *testing.T) {
	var turns []*genai.GenerateContentResponse
	for i := 0; i < 10; i++ {
		turns = append(turns, functionCallResponse("findClosestMatch", map[string]interface{}{
			"query": fmt.Sprintf("attempt %d", i),
		}))
	}
	f := newAgentFixture(turns...)
	f.matcher.result = models.MatchResult{Status: models.MatchNone}

	svc := NewAgentService(
		&scriptedFactory{session: f.session},
		f.matcher, f.history, f.expander, f.describers,
		f.gen, "final-model", nil, 3, 5,
	)

	_, err := svc.HandleRequest(context.Background(), models.AgentRequest{
		UserID: "user-1",
		Query:  "endless loop",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum reasoning steps")

	// The failure is still visible in the user's history.
	require.Len(t, f.history.turns, 2)
	assert.Equal(t, models.RoleAssistant, f.history.turns[1].Role)
	assert.Contains(t, f.history.turns[1].Text, "Something went wrong")
}

func TestHandleRequestEmptyQueryUsesPlaceholderAndSkipsHistory(t *testing.T) {
	f := newAgentFixture(
		textResponse("Please describe the appliance and the problem."),
	)

	resp, err := f.service().HandleRequest(context.Background(), models.AgentRequest{
		UserID: "user-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Response)

	// The initial model turn carries the placeholder query.
	require.NotEmpty(t, f.session.received)
	assert.Contains(t, f.session.received[0].Text, "Query: No Query Provided")
	assert.Contains(t, f.session.received[0].Text, "Image Description: No Image Provided")

	// Only the assistant turn lands in history; empty queries are not stored.
	require.Len(t, f.history.turns, 1)
	assert.Equal(t, models.RoleAssistant, f.history.turns[0].Role)
}

func TestHandleRequestRunsDescribersForAttachedMedia(t *testing.T) {
	f := newAgentFixture(
		textResponse("That looks like a drainage problem."),
	)
	f.describers.image = "An LG washer showing the OE code."
	f.describers.audio = "A grinding pump noise."

	_, err := f.service().HandleRequest(context.Background(), models.AgentRequest{
		UserID: "user-1",
		Query:  "What is wrong here?",
		Image:  []byte("jpeg"),
		Audio:  []byte("mp3"),
	})
	require.NoError(t, err)

	require.NotEmpty(t, f.session.received)
	first := f.session.received[0].Text
	assert.Contains(t, first, "Image Description: An LG washer showing the OE code.")
	assert.Contains(t, first, "Audio Description: A grinding pump noise.")
	assert.Contains(t, first, "Video Description: No Video Provided")
}

func TestHandleRequestEmptyModelTurnReturnsApology(t *testing.T) {
	f := newAgentFixture(&genai.GenerateContentResponse{})

	resp, err := f.service().HandleRequest(context.Background(), models.AgentRequest{
		UserID: "user-1",
		Query:  "hello?",
	})
	require.NoError(t, err)
	assert.Equal(t, "I'm sorry, I couldn't generate a response.", resp.Response)
}
