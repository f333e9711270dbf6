package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github/itish2003/repair-agent/models"

	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"
)

// Placeholders used when a modality or query is absent from the request.
const (
	noQueryProvided = "No Query Provided"
	noImageProvided = "No Image Provided"
	noAudioProvided = "No Audio Provided"
	noVideoProvided = "No Video Provided"

	emptyModelResponse = "I'm sorry, I couldn't generate a response."
	noAIResponse       = "No response from AI."
	genericFailureText = "Something went wrong while processing your request. Please try again."
)

// ChatSession is one multi-turn exchange with the reasoning model.
// *genai.Chat satisfies it; tests script fakes.
type ChatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// SessionFactory opens a fresh reasoning session per request.
type SessionFactory interface {
	NewSession(ctx context.Context) (ChatSession, error)
}

// GeminiSessionFactory creates chat sessions configured with the repair
// agent's tools and system prompt.
type GeminiSessionFactory struct {
	client *genai.Client
	model  string
}

// NewGeminiSessionFactory wraps a Gemini client.
func NewGeminiSessionFactory(client *genai.Client, model string) *GeminiSessionFactory {
	return &GeminiSessionFactory{client: client, model: model}
}

// NewSession implements SessionFactory.
func (f *GeminiSessionFactory) NewSession(ctx context.Context) (ChatSession, error) {
	chat, err := f.client.Chats.Create(ctx, f.model, &genai.GenerateContentConfig{
		Tools:             AgentTools(),
		SystemInstruction: AgentSystemPrompt(),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("could not start new chat session: %w", err)
	}
	return chat, nil
}

// MatchPolicy vets a guide match the model accepted before the Match
// outcome is emitted. The topical-fit judgment itself stays with the model;
// the default policy only rejects structurally unusable metadata.
type MatchPolicy interface {
	Accept(query string, m models.MatchMetadata) bool
}

type defaultMatchPolicy struct{}

func (defaultMatchPolicy) Accept(_ string, m models.MatchMetadata) bool {
	return m.Filename != ""
}

// MediaDescriber is the modality-description capability the agent needs.
type MediaDescriber interface {
	DescribeImage(ctx context.Context, image []byte) string
	DescribeAudio(ctx context.Context, audio []byte) string
	DescribeVideo(ctx context.Context, video []byte) string
}

// AgentService runs the full request pipeline: modality description,
// bounded reasoning loop, match expansion or fallback generation, and
// history bookkeeping.
type AgentService interface {
	HandleRequest(ctx context.Context, req models.AgentRequest) (*models.AgentResponse, error)
}

type agentServiceImpl struct {
	sessions     SessionFactory
	matcher      Matcher
	history      HistoryStore
	expander     Expander
	describers   MediaDescriber
	gen          Generator
	finalModel   string
	policy       MatchPolicy
	maxSteps     int
	historyTurns int
}

// NewAgentService wires the orchestrator. A nil policy falls back to the
// default structural check.
func NewAgentService(sessions SessionFactory, matcher Matcher, history HistoryStore, expander Expander, describers MediaDescriber, gen Generator, finalModel string, policy MatchPolicy, maxSteps, historyTurns int) AgentService {
	if policy == nil {
		policy = defaultMatchPolicy{}
	}
	return &agentServiceImpl{
		sessions:     sessions,
		matcher:      matcher,
		history:      history,
		expander:     expander,
		describers:   describers,
		gen:          gen,
		finalModel:   finalModel,
		policy:       policy,
		maxSteps:     maxSteps,
		historyTurns: historyTurns,
	}
}

// agentInput is the normalized context the reasoning loop works over.
type agentInput struct {
	UserID    string
	Query     string
	ImageDesc string
	AudioDesc string
	VideoDesc string
}

// HandleRequest implements AgentService.
func (s *agentServiceImpl) HandleRequest(ctx context.Context, req models.AgentRequest) (*models.AgentResponse, error) {
	in := agentInput{
		UserID:    req.UserID,
		Query:     req.Query,
		ImageDesc: noImageProvided,
		AudioDesc: noAudioProvided,
		VideoDesc: noVideoProvided,
	}
	if in.Query == "" {
		in.Query = noQueryProvided
	}

	// The three describers are independent; run them concurrently and join
	// before the agent input is built. Each branch absorbs its own failure
	// into a displayable string, so the group never returns an error.
	g, gctx := errgroup.WithContext(ctx)
	if len(req.Image) > 0 {
		g.Go(func() error {
			in.ImageDesc = s.describers.DescribeImage(gctx, req.Image)
			return nil
		})
	}
	if len(req.Audio) > 0 {
		g.Go(func() error {
			in.AudioDesc = s.describers.DescribeAudio(gctx, req.Audio)
			return nil
		})
	}
	if len(req.Video) > 0 {
		g.Go(func() error {
			in.VideoDesc = s.describers.DescribeVideo(gctx, req.Video)
			return nil
		})
	}
	_ = g.Wait()

	log.Printf("AGENT: image description: %s", in.ImageDesc)
	log.Printf("AGENT: audio description: %s", in.AudioDesc)
	log.Printf("AGENT: video description: %s", in.VideoDesc)

	// The user's turn is recorded before the loop runs, regardless of
	// downstream success.
	if req.Query != "" {
		if err := s.history.Append(ctx, req.UserID, models.RoleHuman, req.Query); err != nil {
			log.Printf("AGENT WARN: could not append user turn for %s: %v", req.UserID, err)
		}
	}

	outcome, err := s.runAgentLoop(ctx, in)
	if err != nil {
		log.Printf("AGENT ERROR: reasoning loop failed for user %s: %v", req.UserID, err)
		s.appendAssistantTurn(ctx, req.UserID, genericFailureText)
		return nil, err
	}

	var finalText string
	switch outcome.Kind {
	case models.OutcomeMatch:
		details, derr := s.expander.Expand(outcome.Match.Filename)
		if derr != nil {
			log.Printf("AGENT WARN: could not expand guide %q, falling back to generation: %v", outcome.Match.Filename, derr)
			finalText = s.fallbackAnswer(ctx, in)
		} else {
			finalText = s.walkthrough(ctx, details)
		}
	default:
		finalText = CleanText(outcome.Text)
		if finalText == "" {
			finalText = noAIResponse
		}
	}

	s.appendAssistantTurn(ctx, req.UserID, finalText)
	return &models.AgentResponse{Response: finalText}, nil
}

func (s *agentServiceImpl) appendAssistantTurn(ctx context.Context, userID, text string) {
	if err := s.history.Append(ctx, userID, models.RoleAssistant, text); err != nil {
		log.Printf("AGENT WARN: could not append assistant turn for %s: %v", userID, err)
	}
}

// runAgentLoop drives the bounded reasoning loop. It terminates with a
// tagged outcome: either an accepted guide match or generated text. The
// loop never emits both in one pass and never lets the same tool run twice.
func (s *agentServiceImpl) runAgentLoop(ctx context.Context, in agentInput) (models.AgentOutcome, error) {
	session, err := s.sessions.NewSession(ctx)
	if err != nil {
		return models.AgentOutcome{}, err
	}

	current := genai.Part{Text: fmt.Sprintf(
		"User ID: %s, Query: %s, Image Description: %s, Audio Description: %s, Video Description: %s",
		in.UserID, in.Query, in.ImageDesc, in.AudioDesc, in.VideoDesc,
	)}
	called := make(map[string]bool)

	for step := 0; step < s.maxSteps; step++ {
		result, err := session.SendMessage(ctx, current)
		if err != nil {
			return models.AgentOutcome{}, fmt.Errorf("agent model call failed: %w", err)
		}

		if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
			return models.AgentOutcome{Kind: models.OutcomeGenerated, Text: emptyModelResponse}, nil
		}

		part := result.Candidates[0].Content.Parts[0]
		if part.FunctionCall == nil {
			var text strings.Builder
			for _, p := range result.Candidates[0].Content.Parts {
				if p != nil && p.Text != "" {
					text.WriteString(p.Text)
				}
			}
			return models.AgentOutcome{Kind: models.OutcomeGenerated, Text: text.String()}, nil
		}

		call := part.FunctionCall
		log.Printf("AGENT: wants to call function: %s with args: %v", call.Name, call.Args)

		if call.Name == "acceptGuideMatch" {
			meta := models.MatchMetadata{
				Filename: stringArg(call.Args, "filename"),
				Title:    stringArg(call.Args, "title"),
			}
			if s.policy.Accept(in.Query, meta) {
				return models.AgentOutcome{Kind: models.OutcomeMatch, Match: meta}, nil
			}
			current = functionResponsePart(call.Name, "Match rejected. Generate the troubleshooting steps yourself instead.")
			continue
		}

		if called[call.Name] {
			current = functionResponsePart(call.Name, fmt.Sprintf("Error: tool '%s' was already invoked in this reasoning pass.", call.Name))
			continue
		}
		called[call.Name] = true

		var toolResult string
		switch call.Name {
		case "findClosestMatch":
			query := stringArg(call.Args, "query")
			if query == "" {
				query = in.Query
			}
			toolResult = s.runFindClosestMatch(ctx, query)
		case "getChatHistory":
			userID := stringArg(call.Args, "user_id")
			if userID == "" {
				userID = in.UserID
			}
			toolResult = s.runGetChatHistory(ctx, userID)
		default:
			toolResult = fmt.Sprintf("Error: Unknown function '%s' requested.", call.Name)
		}
		current = functionResponsePart(call.Name, toolResult)
	}

	return models.AgentOutcome{}, fmt.Errorf("agent exceeded maximum reasoning steps (%d)", s.maxSteps)
}

func (s *agentServiceImpl) runFindClosestMatch(ctx context.Context, query string) string {
	result, err := s.matcher.Match(ctx, query)
	if err != nil {
		return fmt.Sprintf("Error retrieving documents: %v", err)
	}
	switch result.Status {
	case models.MatchNone:
		return "No matches found in the vector database."
	case models.MatchBelowThreshold:
		return "No match passed the similarity score threshold."
	default:
		jsonBytes, err := json.Marshal(result.Metadata)
		if err != nil {
			return "Error: Could not format the retrieved match."
		}
		return string(jsonBytes)
	}
}

func (s *agentServiceImpl) runGetChatHistory(ctx context.Context, userID string) string {
	turns, err := s.history.LastN(ctx, userID, s.historyTurns)
	if err != nil {
		return fmt.Sprintf("Error retrieving chat history: %v", err)
	}
	if len(turns) == 0 {
		return "No chat history found."
	}
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// walkthrough restructures an expanded guide record into a step-by-step
// answer in the assistant's voice.
func (s *agentServiceImpl) walkthrough(ctx context.Context, details models.GuideDetails) string {
	jsonBytes, err := json.Marshal(details)
	if err != nil {
		log.Printf("AGENT WARN: could not marshal guide details: %v", err)
		return couldNotDescribe
	}

	prompt := fmt.Sprintf(`From the following data, give me every step and any sort of title and description related to that step, and any image links related to that step too. Also, give me the embed code, and the tools required as well. Your response should be as if you're an AI Repair Agent.

%s`, string(jsonBytes))

	resp, err := s.gen.GenerateContent(ctx, s.finalModel, genai.Text(prompt), nil)
	if err != nil {
		log.Printf("AGENT WARN: walkthrough generation failed: %v", err)
		return couldNotDescribe
	}
	text := responseText(resp)
	if text == "" {
		return couldNotDescribe
	}
	return CleanText(text)
}

// fallbackAnswer synthesizes troubleshooting steps directly over the
// gathered context. Used when a matched record cannot be expanded.
func (s *agentServiceImpl) fallbackAnswer(ctx context.Context, in agentInput) string {
	prompt := fmt.Sprintf(`Generate structured, detailed, practical troubleshooting steps for the following problem.

Query: %s
Image Description: %s
Audio Description: %s
Video Description: %s`,
		in.Query, in.ImageDesc, in.AudioDesc, in.VideoDesc)

	resp, err := s.gen.GenerateContent(ctx, s.finalModel, genai.Text(prompt), nil)
	if err != nil {
		log.Printf("AGENT WARN: fallback generation failed: %v", err)
		return emptyModelResponse
	}
	text := responseText(resp)
	if text == "" {
		return noAIResponse
	}
	return CleanText(text)
}

func functionResponsePart(name, result string) genai.Part {
	return genai.Part{FunctionResponse: &genai.FunctionResponse{
		Name:     name,
		Response: map[string]interface{}{"result": result},
	}}
}

func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
