package ai

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider opens chat sessions on the Gemini API
type GeminiProvider struct {
	client *genai.Client
}

// GeminiSession is a genai chat seeded with one persona instruction
type GeminiSession struct {
	chat *genai.Chat
}

var errEmptyResponse = errors.New("model returned no content")

// NewGeminiProvider creates a provider for the given API key
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	return &GeminiProvider{client: client}, nil
}

// NewChatSession implements Provider
func (p *GeminiProvider) NewChatSession(ctx context.Context, model string, systemInstruction string) (ChatSession, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	}

	chat, err := p.client.Chats.Create(ctx, model, config, []*genai.Content{})
	if err != nil {
		return nil, err
	}

	return &GeminiSession{chat: chat}, nil
}

// SendMessage implements ChatSession
func (s *GeminiSession) SendMessage(ctx context.Context, text string) (string, error) {
	res, err := s.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return "", err
	}

	// blocked or filtered prompts come back without candidates
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return "", errEmptyResponse
	}

	return res.Text(), nil
}
