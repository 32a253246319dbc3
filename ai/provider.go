package ai

import (
	"context"
	"errors"
	"fmt"
)

// ChatSession is one long-lived conversational context seeded with a persona instruction.
// The session keeps its own history; callers only send the line to reply to.
type ChatSession interface {
	SendMessage(ctx context.Context, text string) (string, error)
}

// Provider opens persona sessions against a named model
type Provider interface {
	NewChatSession(ctx context.Context, model string, systemInstruction string) (ChatSession, error)
}

// BlockKind classifies errors that stop generation until configuration changes
type BlockKind string

const (
	BlockMissingAPIKey BlockKind = "missing_api_key"
	BlockModelInit     BlockKind = "model_init"
)

// ErrMissingAPIKey is returned when no credential for the generation service is configured
var ErrMissingAPIKey = errors.New("api key not configured")

// BlockedError is a fatal generation error surfaced as a persistent banner
type BlockedError struct {
	Kind    BlockKind
	Message string
	Err     error
}

func (e *BlockedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BlockedError) Unwrap() error {
	return e.Err
}

// MissingKeyError builds the banner error for an unset API key
func MissingKeyError() *BlockedError {
	return &BlockedError{
		Kind:    BlockMissingAPIKey,
		Message: "Google AI API 金鑰未設定。請設定 API_KEY 環境變數。",
		Err:     ErrMissingAPIKey,
	}
}

// ModelInitError builds the banner error for a model that could not be initialized
func ModelInitError(model string, err error) *BlockedError {
	return &BlockedError{
		Kind:    BlockModelInit,
		Message: fmt.Sprintf("初始化模型「%s」時發生錯誤。請確認模型名稱是否正確，以及您是否有權限使用。", model),
		Err:     err,
	}
}
