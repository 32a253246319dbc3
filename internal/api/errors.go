package api

import (
	stderrors "errors"

	"ai-character-chat-simulator/backend/internal/conversation"
	"ai-character-chat-simulator/backend/internal/service"
	"ai-character-chat-simulator/backend/internal/session"
	"ai-character-chat-simulator/backend/internal/setup"
	"ai-character-chat-simulator/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// translate maps domain errors onto API errors; unknown errors become 500s
func translate(err error) *errors.AppError {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	switch {
	case stderrors.Is(err, session.ErrInvalidFormat):
		return errors.NewBadRequestError("INVALID_FILE_FORMAT", err.Error()).Wrap(err)
	case stderrors.Is(err, session.ErrMalformed):
		return errors.NewBadRequestError("MALFORMED_FILE", err.Error()).Wrap(err)
	case stderrors.Is(err, setup.ErrIncomplete):
		return errors.NewBadRequestError("SETUP_INCOMPLETE", err.Error()).Wrap(err)
	case stderrors.Is(err, conversation.ErrInvalidSender):
		return errors.NewBadRequestError("INVALID_SENDER", err.Error()).Wrap(err)
	case stderrors.Is(err, service.ErrUnknownChoice):
		return errors.NewBadRequestError("UNKNOWN_CHOICE", err.Error()).Wrap(err)
	case stderrors.Is(err, conversation.ErrMessageNotFound):
		return errors.NewNotFoundError("MESSAGE_NOT_FOUND", err.Error()).Wrap(err)
	case stderrors.Is(err, service.ErrNoConversation):
		return errors.NewNotFoundError("NO_CONVERSATION", err.Error()).Wrap(err)
	case stderrors.Is(err, conversation.ErrBlocked):
		return errors.NewConflictError("GENERATION_BLOCKED", err.Error()).Wrap(err)
	case stderrors.Is(err, conversation.ErrEditing):
		return errors.NewConflictError("EDIT_IN_PROGRESS", err.Error()).Wrap(err)
	case stderrors.Is(err, conversation.ErrNotEditing):
		return errors.NewConflictError("NOT_EDITING", err.Error()).Wrap(err)
	case stderrors.Is(err, service.ErrConversationActive):
		return errors.NewConflictError("CONVERSATION_ACTIVE", err.Error()).Wrap(err)
	case stderrors.Is(err, service.ErrNoPendingUpload):
		return errors.NewConflictError("NO_PENDING_UPLOAD", err.Error()).Wrap(err)
	}
	return errors.FromError(err)
}

// fail records err for the error handler and stops the chain
func fail(c *gin.Context, err error) {
	c.Error(translate(err))
	c.Abort()
}

func badRequest(c *gin.Context, err error) {
	c.Error(errors.NewBadRequestError("INVALID_REQUEST", "Request body is invalid").
		WithDetails(err.Error()).
		Wrap(err))
	c.Abort()
}
