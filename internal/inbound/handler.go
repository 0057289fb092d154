// Package inbound answers delivered SMS replies: record the question,
// generate an answer from the conversation so far, send it, record it.
package inbound

import (
	"context"
	"fmt"

	"github.com/LeventeLantos/scripture-messaging/internal/conversation"
	"github.com/LeventeLantos/scripture-messaging/internal/model"
)

// Message is one inbound SMS event from the webhook boundary.
type Message struct {
	PhoneNumber        string
	Text               string
	TransportMessageID string
}

type AnswerGenerator interface {
	Answer(ctx context.Context, dialogue []conversation.Turn, question, doctrine string) (string, error)
}

type Transport interface {
	Send(ctx context.Context, recipient, text string) (string, error)
}

type ConversationLog interface {
	Record(ctx context.Context, phoneNumber string, direction model.Direction, text, transportMessageID string) (model.Message, error)
	DialogueContext(ctx context.Context, phoneNumber string, maxTurns int) ([]conversation.Turn, error)
}

// maxDialogueTurns bounds the context handed to the answer generator,
// matching the last three exchanges.
const maxDialogueTurns = 6

type Handler struct {
	log       ConversationLog
	answers   AnswerGenerator
	transport Transport
	doctrine  string
}

func NewHandler(log ConversationLog, answers AnswerGenerator, transport Transport, doctrine string) *Handler {
	return &Handler{
		log:       log,
		answers:   answers,
		transport: transport,
		doctrine:  doctrine,
	}
}

// Handle processes one inbound message synchronously and returns the
// answer that was sent. The inbound message is recorded before any
// collaborator call, so a failed answer still leaves the question in the
// history; the sender may simply re-send.
func (h *Handler) Handle(ctx context.Context, msg Message) (string, error) {
	if msg.PhoneNumber == "" {
		return "", fmt.Errorf("inbound: missing phone number")
	}

	if _, err := h.log.Record(ctx, msg.PhoneNumber, model.Inbound, msg.Text, msg.TransportMessageID); err != nil {
		return "", err
	}

	// Context includes the message just recorded; the generator receives
	// the question separately, so drop it from the tail.
	dialogue, err := h.log.DialogueContext(ctx, msg.PhoneNumber, maxDialogueTurns+1)
	if err != nil {
		return "", err
	}
	if n := len(dialogue); n > 0 && dialogue[n-1].Role == conversation.RoleUser && dialogue[n-1].Text == msg.Text {
		dialogue = dialogue[:n-1]
	}

	answer, err := h.answers.Answer(ctx, dialogue, msg.Text, h.doctrine)
	if err != nil {
		return "", err
	}

	transportID, err := h.transport.Send(ctx, msg.PhoneNumber, answer)
	if err != nil {
		return "", err
	}

	if _, err := h.log.Record(ctx, msg.PhoneNumber, model.Outbound, answer, transportID); err != nil {
		return "", fmt.Errorf("inbound: answer sent but not recorded: %w", err)
	}
	return answer, nil
}
