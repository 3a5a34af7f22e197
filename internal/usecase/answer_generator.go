package usecase

import (
	"context"
	"fmt"

	"scholarship-rag/internal/domain"
)

// DefaultHistoryWindow is the number of stored turns sent along with a question.
const DefaultHistoryWindow = 6

var answerInstruction = `You are a scholarship policy assistant for students.
Answer only from the CONTEXT provided in the user's message. Do not use outside knowledge and do not guess.
If the CONTEXT does not contain the answer, reply with exactly this sentence and nothing else:
"` + domain.RefusalSentence + `"
Otherwise answer clearly, and include eligibility criteria, deadlines, award amounts and application steps whenever the CONTEXT mentions them.`

// AnswerGenerator produces a grounded answer from assembled context.
type AnswerGenerator interface {
	Generate(ctx context.Context, contextText string, recent []domain.ConversationTurn, question string) (string, error)
}

type answerGenerator struct {
	llm           domain.ChatClient
	historyWindow int
}

// NewAnswerGenerator creates a generator that forwards at most historyWindow recent turns.
func NewAnswerGenerator(llm domain.ChatClient, historyWindow int) AnswerGenerator {
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &answerGenerator{llm: llm, historyWindow: historyWindow}
}

func (g *answerGenerator) Generate(ctx context.Context, contextText string, recent []domain.ConversationTurn, question string) (string, error) {
	resp, err := g.llm.Chat(ctx, BuildAnswerMessages(contextText, recent, question, g.historyWindow))
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return resp.Text, nil
}

// BuildAnswerMessages lays out the system instruction, the last window turns and the question.
func BuildAnswerMessages(contextText string, recent []domain.ConversationTurn, question string, window int) []domain.Message {
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}

	messages := make([]domain.Message, 0, len(recent)+2)
	messages = append(messages, domain.Message{Role: domain.RoleSystem, Content: answerInstruction})
	for _, turn := range recent {
		messages = append(messages, domain.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, domain.Message{
		Role:    domain.RoleUser,
		Content: "CONTEXT:\n" + contextText + "\n\nQUESTION:\n" + question,
	})
	return messages
}
