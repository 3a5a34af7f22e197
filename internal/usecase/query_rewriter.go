package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"scholarship-rag/internal/domain"
)

// DefaultMinRewriteRunes is the floor below which a rewrite is treated as degenerate.
const DefaultMinRewriteRunes = 8

const rewriteInstruction = `You rewrite questions that students ask about scholarship policies.
Turn the latest question into one complete, standalone, self-contained question.
Resolve pronouns and references such as "it", "that one" or "the other one" using the conversation so far.
Do not answer the question. Reply with the rewritten question only, on a single line.`

// QueryRewriter turns a possibly elliptical question into a standalone retrieval query.
type QueryRewriter interface {
	Rewrite(ctx context.Context, question string, history []domain.ConversationTurn) (string, error)
}

type queryRewriter struct {
	llm      domain.ChatClient
	minRunes int
	logger   *slog.Logger
}

// NewQueryRewriter creates a rewriter. A rewrite shorter than max(minRunes, len(question)/3)
// runes, or an empty one, is replaced by the original question.
func NewQueryRewriter(llm domain.ChatClient, minRunes int, logger *slog.Logger) QueryRewriter {
	if minRunes <= 0 {
		minRunes = DefaultMinRewriteRunes
	}
	return &queryRewriter{llm: llm, minRunes: minRunes, logger: logger}
}

func (r *queryRewriter) Rewrite(ctx context.Context, question string, history []domain.ConversationTurn) (string, error) {
	question = strings.TrimSpace(question)

	resp, err := r.llm.Chat(ctx, []domain.Message{
		{Role: domain.RoleSystem, Content: rewriteInstruction},
		{Role: domain.RoleUser, Content: buildRewritePrompt(question, history)},
	})
	if err != nil {
		return "", fmt.Errorf("rewrite query: %w", err)
	}

	rewritten := strings.TrimSpace(firstLine(resp.Text))
	threshold := max(r.minRunes, utf8.RuneCountInString(question)/3)
	if utf8.RuneCountInString(rewritten) < threshold {
		r.logger.WarnContext(ctx, "query_rewrite_fallback",
			slog.String("question", question),
			slog.String("rewrite", rewritten),
			slog.Int("threshold", threshold))
		return question, nil
	}
	return rewritten, nil
}

func buildRewritePrompt(question string, history []domain.ConversationTurn) string {
	if len(history) == 0 {
		return "Question: " + question
	}

	var sb strings.Builder
	sb.WriteString("Conversation so far:\n")
	for _, turn := range history {
		fmt.Fprintf(&sb, "%s: %s\n", turn.Role, turn.Content)
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	return sb.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
