// Package feedback writes accepted generated answers back to the FAQ store.
//
// The writer never touches the semantic cache. Callers rebuild the cache
// after a successful write before the new answer can be served from it.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pario-ai/faqbot/pkg/models"
	"github.com/pario-ai/faqbot/pkg/store"
)

// ErrEmpty is returned for a blank question or answer.
var ErrEmpty = errors.New("feedback requires a question and an answer")

// Writer appends or replaces FAQ records. It is safe for concurrent use.
type Writer struct {
	store  store.Store
	mu     sync.Mutex
	logger *slog.Logger
}

// New creates a Writer over s. A nil logger uses slog.Default().
func New(s store.Store, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: s, logger: logger}
}

// Append adds a new record after all existing ones.
func (w *Writer) Append(ctx context.Context, question, answer string) (models.WriteOutcome, error) {
	if err := checkInput(question, answer); err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.store.Append(ctx, models.FAQRecord{Question: question, Answer: answer}); err != nil {
		return "", fmt.Errorf("feedback append: %w", err)
	}
	w.logger.Info("faq record appended", "question", question)
	return models.OutcomeAppended, nil
}

// Replace overwrites the answer of the last record whose question equals
// question exactly, or appends when there is none.
func (w *Writer) Replace(ctx context.Context, question, answer string) (models.WriteOutcome, error) {
	if err := checkInput(question, answer); err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	replaced, err := w.store.Replace(ctx, question, answer)
	if err != nil {
		return "", fmt.Errorf("feedback replace: %w", err)
	}
	if !replaced {
		w.logger.Info("no record to replace, appended", "question", question)
		return models.OutcomeAppended, nil
	}
	w.logger.Info("faq record replaced", "question", question)
	return models.OutcomeReplaced, nil
}

func checkInput(question, answer string) error {
	if strings.TrimSpace(question) == "" || strings.TrimSpace(answer) == "" {
		return ErrEmpty
	}
	return nil
}
