package core

import (
	"context"
	"fmt"
	"strings"
)

// Action is an audit outcome a user can apply to items.
type Action string

const (
	ActionFound    Action = "found"
	ActionNotFound Action = "not_found"
	ActionTransfer Action = "transfer"
	ActionDispose  Action = "dispose"
)

var actionAliases = map[string]Action{
	"found":           ActionFound,
	"markfound":       ActionFound,
	"not_found":       ActionNotFound,
	"notfound":        ActionNotFound,
	"marknotfound":    ActionNotFound,
	"transfer":        ActionTransfer,
	"requesttransfer": ActionTransfer,
	"dispose":         ActionDispose,
	"disposal":        ActionDispose,
	"requestdisposal": ActionDispose,
}

// ParseAction resolves an action name such as "found" or "requestTransfer".
func ParseAction(s string) (Action, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if a, ok := actionAliases[key]; ok {
		return a, nil
	}
	return "", &ActionError{Action: Action(s), Reason: ReasonUnknownAction}
}

// Target returns the status an action moves items to.
func (a Action) Target() Status {
	switch a {
	case ActionFound:
		return StatusFound
	case ActionNotFound:
		return StatusNotFound
	case ActionTransfer:
		return StatusTransferRequested
	case ActionDispose:
		return StatusDisposalRequested
	}
	return ""
}

// NeedsInput reports whether the action asks for a new responsible.
func (a Action) NeedsInput() bool {
	return a == ActionTransfer
}

// TextInput asks the user for a line of text. ok is false when the user
// cancelled; callers treat that the same as empty input.
type TextInput interface {
	RequestText(ctx context.Context, prompt string) (text string, ok bool)
}

// TextInputFunc adapts a function to TextInput.
type TextInputFunc func(ctx context.Context, prompt string) (string, bool)

func (f TextInputFunc) RequestText(ctx context.Context, prompt string) (string, bool) {
	return f(ctx, prompt)
}

// StaticInput answers every prompt with value. An empty value counts as
// cancelled.
func StaticInput(value string) TextInput {
	return TextInputFunc(func(context.Context, string) (string, bool) {
		return value, strings.TrimSpace(value) != ""
	})
}

// NoInput cancels every prompt.
var NoInput TextInput = TextInputFunc(func(context.Context, string) (string, bool) {
	return "", false
})

// TransferPrompt is the question asked before a transfer.
func TransferPrompt(n int) string {
	if n == 1 {
		return "Digite o nome do novo responsável:"
	}
	return fmt.Sprintf("Digite o nome do novo responsável para os %d itens:", n)
}

// EngineOptions configures the transition rules.
type EngineOptions struct {
	// AllowReprocessing lets an action overwrite a status that already left
	// Pending. When false such items are rejected with ReasonAlreadyProcessed.
	AllowReprocessing bool
}

// Engine applies actions to items in an ItemStore.
type Engine struct {
	store *ItemStore
	opts  EngineOptions
}

// NewEngine creates an engine over store.
func NewEngine(store *ItemStore, opts EngineOptions) *Engine {
	return &Engine{store: store, opts: opts}
}

// Apply runs action against every id as one unit: if any precondition
// fails, or a transfer prompt is cancelled, no item is mutated. Transfers ask
// input once and give every target the same responsible.
func (e *Engine) Apply(ctx context.Context, action Action, ids []string, input TextInput) ([]Item, error) {
	target := action.Target()
	if target == "" {
		return nil, &ActionError{Action: action, Reason: ReasonUnknownAction}
	}

	targets := normalizeIDs(ids)
	if len(targets) == 0 {
		return nil, &ActionError{Action: action, Reason: ReasonNoTargets}
	}

	for _, id := range targets {
		it, ok := e.store.Get(id)
		if !ok {
			return nil, &ActionError{Action: action, Reason: ReasonTargetMissing, ID: id}
		}
		if it.Processed() && !e.opts.AllowReprocessing {
			return nil, &ActionError{Action: action, Reason: ReasonAlreadyProcessed, ID: id, Status: it.Status}
		}
	}

	var responsible *string
	if action.NeedsInput() {
		if input == nil {
			input = NoInput
		}
		name, ok := input.RequestText(ctx, TransferPrompt(len(targets)))
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, &ActionError{Action: action, Reason: ReasonInputCancelled}
		}
		responsible = &name
	}

	updated := make([]Item, 0, len(targets))
	for _, id := range targets {
		it, err := e.store.UpsertStatus(id, target, responsible)
		if err != nil {
			return updated, fmt.Errorf("apply %s: %w", action, err)
		}
		updated = append(updated, it)
	}
	return updated, nil
}

// normalizeIDs trims ids and drops blanks and duplicates, keeping order.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
