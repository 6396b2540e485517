package application

import (
	"fmt"
	"strings"
	"time"

	"codex-gateway/internal/domain"
	"codex-gateway/internal/ports/input"
	"codex-gateway/internal/ports/output"

	"github.com/sirupsen/logrus"
)

const sandboxDangerFullAccess = "danger-full-access"

// Compile-time check to ensure RequestPlanner implements the input port
var _ input.RequestPlanner = (*RequestPlanner)(nil)

// RequestPlanner struct - Application service turning chat requests into executions
type RequestPlanner struct {
	models          input.ModelService
	ids             *domain.IDGenerator
	timeout         time.Duration
	allowFullAccess bool
	providerGuard   output.ProviderGuard
}

// NewRequestPlanner func - Creates new request planner. Every planned request
// gets timeout as its deadline; danger-full-access is refused unless
// allowFullAccess is set.
func NewRequestPlanner(models input.ModelService, timeout time.Duration, allowFullAccess bool) *RequestPlanner {
	return &RequestPlanner{
		models:          models,
		ids:             domain.NewIDGenerator("codex"),
		timeout:         timeout,
		allowFullAccess: allowFullAccess,
	}
}

// RequireLocalProvider makes every Plan check guard first, refusing requests
// while codex is configured for a remote model provider.
func (p *RequestPlanner) RequireLocalProvider(guard output.ProviderGuard) *RequestPlanner {
	p.providerGuard = guard
	return p
}

// Plan func - Use case: resolve the model, gate the sandbox and build the prompt
func (p *RequestPlanner) Plan(request domain.CompletionRequest) (domain.ExecutionRequest, error) {
	model, aliasEffort, err := p.models.ResolveModel(request.Model)
	if err != nil {
		return domain.ExecutionRequest{}, err
	}

	if request.Sandbox == sandboxDangerFullAccess && !p.allowFullAccess {
		logrus.WithField("model", request.Model).Warn("Refused danger-full-access request")
		return domain.ExecutionRequest{}, domain.ErrSandboxForbidden
	}

	if p.providerGuard != nil {
		if err := p.providerGuard.AssertLocalProvider(); err != nil {
			logrus.WithError(err).Warn("Refused request for a non-local model provider")
			return domain.ExecutionRequest{}, err
		}
	}

	if !hasTurn(request.Messages) {
		return domain.ExecutionRequest{}, fmt.Errorf("%w: at least one user or assistant message is required", domain.ErrInvalidRequest)
	}

	effort := request.ReasoningEffort
	if effort == "" {
		effort = aliasEffort
	}

	id := request.ID
	if id == "" {
		id = p.ids.Next()
	}

	options := domain.ExecutionOptions{
		Model:           model,
		Sandbox:         request.Sandbox,
		ReasoningEffort: effort,
		NetworkAccess:   request.NetworkAccess,
		HideReasoning:   request.HideReasoning,
	}
	return domain.NewExecutionRequest(id, BuildPrompt(request.Instructions, request.Messages), options, p.timeout), nil
}

func hasTurn(messages []domain.ChatMessage) bool {
	for _, m := range messages {
		if !m.Role.IsInstruction() && strings.TrimSpace(m.Content) != "" {
			return true
		}
	}
	return false
}
