package application

import (
	"fmt"
	"strings"

	"codex-gateway/internal/domain"
	"codex-gateway/internal/ports/input"
)

// CLIDefaultModel asks codex to use whatever model its own config selects.
const CLIDefaultModel = "codex-cli"

// AliasEfforts are the effort suffixes offered as model aliases.
var AliasEfforts = []string{"low", "medium", "high", "xhigh"}

// Compile-time check to ensure ModelResolver implements the input port
var _ input.ModelService = (*ModelResolver)(nil)

// ModelResolver struct - maps client-facing model names to codex models
type ModelResolver struct {
	models       []string
	defaultModel string
	aliases      map[string][]string
}

// NewModelResolver builds a resolver over the configured models. The
// default model is always served. Reasoning aliases are offered for the
// CLI default and every gpt-5 family model.
func NewModelResolver(defaultModel string, available []string) *ModelResolver {
	if defaultModel = strings.TrimSpace(defaultModel); defaultModel == "" {
		defaultModel = CLIDefaultModel
	}

	seen := make(map[string]bool)
	models := make([]string, 0, len(available)+1)
	add := func(m string) {
		if m = strings.TrimSpace(m); m != "" && !seen[m] {
			seen[m] = true
			models = append(models, m)
		}
	}
	add(defaultModel)
	for _, m := range available {
		add(m)
		// "-codex" variants also answer to their base name
		if base, ok := strings.CutSuffix(strings.TrimSpace(m), "-codex"); ok {
			add(base)
		}
	}

	aliases := make(map[string][]string)
	for _, m := range models {
		if m == CLIDefaultModel || strings.HasPrefix(m, "gpt-5") {
			aliases[m] = AliasEfforts
		}
	}

	return &ModelResolver{models: models, defaultModel: defaultModel, aliases: aliases}
}

// DefaultModel returns the model used when a request names none.
func (r *ModelResolver) DefaultModel() string {
	return r.defaultModel
}

// ListModels returns the served models followed by their effort aliases.
func (r *ModelResolver) ListModels() []domain.ModelInfo {
	infos := make([]domain.ModelInfo, 0, len(r.models)*2)
	for _, m := range r.models {
		infos = append(infos, domain.ModelInfo{ID: m, Object: "model", OwnedBy: "codex"})
	}
	for _, m := range r.models {
		for _, effort := range r.aliases[m] {
			infos = append(infos, domain.ModelInfo{ID: m + "-" + effort, Object: "model", OwnedBy: "codex"})
		}
	}
	return infos
}

// ResolveModel splits an optional effort suffix off name and checks the
// base model is served. Both "gpt-5-high" and "gpt-5 high" are accepted.
// The CLI default model resolves to an empty model so codex picks its own.
func (r *ModelResolver) ResolveModel(name string) (string, string, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return r.toolModel(r.defaultModel), "", nil
	}

	if lowered := strings.ToLower(name); lowered == "gpt" || lowered == "local_openai" {
		return r.toolModel(r.genericModel()), "", nil
	}

	if r.serves(name) {
		return r.toolModel(name), "", nil
	}

	for _, sep := range []string{" ", "-"} {
		idx := strings.LastIndex(name, sep)
		if idx <= 0 {
			continue
		}
		base, effort := name[:idx], strings.ToLower(name[idx+1:])
		if r.serves(base) && contains(r.aliases[base], effort) {
			return r.toolModel(base), effort, nil
		}
	}

	return "", "", fmt.Errorf("%w: model '%s' is not available, choose one of: %s",
		domain.ErrModelNotFound, name, strings.Join(r.ids(), ", "))
}

func (r *ModelResolver) genericModel() string {
	for _, preferred := range []string{"gpt-5.1", "gpt-5"} {
		if r.serves(preferred) {
			return preferred
		}
	}
	return r.defaultModel
}

func (r *ModelResolver) toolModel(m string) string {
	if m == CLIDefaultModel {
		return ""
	}
	return m
}

func (r *ModelResolver) serves(m string) bool {
	return contains(r.models, m)
}

func (r *ModelResolver) ids() []string {
	infos := r.ListModels()
	ids := make([]string, len(infos))
	for i, info := range infos {
		ids[i] = info.ID
	}
	return ids
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
