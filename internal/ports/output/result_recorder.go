package output

import "codex-gateway/internal/domain"

// ResultRecorder interface - Output port
// Receives the FinalResult of every admitted execution, including the ones
// whose caller went away.
type ResultRecorder interface {
	Record(result *domain.FinalResult)
}
