package codex

import (
	"net/http"
	"strings"

	"codex-gateway/internal/domain"

	"github.com/tidwall/gjson"
)

const genericFailure = "codex execution failed"

// DescribeFailure extracts the most useful error line from the output tails
// of a failed execution. Lines are scanned from the end; JSON error payloads
// and lines that look like errors win. Otherwise the last stderr line is
// used, and stdout only when stderr is empty.
func (b *CommandBuilder) DescribeFailure(exit domain.ProcessExit) domain.FailureSummary {
	return DescribeFailure(exit.StderrTail, exit.StdoutTail)
}

// DescribeFailure classifies failure output. HTTPStatus is 401, 429 or 504
// when the message suggests it, and 0 otherwise.
func DescribeFailure(stderr, stdout string) domain.FailureSummary {
	errLines := nonBlankLines(stderr)
	outLines := nonBlankLines(stdout)
	lines := append(append([]string{}, outLines...), errLines...)

	message := ""
	for i := len(lines) - 1; i >= 0 && message == ""; i-- {
		message = errorMessage(lines[i])
	}
	if message == "" {
		switch {
		case len(errLines) > 0:
			message = errLines[len(errLines)-1]
		case len(outLines) > 0:
			message = outLines[len(outLines)-1]
		default:
			message = genericFailure
		}
	}

	return domain.FailureSummary{Message: message, HTTPStatus: statusHint(message)}
}

func errorMessage(line string) string {
	if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") && gjson.Valid(line) {
		record := gjson.Parse(line)
		for _, path := range []string{"error.message", "message"} {
			if v := record.Get(path); v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
				return strings.TrimSpace(v.Str)
			}
		}
	}
	lowered := strings.ToLower(line)
	if strings.HasPrefix(lowered, "error:") || strings.Contains(lowered, "unauthorized") || strings.Contains(lowered, "rate limit") {
		return line
	}
	return ""
}

func statusHint(message string) int {
	lowered := strings.ToLower(message)
	switch {
	case strings.Contains(message, "401") || strings.Contains(lowered, "unauthorized"):
		return http.StatusUnauthorized
	case strings.Contains(message, "429") || strings.Contains(lowered, "rate limit"):
		return http.StatusTooManyRequests
	case strings.Contains(lowered, "timeout"):
		return http.StatusGatewayTimeout
	default:
		return 0
	}
}

func nonBlankLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
