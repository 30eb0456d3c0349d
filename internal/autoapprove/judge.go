package autoapprove

import (
	"context"
	"errors"
	"strings"
)

// Verdict is a judge's answer to one judgment request.
type Verdict string

const (
	VerdictApprove   Verdict = "approve"
	VerdictReject    Verdict = "reject"
	VerdictUncertain Verdict = "uncertain"
)

// Request is what gets sent to a judge backend: the parsed prompt plus
// the last N lines of screen context named in spec §4.G.
type Request struct {
	Operation string
	Target    string
	Details   string
	Context   string // last ~30 lines of pane text, newline-joined
}

// Response pairs a judge's verdict with the reasoning it gave and the
// model name it ran under, for the AutoApproveJudgment audit event.
type Response struct {
	Verdict   Verdict
	Reasoning string
	Model     string
}

// Provider is the one interface every judge backend implements, so
// autoapprove.Engine can dispatch without caring which backend
// answered.
type Provider interface {
	Name() string
	Judge(ctx context.Context, req Request) (Response, error)
}

var (
	ErrNoAPIKey      = errors.New("autoapprove: judge provider not configured with an API key")
	ErrJudgeTimeout  = errors.New("autoapprove: judge timed out")
	ErrJudgeNotParsed = errors.New("autoapprove: judge response did not contain a recognized verdict")
)

const judgeSystemPrompt = `You are reviewing a permission request from an AI coding assistant on behalf of its human operator. Given the requested operation, its target, and recent screen context, answer with exactly one word on the first line: approve, reject, or uncertain. Follow it with a short one-sentence reason. Prefer uncertain whenever the request could plausibly modify files, run destructive commands, or touch anything outside the project directory.`

func buildJudgePrompt(req Request) string {
	b := "Operation: " + req.Operation + "\nTarget: " + req.Target + "\n"
	if req.Details != "" {
		b += "Details: " + req.Details + "\n"
	}
	if req.Context != "" {
		b += "\nRecent screen context:\n" + req.Context + "\n"
	}
	return b
}

// parseVerdict reads the first line of a judge's free-text reply,
// matching the "approve | reject | uncertain" vocabulary spec §4.G
// names, tolerating surrounding punctuation/casing.
func parseVerdict(text string) (Verdict, string) {
	text = strings.TrimSpace(text)
	line := text
	rest := ""
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		line = text[:idx]
		rest = strings.TrimSpace(text[idx+1:])
	}
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "approve"):
		return VerdictApprove, rest
	case strings.Contains(lower, "reject"):
		return VerdictReject, rest
	case strings.Contains(lower, "uncertain"):
		return VerdictUncertain, rest
	default:
		return VerdictUncertain, text
	}
}
