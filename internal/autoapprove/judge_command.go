package autoapprove

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandJudge invokes a user-configured shell command for each
// judgment, piping the prompt via stdin and reading its stdout as the
// verdict line. Grounded on the teacher's aichannel.Channel CLI mode
// (Config.Command/Args/UseStdin/Timeout), collapsed to the one shape
// spec §4.G's "external model (command invocation)" needs: a single
// non-interactive round trip, no output-format negotiation.
type CommandJudge struct {
	command string
	args    []string
}

// NewCommandJudge splits commandLine on whitespace into a program and
// its fixed arguments; the judge prompt is always appended as the
// final argument and also piped on stdin, so both a CLI that reads
// stdin ("claude -p") and one that wants an argv prompt are served.
func NewCommandJudge(commandLine string) (*CommandJudge, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, fmt.Errorf("autoapprove: empty custom_command")
	}
	return &CommandJudge{command: fields[0], args: fields[1:]}, nil
}

func (j *CommandJudge) Name() string { return "command:" + j.command }

func (j *CommandJudge) Judge(ctx context.Context, req Request) (Response, error) {
	prompt := judgeSystemPrompt + "\n\n" + buildJudgePrompt(req)

	cmd := exec.CommandContext(ctx, j.command, append(append([]string{}, j.args...), prompt)...)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Response{}, ErrJudgeTimeout
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return Response{}, fmt.Errorf("autoapprove: command judge %s: %w: %s", j.command, err, msg)
		}
		return Response{}, fmt.Errorf("autoapprove: command judge %s: %w", j.command, err)
	}

	verdict, reasoning := parseVerdict(stdout.String())
	return Response{Verdict: verdict, Reasoning: reasoning, Model: j.command}, nil
}
