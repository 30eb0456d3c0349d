package autoapprove

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trust-delta/tmai/internal/agentstate"
	"github.com/trust-delta/tmai/internal/config"
)

func TestParsePromptExtractsToolCallShape(t *testing.T) {
	tuple := ParsePrompt(agentstate.AgentStatus{Details: "Bash(git status)"})
	require.Equal(t, "Bash", tuple.Operation)
	require.Equal(t, "git status", tuple.Target)
}

func TestParsePromptFallsBackToPlainText(t *testing.T) {
	tuple := ParsePrompt(agentstate.AgentStatus{Details: "do you want to delete foo.txt?"})
	require.Empty(t, tuple.Operation)
	require.Equal(t, "do you want to delete foo.txt?", tuple.Target)
}

func allFlags() config.RuleFlags {
	return config.RuleFlags{
		AllowRead:        true,
		AllowTests:       true,
		AllowFetch:       true,
		AllowGitReadonly: true,
		AllowFormatLint:  true,
	}
}

func TestMatchRulesAllowRead(t *testing.T) {
	matched, cat := MatchRules(PromptTuple{Operation: "Read", Target: "main.go"}, allFlags())
	require.True(t, matched)
	require.Equal(t, "allow_read", cat)
}

func TestMatchRulesAllowReadRejectsWriteFlag(t *testing.T) {
	matched, _ := MatchRules(PromptTuple{Target: "find . -delete"}, allFlags())
	require.False(t, matched)
}

func TestMatchRulesAllowTests(t *testing.T) {
	matched, cat := MatchRules(PromptTuple{Target: "go test ./..."}, allFlags())
	require.True(t, matched)
	require.Equal(t, "allow_tests", cat)
}

func TestMatchRulesAllowFetchRejectsPost(t *testing.T) {
	matched, _ := MatchRules(PromptTuple{Target: "curl -X POST https://example.com"}, allFlags())
	require.False(t, matched)
}

func TestMatchRulesAllowGitReadonly(t *testing.T) {
	matched, cat := MatchRules(PromptTuple{Target: "git status"}, allFlags())
	require.True(t, matched)
	require.Equal(t, "allow_git_readonly", cat)

	matched, _ = MatchRules(PromptTuple{Target: "git push origin main"}, allFlags())
	require.False(t, matched)
}

func TestMatchRulesAllowFormatLint(t *testing.T) {
	matched, cat := MatchRules(PromptTuple{Target: "gofmt -l ."}, allFlags())
	require.True(t, matched)
	require.Equal(t, "allow_format_lint", cat)
}

func TestMatchRulesAllowPatterns(t *testing.T) {
	flags := config.RuleFlags{AllowPatterns: []string{`^rm -rf ./build`}}
	matched, cat := MatchRules(PromptTuple{Target: "rm -rf ./build"}, flags)
	require.True(t, matched)
	require.Contains(t, cat, "allow_patterns")
}

func TestMatchRulesNoMatchIsUncertainNotReject(t *testing.T) {
	matched, cat := MatchRules(PromptTuple{Target: "rm -rf /"}, allFlags())
	require.False(t, matched)
	require.Empty(t, cat)
}

func TestMatchRulesDisabledCategoryNeverMatches(t *testing.T) {
	matched, _ := MatchRules(PromptTuple{Target: "git status"}, config.RuleFlags{})
	require.False(t, matched)
}
