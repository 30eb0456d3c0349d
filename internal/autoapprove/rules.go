// Package autoapprove implements component G: the rule engine and AI
// judge that decide whether an AwaitingApproval prompt can be answered
// without a human.
package autoapprove

import (
	"regexp"
	"strings"

	"github.com/trust-delta/tmai/internal/agentstate"
	"github.com/trust-delta/tmai/internal/config"
)

// PromptTuple is the (operation, target) pair parsed out of an
// AwaitingApproval status, e.g. operation="Bash", target="git status".
type PromptTuple struct {
	Operation string
	Target    string
}

// ParsePrompt extracts a PromptTuple from an AwaitingApproval status's
// Details field. Detectors write Details as either "<Tool>(<arg>)" (the
// shape every agent's permission-request line takes) or plain text; the
// fallback treats the whole string as the target of an unknown
// operation.
func ParsePrompt(status agentstate.AgentStatus) PromptTuple {
	details := strings.TrimSpace(status.Details)
	if m := toolCallPattern.FindStringSubmatch(details); m != nil {
		return PromptTuple{Operation: m[1], Target: strings.TrimSpace(m[2])}
	}
	return PromptTuple{Operation: "", Target: details}
}

var toolCallPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*)\((.*)\)$`)

// MatchRules reports whether tuple matches any enabled allow category
// in flags. Spec §4.G: there are no deny rules, only allow categories;
// a non-match is "uncertain", not "reject".
func MatchRules(tuple PromptTuple, flags config.RuleFlags) (matched bool, category string) {
	target := strings.TrimSpace(tuple.Target)

	if flags.AllowRead && matchesReadTool(tuple, target) {
		return true, "allow_read"
	}
	if flags.AllowTests && testRunnerPattern.MatchString(target) {
		return true, "allow_tests"
	}
	if flags.AllowFetch && matchesFetchTool(tuple, target) {
		return true, "allow_fetch"
	}
	if flags.AllowGitReadonly && gitReadonlyPattern.MatchString(target) {
		return true, "allow_git_readonly"
	}
	if flags.AllowFormatLint && formatLintPattern.MatchString(target) {
		return true, "allow_format_lint"
	}
	for _, pat := range flags.AllowPatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			continue
		}
		if re.MatchString(target) {
			return true, "allow_patterns:" + pat
		}
	}
	return false, ""
}

var readonlyCommandPattern = regexp.MustCompile(`^(cat|head|tail|ls|find|grep|wc)\b`)
var writeFlagPattern = regexp.MustCompile(`-delete|-exec|--force|(^|\s)-f(\s|$)|>\s*\S|>>\s*\S`)

func matchesReadTool(tuple PromptTuple, target string) bool {
	if tuple.Operation == "Read" {
		return true
	}
	if !readonlyCommandPattern.MatchString(strings.TrimSpace(target)) {
		return false
	}
	return !writeFlagPattern.MatchString(target)
}

var testRunnerPattern = regexp.MustCompile(`^(cargo test|npm test|npm run test|pnpm test|yarn test|pytest|go test|dotnet test|mvn test|gradle test|rspec|jest|bundle exec rspec)\b`)

var postFlagPattern = regexp.MustCompile(`\s--?(X\s*POST|X\s*PUT|data|d)\b`)

func matchesFetchTool(tuple PromptTuple, target string) bool {
	if tuple.Operation == "WebFetch" || tuple.Operation == "WebSearch" {
		return true
	}
	if !strings.HasPrefix(strings.TrimSpace(target), "curl") {
		return false
	}
	return !postFlagPattern.MatchString(target)
}

var gitReadonlyPattern = regexp.MustCompile(`^git (status|log|diff|branch|show|blame|stash list|remote -v|tag|rev-parse|ls-files|ls-tree)\b`)

var formatLintPattern = regexp.MustCompile(`^(cargo fmt|cargo clippy|prettier|eslint|rustfmt|black|gofmt|biome)\b`)
