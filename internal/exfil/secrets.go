package exfil

import "regexp"

// secretPattern pairs a name with the regex that detects it.
type secretPattern struct {
	name    string
	pattern *regexp.Regexp
}

// secretLibrary is the fixed set of secret regexes named in spec §4.C.
var secretLibrary = []secretPattern{
	{"openai_api_key", regexp.MustCompile(`\bsk-[A-Za-z0-9]{20,}\b`)},
	{"anthropic_api_key", regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_-]{20,}\b`)},
	{"github_token", regexp.MustCompile(`\bgh[pos]_[A-Za-z0-9]{20,}\b`)},
	{"aws_access_key", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"google_api_key", regexp.MustCompile(`\bAIza[0-9A-Za-z_-]{30,}\b`)},
	{"slack_token", regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}\b`)},
	{"bearer_token", regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]{10,}\b`)},
	{"private_key_block", regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH )?PRIVATE KEY-----`)},
	{"generic_api_key_kv", regexp.MustCompile(`(?i)\bapi[_-]?key\s*=\s*\S+`)},
}

// MatchSecret reports whether any secret pattern matches line, and
// which one. sk-ant- is checked before the generic sk- pattern so
// Anthropic keys are named precisely rather than as a generic OpenAI
// hit.
func MatchSecret(line string) (string, bool) {
	for _, p := range secretLibrary {
		if p.name == "openai_api_key" {
			continue
		}
		if p.pattern.MatchString(line) {
			return p.name, true
		}
	}
	if secretLibrary[0].pattern.MatchString(line) {
		return secretLibrary[0].name, true
	}
	return "", false
}
