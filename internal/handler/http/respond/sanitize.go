package respond

import "regexp"

// Patterns are applied in order, most specific first.
var secretPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`sk-ant-[a-zA-Z0-9-_]+`), "sk-ant-****"},
	// does not match keys that are already masked
	{regexp.MustCompile(`sk-[a-zA-Z0-9]{10,}`), "sk-****"},
	{regexp.MustCompile(`xox[abpr]-[a-zA-Z0-9-]+`), "xox*-****"},
	{regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-._~+/]+=*`), "Bearer ****"},
	{regexp.MustCompile(`://([^:/@]+):([^@]+)@`), "://$1:****@"},
}

// SanitizeError returns err's message with API keys, bearer tokens and URL
// passwords masked.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, p := range secretPatterns {
		msg = p.re.ReplaceAllString(msg, p.repl)
	}
	return msg
}
