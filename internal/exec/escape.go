package exec

import (
	"regexp"
	"strings"
)

var plainArgPattern = regexp.MustCompile(`^[A-Za-z0-9@%_+=:,./-]+$`)

// QuoteArg wraps arg in single quotes when it contains characters a shell
// would interpret. Safe arguments are returned unchanged.
func QuoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	if plainArgPattern.MatchString(arg) {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

// FormatCommand renders a program and its argument vector as a single
// shell-style line. Each argument is quoted independently.
func FormatCommand(program string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, QuoteArg(program))
	for _, arg := range args {
		parts = append(parts, QuoteArg(arg))
	}
	return strings.Join(parts, " ")
}
