package exec

import "testing"

func TestQuoteArg(t *testing.T) {
	tests := []struct {
		name string
		arg  string
		want string
	}{
		{name: "plain", arg: "build", want: "build"},
		{name: "path", arg: "./cmd/execo", want: "./cmd/execo"},
		{name: "empty", arg: "", want: "''"},
		{name: "spaces", arg: "hello world", want: "'hello world'"},
		{name: "dollar", arg: "$HOME", want: "'$HOME'"},
		{name: "singleQuote", arg: "it's", want: `'it'\''s'`},
		{name: "glob", arg: "*.go", want: "'*.go'"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := QuoteArg(tc.arg); got != tc.want {
				t.Fatalf("QuoteArg(%q) = %q, want %q", tc.arg, got, tc.want)
			}
		})
	}
}

func TestFormatCommand(t *testing.T) {
	got := FormatCommand("/bin/sh", []string{"-c", "echo hi"})
	want := "/bin/sh -c 'echo hi'"
	if got != want {
		t.Fatalf("FormatCommand = %q, want %q", got, want)
	}
}
