// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console

// PromptKind classifies console output recognized during [Login].
type PromptKind int

// Prompt kinds [Login] reacts on.
const (
	PromptConfirm PromptKind = iota
	PromptPassword
	PromptUsername
	PromptConnectionClosed
	PromptConnectionRefused
	PromptConnectionTimedOut
	PromptPleaseWait
	PromptWarning
	PromptShell
	PromptRawConsole
)

var promptKindNames = map[PromptKind]string{
	PromptConfirm:            "confirm",
	PromptPassword:           "password",
	PromptUsername:           "username",
	PromptConnectionClosed:   "connection-closed",
	PromptConnectionRefused:  "connection-refused",
	PromptConnectionTimedOut: "connection-timed-out",
	PromptPleaseWait:         "please-wait",
	PromptWarning:            "warning",
	PromptShell:              "shell",
	PromptRawConsole:         "raw-console",
}

// String implements [fmt.Stringer].
func (k PromptKind) String() string {
	name, exists := promptKindNames[k]
	if !exists {
		return "unknown"
	}

	return name
}

// Prompt is a [Pattern] with the kind of output it recognizes.
type Prompt struct {
	Kind    PromptKind
	Pattern *Pattern
}

// loginPrompts is the fixed part of the prompt table. The order is the match
// priority. The shell prompt is inserted before the raw console banner.
var loginPrompts = []Prompt{
	// "Are you sure you want to continue connecting".
	{PromptConfirm, MustPattern(`[Aa]re you sure`)},
	{PromptPassword, MustPattern(`[Pp]assword:\s*`)},
	// Rescue mode prompt of Red Hat.
	{PromptPassword, MustPattern(`\(or (press|type) Control-D to continue\):\s*`)},
	// Rescue mode prompt of SUSE.
	{PromptPassword, MustPattern(`[Gg]ive.*[Ll]ogin:\s*`)},
	// Must not match "Last login:".
	{PromptUsername, MustPattern(`(?<![Ll]ast )[Ll]ogin:\s*`)},
	{PromptConnectionClosed, MustPattern(`[Cc]onnection.*closed`)},
	{PromptConnectionRefused, MustPattern(`[Cc]onnection.*refused`)},
	{PromptPleaseWait, MustPattern(`[Pp]lease wait`)},
	// "Warning: Permanently added 'host' (RSA) to the list of known hosts".
	{PromptWarning, MustPattern(`[Ww]arning`)},
	{PromptUsername, MustPattern(`[Ee]nter.*username`)},
	{PromptPassword, MustPattern(`[Ee]nter.*password`)},
	{PromptConnectionTimedOut, MustPattern(`[Cc]onnection timed out`)},
}

// Banner of telnet like clients.
var rawConsolePrompt = Prompt{
	PromptRawConsole,
	MustPattern(`Escape character is.*`),
}

// LoginPrompts returns the complete prompt table used by [Login] with the
// given shell prompt pattern.
func LoginPrompts(shellPrompt *Pattern) []Prompt {
	prompts := make([]Prompt, 0, len(loginPrompts)+2)
	prompts = append(prompts, loginPrompts...)
	prompts = append(prompts,
		Prompt{PromptShell, shellPrompt},
		rawConsolePrompt,
	)

	return prompts
}

func promptPatterns(prompts []Prompt) []*Pattern {
	patterns := make([]*Pattern, len(prompts))
	for idx, prompt := range prompts {
		patterns[idx] = prompt.Pattern
	}

	return patterns
}
