// Package protocol defines the newline-delimited chat wire protocol:
// the command verbs clients may send, parsing of raw lines into commands,
// and the reply lines the server writes back.
package protocol

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	// MaxLineBytes is the default upper bound for a single protocol line.
	// The wire format itself is unbounded; servers enforce this to cap
	// per-connection buffer growth. Exceeding it is a transport error,
	// not a protocol error.
	MaxLineBytes = 65536

	// Delimiter terminates every protocol line in both directions.
	Delimiter = "\n"
)

// Verb identifies a client command.
type Verb int

const (
	// VerbUnknown is any first token that matches no known command.
	VerbUnknown Verb = iota
	VerbLogin
	VerbMsg
	VerbWho
	VerbDM
	VerbPing
)

// String returns the canonical wire spelling of the verb.
func (v Verb) String() string {
	switch v {
	case VerbLogin:
		return "LOGIN"
	case VerbMsg:
		return "MSG"
	case VerbWho:
		return "WHO"
	case VerbDM:
		return "DM"
	case VerbPing:
		return "PING"
	default:
		return "UNKNOWN"
	}
}

// Command is one parsed client line: a verb plus the raw argument payload.
// Verb-specific argument splitting (e.g. DM target vs. text) is left to the
// dispatcher.
type Command struct {
	Verb Verb
	// Raw is the first token exactly as received, kept for logging
	// unrecognized verbs.
	Raw string
	// Args is the trimmed remainder of the line after the verb.
	Args string
}

// ParseLine classifies a trimmed, non-empty line into a Command.
// Verbs are case-insensitive. Unrecognized verbs are not an error here;
// they parse to VerbUnknown and the dispatcher reports them.
func ParseLine(line string) Command {
	verb, rest := line, ""
	if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
		verb, rest = line[:i], line[i:]
	}
	cmd := Command{Raw: verb, Args: strings.TrimSpace(rest)}
	switch strings.ToUpper(verb) {
	case "LOGIN":
		cmd.Verb = VerbLogin
	case "MSG":
		cmd.Verb = VerbMsg
	case "WHO":
		cmd.Verb = VerbWho
	case "DM":
		cmd.Verb = VerbDM
	case "PING":
		cmd.Verb = VerbPing
	default:
		cmd.Verb = VerbUnknown
	}
	return cmd
}

// Error reasons sent as `ERR <reason>`. The set is closed: clients may
// rely on exact-matching these strings.
const (
	ReasonInvalidUsername = "invalid-username"
	ReasonUsernameTaken   = "username-taken"
	ReasonEmptyMessage    = "empty-message"
	ReasonInvalidDMFormat = "invalid-dm-format"
	ReasonUserNotFound    = "user-not-found"
	ReasonMustLoginFirst  = "must-login-first"
	ReasonUnknownCommand  = "unknown-command"
)

// Reply formatters. Each returns a complete line including the delimiter.

// OK is the LOGIN success reply.
func OK() string { return "OK" + Delimiter }

// Pong is the PING reply.
func Pong() string { return "PONG" + Delimiter }

// Err formats a protocol error reply.
func Err(reason string) string {
	return "ERR " + reason + Delimiter
}

// User formats one WHO result line.
func User(name string) string {
	return "USER " + name + Delimiter
}

// Msg formats a broadcast chat line as delivered to recipients.
func Msg(sender, text string) string {
	return fmt.Sprintf("MSG %s %s%s", sender, text, Delimiter)
}

// DM formats a direct message as delivered to its target.
func DM(sender, text string) string {
	return fmt.Sprintf("DM %s %s%s", sender, text, Delimiter)
}

// DMSent confirms direct-message delivery to the sender.
func DMSent(target string) string {
	return "DM sent to " + target + Delimiter
}

// Info formats an informational server notice.
func Info(text string) string {
	return "INFO " + text + Delimiter
}

// Server notices with fixed wording.

// JoinedNotice announces a successful login to other users.
func JoinedNotice(name string) string {
	return Info(name + " joined the chat")
}

// DisconnectedNotice announces a departed user to remaining users.
func DisconnectedNotice(name string) string {
	return Info(name + " disconnected")
}

// IdleNotice is written to an authenticated session just before an
// inactivity close.
func IdleNotice() string {
	return Info("Connection closed due to inactivity")
}

// ShutdownNotice is written to every connection during graceful shutdown.
func ShutdownNotice() string {
	return Info("Server is shutting down")
}
