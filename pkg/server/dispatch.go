package server

import (
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"github.com/NicolasHaas/linechat/pkg/protocol"
)

// dispatch runs one parsed command against the session and registry.
// Protocol errors are reported to the offending client only; the
// connection stays open and no state changes.
func (s *Server) dispatch(sess *Session, cmd protocol.Command) {
	if !sess.Authenticated() && cmd.Verb != protocol.VerbLogin {
		_ = sess.WriteLine(protocol.Err(protocol.ReasonMustLoginFirst))
		return
	}

	switch cmd.Verb {
	case protocol.VerbLogin:
		s.handleLogin(sess, cmd.Args)
	case protocol.VerbMsg:
		s.handleMsg(sess, cmd.Args)
	case protocol.VerbWho:
		s.handleWho(sess)
	case protocol.VerbDM:
		s.handleDM(sess, cmd.Args)
	case protocol.VerbPing:
		_ = sess.WriteLine(protocol.Pong())
	case protocol.VerbUnknown:
		slog.Debug("unknown command", "verb", cmd.Raw, "user", sess.Username())
		_ = sess.WriteLine(protocol.Err(protocol.ReasonUnknownCommand))
	}
}

func (s *Server) handleLogin(sess *Session, name string) {
	// The username is immutable once set; a repeat LOGIN collides the
	// same way a LOGIN for a held name does.
	if sess.Authenticated() {
		_ = sess.WriteLine(protocol.Err(protocol.ReasonUsernameTaken))
		return
	}
	if name == "" {
		s.metrics.FailedLogins.Add(1)
		_ = sess.WriteLine(protocol.Err(protocol.ReasonInvalidUsername))
		return
	}

	if err := s.registry.Login(sess, name); err != nil {
		s.metrics.FailedLogins.Add(1)
		if errors.Is(err, ErrUsernameTaken) {
			_ = sess.WriteLine(protocol.Err(protocol.ReasonUsernameTaken))
			return
		}
		_ = sess.WriteLine(protocol.Err(protocol.ReasonInvalidUsername))
		return
	}

	_ = sess.WriteLine(protocol.OK())
	s.metrics.SuccessfulLogins.Add(1)
	slog.Info("client logged in", "user", name, "remote", sess.RemoteAddr())

	s.broadcast(protocol.JoinedNotice(name), sess)
}

func (s *Server) handleMsg(sess *Session, text string) {
	if text == "" {
		_ = sess.WriteLine(protocol.Err(protocol.ReasonEmptyMessage))
		return
	}

	s.broadcast(protocol.Msg(sess.Username(), text), sess)
	s.metrics.MessagesBroadcast.Add(1)
	slog.Debug("message broadcast", "user", sess.Username(), "len", len(text))
}

func (s *Server) handleWho(sess *Session) {
	for _, other := range s.registry.Authenticated() {
		_ = sess.WriteLine(protocol.User(other.Username()))
	}
}

func (s *Server) handleDM(sess *Session, args string) {
	target, text := splitDM(args)
	if target == "" || text == "" {
		_ = sess.WriteLine(protocol.Err(protocol.ReasonInvalidDMFormat))
		return
	}

	recipient, ok := s.registry.Lookup(target)
	if !ok {
		_ = sess.WriteLine(protocol.Err(protocol.ReasonUserNotFound))
		return
	}

	// Delivery is best-effort: a dead recipient transport is its own
	// session's problem, discovered by its read loop.
	_ = recipient.WriteLine(protocol.DM(sess.Username(), text))
	_ = sess.WriteLine(protocol.DMSent(target))
	s.metrics.DirectMessages.Add(1)
	slog.Debug("direct message", "from", sess.Username(), "to", target)
}

// splitDM separates a DM argument payload into target username and
// message text on the first whitespace run.
func splitDM(args string) (target, text string) {
	i := strings.IndexFunc(args, unicode.IsSpace)
	if i < 0 {
		return args, ""
	}
	return args[:i], strings.TrimSpace(args[i:])
}

// broadcast writes a line to every authenticated session except the
/// sender. Fire-and-forget: one recipient's write failure never aborts
// delivery to the rest.
func (s *Server) broadcast(line string, exclude *Session) {
	for _, sess := range s.registry.Authenticated() {
		if exclude != nil && sess.ID == exclude.ID {
			continue
		}
		if err := sess.WriteLine(line); err != nil {
			slog.Debug("broadcast write failed", "user", sess.Username(), "err", err)
		}
	}
}
