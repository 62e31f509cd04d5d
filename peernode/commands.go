package peernode

// registerStandardCommands installs the fixed command suite every peer
// understands out of the box (spec.md §4.E): Echo, Execute, Query,
// Observe, Update, Reupdate. Each handler returns false (never
// self-removes) since these are standing, not one-shot, registrations —
// one-shot reply handlers are registered separately by the Correlator.
//
// Grounded on original_source/MQ2DanNet/Commands.cpp's per-tag callback
// bodies, adapted to read from the dispatcher's flattened args slice
// instead of a positional wire buffer.
func registerStandardCommands(n *Node) {
	n.dispatch.Register("Echo", func(args []string) bool {
		from, group, text := splitFromGroup(args)
		n.cfg.ChatSink.Echo(formatEcho(from, group, text, n.flagShowGroups()))
		return false
	})

	n.dispatch.Register("Execute", func(args []string) bool {
		from, group, cmd := splitFromGroup(args)
		if n.flagCommandEcho() {
			n.cfg.ChatSink.Echo(formatEcho(from, group, cmd, n.flagShowGroups()))
		}
		if _, err := n.cfg.Evaluator.Evaluate(cmd); err != nil {
			n.cfg.Logger.Debug("execute failed", "from", from, "cmd", cmd, "err", err)
		}
		return false
	})

	n.dispatch.Register("Query", func(args []string) bool {
		if len(args) < 3 {
			return false
		}
		from, responseTag, expr := args[0], args[1], args[2]
		if err := respondToQuery(n.cfg.Evaluator, n.sendWhisper, from, responseTag, expr); err != nil {
			n.cfg.Logger.Debug("query response failed", "from", from, "err", err)
		}
		return false
	})

	n.dispatch.Register("Observe", func(args []string) bool {
		if len(args) < 3 {
			return false
		}
		from, responseTag, expr := args[0], args[1], args[2]
		group, value := n.source.HandleObserve(expr)
		if err := n.sendWhisper(from, [][]byte{[]byte(responseTag), []byte(group), []byte(value)}); err != nil {
			n.cfg.Logger.Debug("observe response failed", "from", from, "err", err)
		}
		return false
	})

	n.dispatch.Register("Update", func(args []string) bool {
		if len(args) < 3 {
			return false
		}
		from, group, value := args[0], args[1], args[2]
		if err := n.consumer.HandleUpdate(from, group, value); err != nil {
			n.cfg.Logger.Debug("update dropped", "from", from, "group", group, "err", err)
		}
		return false
	})

	n.dispatch.Register("Reupdate", func(args []string) bool {
		if len(args) < 2 {
			return false
		}
		group := args[1]
		n.source.Reupdate(group)
		return false
	})
}

// splitFromGroup unpacks the Actor's prepended args: [from, text] for a
// whisper or [from, group, text] for a shout (spec.md §6 "The Actor
// prepends from and (for shouts) group").
func splitFromGroup(args []string) (from, group, text string) {
	switch len(args) {
	case 2:
		return args[0], "", args[1]
	case 3:
		return args[0], args[1], args[2]
	default:
		return "", "", ""
	}
}

// formatEcho renders an inbound chat line the way the original console
// output does: "[from] text" for a whisper, "[from --> (group)] text"
// for a shout. If group is empty or showGroups is false, the group
// decoration is omitted (spec.md:101).
func formatEcho(from, group, text string, showGroups bool) string {
	if group == "" || !showGroups {
		return "[" + from + "] " + text
	}
	return "[" + from + " --> (" + group + ")] " + text
}
