package hooks

import (
	"regexp"
	"strings"
)

// MatchesEvent checks if a matcher pattern matches the given value.
// Empty or "*" matches everything. Matcher is regex-anchored at both ends.
func MatchesEvent(matcher, matchValue string) bool {
	switch matcher {
	case "", "*":
		return true
	default:
		if re, err := regexp.Compile("^(" + matcher + ")$"); err == nil {
			return re.MatchString(matchValue)
		}
		return matcher == matchValue
	}
}

// MatchesEditedFile extends MatchesEvent for AfterEdit's richer matcher
// grammar: a comma-separated list of suffix-globs ("*.go,*.md") or plain
// substrings, since a single regex anchor is awkward for path suffixes.
func MatchesEditedFile(matcher, path string) bool {
	if matcher == "" || matcher == "*" {
		return true
	}
	for _, part := range strings.Split(matcher, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, "*") {
			if strings.HasSuffix(path, strings.TrimPrefix(part, "*")) {
				return true
			}
			continue
		}
		if strings.Contains(path, part) {
			return true
		}
	}
	return false
}

// GetMatchValue extracts the value to match against based on event type.
func GetMatchValue(event EventType, input HookInput) string {
	switch event {
	case PreToolUse, PostToolUse, PostToolUseFailure, PermissionRequest:
		return input.ToolName
	case SessionStart:
		return input.Source
	case SessionEnd:
		return input.Reason
	case Notification:
		return input.NotificationType
	case SubagentStart, SubagentStop, TeammateIdle, TaskCompleted:
		return input.AgentType
	case PreCompact:
		return input.Trigger
	case AfterEdit:
		return input.EditedFile
	default:
		return ""
	}
}

// EventSupportsMatcher returns true if the event type supports matcher filtering.
func EventSupportsMatcher(event EventType) bool {
	return event != UserPromptSubmit && event != Stop
}
