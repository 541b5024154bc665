package shell

import (
	"fmt"
	"strconv"
	"strings"
)

// markerPrefix opens every completion-marker line. The token is arbitrary
// but must be unlikely to appear in legitimate command output; the numeric
// command id after it disambiguates the rare remaining collision.
const markerPrefix = "-:RSHELL-DONE:-"

// markerEcho returns the shell fragment that emits the completion marker
// for the given command id, carrying the last exit status.
func markerEcho(id int64) string {
	return fmt.Sprintf("echo \"%s %d $?\"", markerPrefix, id)
}

// parseMarker extracts the command id and exit code from a marker payload,
// i.e. the portion of a line starting at markerPrefix.
func parseMarker(payload string) (id int64, exitCode int, ok bool) {
	rest := strings.TrimPrefix(payload, markerPrefix)
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return 0, 0, false
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	exitCode, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, false
	}
	return id, exitCode, true
}

// splitMarker locates a marker inside a line. Output that does not end
// with a newline leaves the marker glued to the tail of the command's last
// line, so the demultiplexer must look past the line start. It returns the
// text preceding the marker and the marker payload.
func splitMarker(line string) (prefix, payload string, found bool) {
	idx := strings.Index(line, markerPrefix)
	if idx < 0 {
		return "", "", false
	}
	return line[:idx], line[idx:], true
}

// denialPhrases are the substrings that indicate the privilege-escalation
// front-end refused the command. Matched case-insensitively.
var denialPhrases = []string{
	"permission denied",
	"not allowed",
}

// isDenialLine reports whether the line looks like a privilege refusal.
func isDenialLine(line string) bool {
	lower := strings.ToLower(line)
	for _, phrase := range denialPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
