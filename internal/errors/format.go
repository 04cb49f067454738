package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// FormatForCLI formats an error for terminal output. Non-FuseErrors are
// reported as internal errors.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	var fe *FuseError
	if !stderrors.As(err, &fe) {
		fe = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", fe.Message)
	if fe.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", fe.Suggestion)
	}
	if len(fe.Details) > 0 {
		keys := make([]string, 0, len(fe.Details))
		for k := range fe.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %s\n", k, fe.Details[k])
		}
	}
	fmt.Fprintf(&sb, "  Code: %s\n", fe.Code)
	return sb.String()
}
