package shellsafe

import (
	"regexp"
	"sort"

	"github.com/kballard/go-shellquote"

	"github.com/cuemby/gplmt/pkg/types"
)

// destinationPattern is the allow-list a put task's destination path
// must match before gplmt will auto-register a teardown to remove it.
// It intentionally rejects anything that looks like it could break out
// of a simple "rm <path>" (slashes, spaces, shell metacharacters,
// leading dash).
var destinationPattern = regexp.MustCompile(`^([.a-zA-Z][-.a-zA-Z]+)$`)

// IsCleanableDestination reports whether destination is simple enough
// to safely interpolate into an auto-generated "rm" teardown command.
// Anything else is left alone with no automatic cleanup registered.
func IsCleanableDestination(destination string) bool {
	return destinationPattern.MatchString(destination)
}

// WrapEnv prefixes command with an explicit "env K=V ... sh -c '...'"
// invocation so that var_env/export-env variables are visible to the
// remote (or local) shell regardless of how the transport itself
// forwards environment, quoting every piece so that values containing
// spaces or shell metacharacters cannot break out of the command line.
func WrapEnv(command string, env types.Env) string {
	if len(env) == 0 {
		return command
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys)+3)
	args = append(args, "env")
	for _, k := range keys {
		args = append(args, k+"="+env[k])
	}
	args = append(args, "sh", "-c", command)

	return shellquote.Join(args...)
}

// RemoveCommand builds the teardown command used to clean up a put
// task's uploaded file once its destination has passed
// IsCleanableDestination.
func RemoveCommand(destination string) string {
	return "rm " + shellquote.Join(destination)
}

// Quote shell-quotes a single argument for safe interpolation into a
// command string built by string concatenation.
func Quote(arg string) string {
	return shellquote.Join(arg)
}
