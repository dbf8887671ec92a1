package plugin

// Command is the closed set of commands the plugin understands.
type Command int

const (
	CommandUnknown Command = iota
	CommandGetPlatformVersion
)

var commandNames = map[string]Command{
	"getPlatformVersion": CommandGetPlatformVersion,
}

// ParseCommand maps a method name to its Command. Matching is case-sensitive.
func ParseCommand(method string) Command {
	if c, ok := commandNames[method]; ok {
		return c
	}
	return CommandUnknown
}

func (c Command) String() string {
	for name, cmd := range commandNames {
		if cmd == c {
			return name
		}
	}
	return "unknown"
}
