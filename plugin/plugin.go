// Package plugin is the native side of the libgit2dart method channel.
//
// It answers one host query, getPlatformVersion, and reports every other
// method as not implemented. The plugin keeps no state between calls; each
// call is routed, answered once, and forgotten.
package plugin

import (
	"libgit2dart/channel"
	"libgit2dart/message"
)

// ChannelName is the method channel the plugin listens on.
const ChannelName = "libgit2dart"

// Plugin dispatches calls arriving on ChannelName.
type Plugin struct {
	platform PlatformInfo
}

// New returns a Plugin that reports the real host platform.
func New() *Plugin {
	return NewWithPlatform(HostPlatform())
}

// NewWithPlatform returns a Plugin reporting p instead of the host.
func NewWithPlatform(p PlatformInfo) *Plugin {
	return &Plugin{platform: p}
}

// RegisterWith attaches the plugin to registrar under ChannelName.
func RegisterWith(registrar channel.Registrar) *Plugin {
	p := New()
	registrar.SetMethodCallHandler(ChannelName, p)
	return p
}

// Dispatch routes call to its command and completes result exactly once,
// before returning. Unknown methods complete with NotImplemented.
func (p *Plugin) Dispatch(call *message.MethodCall, result channel.Result) {
	switch ParseCommand(call.Method) {
	case CommandGetPlatformVersion:
		result.Success(PlatformVersion(p.platform))
	default:
		result.NotImplemented()
	}
}

func (p *Plugin) HandleMethodCall(call *message.MethodCall, result channel.Result) {
	p.Dispatch(call, result)
}
