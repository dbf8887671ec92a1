package client

import (
	"context"
)

// Libgit2dart is the typed caller for the libgit2dart channel.
type Libgit2dart struct {
	ch *MethodChannel
}

func NewLibgit2dart(ch *MethodChannel) *Libgit2dart {
	return &Libgit2dart{ch: ch}
}

// PlatformVersion returns the host's "<OS name> <OS version>" string.
func (l *Libgit2dart) PlatformVersion(ctx context.Context) (string, error) {
	var version string
	if err := l.ch.InvokeMethod(ctx, "getPlatformVersion", nil, &version); err != nil {
		return "", err
	}
	return version, nil
}
