package license

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	gohost "github.com/shirou/gopsutil/v4/host"
)

const hostInfoTimeout = 5 * time.Second

var hostInfo = gohost.InfoWithContext

// InstanceID identifies this installation for site activation. An explicit
// override wins, then the host's machine ID, then the hostname.
func InstanceID(ctx context.Context, override string) (string, error) {
	if id := strings.TrimSpace(override); id != "" {
		return id, nil
	}

	hCtx, cancel := context.WithTimeout(ctx, hostInfoTimeout)
	defer cancel()
	info, err := hostInfo(hCtx)
	if err != nil {
		return "", fmt.Errorf("fetch host info: %w", err)
	}
	if id := strings.TrimSpace(info.HostID); id != "" {
		return id, nil
	}
	if hostname := strings.TrimSpace(info.Hostname); hostname != "" {
		return hostname, nil
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname, nil
	}
	return "", fmt.Errorf("could not determine instance ID")
}
