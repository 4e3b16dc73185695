package broadcast

import (
	"fmt"
	"hash/fnv"
)

// DefaultListenAddr derives a deterministic localhost UDP address from the
// channel name so instances sharing a name find each other without
// configuration.
func DefaultListenAddr(channelName string) string {
	return fmt.Sprintf("127.0.0.1:%d", PortForChannel(channelName))
}

// PortForChannel maps a channel name into the 20000-39999 range.
func PortForChannel(channelName string) int {
	const (
		minPort = 20000
		maxPort = 39999
	)
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(channelName))
	rangeSize := maxPort - minPort + 1
	return minPort + int(hash.Sum32()%uint32(rangeSize))
}
