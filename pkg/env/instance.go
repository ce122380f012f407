// Package env provides process environment shared by the commands.
package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

const appID = "mculink"

// InstanceID identifies this machine without exposing the raw machine id.
// It falls back to the host name when the machine id is unavailable.
func InstanceID() string {
	id, err := machineid.ProtectedID(appID)
	if err == nil && len(id) >= 12 {
		return id[:12]
	}
	glog.Warningf("machine id unavailable: %v", err)
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return appID
}
