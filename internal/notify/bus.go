package notify

import (
	"slices"

	"github.com/godbus/dbus/v5"
)

const (
	dbusDest      = "org.freedesktop.DBus"
	dbusPath      = "/org/freedesktop/DBus"
	dbusInterface = "org.freedesktop.DBus"
)

// serviceAvailable reports whether busName is running or can be started by
// bus activation.
func serviceAvailable(bus caller, busName string) bool {
	var owned bool
	if err := bus.Call(dbusInterface+".NameHasOwner", 0, busName).Store(&owned); err == nil && owned {
		return true
	}

	var activatable []string
	if err := bus.Call(dbusInterface+".ListActivatableNames", 0).Store(&activatable); err != nil {
		return false
	}
	return slices.Contains(activatable, busName)
}

func busObject(conn *dbus.Conn) caller {
	return conn.Object(dbusDest, dbusPath)
}
