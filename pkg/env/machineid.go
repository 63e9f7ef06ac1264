// Package env holds helpers shared by the configuration of the binaries.
package env

import (
	"strconv"
	"strings"

	"github.com/denisbrodbeck/machineid"

	"github.com/robotalks/lst.go/pkg/protocol"
)

const appID = "openlst"

// MachineID retrieves the unique ID identifying the machine, hashed for
// this application.
func MachineID() string {
	id, err := machineid.ProtectedID(appID)
	if err != nil {
		panic(err)
	}
	return id
}

// MachineHWID derives a hardware id from the machine id. The reserved
// broadcast and local ids are never returned.
func MachineHWID() protocol.HWID {
	return hwidFromMachineID(MachineID())
}

func hwidFromMachineID(id string) protocol.HWID {
	var hwid protocol.HWID
	if len(id) >= 4 {
		if v, err := strconv.ParseUint(id[:4], 16, 16); err == nil {
			hwid = protocol.HWID(v)
		}
	}
	switch hwid {
	case protocol.HWIDBroadcast, protocol.HWIDLocal:
		hwid = 0x0001
	}
	return hwid
}

// ParseHWID parses a hardware id in hex, with or without 0x.
func ParseHWID(s string) (protocol.HWID, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 16)
	if err != nil {
		return 0, err
	}
	return protocol.HWID(v), nil
}
