// Package all registers every terminal command.
package all

import (
	_ "github.com/robotalks/lst.go/pkg/cli/cmds/app"
	_ "github.com/robotalks/lst.go/pkg/cli/cmds/boot"
)
