//go:build !unix

package player

import (
	"os"

	"github.com/desertthunder/cloudplay/internal/shared"
)

func suspend(*os.Process) error { return shared.ErrNotImplemented }

func resume(*os.Process) error { return shared.ErrNotImplemented }
