//go:build !gui

package main

import (
	"errors"

	"maxiwhisper/config"
	"maxiwhisper/ui"
)

const windowSupported = false

func runWindow(*ui.Feed, config.UIConfig, func(), func()) error {
	return errors.New("built without window support (rebuild with -tags gui)")
}
