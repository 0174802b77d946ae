//go:build !linux && !windows

package gui

import "a9i/src/messages"

func moveNative(any, messages.Point) error { return errNoNativeMove }
