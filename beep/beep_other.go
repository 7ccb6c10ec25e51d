//go:build !linux && !darwin

package beep

import "errors"

func newSpeaker() (speaker, error) {
	return nil, errors.New("no audio output on this platform")
}
