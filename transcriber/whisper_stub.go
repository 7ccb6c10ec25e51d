//go:build !whisper

package transcriber

import "fmt"

// NewWhisper reports that local recognition was left out of this build.
func NewWhisper(Config) (Transcriber, error) {
	return nil, fmt.Errorf("%w: whisper support not compiled in, rebuild with -tags whisper", ErrNoProvider)
}
