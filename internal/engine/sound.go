package engine

import (
	"io"
	"strings"
)

// Sound is an audio cue emitted by the engine.
type Sound int

const (
	SoundStart Sound = iota
	SoundCorrect
	SoundIncorrect
)

// Player plays audio cues. Implementations must not block.
type Player interface {
	Play(Sound)
}

// BellPlayer rings the terminal bell: three rings to start, two for a
// correct answer and one otherwise.
type BellPlayer struct {
	W io.Writer
}

// Play implements Player.
func (p BellPlayer) Play(s Sound) {
	if p.W == nil {
		return
	}
	rings := 1
	switch s {
	case SoundStart:
		rings = 3
	case SoundCorrect:
		rings = 2
	}
	if _, err := io.WriteString(p.W, strings.Repeat("\a", rings)); err != nil {
		// Best-effort audio cue.
		_ = err
	}
}
