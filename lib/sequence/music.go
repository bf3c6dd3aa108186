package sequence

import "context"

// MusicSync follows playback with an external music player.
type MusicSync interface {
	Play(ctx context.Context, uri string) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NopMusic accepts every call and does nothing. No player integration exists.
type NopMusic struct{}

func (NopMusic) Play(context.Context, string) error { return nil }
func (NopMusic) Pause(context.Context) error        { return nil }
func (NopMusic) Resume(context.Context) error       { return nil }
func (NopMusic) Stop(context.Context) error         { return nil }
