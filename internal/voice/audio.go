package voice

import (
	"context"
	"errors"
	"io"
	"time"
)

const frameDuration = 20 * time.Millisecond

// frameSize is the byte length of one mono PCM16 frame.
func frameSize(sampleRate int) int {
	return sampleRate * int(frameDuration/time.Millisecond) / 1000 * 2
}

// pumpFrames reads fixed-size frames from src and hands them to send until
// the context ends or the source is closed.
func pumpFrames(ctx context.Context, src io.Reader, size int, send func([]byte) error) error {
	for {
		frame := make([]byte, size)
		if _, err := io.ReadFull(src, frame); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		if err := send(frame); err != nil {
			return err
		}
	}
}
