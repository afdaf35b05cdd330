package transform

import (
	"context"
	"time"

	"gopkg.in/yaml.v3"
)

// Frame is one tick of playback. Step is nil for the final credential.
type Frame struct {
	Step  *Step
	Node  *yaml.Node
	Final bool
}

// Play emits one frame per interval, ending with the credential. It stops
// early when ctx is done or fn fails.
func Play(ctx context.Context, r Reveal, interval time.Duration, fn func(Frame) error) error {
	frames := make([]Frame, 0, len(r.Steps)+1)
	for i := range r.Steps {
		frames = append(frames, Frame{Step: &r.Steps[i], Node: r.Steps[i].Frame})
	}
	frames = append(frames, Frame{Node: r.Credential, Final: true})

	if interval <= 0 {
		for _, f := range frames {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(f); err != nil {
				return err
			}
		}
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for _, f := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}
