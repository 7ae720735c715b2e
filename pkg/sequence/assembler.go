// Package sequence turns each day's downloaded frames into one looping
// animated GIF.
package sequence

import (
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	errs "marsfeed/pkg/errors"
	"marsfeed/pkg/logger"
	"marsfeed/pkg/models"
	"marsfeed/pkg/storage"
)

// FrameSource lists days and their ordered frame files
type FrameSource interface {
	Days() ([]models.Day, error)
	Frames(day models.Day) ([]string, error)
}

// Summary counts the outcome of one Assemble call
type Summary struct {
	Built    []models.Day
	Existing int
	Deferred int
	Failed   int
	Failures []errs.ItemFailure
}

// Assembler builds missing day animations
type Assembler struct {
	frames FrameSource
	outDir string
	dither bool
	logger logger.Logger
}

// NewAssembler writes <outDir>/<day>.gif for frames found in source
func NewAssembler(source FrameSource, outDir string, dither bool, log logger.Logger) *Assembler {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Assembler{frames: source, outDir: outDir, dither: dither, logger: log}
}

// OutputPath returns where the animation for day is written
func (a *Assembler) OutputPath(day models.Day) string {
	return filepath.Join(a.outDir, day.Key()+".gif")
}

// Assemble builds an animation for every day that has frames and no output
// yet. Days in incomplete are left for a later run. A failing day is
// recorded and does not stop the others.
func (a *Assembler) Assemble(ctx context.Context, incomplete map[models.Day]bool) (*Summary, error) {
	days, err := a.frames.Days()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(a.outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sequence directory: %w", err)
	}

	summary := &Summary{}
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if _, err := os.Stat(a.OutputPath(day)); err == nil {
			summary.Existing++
			continue
		}
		if incomplete[day] {
			summary.Deferred++
			continue
		}

		if err := a.assembleDay(day); err != nil {
			a.logger.WithError(err).WarnWithFields("Failed to assemble day", map[string]interface{}{
				"day": day.Key(),
			})
			summary.Failed++
			summary.Failures = append(summary.Failures, errs.ItemFailure{
				Stage: "assemble",
				Item:  day.Key(),
				Error: err.Error(),
			})
			continue
		}
		summary.Built = append(summary.Built, day)
	}
	return summary, nil
}

func (a *Assembler) assembleDay(day models.Day) error {
	paths, err := a.frames.Frames(day)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("day %s has no frames", day.Key())
	}

	anim := &gif.GIF{LoopCount: 0}
	delay := FrameDelay(len(paths))
	for _, path := range paths {
		img, err := decodeFile(path)
		if err != nil {
			return err
		}
		anim.Image = append(anim.Image, a.quantize(img))
		anim.Delay = append(anim.Delay, delay)
	}

	err = storage.WriteFileAtomic(a.OutputPath(day), func(w io.Writer) error {
		return gif.EncodeAll(w, anim)
	})
	if err != nil {
		return err
	}

	a.logger.InfoWithFields("Assembled day animation", map[string]interface{}{
		"day":    day.Key(),
		"frames": len(paths),
	})
	return nil
}

// FrameDelay is the per-frame delay in hundredths of a second. It grows
// with the frame count: n frames last n milliseconds each, rounded up.
func FrameDelay(frames int) int {
	delay := (frames + 9) / 10
	if delay < 1 {
		delay = 1
	}
	return delay
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func (a *Assembler) quantize(img image.Image) *image.Paletted {
	if p, ok := img.(*image.Paletted); ok {
		return p
	}
	bounds := img.Bounds()
	out := image.NewPaletted(bounds, palette.Plan9)
	if a.dither {
		draw.FloydSteinberg.Draw(out, bounds, img, bounds.Min)
	} else {
		draw.Draw(out, bounds, img, bounds.Min, draw.Src)
	}
	return out
}
