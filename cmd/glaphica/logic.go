package main

import (
	"time"

	"github.com/SunastanS/glaphica/applog"
	"github.com/SunastanS/glaphica/brush"
	"github.com/SunastanS/glaphica/protocol"
	"github.com/SunastanS/glaphica/scheduler"
	"github.com/SunastanS/glaphica/view"
)

// engineLogic implements runtime.BusinessLogic: the engine thread's
// per-tick translation of drained pointer samples into BrushCommand and
// Resize commands.
type engineLogic struct {
	shaper    *brush.Shaper
	scheduler *scheduler.FrameScheduler
	view      *view.Transform
	layer     protocol.LayerID
	blend     protocol.BlendMode
}

func newEngineLogic(layer protocol.LayerID, vt *view.Transform, fs *scheduler.FrameScheduler) *engineLogic {
	radius := func(pressure float64) float64 { return 4 + 20*pressure }
	opacity := func(pressure float64) float64 { return pressure }
	return &engineLogic{
		shaper:    brush.NewShaper(0.25, radius, opacity),
		scheduler: fs,
		view:      vt,
		layer:     layer,
	}
}

// Process implements runtime.BusinessLogic. Pointer samples have already
// had the view's screen_to_canvas inverse applied by the driver
// collaborator; this method only shapes them into dabs and batches the
// resulting brush commands.
func (l *engineLogic) Process(samples []protocol.PointerEvent, resizes []protocol.ResizeEvent) []protocol.Command {
	var cmds []protocol.Command

	for _, rs := range resizes {
		l.view.SetViewport(float64(rs.Width), float64(rs.Height))
		cmds = append(cmds, protocol.Command{
			Kind:          protocol.CmdResize,
			ResizeWidth:   rs.Width,
			ResizeHeight:  rs.Height,
			ViewTransform: l.view.Matrix(),
		})
	}

	var dabs []protocol.Dab
	for _, ev := range samples {
		l.scheduler.NotifyStrokeActivity(time.Now())
		dabs = append(dabs, l.shaper.Feed(ev)...)
		applog.Debugf(applog.CategoryBrushTrace, "session=%d phase=%d dabs=%d", ev.Session, ev.Phase, len(dabs))
	}
	if len(dabs) > 0 {
		cmds = append(cmds, protocol.Command{
			Kind: protocol.CmdEnqueueBrushCommands,
			BrushBatch: []protocol.BrushCommand{{
				LayerID:   l.layer,
				Dabs:      dabs,
				BlendMode: l.blend,
			}},
		})
	}

	return cmds
}
