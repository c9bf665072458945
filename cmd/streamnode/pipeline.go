package main

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lanternops/streamnode/internal/capture"
	"github.com/lanternops/streamnode/internal/codec"
	"github.com/lanternops/streamnode/internal/config"
	"github.com/lanternops/streamnode/internal/display"
	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
	"github.com/lanternops/streamnode/internal/transcoder"
	"github.com/lanternops/streamnode/internal/workerpool"
)

// pipeline wires capture -> transcoder (H.264) and capture -> display
// together, matching spec.md's "Expected threads: capture pump, encoder
// pump, display pump" model: one goroutine pumps captured buffers, handing
// each off to the encoder and display pumps running on the shared worker
// pool. A buffer is returned to the capture device only once both pumps
// are done with it.
type pipeline struct {
	cap  *capture.Capture
	tc   *transcoder.Transcoder
	disp *display.Display
	pool *workerpool.Pool

	stopCapture chan struct{}
	captureDone chan struct{}

	h264Buf frame.Frame
}

func newPipeline(cfg *config.Config) (*pipeline, error) {
	p := &pipeline{
		cap:         capture.New(),
		pool:        workerpool.New(2, 8),
		stopCapture: make(chan struct{}),
		captureDone: make(chan struct{}),
	}

	rcMode := codec.RCModeCBR
	if cfg.RCMode == "vbr" {
		rcMode = codec.RCModeVBR
	}
	p.tc = transcoder.New(transcoder.Config{
		RC: codec.RateControl{
			Mode:       rcMode,
			BitrateBps: cfg.BitrateTarget,
			GOPSize:    cfg.GOPSize,
			FPSNum:     cfg.FPSNum,
			FPSDen:     cfg.FPSDen,
		},
		H264: codec.H264Params{
			Profile: cfg.Profile,
			Level:   cfg.Level,
			QPInit:  cfg.QPInit,
			QPMin:   cfg.QPMin,
			QPMax:   cfg.QPMax,
		},
	})

	p.disp = display.New()
	if err := p.disp.Open(display.Config{
		CardPath:          cfg.DisplayDevice,
		PortName:          cfg.PortName,
		Width:             uint16(cfg.Width),
		Height:            uint16(cfg.Height),
		RefreshHz:         uint32(cfg.Hz),
		CaptureConfigured: true,
		BlankAfter:        time.Duration(cfg.BlankAfterSeconds) * time.Second,
	}); err != nil {
		log.Error("display open failed", "error", err)
		return nil, err
	}

	if _, err := p.cap.Open(capture.Config{
		DevicePath: cfg.CaptureDevice,
		Width:      uint32(cfg.Width),
		Height:     uint32(cfg.Height),
		RefreshHz:  uint32(cfg.Hz),
	}); err != nil {
		log.Error("capture open failed", "error", err)
		p.disp.Close()
		return nil, err
	}

	go p.capturePump()
	return p, nil
}

func (p *pipeline) capturePump() {
	defer close(p.captureDone)
	for {
		select {
		case <-p.stopCapture:
			return
		default:
		}

		buf, err := p.cap.Poll()
		if err != nil {
			if k, ok := errs.KindOf(err); ok && k.Transient() {
				continue
			}
			log.Error("capture poll failed", "error", err)
			return
		}
		if buf == nil {
			continue
		}
		p.dispatch(buf)
	}
}

// dispatch hands one captured buffer to both the encoder and display pumps.
// Each pump's work against the buffer's data completes before its task
// returns (Transcode copies into owned buffers synchronously; Present's
// release callback only fires once the display is truly done with it), so
// a simple two-of-two countdown is enough to know when it's safe to return
// the buffer to the capture device.
func (p *pipeline) dispatch(buf *frame.CaptureBuffer) {
	remaining := int32(2)
	release := func() {
		if atomic.AddInt32(&remaining, -1) == 0 {
			if err := p.cap.Release(buf.Index); err != nil {
				log.Warn("capture release failed", "index", buf.Index, "error", err)
			}
		}
	}

	if !p.pool.SubmitLabeled("transcode", func() {
		defer release()
		if err := p.tc.Transcode(&p.h264Buf, buf.Raw); err != nil {
			if k, ok := errs.KindOf(err); !ok || !k.Transient() {
				log.Warn("transcode failed", "error", err)
			}
		}
	}) {
		release()
	}

	if !p.pool.SubmitLabeled("present", func() {
		if err := p.disp.Present(buf, release); err != nil {
			log.Warn("display present failed", "error", err)
		}
	}) {
		release()
	}
}

func (p *pipeline) Close() {
	close(p.stopCapture)
	<-p.captureDone

	p.pool.StopAccepting()
	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.pool.Drain(drainCtx)

	if err := p.tc.Close(); err != nil {
		log.Warn("transcoder close failed", "error", err)
	}
	if err := p.disp.Close(); err != nil {
		log.Warn("display close failed", "error", err)
	}
	if err := p.cap.Close(); err != nil {
		log.Warn("capture close failed", "error", err)
	}
}
