package video

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/chenBenjamin97/shot-analyzer/pkg/config"
	"github.com/chenBenjamin97/shot-analyzer/pkg/detect"
	"github.com/chenBenjamin97/shot-analyzer/pkg/game"
	"gocv.io/x/gocv"
)

//detectorQueue is how many detector frames may wait for the video reader
const detectorQueue = 32

//Analyze runs a recorded video through a new session. The detector process streams detections while this function
//reads the matching video frames, measures the hoop contour where the detector did not, and hands each frame to the
//session loop. The session is finished when the video runs out of frames.
func Analyze(ctx context.Context, videoPath string, loop *game.Loop, det config.DetectorConfig) error {
	cap, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		return fmt.Errorf("Analyze: Could not open '%s', got '%v'", videoPath, err)
	}
	defer cap.Close()

	width, height := cap.Get(gocv.VideoCaptureFrameWidth), cap.Get(gocv.VideoCaptureFrameHeight)
	log.Printf("Analyze: Opened '%s' (%vx%v, %v FPS)", videoPath, width, height, cap.Get(gocv.VideoCaptureFPS))

	if err := loop.Do(ctx, func(o *game.Orchestrator) error {
		o.Reset()
		if err := o.Start(); err != nil {
			return err
		}
		return o.CameraReady(width, height)
	}); err != nil {
		return fmt.Errorf("Analyze: Could not start session, got '%v'", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	framesC := make(chan *detect.FrameEvents, detectorQueue)
	detectorErrC := make(chan error, 1)
	go func() {
		detectorErrC <- detect.RunDetector(ctx, det.Command, det.Args, videoPath, framesC)
	}()

	frame := gocv.NewMat()
	defer frame.Close()
	framesRead := 0

	var loopErr error
	for f := range framesC {
		framesRead = seek(cap, &frame, framesRead, f.Number)
		if !frame.Empty() {
			fillContours(frame, f)
		}

		err := loop.Do(ctx, func(o *game.Orchestrator) error { return detect.Apply(o, f) })
		if errors.Is(err, game.ErrLoopStopped) || errors.Is(err, context.Canceled) {
			loopErr = err
			cancel()
			break
		}
		if err != nil {
			log.Printf("Analyze: Frame %d, got '%v'", f.Number, err)
		}
	}
	for range framesC { //let the detector goroutine return
	}

	detectorErr := <-detectorErrC
	if loopErr != nil {
		return fmt.Errorf("Analyze: Session loop unavailable, got '%v'", loopErr)
	}
	if detectorErr != nil {
		log.Printf("Analyze: Detector ended with error, got '%v'", detectorErr)
	}

	if err := loop.Do(ctx, func(o *game.Orchestrator) error { return o.VideoEnded() }); err != nil {
		log.Printf("Analyze: Could not finish session, got '%v'", err)
		return err
	}
	return detectorErr
}

//seek reads video frames until the frame numbered n (1-based) is in frame. Detector frames without a usable number
//advance the video by one frame. It returns the number of frames read so far.
func seek(cap *gocv.VideoCapture, frame *gocv.Mat, read, n int) int {
	if n <= read {
		n = read + 1
	}
	for read < n {
		if !cap.Read(frame) { //no more frames in the file
			break
		}
		read++
	}
	return read
}

//fillContours measures the contour of hoop events the detector sent without one
func fillContours(frame gocv.Mat, f *detect.FrameEvents) {
	for i := range f.Events {
		e := &f.Events[i]
		if e.Kind != detect.KindHoop || e.Rect == nil || e.Contour != nil {
			continue
		}
		if contour, ok := HoopContour(frame, *e.Rect); ok {
			e.Contour = contour
		}
	}
}
