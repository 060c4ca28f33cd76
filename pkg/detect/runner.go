package detect

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"strings"
)

const (
	frameMarker = "Frame #:"
	endMarker   = "EOF"
	fpsMarker   = "FPS: "
)

//maxLineSize bounds one detector output line, trajectory events can be long
const maxLineSize = 1 << 20

//RunDetector executes the external detector on given video and streams its per-frame detections through framesC.
//The detector prints a "Frame #: n" line before each frame's events, one JSON event per line, and "EOF" when done.
//Because this function is the only one who writes to framesC, it closes it before returning.
func RunDetector(ctx context.Context, command string, args []string, videoPath string, framesC chan<- *FrameEvents) error {
	defer close(framesC)

	cmd := exec.CommandContext(ctx, command, append(append([]string{}, args...), "--video", videoPath)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("RunDetector: Could not get detector's standard output, got '%v'", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("RunDetector: Could not start detector, got '%v'", err)
	}

	parseErr := Parse(ctx, stdout, framesC)
	if parseErr != nil {
		io.Copy(io.Discard, stdout) //let the process exit instead of blocking on a full pipe
	}

	if err := cmd.Wait(); err != nil {
		log.Printf("RunDetector: Error waiting detector's process, got '%v'", err)
		if parseErr == nil {
			parseErr = err
		}
	}
	return parseErr
}

//Parse reads detector output from r and sends one FrameEvents per frame. It does not close framesC.
func Parse(ctx context.Context, r io.Reader, framesC chan<- *FrameEvents) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var current *FrameEvents

	send := func() error {
		if current == nil {
			return nil
		}
		select {
		case framesC <- current:
		case <-ctx.Done():
			return ctx.Err()
		}
		current = nil
		return nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue

		case strings.HasPrefix(line, frameMarker): //a new frame begins, pass the previous one on
			if err := send(); err != nil {
				return err
			}
			num, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, frameMarker)))
			if err != nil {
				log.Printf("Parse: Bad frame marker '%s', got '%v'", line, err)
			}
			current = NewFrameEvents(num)

		case line == endMarker: //finished to read all frames
			return send()

		case strings.HasPrefix(line, fpsMarker): //this is a log print, skip it
			continue

		case strings.HasPrefix(line, "{"):
			if current == nil {
				log.Printf("Parse: Event before any frame marker, skipping")
				continue
			}
			e := Event{}
			if err := json.Unmarshal([]byte(line), &e); err != nil {
				log.Printf("Parse: Error, got '%v'", err)
				continue
			}
			current.Events = append(current.Events, e)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("Parse: Error reading detector output, got '%v'", err)
	}
	return send() //detector exited without EOF marker
}
