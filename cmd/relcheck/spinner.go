package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"relcheck/internal/update"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/x/ansi"
)

// checkStages lists the steps of a check in the order the checker reports them.
var checkStages = []update.Stage{
	update.StageFetching,
	update.StageNormalizing,
	update.StageSelecting,
}

var stageMessages = map[update.Stage]string{
	update.StageFetching:    "Asking the release server...",
	update.StageNormalizing: "Sorting through releases...",
	update.StageSelecting:   "Comparing versions...",
}

const clearLine = "\r" + ansi.EraseEntireLine

// stageSpinner shows which step of a check is running on a single stderr
// line. Nothing is drawn for checks that finish within delay.
type stageSpinner struct {
	writer   io.Writer
	delay    time.Duration
	interval time.Duration
	frames   []string
	width    int

	mu      sync.Mutex
	stage   update.Stage
	detail  string
	started bool

	redraw chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

func newStageSpinner(w io.Writer, delay time.Duration) *stageSpinner {
	return newCustomStageSpinner(w, delay, spinner.MiniDot.FPS)
}

func newCustomStageSpinner(w io.Writer, delay, interval time.Duration) *stageSpinner {
	if w == nil {
		w = io.Discard
	}
	sp := &stageSpinner{
		writer:   w,
		delay:    delay,
		interval: interval,
		frames:   spinner.MiniDot.Frames,
		width:    outputWidth,
		redraw:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go sp.run()
	return sp
}

// Stage records the step the checker reached. It matches update.StageFunc;
// bursts of stages collapse into one redraw of the latest.
func (s *stageSpinner) Stage(stage update.Stage, detail string) {
	if s == nil {
		return
	}
	select {
	case <-s.stopCh:
		return
	default:
	}
	s.mu.Lock()
	s.stage, s.detail, s.started = stage, detail, true
	s.mu.Unlock()
	select {
	case s.redraw <- struct{}{}:
	default:
	}
}

// Stop erases the progress line, if one was drawn, and waits for the
// drawing goroutine to exit.
func (s *stageSpinner) Stop() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		close(s.stopCh)
		<-s.doneCh
	})
}

func (s *stageSpinner) run() {
	defer close(s.doneCh)

	var reveal <-chan time.Time
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		reveal = timer.C
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	visible := s.delay <= 0
	drawn := false
	frame := 0
	draw := func() {
		line, ok := s.line(frame)
		if !ok {
			return
		}
		frame++
		drawn = true
		_, _ = fmt.Fprint(s.writer, clearLine+line)
	}

	for {
		select {
		case <-s.stopCh:
			if drawn {
				_, _ = fmt.Fprint(s.writer, clearLine)
			}
			return
		case <-reveal:
			reveal = nil
			visible = true
			draw()
		case <-s.redraw:
			if visible {
				draw()
			}
		case <-ticker.C:
			if visible {
				draw()
			}
		}
	}
}

// line renders the current stage, truncated to the terminal width. It
// reports false until the checker has reported a stage.
func (s *stageSpinner) line(frame int) (string, bool) {
	s.mu.Lock()
	stage, detail, started := s.stage, s.detail, s.started
	s.mu.Unlock()
	if !started {
		return "", false
	}
	glyph := s.frames[frame%len(s.frames)]
	return ansi.Truncate(glyph+" "+formatStageMessage(stage, detail), s.width, "…"), true
}

// stagePosition returns the 1-based step of stage, or 0 when unknown.
func stagePosition(stage update.Stage) int {
	for i, st := range checkStages {
		if st == stage {
			return i + 1
		}
	}
	return 0
}

func formatStageMessage(stage update.Stage, detail string) string {
	msg, ok := stageMessages[stage]
	if !ok {
		msg = "Checking for updates..."
	}
	if pos := stagePosition(stage); pos > 0 {
		msg = fmt.Sprintf("[%d/%d] %s", pos, len(checkStages), msg)
	}
	if detail = strings.TrimSpace(detail); detail != "" {
		msg += " (" + detail + ")"
	}
	return msg
}
