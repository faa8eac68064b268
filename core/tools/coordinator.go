package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/koscakluka/ema-realtime/core/events"
	"github.com/koscakluka/ema-realtime/core/recording"
	"github.com/koscakluka/ema-realtime/core/transcript"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultSettleDelay  = 3 * time.Second
	defaultPostArmDelay = 1 * time.Second
)

// Recorder captures and persists the recording the tools drive.
type Recorder interface {
	Start(ctx context.Context, state recording.State) error
	Finalize(ctx context.Context, state recording.State, filename string) error
}

// Interrupter cancels in-flight assistant speech.
type Interrupter interface {
	Interrupt() error
}

// Annotator receives the breadcrumbs tool calls produce.
type Annotator interface {
	AddBreadcrumb(title string, data any) transcript.Breadcrumb
}

// Coordinator logs every tool call once and drives the recording workflow
// from the recording tools. Observe must be called from a single goroutine;
// the side-effect sequences it starts run on tracked goroutines.
type Coordinator struct {
	mu            sync.Mutex
	state         recording.State
	stopRequested bool
	// epoch is bumped by Reset; side-effect sequences started under an
	// older epoch drop their transitions.
	epoch uint64

	record      *CallRecord
	recorder    Recorder
	interrupter Interrupter
	annotator   Annotator
	onChange    func(recording.State)
	now         func() time.Time

	settleDelay  time.Duration
	postArmDelay time.Duration

	toolCalls metric.Int64Counter

	wg sync.WaitGroup
}

type CoordinatorOption func(*Coordinator)

func WithCallRecord(record *CallRecord) CoordinatorOption {
	return func(c *Coordinator) {
		if record != nil {
			c.record = record
		}
	}
}

func WithRecorder(recorder Recorder) CoordinatorOption {
	return func(c *Coordinator) { c.recorder = recorder }
}

func WithInterrupter(interrupter Interrupter) CoordinatorOption {
	return func(c *Coordinator) { c.interrupter = interrupter }
}

func WithAnnotator(annotator Annotator) CoordinatorOption {
	return func(c *Coordinator) { c.annotator = annotator }
}

// WithStateCallback registers a callback for every recording state change.
// It is called without the coordinator lock held.
func WithStateCallback(callback func(recording.State)) CoordinatorOption {
	return func(c *Coordinator) { c.onChange = callback }
}

// WithSettleDelay sets how long to wait after interrupting speech before
// capture starts.
func WithSettleDelay(delay time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.settleDelay = delay }
}

func WithPostArmDelay(delay time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.postArmDelay = delay }
}

func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		state:        recording.NewState(),
		record:       NewCallRecord(),
		onChange:     func(recording.State) {},
		now:          time.Now,
		settleDelay:  defaultSettleDelay,
		postArmDelay: defaultPostArmDelay,
	}
	for _, opt := range opts {
		opt(c)
	}

	toolCalls, err := meter.Int64Counter("tools.calls", metric.WithDescription("Tool calls observed for the first time"))
	if err != nil {
		logger.Warn("failed to create tool call counter", "error", err)
	}
	c.toolCalls = toolCalls

	return c
}

// Observe handles a tool call seen on any channel. Snapshots whose arguments
// are still streaming are skipped; the first final snapshot of an item id is
// logged, annotated and dispatched. It reports whether this call was that
// first final snapshot.
func (c *Coordinator) Observe(ctx context.Context, call events.ToolCall) bool {
	if call.ItemID == "" {
		return false
	}
	if !call.Ready() {
		logger.DebugContext(ctx, "tool call arguments pending", "name", call.Name, "item_id", call.ItemID, "status", call.Status)
		return false
	}
	if !c.record.Mark(call.ItemID) {
		return false
	}

	ctx, span := tracer.Start(ctx, "observe tool call")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", call.Name), attribute.String("tool.item_id", call.ItemID))

	arguments := ParseArguments(call.Arguments)
	logger.InfoContext(ctx, "tool.call", "name", call.Name, "arguments", arguments)
	if c.toolCalls != nil {
		c.toolCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("tool.name", call.Name)))
	}

	if c.annotator != nil {
		data := map[string]any{"arguments": call.Arguments}
		if call.Output != "" {
			data["output"] = call.Output
		}
		c.annotator.AddBreadcrumb("Tool call: "+call.Name, data)
	}

	if err := c.dispatch(ctx, call.Name, arguments); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WarnContext(ctx, "tool call not applied", "name", call.Name, "error", err)
	}
	return true
}

func (c *Coordinator) State() recording.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Wait blocks until all side-effect sequences have finished.
func (c *Coordinator) Wait() { c.wg.Wait() }

// Reset returns the workflow to idle and forgets observed calls. The
// captured subject name is kept.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	subject := c.state.Subject
	c.state = recording.NewState()
	c.state.Subject = subject
	c.stopRequested = false
	c.epoch++
	state := c.state
	c.mu.Unlock()

	c.record.Reset()
	c.onChange(state)
}

func (c *Coordinator) dispatch(ctx context.Context, name string, arguments map[string]any) error {
	switch name {
	case ToolStartRecording:
		return c.startRecording(ctx, arguments)
	case ToolSaveStudentName:
		return c.saveStudentName(ctx, arguments)
	case ToolStopRecording:
		return c.stopRecording(ctx)
	}
	return nil
}

func (c *Coordinator) startRecording(ctx context.Context, arguments map[string]any) error {
	c.mu.Lock()
	if c.state.Phase != recording.PhaseIdle {
		phase := c.state.Phase
		c.mu.Unlock()
		return fmt.Errorf("cannot start recording while %s", phase)
	}
	c.state.Kind = recording.ParseKind(stringArgument(arguments, "recordingType", string(recording.KindAudio)))
	c.state.Purpose = stringArgument(arguments, "purpose", recording.DefaultPurpose)
	c.state.Description = stringArgument(arguments, "description", recording.DefaultDescription)
	c.state.Subject = c.state.SubjectOrDefault()
	if err := c.state.Advance(recording.PhaseArmed); err != nil {
		c.mu.Unlock()
		return err
	}
	armed := c.state
	epoch := c.epoch
	c.mu.Unlock()
	c.onChange(armed)

	if c.interrupter != nil {
		if err := c.interrupter.Interrupt(); err != nil {
			logger.WarnContext(ctx, "failed to interrupt speech before recording", "error", err)
		}
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		if err := sleep(ctx, c.settleDelay); err != nil {
			logger.DebugContext(ctx, "recording settle delay cut short", "error", err)
		}

		c.mu.Lock()
		if c.epoch != epoch {
			c.mu.Unlock()
			logger.DebugContext(ctx, "recording sequence superseded by reset")
			return
		}
		if err := c.state.Advance(recording.PhaseRecording); err != nil {
			c.mu.Unlock()
			logger.WarnContext(ctx, "failed to arm recording", "error", err)
			return
		}
		c.state.StartedAt = c.now()
		started := c.state
		c.mu.Unlock()
		c.onChange(started)

		if c.recorder != nil {
			if err := c.recorder.Start(ctx, started); err != nil {
				logger.ErrorContext(ctx, "failed to start recorder", "error", err)
			}
		}

		if err := sleep(ctx, c.postArmDelay); err != nil {
			logger.DebugContext(ctx, "recording post-arm delay cut short", "error", err)
		}

		c.mu.Lock()
		stop := c.stopRequested && c.epoch == epoch
		if stop {
			c.stopRequested = false
		}
		c.mu.Unlock()
		if stop {
			if err := c.stopRecording(ctx); err != nil {
				logger.WarnContext(ctx, "failed to apply pending stop", "error", err)
			}
		}
	}()
	return nil
}

func (c *Coordinator) saveStudentName(ctx context.Context, arguments map[string]any) error {
	name := stringArgument(arguments, "name", "")
	if name == "" {
		return fmt.Errorf("no student name given")
	}

	c.mu.Lock()
	c.state.Subject = name
	state := c.state
	c.mu.Unlock()

	logger.InfoContext(ctx, "student.name.saved", "student_name", name)
	c.onChange(state)
	return nil
}

func (c *Coordinator) stopRecording(ctx context.Context) error {
	c.mu.Lock()
	switch c.state.Phase {
	case recording.PhaseArmed:
		c.stopRequested = true
		c.mu.Unlock()
		logger.DebugContext(ctx, "stop requested while arming")
		return nil
	case recording.PhaseRecording:
	default:
		phase := c.state.Phase
		c.mu.Unlock()
		return fmt.Errorf("cannot stop recording while %s", phase)
	}

	if err := c.state.Advance(recording.PhaseStopping); err != nil {
		c.mu.Unlock()
		return err
	}
	stopping := c.state
	_ = c.state.Advance(recording.PhaseProcessing)
	processing := c.state
	epoch := c.epoch
	c.mu.Unlock()

	c.onChange(stopping)
	c.onChange(processing)
	logger.InfoContext(ctx, "recording.stopped", "kind", string(processing.Kind), "purpose", processing.Purpose)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.finalize(ctx, processing, epoch)
	}()
	return nil
}

func (c *Coordinator) finalize(ctx context.Context, state recording.State, epoch uint64) {
	ctx, span := tracer.Start(ctx, "finalize recording")
	defer span.End()

	filename := state.Filename(c.now())
	span.SetAttributes(attribute.String("recording.filename", filename))

	var err error
	if c.recorder != nil {
		err = c.recorder.Finalize(ctx, state, filename)
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		logger.InfoContext(ctx, "recording finalized after reset", "filename", filename, "error", err)
		return
	}
	_ = c.state.Advance(recording.PhaseIdle)
	c.state.StartedAt = time.Time{}
	idle := c.state
	c.mu.Unlock()
	c.onChange(idle)

	if err != nil {
		err = fmt.Errorf("failed to finalize recording: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "failed to save recording", "error", err)
		c.annotate("Failed to save recording", map[string]any{"error": err.Error(), "filename": filename})
		return
	}
	c.annotate("Recording metadata saved", map[string]any{
		"kind":        string(state.Kind),
		"purpose":     state.Purpose,
		"description": state.Description,
		"subject":     state.SubjectOrDefault(),
		"filename":    filename,
	})
}

func (c *Coordinator) annotate(title string, data any) {
	if c.annotator != nil {
		c.annotator.AddBreadcrumb(title, data)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
