package core

// worker.go runs CSV parsing off the caller's goroutine.
//
// The worker speaks a fixed message contract:
//
//	request:  {"command": "parse",          "payload": {"text": "..."}}
//	success:  {"command": "parse-complete", "payload": [records...]}
//	failure:  {"command": "error",          "payload": "message"}
//
// Exactly one request may be outstanding. There is no cancellation: once
// accepted, a parse runs to completion and its reply is delivered once.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Parse worker commands.
const (
	CommandParse         = "parse"
	CommandParseComplete = "parse-complete"
	CommandError         = "error"
)

// ParsePayload carries the text to parse.
type ParsePayload struct {
	Text string `json:"text"`
}

// ParseRequest is a message sent to the worker.
type ParseRequest struct {
	ID      string       `json:"id,omitempty"`
	Command string       `json:"command"`
	Payload ParsePayload `json:"payload"`
}

// NewParseRequest builds a parse request with a fresh id.
func NewParseRequest(text string) ParseRequest {
	return ParseRequest{
		ID:      uuid.NewString(),
		Command: CommandParse,
		Payload: ParsePayload{Text: text},
	}
}

// ParseReply is the worker's single response to a request.
type ParseReply struct {
	ID      string
	Command string
	Records []RawRecord // set for CommandParseComplete
	Message string      // set for CommandError

	err error
}

// Err returns the typed error behind an error reply.
func (r ParseReply) Err() error {
	if r.Command != CommandError {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	return fmt.Errorf("parse failed: %s", r.Message)
}

// MarshalJSON renders the reply in the worker message format.
func (r ParseReply) MarshalJSON() ([]byte, error) {
	msg := struct {
		ID      string `json:"id,omitempty"`
		Command string `json:"command"`
		Payload any    `json:"payload"`
	}{ID: r.ID, Command: r.Command}

	if r.Command == CommandError {
		msg.Payload = r.Message
	} else {
		records := r.Records
		if records == nil {
			records = []RawRecord{}
		}
		msg.Payload = records
	}
	return json.Marshal(msg)
}

type parseJob struct {
	req   ParseRequest
	reply chan ParseReply
}

// ParseService is the background CSV parsing worker.
type ParseService struct {
	opts    ParseOptions
	limiter *SlotLimiter
	jobs    chan parseJob

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewParseService starts a worker. maxWait bounds how long SubmitWait
// queues behind an outstanding parse.
func NewParseService(opts ParseOptions, maxWait time.Duration) *ParseService {
	p := &ParseService{
		opts:    opts,
		limiter: NewSlotLimiter(1, maxWait),
		jobs:    make(chan parseJob),
		done:    make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Submit hands req to the worker and returns a channel receiving exactly one
// reply. It fails with ErrParseInFlight if a parse is outstanding.
func (p *ParseService) Submit(req ParseRequest) (<-chan ParseReply, error) {
	if !p.limiter.TryAcquire() {
		return nil, ErrParseInFlight
	}
	return p.enqueue(req)
}

// SubmitWait is like Submit but waits for the outstanding parse to finish.
func (p *ParseService) SubmitWait(ctx context.Context, req ParseRequest) (<-chan ParseReply, error) {
	if err := p.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	return p.enqueue(req)
}

func (p *ParseService) enqueue(req ParseRequest) (<-chan ParseReply, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	job := parseJob{req: req, reply: make(chan ParseReply, 1)}

	select {
	case p.jobs <- job:
		return job.reply, nil
	case <-p.done:
		p.limiter.Release()
		return nil, ErrParseServiceClosed
	}
}

// Parse submits text and waits for the reply. If ctx ends first the parse
// still completes in the background but its result is dropped.
func (p *ParseService) Parse(ctx context.Context, text string) ([]RawRecord, error) {
	replies, err := p.Submit(NewParseRequest(text))
	if err != nil {
		return nil, err
	}
	return awaitReply(ctx, replies)
}

// ParseWait is Parse using SubmitWait.
func (p *ParseService) ParseWait(ctx context.Context, text string) ([]RawRecord, error) {
	replies, err := p.SubmitWait(ctx, NewParseRequest(text))
	if err != nil {
		return nil, err
	}
	return awaitReply(ctx, replies)
}

func awaitReply(ctx context.Context, replies <-chan ParseReply) ([]RawRecord, error) {
	select {
	case reply := <-replies:
		if err := reply.Err(); err != nil {
			return nil, err
		}
		return reply.Records, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Busy reports whether a parse is outstanding.
func (p *ParseService) Busy() bool {
	return p.limiter.ActiveCount() > 0
}

// WaitIdle blocks until no parse is outstanding or ctx ends.
func (p *ParseService) WaitIdle(ctx context.Context) error {
	return p.limiter.WaitForDrain(ctx)
}

// Close stops the worker after the outstanding parse, if any, replies.
func (p *ParseService) Close() {
	p.closeOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}

func (p *ParseService) run() {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			reply := p.handle(job.req)
			// Free the slot before replying so the receiver can submit again
			// as soon as it sees the reply.
			p.limiter.Release()
			job.reply <- reply
			close(job.reply)
		case <-p.done:
			return
		}
	}
}

func (p *ParseService) handle(req ParseRequest) ParseReply {
	logger := slog.With("request_id", req.ID)

	if req.Command != CommandParse {
		logger.Warn("parse worker: unknown command", "command", req.Command)
		return ParseReply{
			ID:      req.ID,
			Command: CommandError,
			Message: fmt.Sprintf("unknown command %q", req.Command),
		}
	}

	start := time.Now()
	logger.Debug("parse worker: started", "chars", len(req.Payload.Text))

	records, err := ParseCSV(req.Payload.Text, p.opts)
	if err != nil {
		logger.Info("parse worker: failed", "error", err)
		return ParseReply{
			ID:      req.ID,
			Command: CommandError,
			Message: "CSV parse error: " + err.Error(),
			err:     err,
		}
	}

	logger.Debug("parse worker: completed",
		"rows", len(records),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ParseReply{ID: req.ID, Command: CommandParseComplete, Records: records}
}
