// Package delivery resolves symbolic delivery targets and fans content out
// to platform adapters and local storage (spec §4.H), ported from
// original_source/gateway/delivery.py's DeliveryTarget/DeliveryRouter.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/scarlettdetekelala/hermes-agent/internal/bus"
	"github.com/scarlettdetekelala/hermes-agent/internal/channels"
	"github.com/scarlettdetekelala/hermes-agent/internal/config"
	"github.com/scarlettdetekelala/hermes-agent/internal/tracing"
)

const tracerName = "hermes-agent/delivery"

// Result is the outcome of delivering to one target (spec §3 DeliveryResult).
type Result struct {
	Success   bool
	MessageID string
	Error     error
}

// Options carries the optional job metadata threaded through to the local
// sink's markdown header and the S3 mirror key.
type Options struct {
	JobID    string
	JobName  string
	Metadata map[string]string
}

// Router fans content out to adapters and the local sink concurrently,
// never short-circuiting on a single target's failure (spec §4.H).
type Router struct {
	cfg       *config.Config
	adapters  map[config.Platform]channels.Channel
	mirror    *S3Mirror
	outputDir string
}

// NewRouter builds a Router. adapters must not include config.PlatformLocal
// — local is handled directly by the router's own sink writer, matching
// the Python original's explicit "if target.platform == Platform.LOCAL"
// branch rather than going through an adapter lookup.
func NewRouter(cfg *config.Config, adapters map[config.Platform]channels.Channel, mirror *S3Mirror) *Router {
	return &Router{cfg: cfg, adapters: adapters, mirror: mirror, outputDir: cfg.CronOutputDir()}
}

// Deliver sends content to every target concurrently and returns a result
// per target, keyed by the target's TargetSpec string form so callers and
// logs can cross-reference it against the original delivery spec list.
func (r *Router) Deliver(ctx context.Context, content string, targets []Target, opts Options) map[string]Result {
	ctx, span := tracing.StartSpan(ctx, tracerName, "delivery.deliver",
		attribute.Int("delivery.target_count", len(targets)),
		attribute.String("delivery.job_id", opts.JobID),
	)
	defer span.End()

	results := make(map[string]Result, len(targets))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, t := range targets {
		t := t
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := r.deliverOne(ctx, t, content, opts)
			mu.Lock()
			results[t.ToString()] = res
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

func (r *Router) deliverOne(ctx context.Context, t Target, content string, opts Options) (res Result) {
	_, span := tracing.StartSpan(ctx, tracerName, "delivery.target",
		attribute.String("delivery.platform", string(t.Platform)),
	)
	defer func() {
		if p := recover(); p != nil {
			slog.Error("delivery target panicked", "target", t.ToString(), "panic", p)
			res = Result{Success: false, Error: fmt.Errorf("delivery target panicked: %v", p)}
		}
		tracing.EndWithError(span, res.Error)
	}()

	if t.Platform == config.PlatformLocal {
		return r.deliverLocal(ctx, content, opts)
	}
	return r.deliverToPlatform(ctx, t, content, opts)
}

func (r *Router) deliverLocal(ctx context.Context, content string, opts Options) Result {
	sink, err := writeLocalSink(r.outputDir, content, opts.JobID, opts.JobName, opts.Metadata)
	if err != nil {
		return Result{Success: false, Error: err}
	}
	if r.mirror != nil {
		key := sinkKey(opts.JobID, sink.Timestamp)
		if err := r.mirror.Mirror(ctx, key, content); err != nil {
			slog.Warn("s3 mirror failed, local copy still written", "error", err, "path", sink.Path)
		}
	}
	return Result{Success: true, MessageID: sink.Path}
}

func sinkKey(jobID, timestamp string) string {
	subdir := "misc"
	if jobID != "" {
		subdir = jobID
	}
	return filepath.ToSlash(filepath.Join(subdir, timestamp+".md"))
}

// deliverToPlatform splits content into text/images/documents (spec §4.E
// attachment sentinels), validates extracted attachments, and invokes the
// adapter's send_* methods. Attachment sends never short-circuit the text
// send or each other — every piece is attempted. The result is a success
// when at least one piece (text, image or document) was delivered; the last
// error seen, if any, is still carried in Result.Error, so a send that
// delivers the text but drops one bad image is a partial success, not a
// hard failure, matching the original's best-effort delivery philosophy.
func (r *Router) deliverToPlatform(ctx context.Context, t Target, content string, opts Options) Result {
	adapter, ok := r.adapters[t.Platform]
	if !ok {
		return Result{Success: false, Error: fmt.Errorf("%w: no adapter configured for %s", ErrDeliveryTargetUnresolved, t.Platform)}
	}
	if t.ChatID == "" {
		return Result{Success: false, Error: fmt.Errorf("%w: no chat id for %s delivery", ErrDeliveryTargetUnresolved, t.Platform)}
	}

	attachments, text := channels.ExtractAttachments(content)

	var lastErr error
	var messageID string
	var anySuccess bool

	if strings.TrimSpace(text) != "" {
		res, err := adapter.SendText(ctx, bus.OutboundMessage{ChatID: t.ChatID, Content: text, Metadata: opts.Metadata})
		if err != nil {
			lastErr = err
		} else {
			anySuccess = true
			messageID = res.MessageID
		}
	}

	for _, att := range attachments {
		if att.IsImage {
			if _, err := ValidateImageAttachment(ctx, att.URL, nil); err != nil {
				slog.Warn("rejecting invalid image attachment", "url", att.URL, "error", err)
				lastErr = err
				continue
			}
			res, err := adapter.SendImage(ctx, t.ChatID, att.URL, att.Alt, "")
			if err != nil {
				lastErr = err
				continue
			}
			anySuccess = true
			if messageID == "" {
				messageID = res.MessageID
			}
			continue
		}

		if err := CheckTrustedPath(att.URL, r.cfg.TrustedRoots); err != nil {
			slog.Warn("rejecting untrusted document path", "path", att.URL, "error", err)
			lastErr = err
			continue
		}
		res, err := adapter.SendDocument(ctx, t.ChatID, att.URL, att.Alt)
		if err != nil {
			lastErr = err
			continue
		}
		anySuccess = true
		if messageID == "" {
			messageID = res.MessageID
		}
	}

	if !anySuccess && lastErr != nil {
		return Result{Success: false, Error: lastErr}
	}
	return Result{Success: true, MessageID: messageID, Error: lastErr}
}
