package delivery

import (
	"context"
	"fmt"
	"strings"

	"github.com/scarlettdetekelala/hermes-agent/internal/config"
	"github.com/scarlettdetekelala/hermes-agent/internal/session"
)

// Target is a resolved delivery destination (spec §3 DeliveryTarget).
// ChatID is empty only for the local sink.
type Target struct {
	Platform   config.Platform
	ChatID     string
	IsOrigin   bool
	IsExplicit bool
}

// ToString renders a Target back to its TargetSpec string form. Round-trips
// with ParseTarget for any value ParseTarget can itself produce (spec §8:
// "parse(format(t)) == t").
func (t Target) ToString() string {
	if t.IsOrigin {
		return "origin"
	}
	if t.Platform == config.PlatformLocal {
		return "local"
	}
	if t.ChatID != "" {
		return string(t.Platform) + ":" + t.ChatID
	}
	return string(t.Platform)
}

// ParseTarget parses one TargetSpec string (spec §6 delivery-target mini-
// grammar: "origin" | "local" | platform (":" chat)?). origin is the
// SessionSource of the event that triggered this delivery, used only when
// spec is "origin"; it may be nil for cron-originated deliveries with no
// natural origin.
func ParseTarget(spec string, origin *session.Source) Target {
	spec = strings.ToLower(strings.TrimSpace(spec))

	switch spec {
	case "origin":
		if origin != nil {
			return Target{Platform: origin.Platform, ChatID: origin.ChatID, IsOrigin: true}
		}
		return Target{Platform: config.PlatformLocal, IsOrigin: true}
	case "local":
		return Target{Platform: config.PlatformLocal}
	}

	if idx := strings.IndexByte(spec, ':'); idx >= 0 {
		platformStr, chat := spec[:idx], spec[idx+1:]
		if p, ok := config.ParsePlatform(platformStr); ok {
			return Target{Platform: p, ChatID: chat, IsExplicit: true}
		}
		return Target{Platform: config.PlatformLocal}
	}

	if p, ok := config.ParsePlatform(spec); ok {
		return Target{Platform: p}
	}
	return Target{Platform: config.PlatformLocal}
}

// Directory is the subset of the Channel Directory the router needs: name
// resolution within a platform. Satisfied by internal/channeldir.Directory.
type Directory interface {
	Resolve(ctx context.Context, platform config.Platform, name string) (string, error)
}

// ResolveTargets turns a delivery spec list into a deduplicated, concretely
// addressable target list (spec §4.H resolve()).
//
// Resolution order per spec string: origin -> local -> "<platform>" (home
// channel) -> "<platform>:<chat>" (numeric chat id used as-is; non-numeric
// name queried against dir). Unresolvable specs are dropped, not erred —
// callers that need to know why can inspect the returned per-spec errors.
func ResolveTargets(ctx context.Context, cfg *config.Config, dir Directory, specs []string, origin *session.Source) ([]Target, map[string]error) {
	var targets []Target
	seen := make(map[string]struct{})
	dropped := make(map[string]error)

	add := func(t Target) {
		key := string(t.Platform) + "\x00" + t.ChatID
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		targets = append(targets, t)
	}

	for _, spec := range specs {
		t := ParseTarget(spec, origin)

		if t.Platform == config.PlatformLocal {
			add(t)
			continue
		}

		if t.ChatID == "" {
			home := cfg.GetHomeChannel(t.Platform)
			if home == nil {
				dropped[spec] = fmt.Errorf("%w: no home channel configured for %s", ErrDeliveryTargetUnresolved, t.Platform)
				continue
			}
			t.ChatID = home.ChatID
		} else if t.IsExplicit && !isNumeric(t.ChatID) {
			if dir == nil {
				dropped[spec] = fmt.Errorf("%w: %s:%s is a name but no channel directory is configured", ErrDeliveryTargetUnresolved, t.Platform, t.ChatID)
				continue
			}
			resolved, err := dir.Resolve(ctx, t.Platform, t.ChatID)
			if err != nil {
				dropped[spec] = fmt.Errorf("%w: %s", ErrDeliveryTargetUnresolved, err)
				continue
			}
			t.ChatID = resolved
		}

		add(t)
	}

	if cfg.AlwaysLogLocal {
		add(Target{Platform: config.PlatformLocal})
	}

	return targets, dropped
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
