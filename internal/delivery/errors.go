package delivery

import "errors"

// ErrDeliveryTargetUnresolved is returned when a target spec names a
// platform/channel that cannot be resolved to a concrete chat id (unknown
// platform, missing home channel, channel-directory lookup failure).
var ErrDeliveryTargetUnresolved = errors.New("delivery: target could not be resolved")

// ErrUntrustedPath is returned when a document send names a path outside
// the configured trusted roots (spec §7).
var ErrUntrustedPath = errors.New("delivery: path is outside trusted roots")

// ErrPathTraversal is returned when a document path contains a ".." segment,
// checked before any filesystem access (spec §7, §8 invariant 7).
var ErrPathTraversal = errors.New("delivery: path contains traversal segment")
