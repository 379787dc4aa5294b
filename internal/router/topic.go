package router

import (
	"strings"

	"github.com/roach88/ioseq/internal/cache"
)

// DefaultRoot is the first topic segment devices publish under.
const DefaultRoot = "uhn"

// TopicKind classifies a bus topic.
type TopicKind string

const (
	TopicState        TopicKind = "state"
	TopicCatalog      TopicKind = "catalog"
	TopicUnrecognized TopicKind = "unrecognized"
)

// Route is the structural reading of a topic.
type Route struct {
	Kind     TopicKind
	Scope    string // edge name
	EntityID string // state topics only, NFC-normalized
}

// Classify matches topic against
//
//	<root>/<scope>/device/<entity>/state
//	<root>/<scope>/catalog
//
// An empty root accepts any first segment. Empty segments never match.
func Classify(root, topic string) Route {
	parts := strings.Split(topic, "/")
	for _, p := range parts {
		if p == "" {
			return Route{Kind: TopicUnrecognized}
		}
	}
	if root != "" && parts[0] != root {
		return Route{Kind: TopicUnrecognized}
	}

	switch {
	case len(parts) == 5 && parts[2] == "device" && parts[4] == "state":
		return Route{Kind: TopicState, Scope: parts[1], EntityID: cache.NormalizeEntity(parts[3])}
	case len(parts) == 3 && parts[2] == "catalog":
		return Route{Kind: TopicCatalog, Scope: parts[1]}
	default:
		return Route{Kind: TopicUnrecognized}
	}
}
