// Package processing keeps per-channel traffic statistics for the pub/sub links
// the controller uses.
package processing

import (
	"sort"
	"sync"

	"github.com/open-teleop/motion-controller/pkg/config"
	customlog "github.com/open-teleop/motion-controller/pkg/log"
)

// TopicInfo holds metadata and counters for a channel
type TopicInfo struct {
	Topic       string `json:"topic"`
	Direction   string `json:"direction"`
	Description string `json:"description,omitempty"`
	Count       int64  `json:"count"`
	Errors      int64  `json:"errors"`
	// LastSeen is the unix nanosecond time of the last message, 0 if none.
	LastSeen int64 `json:"last_seen_ns"`
}

// TopicRegistry maintains information about channels
type TopicRegistry struct {
	logger customlog.Logger
	topics map[string]*TopicInfo
	mu     sync.RWMutex
}

// NewTopicRegistry creates a new topic registry
func NewTopicRegistry(logger customlog.Logger) *TopicRegistry {
	return &TopicRegistry{
		logger: logger,
		topics: make(map[string]*TopicInfo),
	}
}

// LoadFromConfig registers the channels of the tuning config. Counters of
// channels already known are kept.
func (r *TopicRegistry) LoadFromConfig(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ch := range cfg.Channels {
		ch, _ = cfg.GetChannelByTopic(ch.Topic)
		info, exists := r.topics[ch.Topic]
		if !exists {
			info = &TopicInfo{Topic: ch.Topic}
			r.topics[ch.Topic] = info
		}
		info.Direction = ch.Direction
		info.Description = ch.Description
	}

	r.logger.Infof("Loaded %d channels into registry", len(cfg.Channels))
}

// Register adds a channel that is not described by the tuning config.
func (r *TopicRegistry) Register(topic, direction string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.topics[topic]; !exists {
		r.topics[topic] = &TopicInfo{Topic: topic, Direction: direction}
	}
}

// UpdateTopicStats counts one message on topic at the given unix nanosecond time.
func (r *TopicRegistry) UpdateTopicStats(topic string, timestamp int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := r.getOrCreate(topic)
	info.Count++
	info.LastSeen = timestamp
}

// RecordError counts one failed send or undecodable message on topic.
func (r *TopicRegistry) RecordError(topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.getOrCreate(topic).Errors++
}

func (r *TopicRegistry) getOrCreate(topic string) *TopicInfo {
	info, exists := r.topics[topic]
	if !exists {
		info = &TopicInfo{Topic: topic}
		r.topics[topic] = info
	}
	return info
}

// GetTopicInfo gets information for a topic
func (r *TopicRegistry) GetTopicInfo(topic string) (TopicInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.topics[topic]
	if !exists {
		return TopicInfo{}, false
	}
	return *info, true
}

// GetAllTopics returns the sorted list of registered topics
func (r *TopicRegistry) GetAllTopics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]string, 0, len(r.topics))
	for topic := range r.topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	return topics
}

// GetTopicStats returns a snapshot of every channel, sorted by topic
func (r *TopicRegistry) GetTopicStats() []TopicInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make([]TopicInfo, 0, len(r.topics))
	for _, info := range r.topics {
		stats = append(stats, *info)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Topic < stats[j].Topic })

	return stats
}
