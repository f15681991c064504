package notify

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/containrrr/shoutrrr"
	"github.com/sirupsen/logrus"
)

// SendFunc delivers a message to a shoutrrr service URL
type SendFunc func(url, message string) error

// Notifier sends per-show summaries of newly placed episodes
type Notifier struct {
	send   SendFunc
	logger *logrus.Logger
}

// NewNotifier creates a notifier backed by shoutrrr
func NewNotifier(logger *logrus.Logger) *Notifier {
	return &Notifier{
		send:   shoutrrr.Send,
		logger: logger,
	}
}

// NotifyPlaced sends the summary to serviceURL. An empty URL disables
// notifications. Failures are returned for logging only, never retried.
func (n *Notifier) NotifyPlaced(serviceURL, title string, season int, placed map[int]string) error {
	if serviceURL == "" || len(placed) == 0 {
		return nil
	}

	message := FormatMessage(title, season, placed)
	if err := n.send(serviceURL, message); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	n.logger.WithFields(logrus.Fields{
		"title":    title,
		"episodes": len(placed),
	}).Debug("Sent notification")
	return nil
}

// FormatMessage renders the summary, one line per episode in order
func FormatMessage(title string, season int, placed map[int]string) string {
	episodes := make([]int, 0, len(placed))
	for ep := range placed {
		episodes = append(episodes, ep)
	}
	sort.Ints(episodes)

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d new episode(s)\n", title, len(episodes))
	for _, ep := range episodes {
		fmt.Fprintf(&b, "S%02dE%02d %s\n", season, ep, filepath.Base(placed[ep]))
	}
	return strings.TrimRight(b.String(), "\n")
}
