package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"dlpanel/internal/api"
)

// ErrMalformed marks a frame that could not be decoded into a notification.
var ErrMalformed = errors.New("malformed event frame")

// Kind classifies a notification.
type Kind int

const (
	// KindIgnore covers keep-alives and types the live view does not track.
	KindIgnore Kind = iota
	KindJob
	KindSubscription
	KindProgress
	KindLog
)

func (k Kind) String() string {
	switch k {
	case KindJob:
		return "job"
	case KindSubscription:
		return "subscription"
	case KindProgress:
		return "progress"
	case KindLog:
		return "log"
	default:
		return "ignore"
	}
}

// Notification is a decoded push-channel frame.
type Notification struct {
	Kind     Kind
	Topic    string
	JobID    string
	Progress api.Progress
	Level    string
	Message  string
}

var keepAliveEvents = map[string]struct{}{
	"hello": {},
	"ping":  {},
}

// resourceTopics are event-name prefixes that name the topic outright. The v1
// bus publishes "job.completed" with a job body whose "type" is the job kind,
// so for these the event name wins over the body.
var resourceTopics = map[string]struct{}{
	"job":           {},
	"jobs":          {},
	"subscription":  {},
	"subscriptions": {},
}

// Decode classifies a frame. A dotted event name such as "job.completed" or
// "subscription.updated" decides the topic first; otherwise the JSON "type"
// field is used, then the first segment of the event name. Unknown types
// decode to KindIgnore.
func Decode(frame Frame) (Notification, error) {
	event := strings.TrimSpace(frame.Event)
	if _, ok := keepAliveEvents[strings.ToLower(event)]; ok {
		return Notification{Kind: KindIgnore, Topic: frame.Event}, nil
	}

	var payload api.EventPayload
	if err := json.Unmarshal([]byte(frame.Data), &payload); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	topic := eventTopic(event)
	if topic == "" {
		topic = strings.TrimSpace(payload.Type)
	}
	if topic == "" {
		if event == "" || event == "message" {
			return Notification{}, fmt.Errorf("%w: missing type", ErrMalformed)
		}
		topic, _, _ = strings.Cut(event, ".")
	}

	n := Notification{Topic: topic}
	switch strings.ToLower(topic) {
	case "job", "jobs":
		n.Kind = KindJob
		n.JobID = firstNonEmpty(jobIDOf(payload.Job), payload.JobID, payload.ID)
	case "subscription", "subscriptions":
		n.Kind = KindSubscription
	case "progress":
		raw := bytes.TrimSpace(payload.Progress)
		if strings.TrimSpace(payload.JobID) == "" || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return Notification{}, fmt.Errorf("%w: progress without job_id or progress", ErrMalformed)
		}
		if err := json.Unmarshal(raw, &n.Progress); err != nil {
			return Notification{}, fmt.Errorf("%w: progress: %v", ErrMalformed, err)
		}
		n.Kind = KindProgress
		n.JobID = payload.JobID
	case "log":
		if payload.Msg == nil {
			return Notification{}, fmt.Errorf("%w: log without msg", ErrMalformed)
		}
		n.Kind = KindLog
		n.Level = payload.Level
		n.Message = *payload.Msg
	default:
		n.Kind = KindIgnore
	}
	return n, nil
}

// eventTopic returns the first segment of a dotted resource event name, or ""
// when the name does not name a tracked resource.
func eventTopic(event string) string {
	head, _, dotted := strings.Cut(event, ".")
	if !dotted {
		return ""
	}
	if _, ok := resourceTopics[strings.ToLower(head)]; !ok {
		return ""
	}
	return head
}

func jobIDOf(job *api.Job) string {
	if job == nil {
		return ""
	}
	return job.ID
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Pump reads frames from r until EOF or ctx ends and hands each decoded
// notification to handle in arrival order. Frames that fail to decode or
// exceed the frame size limit are reported to dropped (when non-nil) and
// otherwise skipped. Reaching EOF returns nil.
func Pump(ctx context.Context, r io.Reader, handle func(Notification), dropped func(Frame, error)) error {
	reader := NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, ErrFrameTooLarge) {
			if dropped != nil {
				dropped(frame, err)
			}
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("read event stream: %w", err)
		}
		n, err := Decode(frame)
		if err != nil {
			if dropped != nil {
				dropped(frame, err)
			}
			continue
		}
		handle(n)
	}
}
