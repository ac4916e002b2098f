package broadcast

import "fmt"

// Status is the terminal state of one destination.
type Status string

const (
	StatusDelivered  Status = "delivered"
	StatusNotFound   Status = "not_found"
	StatusSendFailed Status = "send_failed"
)

// Outcome is the result of delivering to a single destination.
type Outcome struct {
	// Destination is the identifier as configured.
	Destination string
	Status      Status

	// ChannelName is set when the destination resolved.
	ChannelName string

	// Err is the send (or interrupted lookup) failure for StatusSendFailed,
	// or the resolution failure for StatusNotFound when the platform gave one.
	Err error
}

// Delivered builds a successful outcome.
func Delivered(destination, channelName string) Outcome {
	return Outcome{Destination: destination, Status: StatusDelivered, ChannelName: channelName}
}

// NotFound builds an outcome for an identifier that did not resolve.
func NotFound(destination string, cause error) Outcome {
	return Outcome{Destination: destination, Status: StatusNotFound, Err: cause}
}

// SendFailed builds an outcome for a destination whose send failed, or whose
// lookup was interrupted before it could complete.
func SendFailed(destination, channelName string, cause error) Outcome {
	return Outcome{Destination: destination, Status: StatusSendFailed, ChannelName: channelName, Err: cause}
}

func (o Outcome) String() string {
	switch o.Status {
	case StatusDelivered:
		return fmt.Sprintf("Delivered(%s)", o.ChannelName)
	case StatusNotFound:
		return fmt.Sprintf("NotFound(%s)", o.Destination)
	default:
		return fmt.Sprintf("SendFailed(%s, %v)", o.Destination, o.Err)
	}
}

// Report holds one Outcome per configured destination, in input order.
type Report struct {
	Outcomes []Outcome
}

// NotConfigured reports whether no destination was configured at all.
func (r Report) NotConfigured() bool { return len(r.Outcomes) == 0 }

// Delivered counts successful deliveries.
func (r Report) Delivered() int { return r.count(StatusDelivered) }

// Failed counts destinations that were not delivered to.
func (r Report) Failed() int { return len(r.Outcomes) - r.Delivered() }

// AllFailed is true for a configured batch with no delivery at all. An
// unconfigured batch is not "all failed".
func (r Report) AllFailed() bool {
	return !r.NotConfigured() && r.Delivered() == 0
}

func (r Report) count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}
