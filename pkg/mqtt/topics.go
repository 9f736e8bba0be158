package mqtt

import "fmt"

// Telemetry topics published by the daemon
const (
	// TopicState carries the full daemon state as retained JSON
	TopicState = "duskd/state"

	// TopicPeriod carries the current period name (Day, Night, Transition)
	TopicPeriod = "duskd/period"
)

// PropertyTopic constructs a per-property topic for a changed value
// Pattern: duskd/property/{name}
func PropertyTopic(name string) string {
	return fmt.Sprintf("duskd/property/%s", name)
}
