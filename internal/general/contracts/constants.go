package contracts

// Exchanges
const (
	ExchangeRideTopic  = "ride_topic"
	ExchangeQueueTopic = "queue_topic"
)

// Queues (consumer side of the fan-out; declared so events survive until
// admin consoles and driver clients attach)
const (
	QueueRideEvents   = "ride_events"
	QueueQueueUpdates = "queue_updates"
)

// Channels map to routing key prefixes on the topic exchanges.
const (
	ChannelRides  = "rides"  // ride lifecycle events, key rides.{event_type}
	ChannelBooths = "booths" // queue updates, key booths.{booth_id}
)
