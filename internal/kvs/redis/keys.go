package redis

const (
	// KeyPrefix is the prefix for every key this backend writes.
	KeyPrefix = "tabstash:"
)

// keySet is the Redis layout of one namespace.
type keySet struct {
	// index is a sorted set of entry keys, all with score 0, so ZRANGEBYLEX
	// returns them in byte order.
	index string
	// values is a hash of entry key -> value.
	values string
	// events is the pub/sub channel carrying change notifications.
	events string
}

func newKeySet(namespace string) keySet {
	base := KeyPrefix + namespace
	return keySet{
		index:  base + ":index",
		values: base + ":values",
		events: base + ":events",
	}
}
