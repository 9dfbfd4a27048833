package common

// ShardIdForArea maps an area id to the shardId used by the transport
// layer to route a request to the handler responsible for that area.
// FNV-1a keeps this stable and collision-free for the small number of
// areas a node actually configures.
func ShardIdForArea(area string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(area); i++ {
		h ^= uint64(area[i])
		h *= 1099511628211
	}
	return h
}
