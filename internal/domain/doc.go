// Package domain models the salon directory and the discovery pipeline's
// core types: coordinates, salons, ranking, and the ports the adapters
// implement.
//
// # Directory Conventions
//
// Salon entries originate from the remote salon directory REST API. List
// endpoints wrap their payloads in an envelope:
//
//	{"salons": [...], "total_count": N}
//
// and the detail endpoint wraps a single entry as {"salon": {...}}. Failures
// are reported as {"error": "message"} with a 4xx/5xx status. Every entry
// carries an integer ID unique within the directory; working sets are
// deduplicated on it.
//
// Distance semantics:
//
//	Only location-qualified queries (the nearby endpoint) annotate entries
//	with a distance, in kilometers from the query point. Entries from the
//	full-catalog and by-city endpoints have no distance. DistanceKm is
//	therefore a pointer: nil means "not location-qualified", not "zero km".
//	Ranking sorts missing distances after all present ones.
//
// Coordinates are WGS-84 decimal degrees. Great-circle distances use the
// haversine formula on a spherical Earth (R = 6371 km), which stays within
// roughly 0.5% of the geodesic distance.
//
// # Error Taxonomy
//
// No discovery failure is fatal; every operation has a degraded
// continuation and nothing is retried automatically. Position acquisition
// failures map onto three sentinel errors (unavailable, denied, timeout).
// Directory failures of any shape (transport, non-2xx status, malformed
// payload) normalize to [RemoteError]. Sessions expose failures to clients
// as stable [ErrorKind] codes; rendering them is the client's job.
//
// # Selection Handoff
//
// A booking flow may park a pending style selection in an ephemeral
// key-value store under a session-scoped key. Selecting a salon consults
// that store: a pending selection routes to booking and is consumed
// (read-and-remove, one shot); otherwise the salon detail route is
// returned. The store is injected via [HandoffStore], never reached
// through a global.
package domain
