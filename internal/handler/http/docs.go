// Package http contains the HTTP surface of the redirector.
//
// Public routes:
//
//	GET  /go/{slug}?dest=URL   rate-limited redirect, 302 to the resolved destination
//	GET  /status               liveness JSON with the total click count
//	GET  /metrics              Prometheus exposition
//	GET  /                     plain-text liveness acknowledgment
//
// Admin routes (shared secret in X-Admin-Secret, always reachable even
// while the kill switch is engaged):
//
//	GET  /admin/last           five most recent click events
//	GET  /admin/export         CSV of up to 1000 recent events
//	GET  /admin/export/day     CSV of one UTC calendar day
//	POST /admin/kill           engage the kill switch
//	POST /admin/unkill         release the kill switch
package http
