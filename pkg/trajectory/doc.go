// Package trajectory correlates rover and helicopter trajectory documents
// with the classified image index.
//
// Point features (current position, waypoints, helicopter flights) receive
// the images of their own day. Path segments are bounded by two motion
// counter codes that are looked up in the vehicle's waypoints to find a day
// range; blank codes are filled from the neighbouring segments. A segment
// whose codes do not match exactly one waypoint each yields a
// ResolutionError, which is either reported and skipped or, in strict mode,
// returned.
package trajectory
