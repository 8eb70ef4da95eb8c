// Package domain models commute-time samples for UK city heatmaps.
//
// # Data Flow
//
// A city starts as a table of sample points (postcode centroids plus synthetic
// grid, centre and jittered points). Each point is sent as a destination to a
// travel-time service with the city centre as the origin. The resolved
// durations form the checkpoint table, which is interpolated onto a regular
// lattice (the InterpolatedGrid) and rendered as a map overlay.
//
// # Coordinate Conventions
//
// Coordinates are WGS-84 decimal degrees. Latitude always comes first in
// tables and request strings ("lat,lon"); GeoJSON output uses lon,lat as the
// format requires. Two points are the same point when their coordinates agree
// to six decimal places (about 11cm), see [KeyOf].
//
// # Grid Layout
//
//	GridZ[row][col]  row    -> LatAxis[row] (south to north)
//	                 column -> LonAxis[col] (west to east)
//
// Both axes are strictly ascending. A persisted grid never contains NaN or Inf:
// cells outside the sample hull carry the grid maximum, biasing unknown areas
// toward "slow".
//
// # Error Kinds
//
// Failures are reported as wrapped sentinel errors ([ErrMissingInput],
// [ErrMissingCredential], [ErrService], [ErrInsufficientData], [ErrRender]) so
// stage runners can decide with errors.Is whether a failure is fatal.
package domain
