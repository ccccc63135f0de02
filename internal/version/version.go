// Package version provides build and version information.
package version

// Version is the current application version.
const Version = "0.3.0"

// Milestones:
// 0.3.0 - Automatic detection over units and ellipsoids, rotated site grids, bubbletea progress view
// 0.2.0 - Bursa-Wolfe estimation and refinement, GeoJSON residual export
// 0.1.0 - Initial release: projection fitter for TM/LCC/Albers/LAEA, JSON and table reports
