// Package scale maps dataset values onto canvas positions, radii and colors.
//
// Every scale is derived once from a loaded [dataset.Dataset] by [Build] and
// is read-only afterwards. Continuous scales wrap go-moremath's unit scales
// and interpolate onto a pixel range; categorical colors come from [Ordinal]
// scales and the fixed threshold tiers of [ClassifyNotWhite] and
// [ClassifyBlack].
//
// The formatters in this package reproduce the number formats the charts
// display (comma grouping, two significant digits, whole percentages).
package scale
