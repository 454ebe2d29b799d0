// Package buffer provides a planar multi-channel sample block with
// allocation-free sub-block views.
//
// A Block owns (or borrows) one []float64 per channel. View re-slices an
// existing Block into a caller-owned destination Block, so processors can
// keep a pre-allocated view header and retarget it every audio block
// without touching the allocator.
package buffer
