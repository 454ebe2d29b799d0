// Package delay provides a block-oriented circular delay line with feedback.
//
// The buffer length is a whole number of blocks, so each block is written
// as one contiguous region and only the read side ever wraps. The region
// just written is exposed as a buffer.Block view so insert effects can
// process the recorded signal in place before it is fed back.
package delay
