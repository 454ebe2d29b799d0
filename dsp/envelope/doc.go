// Package envelope implements a chunked peak envelope follower.
//
// Input is split into chunks of roughly 10 ms. At the end of each chunk the
// follower latches a binary target level: 1 if the chunk peak exceeded the
// threshold, else 0. Between latches the envelope moves toward the target
// with asymmetric one-pole smoothing: attack while rising, exponential
// release while falling. The envelope therefore always lies in [0, 1] and
// can be used directly as a blend factor.
package envelope
