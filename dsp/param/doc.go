// Package param holds the user-facing controls of the echo core and
// publishes them to the audio thread without locks.
//
// Control-thread setters clamp each value to its documented range, convert
// it to the unit the signal path consumes (samples, linear gain, one-pole
// coefficient) and publish an immutable Snapshot through an atomic pointer.
// The audio thread calls Store.Snapshot once per block, so every sample of
// a block sees the same parameter set even if the control thread keeps
// writing.
//
// Smoother provides the short linear ramps used for gain-type parameters.
package param
