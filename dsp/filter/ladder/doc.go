// Package ladder implements a multi-channel nonlinear 4-pole ladder
// low-pass filter.
//
// The model follows Huovilainen's tuning and resonance compensation with a
// polynomial tanh in each stage. Resonance is normalized to [0, 1] and the
// passband gain is compensated, so the filter can sit in front of a
// waveshaper as an anti-aliasing stage without changing the level.
package ladder
