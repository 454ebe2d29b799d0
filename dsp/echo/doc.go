// Package echo wires the delay line, the anti-aliasing ladder filter and
// the dynamic waveshaper into a bucket-brigade style echo.
//
// Per block the processor records the input into the delay buffer, runs the
// insert effects over the recorded region, then mixes the delayed signal
// back into the buffer (feedback) and into the output (wet). The inserts
// color the input as it is recorded; feedback is mixed in after them.
//
// Control goroutines call the setters at any time; the audio goroutine
// calls WriteBlock, ProcessInsert and ReadBlock (or ProcessBlock). The
// audio path does not lock or allocate.
package echo
