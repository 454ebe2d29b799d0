// Package shaper provides table-based waveshaping.
//
// Table samples a static transfer function once and evaluates it with
// linear interpolation, so the per-sample cost does not depend on how
// expensive the transfer function is. Dynamic blends between the dry signal
// and the table output by a per-sample envelope: quiet passages pass
// unchanged, loud passages are colored.
package shaper
