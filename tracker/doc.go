// Package tracker provides a thin, stateful façade bound to one
// (session, action) pair that translates high-level lifecycle calls into
// status bus emissions with a consistent event shape.
//
// Constructing a tracker emits the action's Start event synchronously; Step
// and Progress record intermediate work; Complete or Fail close the action.
// Calls after a terminal event are logged and ignored so a sloppy caller can
// never corrupt an action's observed lifecycle.
package tracker
