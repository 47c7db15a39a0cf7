// Package undo provides a stack of compensating actions for multi-step setup procedures.
package undo

// Stack records the undo action of each committed step.
// On failure, Rollback runs them in reverse order.
// On success, Discard forgets them.
//
// The zero value is an empty stack ready for use.
type Stack struct {
	actions []func()
}

// Push records an undo action for a step that has just succeeded.
func (s *Stack) Push(action func()) {
	s.actions = append(s.actions, action)
}

// Len returns the number of recorded actions.
func (s *Stack) Len() int {
	return len(s.actions)
}

// Rollback pops and runs every recorded action, most recent first.
func (s *Stack) Rollback() {
	for i := len(s.actions) - 1; i >= 0; i-- {
		action := s.actions[i]
		s.actions = s.actions[:i]
		action()
	}
}

// Discard forgets every recorded action without running it.
func (s *Stack) Discard() {
	s.actions = nil
}

// RollbackUnless runs Rollback if *e is non-nil, otherwise Discard.
// It is intended for use with a named error return:
//  var u undo.Stack
//  defer u.RollbackUnless(&e)
func (s *Stack) RollbackUnless(e *error) {
	if *e != nil {
		s.Rollback()
	} else {
		s.Discard()
	}
}
