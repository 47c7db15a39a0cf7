package undo_test

import (
	"errors"
	"testing"

	"github.com/usnistgov/rxsteer/core/testenv"
	"github.com/usnistgov/rxsteer/core/undo"
)

var makeAR = testenv.MakeAR

func TestRollbackOrder(t *testing.T) {
	assert, _ := makeAR(t)

	var order []int
	var u undo.Stack
	for i := 0; i < 4; i++ {
		i := i
		u.Push(func() { order = append(order, i) })
	}
	assert.Equal(4, u.Len())

	u.Rollback()
	assert.Equal([]int{3, 2, 1, 0}, order)
	assert.Equal(0, u.Len())

	u.Rollback()
	assert.Len(order, 4)
}

func TestRollbackUnless(t *testing.T) {
	assert, _ := makeAR(t)

	n := 0
	step := func(fail bool) (e error) {
		var u undo.Stack
		defer u.RollbackUnless(&e)
		u.Push(func() { n++ })
		u.Push(func() { n++ })
		if fail {
			return errors.New("X")
		}
		return nil
	}

	assert.NoError(step(false))
	assert.Equal(0, n)
	assert.Error(step(true))
	assert.Equal(2, n)
}
