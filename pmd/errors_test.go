package pmd_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/usnistgov/rxsteer/core/testenv"
	"github.com/usnistgov/rxsteer/pmd"
	"golang.org/x/sys/unix"
)

var makeAR = testenv.MakeAR

func TestHardwareError(t *testing.T) {
	assert, _ := makeAR(t)

	assert.NoError(pmd.HardwareError("op", nil))

	e := pmd.HardwareError("create_flow", unix.ENOMEM)
	assert.ErrorIs(e, pmd.ErrResourceExhausted)
	assert.NotErrorIs(e, pmd.ErrHardwareRejected)
	assert.ErrorIs(e, unix.ENOMEM)
	assert.Equal(-int(unix.ENOMEM), pmd.Status(e))

	e = pmd.HardwareError("modify_wq", unix.EPERM)
	assert.ErrorIs(e, pmd.ErrHardwareRejected)
	assert.Equal(-int(unix.EPERM), pmd.Status(e))

	wrapped := fmt.Errorf("queue 3: %w", e)
	assert.Same(wrapped, pmd.HardwareError("again", wrapped))

	var hwe *pmd.HwError
	assert.True(errors.As(wrapped, &hwe))
	assert.Equal("modify_wq", hwe.Op)

	e = pmd.HardwareError("create_qp", errors.New("opaque"))
	assert.ErrorIs(e, pmd.ErrHardwareRejected)
	assert.Equal(-int(unix.EIO), pmd.Status(e))
}

func TestStatus(t *testing.T) {
	assert, _ := makeAR(t)

	assert.Equal(0, pmd.Status(nil))
	assert.Equal(-int(unix.EINVAL), pmd.Status(pmd.ErrInvalidAddress))
	assert.Equal(-int(unix.EINVAL), pmd.Status(pmd.ErrInvalidDescriptorCount))
	assert.Equal(-int(unix.EADDRINUSE), pmd.Status(pmd.ErrAddressConflict))
	assert.Equal(-int(unix.EBUSY), pmd.Status(pmd.ErrAlreadyActive))
	assert.Equal(-int(unix.EALREADY), pmd.Status(pmd.ErrAlreadyInactive))
	assert.Equal(-int(unix.ENOMEM), pmd.Status(pmd.ErrOutOfBuffers))
}

func TestRequire(t *testing.T) {
	assert, _ := makeAR(t)

	assert.NotPanics(func() { pmd.Require(true, "ok") })
	assert.PanicsWithValue(pmd.PreconditionViolation{What: "rules remain"}, func() {
		pmd.Require(false, "rules remain")
	})
}
