package lame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_Register_NoneIsNoOp(t *testing.T) {
	cfg := DefaultConfig()
	w, err := NewWorker(0, cfg, nil, nil)
	require.NoError(t, err)
	assert.NoError(t, w.Register())
}

func TestWorker_Register_NonNoneDowngradesOnUnsupportedPlatformOrMissingDevice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LameRegister = RegisterInt
	cfg.LameDriverPath = "/dev/lame-does-not-exist-in-this-test-environment"
	w, err := NewWorker(0, cfg, nil, nil)
	require.NoError(t, err)

	err = w.Register()
	assert.Error(t, err)
	var derr *DriverError
	assert.ErrorAs(t, err, &derr)
}

func TestWorker_EntryINT_ReentrancyGuardSuppressesNestedDelivery(t *testing.T) {
	cfg := Config{LameBundleSize: 2, LameRegister: RegisterInt, LameTSC: TSCOff, LameBitmapPgszFactor: -1}
	w, err := NewWorker(0, cfg, nil, nil)
	require.NoError(t, err)
	w.Bundle.Enable()

	A, B := NewUthread(), NewUthread()
	require.NoError(t, w.Bundle.Add(A, true))
	require.NoError(t, w.Bundle.Add(B, false))
	w.SetSelf(A)

	w.inLame.Add(1) // simulate already being inside the handler
	regs := Trapframe{RIP: 0x1234, RAX: 42}
	got := w.EntryINT(A, regs)

	assert.Equal(t, regs, got)
	assert.Equal(t, uint64(0), w.Bundle.totalLames)
	assert.Same(t, A, w.Self()) // self untouched: lameHandle never ran
}

func TestWorker_EntryPMU_InvokesCedeWhenNeeded(t *testing.T) {
	cfg := Config{LameBundleSize: 1, LameRegister: RegisterPMU, LameTSC: TSCNop, LameBitmapPgszFactor: -1}
	w, err := NewWorker(0, cfg, nil, nil)
	require.NoError(t, err)

	A := NewUthread()
	require.NoError(t, w.Bundle.Add(A, true))
	w.SetSelf(A)

	cedeCalled := false
	w.PreemptCedeNeeded = func() bool { return true }
	w.ThreadCede = func() { cedeCalled = true }

	_ = w.EntryPMU(A, Trapframe{RIP: 0x1000})
	assert.True(t, cedeCalled)
}

func TestWorker_EntryPMU_YieldsWhenCedeNotNeeded(t *testing.T) {
	cfg := Config{LameBundleSize: 1, LameRegister: RegisterPMU, LameTSC: TSCNop, LameBitmapPgszFactor: -1}
	w, err := NewWorker(0, cfg, nil, nil)
	require.NoError(t, err)

	A := NewUthread()
	require.NoError(t, w.Bundle.Add(A, true))
	w.SetSelf(A)

	putKCalled, yieldCalled := false, false
	// Preemption is needed when the PMU entry checks, but a cede is no
	// longer needed by the time the slow path decides.
	checks := 0
	w.PreemptCedeNeeded = func() bool { checks++; return checks == 1 }
	w.PutK = func() { putKCalled = true }
	w.ThreadYield = func() { yieldCalled = true }

	_ = w.EntryPMU(A, Trapframe{RIP: 0x1000})
	assert.True(t, putKCalled)
	assert.True(t, yieldCalled)
}

func TestEntryStubAddress_DistinguishesModesAndFixedUnroll(t *testing.T) {
	a := entryStubAddress(RegisterInt, 4)
	b := entryStubAddress(RegisterPMU, 4)
	assert.NotEqual(t, a, b)

	unrolled := entryStubAddress(RegisterInt, 2)
	assert.NotEqual(t, a, unrolled)
	assert.Equal(t, uint64(1), unrolled&0x1)
}
