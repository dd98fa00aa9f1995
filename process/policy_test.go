package process

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitPolicy(t *testing.T) {
	tests := []struct {
		name     string
		policy   ExitPolicy
		code     int
		signal   syscall.Signal
		signaled bool
		clean    bool
	}{
		{"default success", DefaultExitPolicy(), 0, 0, false, true},
		{"default failure code", DefaultExitPolicy(), 1, 0, false, false},
		{"default rejects sigint", DefaultExitPolicy(), -1, syscall.SIGINT, true, false},
		{"shutdown accepts sigint", ShutdownExitPolicy(), -1, syscall.SIGINT, true, true},
		{"shutdown accepts sigkill", ShutdownExitPolicy(), -1, syscall.SIGKILL, true, true},
		{"shutdown accepts 130", ShutdownExitPolicy(), 130, 0, false, true},
		{"shutdown accepts 137", ShutdownExitPolicy(), 137, 0, false, true},
		{"shutdown rejects sigsegv", ShutdownExitPolicy(), -1, syscall.SIGSEGV, true, false},
		{"shutdown rejects code 2", ShutdownExitPolicy(), 2, 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.clean, tt.policy.Clean(tt.code, tt.signal, tt.signaled))
		})
	}
}

func TestExitErrorMessage(t *testing.T) {
	err := &ExitError{Name: "typeberry", Code: -1, Signal: syscall.SIGKILL, Signaled: true}
	assert.Equal(t, "[typeberry] process exited (code: -1, signal: killed)", err.Error())

	err = &ExitError{Name: "typeberry", Code: 2}
	assert.Equal(t, "[typeberry] process exited (code: 2, signal: none)", err.Error())
}
