package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	err := &Error{Kind: KindExpansion, Code: "unknown_flow", Message: "unknown flow: GHOST_FLOW"}
	assert.Equal(t, "unknown flow: GHOST_FLOW", err.Error())
}

func TestError_ErrorWithCause(t *testing.T) {
	err := ErrMalformedTable.WithMessage("sheet TestCases").WithCause(errors.New("missing header"))
	assert.Contains(t, err.Error(), "sheet TestCases")
	assert.Contains(t, err.Error(), "missing header")
}

func TestError_IsMatchesByCode(t *testing.T) {
	err := ErrUnknownFlow.WithMessagef("unknown flow: %s", "GHOST_FLOW")
	wrapped := fmt.Errorf("test case TC1: %w", err)

	assert.True(t, errors.Is(wrapped, ErrUnknownFlow))
	assert.False(t, errors.Is(wrapped, ErrCircularFlowReference))
}

func TestError_ErrorsIsFindsCause(t *testing.T) {
	cause := errors.New("root cause")
	err := ErrStepFailed.WithCause(cause)
	assert.True(t, errors.Is(err, cause))
}

func TestError_CopiesDoNotModifyOriginal(t *testing.T) {
	withMsg := ErrUndefinedVariable.WithMessage("undefined variable: BASE_URL")
	withDetails := ErrUndefinedVariable.WithDetails(map[string]interface{}{"variable": "BASE_URL"})

	assert.Equal(t, "undefined variable", ErrUndefinedVariable.Message)
	assert.Nil(t, ErrUndefinedVariable.Details)
	assert.Equal(t, "undefined variable: BASE_URL", withMsg.Message)
	assert.Equal(t, "BASE_URL", withDetails.Details["variable"])
}

func TestError_WithDetailsMerges(t *testing.T) {
	original := &Error{Code: "x", Details: map[string]interface{}{"existing": "value"}}
	merged := original.WithDetails(map[string]interface{}{"flow": "LOGIN_FLOW"})

	assert.Equal(t, "value", merged.Details["existing"])
	assert.Equal(t, "LOGIN_FLOW", merged.Details["flow"])
	_, leaked := original.Details["flow"]
	assert.False(t, leaked)
}

func TestPredefinedErrorKinds(t *testing.T) {
	tests := []struct {
		err  *Error
		kind ErrorKind
	}{
		{ErrDuplicateFlowName, KindLoad},
		{ErrEmptyFlowName, KindLoad},
		{ErrMalformedTable, KindLoad},
		{ErrDuplicateLocator, KindLoad},
		{ErrUnknownFlow, KindExpansion},
		{ErrCircularFlowReference, KindExpansion},
		{ErrInvalidFlowTarget, KindExpansion},
		{ErrEmptyFlowTarget, KindExpansion},
		{ErrFlowDepthExceeded, KindExpansion},
		{ErrMalformedReference, KindResolution},
		{ErrUnknownLocator, KindResolution},
		{ErrUndefinedVariable, KindResolution},
		{ErrUnknownCommand, KindResolution},
		{ErrStepFailed, KindExecution},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestKindOf(t *testing.T) {
	require.Equal(t, KindResolution, KindOf(fmt.Errorf("step 3: %w", ErrUnknownLocator)))
	require.Equal(t, KindExecution, KindOf(errors.New("boom")))
	require.Equal(t, KindLoad, KindOf(NewError(KindLoad, "custom", "custom")))
}
