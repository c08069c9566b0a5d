package action

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/loopguard/api/schemas"
)

func terminationDeps() Collaborators {
	return Collaborators{
		Regions: []schemas.Region{{ID: "status"}},
		Capture: &stubCapture{hashes: map[string]uint64{"status": 7}},
		OCR:     &stubOCR{text: map[string]string{"status": "BUILD SUCCESSFUL in 3s"}},
		LLM:     &stubLLM{},
	}
}

func TestTerminationCheckContext(t *testing.T) {
	a, err := NewTerminationCheck(TerminationCheckConfig{
		CheckType:            CheckContext,
		ContextVars:          []string{"missing", "prompt"},
		TerminationCondition: `(?i)all done`,
	}, terminationDeps())
	require.NoError(t, err)

	t.Run("no match", func(t *testing.T) {
		actx := NewContext()
		actx.Set("prompt", "keep going")
		require.NoError(t, a.Execute(context.Background(), nil, actx))
		assert.False(t, actx.TerminationRequested())
	})

	t.Run("match requests termination through the sequence", func(t *testing.T) {
		actx := NewContext()
		actx.Set("prompt", "All done here")
		var log schemas.EventLog

		ok := NewSequence([]Action{a}, WithDelay(0)).Run(context.Background(), nil, actx, &log)
		require.True(t, ok)

		reason, _ := actx.TerminationReason()
		assert.Equal(t, "context_match: prompt =~ (?i)all done", reason)
		want := []schemas.Event{
			schemas.ActionStarted{Action: "TerminationCheck"},
			schemas.TerminationCheckTriggered{CheckType: CheckContext, Reason: reason},
			schemas.ActionCompleted{Action: "TerminationCheck", Success: true},
		}
		if diff := cmp.Diff(want, log.Events()); diff != "" {
			t.Errorf("events mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestTerminationCheckOCR(t *testing.T) {
	a, err := NewTerminationCheck(TerminationCheckConfig{
		CheckType:            CheckOCR,
		OCRRegionIDs:         []string{"status"},
		TerminationCondition: `BUILD (SUCCESSFUL|FAILED)`,
	}, terminationDeps())
	require.NoError(t, err)

	actx := NewContext()
	require.NoError(t, a.Execute(context.Background(), nil, actx))
	reason, ok := actx.TerminationReason()
	require.True(t, ok)
	assert.Equal(t, "ocr_match: status =~ BUILD (SUCCESSFUL|FAILED)", reason)

	t.Run("unknown region fails", func(t *testing.T) {
		b, err := NewTerminationCheck(TerminationCheckConfig{
			CheckType:            CheckOCR,
			OCRRegionIDs:         []string{"ghost"},
			TerminationCondition: "x",
		}, terminationDeps())
		require.NoError(t, err)
		err = b.Execute(context.Background(), nil, NewContext())
		assert.ErrorIs(t, err, ErrRegionNotFound)
	})
}

func TestTerminationCheckAIQuery(t *testing.T) {
	deps := terminationDeps()
	llm := &stubLLM{resp: schemas.LLMPromptResponse{TaskComplete: true, TaskCompleteReason: ptr("PR merged")}}
	deps.LLM = llm

	a, err := NewTerminationCheck(TerminationCheckConfig{CheckType: CheckAIQuery, AIQueryPrompt: "Is the PR merged?"}, deps)
	require.NoError(t, err)

	actx := NewContext()
	require.NoError(t, a.Execute(context.Background(), nil, actx))
	reason, _ := actx.TerminationReason()
	assert.Equal(t, "ai_query: PR merged", reason)
	require.Len(t, llm.requests, 1)
	assert.Equal(t, "Is the PR merged?", llm.requests[0].SystemPrompt)
	assert.Empty(t, llm.requests[0].Regions)

	llm.resp = schemas.LLMPromptResponse{ContinuationPrompt: ptr("wait")}
	actx = NewContext()
	require.NoError(t, a.Execute(context.Background(), nil, actx))
	assert.False(t, actx.TerminationRequested())
}

func TestNewTerminationCheckValidation(t *testing.T) {
	_, err := NewTerminationCheck(TerminationCheckConfig{CheckType: "vibes"}, terminationDeps())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownCheckType)
	assert.Equal(t, "unknown check_type 'vibes'", err.Error())

	_, err = NewTerminationCheck(TerminationCheckConfig{CheckType: CheckContext, TerminationCondition: "("}, terminationDeps())
	assert.ErrorIs(t, err, ErrInvalidPattern)

	deps := terminationDeps()
	deps.OCR = nil
	_, err = NewTerminationCheck(TerminationCheckConfig{CheckType: CheckOCR, TerminationCondition: "x"}, deps)
	assert.ErrorIs(t, err, ErrOCRUnavailable)

	// A zero-value check reports the unknown mode at run time.
	err = (&TerminationCheck{}).Execute(context.Background(), nil, NewContext())
	assert.ErrorIs(t, err, ErrUnknownCheckType)
}
