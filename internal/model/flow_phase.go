package model

// FlowPhase 購買流程狀態
type FlowPhase string

const (
	PhaseIdle                 FlowPhase = "idle"
	PhaseSelecting            FlowPhase = "selecting"
	PhaseAwaitingConfirmation FlowPhase = "awaiting_confirmation"
	PhaseSubmitting           FlowPhase = "submitting"
	PhaseResultShown          FlowPhase = "result_shown"
	PhaseFailed               FlowPhase = "failed"
)

var phaseTransitions = map[FlowPhase][]FlowPhase{
	PhaseIdle:                 {PhaseSelecting, PhaseFailed},
	PhaseSelecting:            {PhaseIdle, PhaseAwaitingConfirmation, PhaseSubmitting, PhaseFailed},
	PhaseAwaitingConfirmation: {PhaseSubmitting, PhaseIdle, PhaseFailed},
	PhaseSubmitting:           {PhaseResultShown, PhaseFailed},
	PhaseResultShown:          {PhaseIdle, PhaseFailed},
	PhaseFailed:               {PhaseIdle},
}

// IsValid 驗證狀態是否有效
func (p FlowPhase) IsValid() bool {
	_, ok := phaseTransitions[p]
	return ok
}

// CanTransitionTo 檢查是否可以轉換到目標狀態
func (p FlowPhase) CanTransitionTo(target FlowPhase) bool {
	allowed, ok := phaseTransitions[p]
	if !ok {
		return false
	}

	for _, phase := range allowed {
		if phase == target {
			return true
		}
	}
	return false
}

// AcceptsSelection 只有 Idle 與 Selecting 接受選盒、選格
func (p FlowPhase) AcceptsSelection() bool {
	return p == PhaseIdle || p == PhaseSelecting
}
