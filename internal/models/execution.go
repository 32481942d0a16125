package models

import "time"

// SignalType 定义了策略信号的类型
type SignalType string

const (
	SignalHold SignalType = "hold"
	SignalAct  SignalType = "act"
)

// Signal 是策略生成的交易意图
type Signal struct {
	Type     SignalType `json:"type"`
	Asset    string     `json:"asset"`
	Size     float64    `json:"size"`     // 占组合价值的比例
	Amount   float64    `json:"amount"`   // 资产数量
	Slippage float64    `json:"slippage"` // 预估滑点
	Price    float64    `json:"price"`    // 生成信号时的参考价格
}

// Reason 说明一次执行结果的原因
type Reason string

const (
	ReasonInsufficientConfidence  Reason = "insufficient_confidence"
	ReasonNoSignal                Reason = "no_signal"
	ReasonMaxPositionSizeExceeded Reason = "max_position_size_exceeded"
	ReasonMaxSlippageExceeded     Reason = "max_slippage_exceeded"
	ReasonTimeout                 Reason = "timeout"
	ReasonError                   Reason = "error"
	ReasonPanic                   Reason = "panic"
	ReasonFilled                  Reason = "filled"
)

// Action 执行动作
type Action string

const (
	ActionNone    Action = ""
	ActionHold    Action = "hold"
	ActionExecute Action = "execute"
)

// ExecutionResult 是一次策略执行的结构化结果，失败也以数据形式返回
type ExecutionResult struct {
	Strategy    string        `json:"strategy"`
	Success     bool          `json:"success"`
	Action      Action        `json:"action,omitempty"`
	Reason      Reason        `json:"reason"`
	Error       string        `json:"error,omitempty"`
	Asset       string        `json:"asset,omitempty"`
	Amount      float64       `json:"amount,omitempty"`
	Price       float64       `json:"price,omitempty"`
	ProfitLoss  float64       `json:"profit_loss"`
	BeliefScore float64       `json:"belief_score"`
	Timestamp   time.Time     `json:"timestamp"`
	Duration    time.Duration `json:"duration"`
}

// IsHold 判断结果是否为无信号的持有
func (r ExecutionResult) IsHold() bool {
	return r.Success && r.Action == ActionHold
}
