package models

import "time"

// CycleState 定义了需要持久化的所有关键数据，每个周期结束时作为一个整体提交
type CycleState struct {
	Version        uint64             `json:"version"`                  // 乐观并发版本号，每次提交 +1
	ExecutionCount int                `json:"execution_count"`          // 已完成的周期数
	LastExecution  *time.Time         `json:"last_execution,omitempty"` // 上一次成功持久化的周期时间
	LastEvolution  *time.Time         `json:"last_evolution,omitempty"` // 上一次完成进化的时间
	LastCycleID    string             `json:"last_cycle_id,omitempty"`
	LastSummary    Summary            `json:"last_summary"`
	BeliefScores   map[string]float64 `json:"belief_scores"` // 策略名 -> 置信度 [0,1]
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Summary 汇总一个周期的执行结果
type Summary struct {
	Total      int     `json:"total"`
	Successful int     `json:"successful"`
	Failed     int     `json:"failed"`
	TotalPnL   float64 `json:"total_pnl"`
	WinRate    float64 `json:"win_rate"` // 百分比
}

// NewCycleState 返回一个空的初始状态
func NewCycleState() *CycleState {
	return &CycleState{BeliefScores: make(map[string]float64)}
}

// Clone 返回深拷贝，调用方可以安全地修改副本
func (s *CycleState) Clone() *CycleState {
	if s == nil {
		return nil
	}
	c := *s
	if s.LastExecution != nil {
		t := *s.LastExecution
		c.LastExecution = &t
	}
	if s.LastEvolution != nil {
		t := *s.LastEvolution
		c.LastEvolution = &t
	}
	c.BeliefScores = make(map[string]float64, len(s.BeliefScores))
	for k, v := range s.BeliefScores {
		c.BeliefScores[k] = v
	}
	return &c
}
