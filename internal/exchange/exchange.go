package exchange

import (
	"adaptive-agent-go/internal/models"
	"context"
	"errors"
	"time"
)

// ErrRejected 表示交易所拒绝了订单
var ErrRejected = errors.New("order rejected")

// Exchange 定义了交易提交的通用方法。
// 执行器只依赖这个接口，真实交易所或模拟交易所都可以接入。
type Exchange interface {
	Submit(ctx context.Context, signal models.Signal) (*Fill, error)
}

// Fill 是一次成交的结果
type Fill struct {
	OrderID    int64     `json:"order_id"`
	Asset      string    `json:"asset"`
	Side       string    `json:"side"`
	Amount     float64   `json:"amount"`
	Price      float64   `json:"price"` // 含滑点的成交价
	Fee        float64   `json:"fee"`
	ProfitLoss float64   `json:"profit_loss"` // 扣除手续费后的已实现盈亏 (计价货币)
	Time       time.Time `json:"time"`
}
