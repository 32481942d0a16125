package market

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2"
)

// BinanceFeed 从币安公共接口读取现货价格，不需要API Key
type BinanceFeed struct {
	client     *binance.Client
	quoteAsset string
}

// NewBinanceFeed 创建一个新的行情源实例
func NewBinanceFeed(quoteAsset string) *BinanceFeed {
	if quoteAsset == "" {
		quoteAsset = "USDT"
	}
	return &BinanceFeed{
		client:     binance.NewClient("", ""), // 公共接口不需要API Key
		quoteAsset: strings.ToUpper(quoteAsset),
	}
}

func (f *BinanceFeed) symbol(asset string) string {
	return strings.ToUpper(asset) + f.quoteAsset
}

// Price 返回资产对计价货币的最新价格
func (f *BinanceFeed) Price(ctx context.Context, asset string) (float64, error) {
	symbol := f.symbol(asset)
	prices, err := f.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("获取 %s 价格失败: %w", symbol, err)
	}
	for _, p := range prices {
		if p.Symbol == symbol {
			price, err := strconv.ParseFloat(p.Price, 64)
			if err != nil {
				return 0, fmt.Errorf("解析 %s 价格失败: %w", symbol, err)
			}
			return price, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
}

// Closes 下载最近 limit 根1分钟K线的收盘价，按时间升序
func (f *BinanceFeed) Closes(ctx context.Context, asset string, limit int) ([]float64, error) {
	if limit > 1000 {
		limit = 1000 // 币安单次请求最多1000条
	}
	symbol := f.symbol(asset)
	klines, err := f.client.NewKlinesService().
		Symbol(symbol).
		Interval("1m").
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("下载 %s K线数据失败: %w", symbol, err)
	}

	closes := make([]float64, 0, len(klines))
	for _, k := range klines {
		c, err := strconv.ParseFloat(k.Close, 64)
		if err != nil {
			return nil, fmt.Errorf("解析K线收盘价失败: %w", err)
		}
		closes = append(closes, c)
	}
	return closes, nil
}
